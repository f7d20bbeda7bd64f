package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/81adi8/erp-sub005/pkg/cache"
	"github.com/81adi8/erp-sub005/pkg/contextkeys"
	"github.com/81adi8/erp-sub005/pkg/rbac"
	"github.com/81adi8/erp-sub005/pkg/tenant"
)

type fixedRoleStore struct {
	perms map[string][]string
}

func (s *fixedRoleStore) GetRole(ctx context.Context, tenantID, slug string) (*rbac.Role, error) {
	if _, ok := s.perms[slug]; !ok {
		return nil, nil
	}
	return &rbac.Role{
		ID:        slug,
		Slug:      slug,
		AssetType: rbac.AssetPublic,
		PlanID:    sql.NullString{String: "plan-pro", Valid: true},
	}, nil
}

func (s *fixedRoleStore) LoadRolePermissions(ctx context.Context, roleID string) ([]string, error) {
	return s.perms[roleID], nil
}

func permissionTestRequest(t *testing.T, roles []string) *http.Request {
	t.Helper()
	identity, err := tenant.NewIdentity("tenant-a", "north", "tenant_north", tenant.StatusActive, "plan-pro")
	if err != nil {
		t.Fatalf("failed to build identity: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
	ctx := contextkeys.WithTenant(req.Context(), identity)
	ctx = contextkeys.WithAuth(ctx, &AuthContext{UserID: "user-1", TenantID: "tenant-a", Roles: roles})
	return req.WithContext(ctx)
}

func TestRequirePermission(t *testing.T) {
	store := &fixedRoleStore{perms: map[string][]string{
		"manager": {"billing.invoices.read", "billing.invoices.write"},
		"viewer":  {"billing.invoices.read"},
	}}
	tiered := cache.NewTieredCache(cache.NewMemoryStore(), 64, 500*time.Millisecond, nil, nil)
	roleCache := rbac.NewRolePermissionCache(store, tiered, 15*time.Minute, nil)

	handler := RequirePermission(roleCache, "billing.invoices.write")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, permissionTestRequest(t, []string{"manager"}))
	if rec.Code != http.StatusOK {
		t.Errorf("manager should hold the write permission, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, permissionTestRequest(t, []string{"viewer"}))
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer lacks the write permission, expected 403, got %d", rec.Code)
	}

	// Unknown roles grant nothing.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, permissionTestRequest(t, []string{"ghost"}))
	if rec.Code != http.StatusForbidden {
		t.Errorf("unknown role must not grant access, got %d", rec.Code)
	}

	// No auth context at all.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous request must get 401, got %d", rec.Code)
	}
}
