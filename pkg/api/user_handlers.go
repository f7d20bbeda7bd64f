package api

import (
	"net/http"

	"github.com/81adi8/erp-sub005/pkg/httputil"
	"github.com/81adi8/erp-sub005/pkg/middleware"
	"github.com/81adi8/erp-sub005/pkg/observability"
	"github.com/81adi8/erp-sub005/pkg/tenant"
)

type meResponse struct {
	UserID      string   `json:"userId"`
	TenantID    string   `json:"tenantId"`
	TenantSlug  string   `json:"tenantSlug"`
	MFA         bool     `json:"mfa"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// me returns the caller's resolved identity: tenant, roles, and the
// permission set those roles expand to.
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	identity := tenant.FromContext(r)
	if authCtx == nil || identity == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	permissions, err := s.roles.GetPermissionsForRoles(r.Context(), identity.ID(), authCtx.Roles, identity.PlanID())
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("permission expansion failed")
		httputil.WriteInternalError(w)
		return
	}
	if permissions == nil {
		permissions = []string{}
	}

	httputil.WriteSuccess(w, meResponse{
		UserID:      authCtx.UserID,
		TenantID:    identity.ID(),
		TenantSlug:  identity.Slug(),
		MFA:         authCtx.MFA,
		Roles:       authCtx.Roles,
		Permissions: permissions,
	})
}
