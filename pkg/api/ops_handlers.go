package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/81adi8/erp-sub005/pkg/cache"
	"github.com/81adi8/erp-sub005/pkg/httputil"
	"github.com/81adi8/erp-sub005/pkg/tenant"
	"github.com/81adi8/erp-sub005/pkg/token"
)

// rotateKey rotates the signing key for one token class. The demoted key
// keeps verifying until the overlap window closes.
func (s *Server) rotateKey(w http.ResponseWriter, r *http.Request) {
	classParam, ok := httputil.ParsePathStringOrError(w, r, "class")
	if !ok {
		return
	}

	var class token.Class
	switch classParam {
	case "access":
		class = token.ClassAccess
	case "refresh":
		class = token.ClassRefresh
	default:
		httputil.WriteBadRequest(w, "class must be access or refresh")
		return
	}

	if err := s.tokens.Rotate(class); err != nil {
		s.logger.WithError(err).Error("key rotation failed")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, map[string]string{
		"class":   classParam,
		"rotated": time.Now().UTC().Format(time.RFC3339),
	})
}

// sweepKeys drops previous signing keys whose overlap window has elapsed.
func (s *Server) sweepKeys(w http.ResponseWriter, r *http.Request) {
	cleared := s.tokens.SweepExpiredKeys(time.Now())
	httputil.WriteSuccess(w, map[string]int{"cleared": cleared})
}

// getTenant resolves a tenant by id for support tooling. A tenant that
// exists but may not serve requests is reported with its refusal reason
// rather than hidden behind a 404.
func (s *Server) getTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenantId")
	if !ok {
		return
	}

	identity, err := s.resolver.ResolveByID(r.Context(), tenantID)
	if err != nil {
		var invalid *tenant.InvalidError
		if errors.As(err, &invalid) {
			httputil.WriteSuccess(w, map[string]interface{}{
				"tenantId":   tenantID,
				"slug":       invalid.Slug,
				"resolvable": false,
				"reason":     string(invalid.Reason),
			})
			return
		}
		s.logger.WithError(err).Error("tenant lookup failed")
		httputil.WriteInternalError(w)
		return
	}
	if identity == nil {
		httputil.WriteNotFound(w, "unknown tenant")
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"tenantId":   identity.ID(),
		"slug":       identity.Slug(),
		"schema":     identity.Schema(),
		"status":     string(identity.Status()),
		"planId":     identity.PlanID(),
		"resolvable": true,
	})
}

// invalidateTenantRole evicts one tenant-scoped role permission set.
func (s *Server) invalidateTenantRole(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenantId")
	if !ok {
		return
	}
	slug, ok := httputil.ParsePathStringOrError(w, r, "slug")
	if !ok {
		return
	}

	s.roles.InvalidateTenantRole(r.Context(), tenantID, slug)
	httputil.WriteNoContent(w)
}

// invalidateTenantRoles evicts every role permission set cached for a tenant.
func (s *Server) invalidateTenantRoles(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenantId")
	if !ok {
		return
	}

	removed := s.roles.InvalidateTenantRoles(r.Context(), tenantID)
	httputil.WriteSuccess(w, map[string]int{"removed": removed})
}

// invalidateTenantCache drops a tenant's resolver entries and role
// permission entries. Used after a tenant's plan, status, or schema changes.
func (s *Server) invalidateTenantCache(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenantId")
	if !ok {
		return
	}

	removed := s.roles.InvalidateTenantRoles(r.Context(), tenantID)
	s.tiered.Delete(r.Context(), cache.TenantIDKey(tenantID))
	if slug := r.URL.Query().Get("slug"); slug != "" {
		s.resolver.Invalidate(r.Context(), slug)
	}

	httputil.WriteSuccess(w, map[string]int{"removed": removed})
}

// invalidatePlanRole evicts one plan-scoped role permission set, affecting
// every tenant on the plan.
func (s *Server) invalidatePlanRole(w http.ResponseWriter, r *http.Request) {
	planID, ok := httputil.ParsePathStringOrError(w, r, "planId")
	if !ok {
		return
	}
	slug, ok := httputil.ParsePathStringOrError(w, r, "slug")
	if !ok {
		return
	}

	s.roles.InvalidatePlanRole(r.Context(), planID, slug)
	httputil.WriteNoContent(w)
}

// refreshPermissionConfig rebuilds the permission catalog and the scope
// expansion table from the store.
func (s *Server) refreshPermissionConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.permConfig.Refresh(r.Context()); err != nil {
		s.logger.WithError(err).Error("permission config refresh failed")
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, map[string]int{
		"permissions": len(s.permConfig.Permissions()),
	})
}

// recentViolations returns the newest isolation violations, newest first.
func (s *Server) recentViolations(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httputil.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"violations": s.guard.Violations().Recent(limit),
	})
}
