package middleware

import (
	"net/http"

	"github.com/81adi8/erp-sub005/pkg/httputil"
	"github.com/81adi8/erp-sub005/pkg/observability"
	"github.com/81adi8/erp-sub005/pkg/rbac"
	"github.com/81adi8/erp-sub005/pkg/tenant"
)

// RequirePermission creates middleware that admits only requests whose
// token roles expand to a set containing the given permission key. The
// expansion goes through the role permission cache, so the check costs a
// cache read on the hot path.
func RequirePermission(roles *rbac.RolePermissionCache, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteErrorCode(w, http.StatusUnauthorized, httputil.CodeUnauthorized, "authentication required")
				return
			}

			identity := tenant.FromContext(r)
			if identity == nil {
				httputil.WriteErrorCode(w, http.StatusForbidden, httputil.CodeTenantContextRequired, "a tenant context is required for this route")
				return
			}

			granted, err := roles.GetPermissionsForRoles(r.Context(), identity.ID(), authCtx.Roles, identity.PlanID())
			if err != nil {
				observability.FromContext(r.Context()).WithError(err).Error("permission expansion failed")
				httputil.WriteInternalError(w)
				return
			}

			for _, key := range granted {
				if key == permission {
					next.ServeHTTP(w, r)
					return
				}
			}
			httputil.WriteForbidden(w, "insufficient permissions")
		})
	}
}
