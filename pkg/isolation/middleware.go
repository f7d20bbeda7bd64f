package isolation

import (
	"errors"
	"net/http"

	"github.com/81adi8/erp-sub005/pkg/httputil"
	"github.com/81adi8/erp-sub005/pkg/tenant"
)

// TokenTenantFunc extracts the tenant id carried by the request's verified
// token, or "" when the request is unauthenticated or the token is
// platform-scoped. Injected so this package stays independent of the auth
// middleware.
type TokenTenantFunc func(r *http.Request) string

// writeVerbs are the methods treated as mutations by the public-schema rule.
var writeVerbs = map[string]struct{}{
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

// Middleware is the request-pipeline gate. It rejects requests that lack a
// resolved tenant when one is required, requests whose resolved schema fails
// validation, write requests aimed at the public schema, and tokens replayed
// across tenants. In permissive mode schema and missing-context violations
// are recorded but the request proceeds; a token replayed against another
// tenant is rejected in every mode, since letting it through would serve one
// tenant's data to another.
func (g *Guard) Middleware(requireTenant bool, tokenTenant TokenTenantFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := tenant.FromContext(r)

			if identity == nil {
				if requireTenant {
					g.report(Violation{
						Type:     httputil.CodeMissingTenantContext,
						Method:   r.Method,
						Path:     r.URL.Path,
						RemoteIP: httputil.ClientIP(r),
					})
					if !g.permissive {
						httputil.WriteErrorCode(w, http.StatusForbidden, httputil.CodeTenantContextRequired, "a tenant context is required for this route")
						return
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			schema := identity.Schema()
			if err := g.validateRequestSchema(r, schema, identity.ID()); err != nil {
				if !g.permissive {
					var schemaErr *SchemaError
					if errors.As(err, &schemaErr) {
						httputil.WriteErrorCode(w, http.StatusForbidden, schemaErr.Code, schemaErr.Error())
						return
					}
					httputil.WriteForbidden(w, err.Error())
					return
				}
			}

			if tokenTenant != nil {
				if err := g.ValidateCrossTenantAccess(tokenTenant(r), identity.ID()); err != nil {
					httputil.WriteErrorCode(w, http.StatusForbidden, httputil.CodeCrossTenantAccess, "token tenant does not match request tenant")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (g *Guard) validateRequestSchema(r *http.Request, schema, tenantID string) error {
	var err error
	if _, write := writeVerbs[r.Method]; write {
		err = g.ValidateWrite(schema)
	} else {
		err = g.ValidateSchema(schema)
	}
	if err != nil {
		// Enrich the already-recorded violation with request detail for the
		// rolling log's most recent entry consumers.
		g.logger.WithFields(map[string]interface{}{
			"method":    r.Method,
			"path":      r.URL.Path,
			"tenant_id": tenantID,
		}).Warn("request rejected by isolation gate")
	}
	return err
}
