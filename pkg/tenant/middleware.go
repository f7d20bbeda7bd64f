package tenant

import (
	"net/http"

	"github.com/81adi8/erp-sub005/pkg/contextkeys"
	"github.com/81adi8/erp-sub005/pkg/httputil"
)

// Middleware resolves the tenant for every request and attaches the frozen
// identity to the request context exactly once. Requests that resolve no
// tenant pass through untouched; whether a route requires one is decided
// later by the isolation gate.
func Middleware(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := resolver.ResolveFromRequest(r.Context(), r.Host, r.Header.Get("Origin"))
			if err != nil {
				if IsInvalid(err) {
					httputil.WriteErrorCode(w, http.StatusForbidden, httputil.CodeTenantInvalid, "tenant is not available")
					return
				}
				httputil.WriteInternalError(w)
				return
			}

			if identity == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := contextkeys.WithTenant(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the frozen tenant identity attached by Middleware,
// or nil when the request resolved no tenant.
func FromContext(r *http.Request) *Identity {
	identity, ok := r.Context().Value(contextkeys.TenantKey).(*Identity)
	if !ok {
		return nil
	}
	return identity
}
