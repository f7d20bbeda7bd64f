package middleware

import (
	"crypto/subtle"
	"net"
	"net/http"

	"github.com/81adi8/erp-sub005/pkg/httputil"
)

// InternalKeyGate protects the ops endpoints (health detail, key rotation,
// cache invalidation) behind the x-internal-key header. Outside production,
// loopback callers are admitted without the key so local tooling keeps
// working.
type InternalKeyGate struct {
	key           string
	allowLoopback bool
}

// NewInternalKeyGate creates the gate. allowLoopback must be false in
// production.
func NewInternalKeyGate(key string, allowLoopback bool) *InternalKeyGate {
	return &InternalKeyGate{
		key:           key,
		allowLoopback: allowLoopback,
	}
}

// Handler wraps an HTTP handler with the internal key check.
func (g *InternalKeyGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Loopback is judged on the socket peer, never on forwarded
		// headers, so it cannot be spoofed from outside.
		if g.allowLoopback {
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && httputil.IsLoopback(host) {
				next.ServeHTTP(w, r)
				return
			}
		}

		provided := r.Header.Get("x-internal-key")
		if g.key == "" || provided == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(g.key)) != 1 {
			httputil.WriteErrorCode(w, http.StatusForbidden, httputil.CodeForbidden, "internal access only")
			return
		}
		next.ServeHTTP(w, r)
	})
}
