package middleware

import (
	"net/http"
	"strings"

	"github.com/81adi8/erp-sub005/pkg/contextkeys"
	"github.com/81adi8/erp-sub005/pkg/httputil"
	"github.com/81adi8/erp-sub005/pkg/token"
)

// AuthContext is the verified identity a request carries after the auth
// middleware has run.
type AuthContext struct {
	UserID    string
	TenantID  string
	SessionID string
	MFA       bool
	Roles     []string
}

// AuthMiddleware verifies Bearer access tokens and attaches the resulting
// AuthContext to the request.
type AuthMiddleware struct {
	tokens   *token.Service
	optional bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens *token.Service, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteErrorCode(w, http.StatusUnauthorized, httputil.CodeUnauthorized, "missing authorization header")
			return
		}

		// Format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteErrorCode(w, http.StatusUnauthorized, httputil.CodeUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := m.tokens.VerifyAccess(parts[1])
		if err != nil {
			httputil.WriteErrorCode(w, http.StatusUnauthorized, httputil.CodeInvalidToken, "invalid or expired token")
			return
		}

		authCtx := &AuthContext{
			UserID:    claims.UserID,
			TenantID:  claims.TenantID,
			SessionID: claims.SessionID,
			MFA:       claims.MFA,
			Roles:     claims.Roles,
		}

		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		ctx = contextkeys.WithUserID(ctx, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *AuthContext {
	authCtx, ok := r.Context().Value(contextkeys.AuthKey).(*AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// TokenTenantID returns the tenant id bound into the request's verified
// token, or "" for unauthenticated or platform-scoped requests. Matches the
// isolation gate's TokenTenantFunc shape.
func TokenTenantID(r *http.Request) string {
	if authCtx := GetAuthContext(r); authCtx != nil {
		return authCtx.TenantID
	}
	return ""
}

// RequireMFA rejects authenticated requests whose token was issued without a
// completed second factor.
func RequireMFA(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := GetAuthContext(r)
		if authCtx == nil {
			httputil.WriteErrorCode(w, http.StatusUnauthorized, httputil.CodeUnauthorized, "authentication required")
			return
		}
		if !authCtx.MFA {
			httputil.WriteErrorCode(w, http.StatusForbidden, httputil.CodeMFARequired, "multi-factor authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
