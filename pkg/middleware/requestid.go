package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/81adi8/erp-sub005/pkg/contextkeys"
	"github.com/81adi8/erp-sub005/pkg/observability"
)

// RequestID attaches a request id and a request-scoped logger to the
// context. An inbound X-Request-ID is trusted if present so ids survive
// proxy hops; otherwise a fresh UUID is minted. The id is echoed back on
// the response.
func RequestID(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}

			ctx := contextkeys.WithRequestID(r.Context(), requestID)
			ctx = contextkeys.WithLogger(ctx, logger)
			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
