package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/81adi8/erp-sub005/pkg/cache"
	"github.com/81adi8/erp-sub005/pkg/httputil"
	"github.com/81adi8/erp-sub005/pkg/observability"
	"github.com/81adi8/erp-sub005/pkg/tenant"
)

// RateLimiter implements fixed-window rate limiting over the distributed
// store, so limits are shared across instances. On a store error it fails
// open: a broken cache must never lock every tenant out of login.
type RateLimiter struct {
	store  cache.Store
	limit  int
	window time.Duration
	logger *observability.Logger
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(store cache.Store, limit int, window time.Duration, logger *observability.Logger) *RateLimiter {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	return &RateLimiter{
		store:  store,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Allow counts one attempt against the key and reports whether it is still
// under the limit.
func (rl *RateLimiter) Allow(ctx context.Context, key string) bool {
	count, err := rl.store.Incr(ctx, key)
	if err != nil {
		rl.logger.WithError(err).WithField("key", key).Warn("rate limit store error, failing open")
		return true
	}
	if count == 1 {
		if err := rl.store.Expire(ctx, key, rl.window); err != nil {
			rl.logger.WithError(err).WithField("key", key).Warn("rate limit expire failed")
		}
	}
	return count <= int64(rl.limit)
}

// Reset clears the counter for a key.
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.store.Del(ctx, key)
}

// LoginRateLimit throttles authentication attempts per (tenant, client IP).
// Requests without a resolved tenant are keyed on IP alone.
func (rl *RateLimiter) LoginRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := ""
		if identity := tenant.FromContext(r); identity != nil {
			tenantID = identity.ID()
		}
		key := cache.RateLimitKey(tenantID, httputil.ClientIP(r))

		if !rl.Allow(r.Context(), key) {
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rl.window.Seconds()))
			httputil.WriteTooManyRequests(w, "too many attempts, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}
