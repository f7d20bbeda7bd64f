package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/81adi8/erp-sub005/pkg/cache"
	"github.com/81adi8/erp-sub005/pkg/contextkeys"
	"github.com/81adi8/erp-sub005/pkg/tenant"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(cache.NewMemoryStore(), 3, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !rl.Allow(ctx, "ratelimit:tenant-a:ip") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if rl.Allow(ctx, "ratelimit:tenant-a:ip") {
		t.Error("attempt over the limit must be denied")
	}

	// Other keys are unaffected.
	if !rl.Allow(ctx, "ratelimit:tenant-b:ip") {
		t.Error("a different key must have its own budget")
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(cache.NewMemoryStore(), 1, time.Minute, nil)
	ctx := context.Background()

	if !rl.Allow(ctx, "k") {
		t.Fatal("first attempt should pass")
	}
	if rl.Allow(ctx, "k") {
		t.Fatal("second attempt should be denied")
	}
	if err := rl.Reset(ctx, "k"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if !rl.Allow(ctx, "k") {
		t.Error("attempt after reset should pass")
	}
}

func TestLoginRateLimit_Middleware(t *testing.T) {
	rl := NewRateLimiter(cache.NewMemoryStore(), 2, time.Minute, nil)

	identity, err := tenant.NewIdentity("tenant-a", "north", "tenant_north", tenant.StatusActive, "")
	if err != nil {
		t.Fatalf("failed to build identity: %v", err)
	}

	handler := rl.LoginRateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = "203.0.113.7:54321"
		req = req.WithContext(contextkeys.WithTenant(req.Context(), identity))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(); rec.Code != http.StatusOK {
		t.Fatalf("first attempt: expected 200, got %d", rec.Code)
	}
	if rec := do(); rec.Code != http.StatusOK {
		t.Fatalf("second attempt: expected 200, got %d", rec.Code)
	}

	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third attempt: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
}

// brokenStore fails every operation, standing in for an unreachable redis.
type brokenStore struct{ cache.Store }

func (brokenStore) Incr(ctx context.Context, key string) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestLoginRateLimit_FailsOpenOnStoreError(t *testing.T) {
	rl := NewRateLimiter(brokenStore{}, 1, time.Minute, nil)

	// Every attempt is admitted when the counter store is down.
	for i := 0; i < 5; i++ {
		if !rl.Allow(context.Background(), "k") {
			t.Fatal("a broken store must fail open")
		}
	}
}
