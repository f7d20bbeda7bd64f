package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// setupRedisStoreTest creates a miniredis instance and a RedisStore over it
func setupRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { store.Close() })

	return store, mr
}

func TestTieredCache_GetOrSet_PopulatesBothTiers(t *testing.T) {
	store, mr := setupRedisStoreTest(t)
	c := NewTieredCache(store, 128, 1*time.Second, nil, nil)
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context) (string, error) {
		calls++
		return "value-1", nil
	}

	val, err := c.GetOrSet(ctx, "tenant:subdomain:north", 1*time.Minute, fetch)
	if err != nil {
		t.Fatalf("GetOrSet failed: %v", err)
	}
	if val != "value-1" {
		t.Errorf("expected value-1, got %s", val)
	}
	if calls != 1 {
		t.Errorf("expected 1 fetch call, got %d", calls)
	}

	// L2 must hold the value
	if got, err := mr.Get("tenant:subdomain:north"); err != nil || got != "value-1" {
		t.Errorf("expected L2 to hold value-1, got %q (err %v)", got, err)
	}

	// Second call must be served from cache without invoking the fetcher
	if _, err := c.GetOrSet(ctx, "tenant:subdomain:north", 1*time.Minute, fetch); err != nil {
		t.Fatalf("GetOrSet failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected fetcher not to be called again, got %d calls", calls)
	}
}

func TestTieredCache_L1Expiry_FallsBackToL2(t *testing.T) {
	store, _ := setupRedisStoreTest(t)
	c := NewTieredCache(store, 128, 20*time.Millisecond, nil, nil)
	ctx := context.Background()

	c.Set(ctx, "tenant:id:abc", "cached", 1*time.Minute)

	time.Sleep(50 * time.Millisecond)

	// L1 expired, L2 still holds it
	val, ok := c.Get(ctx, "tenant:id:abc")
	if !ok {
		t.Fatal("expected L2 hit after L1 expiry")
	}
	if val != "cached" {
		t.Errorf("expected cached, got %s", val)
	}
}

func TestTieredCache_FetcherErrorPropagates(t *testing.T) {
	store, _ := setupRedisStoreTest(t)
	c := NewTieredCache(store, 128, 1*time.Second, nil, nil)

	wantErr := errors.New("store down")
	_, err := c.GetOrSet(context.Background(), "k", time.Minute, func(ctx context.Context) (string, error) {
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fetcher error, got %v", err)
	}
}

func TestTieredCache_DeletePattern(t *testing.T) {
	store, _ := setupRedisStoreTest(t)
	c := NewTieredCache(store, 128, 1*time.Second, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.Set(ctx, fmt.Sprintf("tenant:%d:role:teacher:permissions", i), "[]", time.Minute)
	}
	c.Set(ctx, "plan:p1:role:teacher:permissions", "[]", time.Minute)

	count := c.DeletePattern(ctx, "tenant:*:role:teacher:permissions")
	if count != 5 {
		t.Errorf("expected 5 deletions, got %d", count)
	}

	// Plan-scoped key must survive a tenant-scoped pattern delete
	if _, ok := c.Get(ctx, "plan:p1:role:teacher:permissions"); !ok {
		t.Error("plan-scoped key should not be deleted by tenant pattern")
	}

	// Deleted keys must miss from both tiers
	if _, ok := c.Get(ctx, "tenant:0:role:teacher:permissions"); ok {
		t.Error("expected deleted key to miss")
	}
}

// failingStore errors on every call, modeling a down distributed cache.
type failingStore struct{}

var errStoreDown = errors.New("connection refused")

func (failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errStoreDown
}
func (failingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errStoreDown
}
func (failingStore) Del(ctx context.Context, keys ...string) error { return errStoreDown }
func (failingStore) GetDel(ctx context.Context, key string) (string, bool, error) {
	return "", false, errStoreDown
}
func (failingStore) Scan(ctx context.Context, pattern string, fn func(string) error) error {
	return errStoreDown
}
func (failingStore) Incr(ctx context.Context, key string) (int64, error) { return 0, errStoreDown }
func (failingStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return errStoreDown
}
func (failingStore) Ping(ctx context.Context) error { return errStoreDown }
func (failingStore) Close() error                   { return nil }

func TestTieredCache_DegradesWhenStoreDown(t *testing.T) {
	// With the distributed cache erroring on every call, GetOrSet must still
	// return correct values from the fetcher and never surface an error.
	c := NewTieredCache(failingStore{}, 0, 1*time.Millisecond, nil, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("tenant:subdomain:s%d", i)
		want := fmt.Sprintf("v%d", i)
		got, err := c.GetOrSet(ctx, key, time.Minute, func(ctx context.Context) (string, error) {
			return want, nil
		})
		if err != nil {
			t.Fatalf("GetOrSet must not propagate cache errors, got %v", err)
		}
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}

	if count := c.DeletePattern(ctx, "tenant:*"); count != 0 {
		t.Errorf("expected 0 deletions from a down store, got %d", count)
	}
}

func TestMemoryStore_ImplementsStore(t *testing.T) {
	var _ Store = NewMemoryStore()
	var _ Store = &RedisStore{}
}

func TestMemoryStore_GetDel_SingleUse(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Set(ctx, "mfa:challenge:tok", "payload", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, ok, err := s.GetDel(ctx, "mfa:challenge:tok")
	if err != nil || !ok || val != "payload" {
		t.Fatalf("expected first GetDel to succeed, got %q %v %v", val, ok, err)
	}

	_, ok, err = s.GetDel(ctx, "mfa:challenge:tok")
	if err != nil {
		t.Fatalf("GetDel failed: %v", err)
	}
	if ok {
		t.Fatal("expected second GetDel to miss")
	}
}

func TestRedisStore_GetDel_SingleUse(t *testing.T) {
	store, _ := setupRedisStoreTest(t)
	ctx := context.Background()

	if err := store.Set(ctx, "mfa:challenge:tok", "payload", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, ok, err := store.GetDel(ctx, "mfa:challenge:tok")
	if err != nil || !ok || val != "payload" {
		t.Fatalf("expected first GetDel to succeed, got %q %v %v", val, ok, err)
	}

	_, ok, err = store.GetDel(ctx, "mfa:challenge:tok")
	if err != nil {
		t.Fatalf("GetDel failed: %v", err)
	}
	if ok {
		t.Fatal("expected second GetDel to miss")
	}
}
