package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/81adi8/erp-sub005/pkg/cache"
	"github.com/81adi8/erp-sub005/pkg/observability"
)

// ConfigCache holds the platform-wide permission catalog and the
// scope→pattern expansion table in memory. Refresh builds a complete new
// snapshot before swapping the pointer exposed to readers, so a concurrent
// reader always sees either the fully-old or the fully-new table, never a
// half-rebuilt one.
type ConfigCache struct {
	store    ConfigStore
	l2       cache.Store
	logger   *observability.Logger
	snapshot atomic.Pointer[configSnapshot]
}

type configSnapshot struct {
	permissions []string
	permSet     map[string]struct{}
	scopeRules  map[string][]string
}

// NewConfigCache creates an empty config cache; call Refresh at boot. When l2
// is non-nil, Refresh also publishes both artifacts to the distributed store
// so other subsystems can read the same tables.
func NewConfigCache(store ConfigStore, l2 cache.Store, logger *observability.Logger) *ConfigCache {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	c := &ConfigCache{store: store, l2: l2, logger: logger}
	c.snapshot.Store(&configSnapshot{
		permSet:    map[string]struct{}{},
		scopeRules: map[string][]string{},
	})
	return c
}

// Refresh atomically rebuilds both cached artifacts from the store.
func (c *ConfigCache) Refresh(ctx context.Context) error {
	permissions, err := c.store.ListPermissionKeys(ctx)
	if err != nil {
		return fmt.Errorf("load permission catalog: %w", err)
	}

	rules, err := c.store.ListScopeRules(ctx)
	if err != nil {
		return fmt.Errorf("load scope rules: %w", err)
	}

	next := &configSnapshot{
		permissions: permissions,
		permSet:     make(map[string]struct{}, len(permissions)),
		scopeRules:  make(map[string][]string),
	}
	for _, key := range permissions {
		next.permSet[key] = struct{}{}
	}
	for _, rule := range rules {
		next.scopeRules[rule.Scope] = append(next.scopeRules[rule.Scope], rule.Pattern)
	}

	c.snapshot.Store(next)
	c.publish(ctx, next)
	return nil
}

// publish writes both artifacts to the distributed store under their stable
// keys. Failures degrade to in-process-only config, never to a hard error.
func (c *ConfigCache) publish(ctx context.Context, snap *configSnapshot) {
	if c.l2 == nil {
		return
	}

	if data, err := json.Marshal(snap.permissions); err == nil {
		if err := c.l2.Set(ctx, cache.AllPermissionsKey, string(data), 0); err != nil {
			c.logger.WithError(err).Warn("publishing permission catalog failed")
		}
	}
	if data, err := json.Marshal(snap.scopeRules); err == nil {
		if err := c.l2.Set(ctx, cache.ScopePermissionMapKey, string(data), 0); err != nil {
			c.logger.WithError(err).Warn("publishing scope rules failed")
		}
	}
}

// Permissions returns the full permission key list.
func (c *ConfigCache) Permissions() []string {
	snap := c.snapshot.Load()
	out := make([]string, len(snap.permissions))
	copy(out, snap.permissions)
	return out
}

// IsKnown reports whether key exists in the permission catalog.
func (c *ConfigCache) IsKnown(key string) bool {
	_, ok := c.snapshot.Load().permSet[key]
	return ok
}

// ExpandScopes unions the permission keys matched by each scope's patterns
// into a deduplicated, sorted set. Unknown scopes expand to nothing.
func (c *ConfigCache) ExpandScopes(scopes []string) []string {
	snap := c.snapshot.Load()

	matched := make(map[string]struct{})
	for _, scope := range scopes {
		for _, pattern := range snap.scopeRules[scope] {
			for _, key := range snap.permissions {
				if matchPermission(pattern, key) {
					matched[key] = struct{}{}
				}
			}
		}
	}

	out := make([]string, 0, len(matched))
	for key := range matched {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// matchPermission matches a dot-segmented pattern against a permission key.
// "*" matches exactly one segment; a trailing "*" matches all remaining
// segments.
func matchPermission(pattern, key string) bool {
	if pattern == key {
		return true
	}

	pSegs := strings.Split(pattern, ".")
	kSegs := strings.Split(key, ".")

	for i, p := range pSegs {
		if p == "*" && i == len(pSegs)-1 {
			// Trailing wildcard swallows the rest of the key.
			return len(kSegs) >= len(pSegs)
		}
		if i >= len(kSegs) {
			return false
		}
		if p != "*" && p != kSegs[i] {
			return false
		}
	}

	return len(pSegs) == len(kSegs)
}
