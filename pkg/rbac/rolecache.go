package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/81adi8/erp-sub005/pkg/cache"
	"github.com/81adi8/erp-sub005/pkg/observability"
)

// RolePermissionCache resolves a role's effective permission set through the
// tiered cache, choosing the cache tier by the role's asset type:
//
//   - public/readonly roles are system-defined and identical for every tenant
//     on a plan, so their sets cache under plan:{planId}:role:{slug}:permissions
//     and are shared across tenants;
//   - custom roles belong to one tenant and cache under
//     tenant:{tenantId}:role:{slug}:permissions.
//
// The role row's own plan_id takes precedence over the caller-supplied plan id
// when both are present.
type RolePermissionCache struct {
	store  RoleStore
	cache  *cache.TieredCache
	ttl    time.Duration
	logger *observability.Logger
}

// NewRolePermissionCache wires the cache over a role store.
func NewRolePermissionCache(store RoleStore, tiered *cache.TieredCache, ttl time.Duration, logger *observability.Logger) *RolePermissionCache {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	return &RolePermissionCache{
		store:  store,
		cache:  tiered,
		ttl:    ttl,
		logger: logger,
	}
}

// GetPermissionsForRole returns the permission keys granted by a role as seen
// by tenantID. An unknown role yields an empty set, not an error. planID is
// the tenant's current plan, used only when the role row itself carries none.
func (c *RolePermissionCache) GetPermissionsForRole(ctx context.Context, tenantID, roleSlug, planID string) ([]string, error) {
	role, err := c.store.GetRole(ctx, tenantID, roleSlug)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, nil
	}

	key := c.cacheKey(role, tenantID, planID)

	raw, err := c.cache.GetOrSet(ctx, key, c.ttl, func(ctx context.Context) (string, error) {
		return c.loadAndEncode(ctx, role.ID)
	})
	if err != nil {
		return nil, err
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		// Corrupt cache entry: drop it and go straight to the store once.
		c.logger.WithError(err).WithField("cache_key", key).Warn("corrupt role permission cache entry, reloading")
		c.cache.Delete(ctx, key)

		raw, err = c.loadAndEncode(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		c.cache.Set(ctx, key, raw, c.ttl)
		if err := json.Unmarshal([]byte(raw), &keys); err != nil {
			return nil, fmt.Errorf("decode role permissions: %w", err)
		}
	}
	return keys, nil
}

// GetPermissionsForRoles unions the permission sets of several roles into one
// deduplicated set, preserving first-seen order.
func (c *RolePermissionCache) GetPermissionsForRoles(ctx context.Context, tenantID string, roleSlugs []string, planID string) ([]string, error) {
	seen := make(map[string]struct{})
	var union []string

	for _, slug := range roleSlugs {
		keys, err := c.GetPermissionsForRole(ctx, tenantID, slug, planID)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			union = append(union, key)
		}
	}
	return union, nil
}

// InvalidateTenantRole evicts one tenant-scoped role permission set.
func (c *RolePermissionCache) InvalidateTenantRole(ctx context.Context, tenantID, roleSlug string) {
	c.cache.Delete(ctx, cache.TenantRolePermissionsKey(tenantID, roleSlug))
}

// InvalidatePlanRole evicts one plan-scoped role permission set. This affects
// every tenant on the plan at once, which is the point: system role edits ship
// to the whole plan on next read.
func (c *RolePermissionCache) InvalidatePlanRole(ctx context.Context, planID, roleSlug string) {
	c.cache.Delete(ctx, cache.PlanRolePermissionsKey(planID, roleSlug))
}

// InvalidateTenantRoles evicts every role permission set cached for a tenant,
// returning the number of distributed entries removed. Plan-scoped entries are
// deliberately untouched.
func (c *RolePermissionCache) InvalidateTenantRoles(ctx context.Context, tenantID string) int {
	return c.cache.DeletePattern(ctx, fmt.Sprintf("tenant:%s:role:*:permissions", tenantID))
}

func (c *RolePermissionCache) cacheKey(role *Role, tenantID, planID string) string {
	if !role.AssetType.PlanScoped() {
		return cache.TenantRolePermissionsKey(tenantID, role.Slug)
	}

	// The role row's own plan binding wins over the caller's plan id.
	effectivePlan := planID
	if role.PlanID.Valid && role.PlanID.String != "" {
		effectivePlan = role.PlanID.String
	}
	if effectivePlan == "" {
		// A system role with no resolvable plan cannot share safely; fall
		// back to the tenant tier so the entry stays isolated.
		c.logger.WithFields(map[string]interface{}{
			"role_slug": role.Slug,
			"tenant_id": tenantID,
		}).Warn("plan-scoped role has no plan id, caching tenant-scoped")
		return cache.TenantRolePermissionsKey(tenantID, role.Slug)
	}
	return cache.PlanRolePermissionsKey(effectivePlan, role.Slug)
}

func (c *RolePermissionCache) loadAndEncode(ctx context.Context, roleID string) (string, error) {
	keys, err := c.store.LoadRolePermissions(ctx, roleID)
	if err != nil {
		return "", err
	}
	if keys == nil {
		keys = []string{}
	}
	encoded, err := json.Marshal(keys)
	if err != nil {
		return "", fmt.Errorf("encode role permissions: %w", err)
	}
	return string(encoded), nil
}
