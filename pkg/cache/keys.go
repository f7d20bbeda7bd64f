package cache

import "fmt"

// Key builders for the stable cache-key namespaces. Other subsystems rely on
// these exact shapes for invalidation; never inline the format strings.
//
// Plan-scoped role keys carry a plan id and never a tenant id; tenant-scoped
// role keys carry a tenant id and never a plan id. Cross-keying the two tiers
// is the most dangerous bug class in this subsystem.

// TenantSubdomainKey caches a tenant identity by subdomain.
func TenantSubdomainKey(subdomain string) string {
	return "tenant:subdomain:" + subdomain
}

// TenantIDKey caches a tenant identity by id.
func TenantIDKey(id string) string {
	return "tenant:id:" + id
}

// TenantBrandingKey caches tenant branding/metadata by slug.
func TenantBrandingKey(slug string) string {
	return "tenant:branding:" + slug
}

// ScopePermissionMapKey caches the scope to permission-pattern table.
const ScopePermissionMapKey = "config:scope:permission:map"

// AllPermissionsKey caches the full permission key list.
const AllPermissionsKey = "config:permissions:all"

// PlanRolePermissionsKey caches a plan-scoped role's permission set, shared
// by every tenant on the plan.
func PlanRolePermissionsKey(planID, roleSlug string) string {
	return fmt.Sprintf("plan:%s:role:%s:permissions", planID, roleSlug)
}

// TenantRolePermissionsKey caches a tenant-scoped (custom) role's permission set.
func TenantRolePermissionsKey(tenantID, roleSlug string) string {
	return fmt.Sprintf("tenant:%s:role:%s:permissions", tenantID, roleSlug)
}

// MFASetupKey caches a pending TOTP enrollment for a user.
func MFASetupKey(userID string) string {
	return "mfa:setup:" + userID
}

// MFAChallengeKey stores a single-use MFA challenge record.
func MFAChallengeKey(token string) string {
	return "mfa:challenge:" + token
}

// RateLimitKey tracks login/MFA attempts per tenant and client IP.
func RateLimitKey(tenantID, ip string) string {
	return fmt.Sprintf("ratelimit:%s:%s", tenantID, ip)
}
