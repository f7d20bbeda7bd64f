// Package rbac serves permission lookups for role-based access control.
//
// Two caches cover the hot paths. ConfigCache keeps the platform-wide
// permission catalog and the scope expansion table in process memory behind an
// atomically swapped snapshot, refreshed on a schedule. RolePermissionCache
// resolves a role's effective permission set through the tiered cache, keyed
// per plan for system roles and per tenant for custom roles, so a system role
// edit invalidates one plan-wide entry while a custom role edit touches only
// its owner.
package rbac
