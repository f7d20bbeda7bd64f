package rbac

import "database/sql"

// AssetType classifies who owns a role definition and therefore which cache
// tier its permission set lives in.
type AssetType string

const (
	// AssetPublic roles are system-defined and shared by every tenant on a
	// plan; their permission sets are plan-scoped.
	AssetPublic AssetType = "public"

	// AssetReadonly roles are system-defined read-only variants, also
	// plan-scoped.
	AssetReadonly AssetType = "readonly"

	// AssetCustom roles are defined by a single tenant; their permission
	// sets are tenant-scoped and never shared.
	AssetCustom AssetType = "custom"
)

// PlanScoped reports whether this asset type caches under the plan tier
func (a AssetType) PlanScoped() bool {
	return a == AssetPublic || a == AssetReadonly
}

// Role is a role row as stored. PlanID is set for system roles bound to a
// plan; TenantID is set for custom roles.
type Role struct {
	ID        string
	Slug      string
	AssetType AssetType
	TenantID  sql.NullString
	PlanID    sql.NullString
}

// ScopeRule maps an API scope to permission-key patterns. A pattern is a
// dot-separated triple where "*" matches a whole segment; a trailing "*"
// matches all remaining segments.
type ScopeRule struct {
	Scope   string
	Pattern string
}
