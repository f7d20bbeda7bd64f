package rbac

import (
	"context"
	"database/sql"
	"fmt"
)

// RoleStore reads role rows and role→permission bindings
type RoleStore interface {
	// GetRole returns the role row visible to tenantID: the tenant's own
	// custom role or a system role (tenant_id IS NULL). Returns (nil, nil)
	// when no such role exists.
	GetRole(ctx context.Context, tenantID, slug string) (*Role, error)

	// LoadRolePermissions returns the deduplicated permission keys bound to
	// a role through the junction table.
	LoadRolePermissions(ctx context.Context, roleID string) ([]string, error)
}

// ConfigStore reads the platform-wide permission catalog
type ConfigStore interface {
	// ListPermissionKeys returns every permission key (module.feature.action).
	ListPermissionKeys(ctx context.Context) ([]string, error)

	// ListScopeRules returns the scope→pattern expansion table.
	ListScopeRules(ctx context.Context) ([]ScopeRule, error)
}

// SQLStore implements RoleStore and ConfigStore over database/sql
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates an RBAC store over an open database handle
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// GetRole returns the role row visible to a tenant
func (s *SQLStore) GetRole(ctx context.Context, tenantID, slug string) (*Role, error) {
	query := `
		SELECT id, slug, asset_type, tenant_id, plan_id
		FROM roles
		WHERE slug = $1 AND (tenant_id = $2 OR tenant_id IS NULL)
		ORDER BY tenant_id NULLS LAST
		LIMIT 1
	`

	var role Role
	err := s.db.QueryRowContext(ctx, query, slug, tenantID).Scan(
		&role.ID,
		&role.Slug,
		&role.AssetType,
		&role.TenantID,
		&role.PlanID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("role lookup failed: %w", err)
	}
	return &role, nil
}

// LoadRolePermissions joins the role↔permission junction table to permission keys
func (s *SQLStore) LoadRolePermissions(ctx context.Context, roleID string) ([]string, error) {
	query := `
		SELECT DISTINCT p.key
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.key
	`

	rows, err := s.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("role permissions query failed: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// ListPermissionKeys returns every permission key in the catalog
func (s *SQLStore) ListPermissionKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM permissions ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("permission catalog query failed: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// ListScopeRules returns the scope→pattern expansion table
func (s *SQLStore) ListScopeRules(ctx context.Context) ([]ScopeRule, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT scope, pattern FROM permission_scopes ORDER BY scope, pattern")
	if err != nil {
		return nil, fmt.Errorf("scope rules query failed: %w", err)
	}
	defer rows.Close()

	var rules []ScopeRule
	for rows.Next() {
		var rule ScopeRule
		if err := rows.Scan(&rule.Scope, &rule.Pattern); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
