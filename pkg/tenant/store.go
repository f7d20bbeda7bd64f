package tenant

import (
	"context"
	"database/sql"
	"fmt"
)

// Record is a raw tenant row from the relational store. Unlike Identity it
// carries nullable columns and no validity guarantees.
type Record struct {
	ID     string
	Slug   string
	Schema sql.NullString
	Status Status
	PlanID sql.NullString
}

// Store reads tenant rows from the source of truth
type Store interface {
	// GetBySubdomain returns the tenant row for a subdomain slug regardless
	// of status; returns (nil, nil) when no row exists. Status filtering is
	// the resolver's job because a suspended tenant must fail loudly, not
	// read as absent.
	GetBySubdomain(ctx context.Context, subdomain string) (*Record, error)

	// GetByID returns the tenant row by id; (nil, nil) when absent.
	GetByID(ctx context.Context, id string) (*Record, error)
}

// SQLStore implements Store over database/sql
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a tenant store over an open database handle
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const tenantColumns = "id, slug, db_schema, status, plan_id"

// GetBySubdomain returns the tenant row for a subdomain slug
func (s *SQLStore) GetBySubdomain(ctx context.Context, subdomain string) (*Record, error) {
	query := "SELECT " + tenantColumns + " FROM tenants WHERE slug = $1"
	return s.scanOne(s.db.QueryRowContext(ctx, query, subdomain))
}

// GetByID returns the tenant row by id
func (s *SQLStore) GetByID(ctx context.Context, id string) (*Record, error) {
	query := "SELECT " + tenantColumns + " FROM tenants WHERE id = $1"
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLStore) scanOne(row *sql.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.Slug, &rec.Schema, &rec.Status, &rec.PlanID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tenant lookup failed: %w", err)
	}
	return &rec, nil
}
