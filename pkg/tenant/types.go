package tenant

import (
	"encoding/json"
	"fmt"
)

// Status classifies a tenant's lifecycle state
type Status string

const (
	StatusActive    Status = "active"
	StatusTrial     Status = "trial"
	StatusSuspended Status = "suspended"
)

// Resolvable reports whether a tenant in this status may serve requests
func (s Status) Resolvable() bool {
	return s == StatusActive || s == StatusTrial
}

// Identity is the immutable resolved identity of a tenant. It is constructed
// exactly once per resolution and attached to the request context; all fields
// are unexported so no downstream code can reassign them. Any change requires
// constructing a new instance.
type Identity struct {
	id     string
	slug   string
	schema string
	status Status
	planID string
}

// NewIdentity constructs a frozen tenant identity. planID may be empty for
// tenants without a plan assignment.
func NewIdentity(id, slug, schema string, status Status, planID string) (*Identity, error) {
	if id == "" {
		return nil, fmt.Errorf("tenant identity requires an id")
	}
	if schema == "" {
		return nil, fmt.Errorf("tenant %s has no schema name", id)
	}
	return &Identity{
		id:     id,
		slug:   slug,
		schema: schema,
		status: status,
		planID: planID,
	}, nil
}

// ID returns the tenant UUID
func (t *Identity) ID() string { return t.id }

// Slug returns the tenant's subdomain slug
func (t *Identity) Slug() string { return t.slug }

// Schema returns the tenant's database schema name
func (t *Identity) Schema() string { return t.schema }

// Status returns the tenant's lifecycle status
func (t *Identity) Status() Status { return t.status }

// PlanID returns the tenant's plan id, or "" when unassigned
func (t *Identity) PlanID() string { return t.planID }

// identityWire is the serialized form used for the L2 cache entry.
type identityWire struct {
	ID     string `json:"id"`
	Slug   string `json:"slug"`
	Schema string `json:"db_schema"`
	Status Status `json:"status"`
	PlanID string `json:"plan_id,omitempty"`
}

// MarshalJSON serializes the identity for cache storage
func (t *Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(identityWire{
		ID:     t.id,
		Slug:   t.slug,
		Schema: t.schema,
		Status: t.status,
		PlanID: t.planID,
	})
}

// UnmarshalIdentity reconstructs a frozen identity from its cached form.
// A cached record missing its schema is rejected the same way a live row is.
func UnmarshalIdentity(data []byte) (*Identity, error) {
	var w identityWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("corrupt cached tenant identity: %w", err)
	}
	return NewIdentity(w.ID, w.Slug, w.Schema, w.Status, w.PlanID)
}
