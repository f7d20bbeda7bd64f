package isolation

import (
	"fmt"
	"io"
	"regexp"

	"github.com/81adi8/erp-sub005/pkg/httputil"
	"github.com/81adi8/erp-sub005/pkg/observability"
)

// schemaBlocklist names the schemas no tenant may ever resolve to. The list
// is fixed; it is not configuration.
var schemaBlocklist = map[string]struct{}{
	"public":             {},
	"information_schema": {},
	"pg_catalog":         {},
	"pg_toast":           {},
	"root":               {},
}

// schemaIdentifier is the only character class allowed in a schema name that
// gets interpolated into SQL. Anything else is treated as an injection
// attempt, not a typo.
var schemaIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SchemaError is a schema validation failure with a stable code.
type SchemaError struct {
	Code   string
	Schema string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %q rejected: %s", e.Schema, e.Code)
}

// CrossTenantError means a token minted for one tenant was presented against
// a request resolved to another.
type CrossTenantError struct {
	TokenTenantID   string
	RequestTenantID string
}

func (e *CrossTenantError) Error() string {
	return fmt.Sprintf("cross-tenant access: token tenant %q, request tenant %q", e.TokenTenantID, e.RequestTenantID)
}

// Guard validates schema names and tenant boundaries before data access.
// It is pure validation: it holds no connection to the database and every
// method is safe to call on the hot path.
type Guard struct {
	violations *ViolationLog
	logger     *observability.Logger
	metrics    *observability.Metrics

	// permissive records schema and missing-context violations without
	// rejecting requests in the pipeline gate. Development only; the
	// Validate methods always enforce, and cross-tenant token replays are
	// rejected by the gate in every mode.
	permissive bool
}

// NewGuard creates a guard writing to the given violation log.
func NewGuard(violations *ViolationLog, permissive bool, logger *observability.Logger, metrics *observability.Metrics) *Guard {
	if violations == nil {
		violations = NewViolationLog(0)
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	return &Guard{
		violations: violations,
		logger:     logger,
		metrics:    metrics,
		permissive: permissive,
	}
}

// Violations exposes the rolling log for the ops API.
func (g *Guard) Violations() *ViolationLog {
	return g.violations
}

// ValidateSchema checks a schema name immediately before it is interpolated
// into a query: the name must match the identifier character class and must
// not be in the blocklist. Call this on every dynamic schema, no exceptions.
func (g *Guard) ValidateSchema(schema string) error {
	if schema == "" || !schemaIdentifier.MatchString(schema) {
		g.report(Violation{Type: httputil.CodeInvalidSchemaName, Schema: schema})
		return &SchemaError{Code: httputil.CodeInvalidSchemaName, Schema: schema}
	}
	if _, blocked := schemaBlocklist[schema]; blocked {
		g.report(Violation{Type: httputil.CodeSchemaNotAllowed, Schema: schema})
		return &SchemaError{Code: httputil.CodeSchemaNotAllowed, Schema: schema}
	}
	return nil
}

// ValidateWrite additionally rejects writes aimed at the public schema.
// Redundant with the blocklist today, but the write rule survives even if
// public is ever unblocked for reads.
func (g *Guard) ValidateWrite(schema string) error {
	if schema == "public" {
		g.report(Violation{Type: httputil.CodePublicSchemaWriteBlocked, Schema: schema})
		return &SchemaError{Code: httputil.CodePublicSchemaWriteBlocked, Schema: schema}
	}
	return g.ValidateSchema(schema)
}

// ValidateCrossTenantAccess rejects a token replayed across tenants. Both
// ids must match exactly; an empty token tenant id means the token carries
// no tenant binding and is allowed through (platform-level tokens).
func (g *Guard) ValidateCrossTenantAccess(tokenTenantID, requestTenantID string) error {
	if tokenTenantID == "" || tokenTenantID == requestTenantID {
		return nil
	}
	g.report(Violation{
		Type:     httputil.CodeCrossTenantAccess,
		TenantID: requestTenantID,
	})
	return &CrossTenantError{
		TokenTenantID:   tokenTenantID,
		RequestTenantID: requestTenantID,
	}
}

func (g *Guard) report(v Violation) {
	g.violations.Record(v)
	if g.metrics != nil {
		g.metrics.IsolationViolationsTotal.WithLabelValues(v.Type).Inc()
	}
	g.logger.WithFields(map[string]interface{}{
		"violation": v.Type,
		"schema":    v.Schema,
		"tenant_id": v.TenantID,
	}).Warn("tenant isolation violation")
}
