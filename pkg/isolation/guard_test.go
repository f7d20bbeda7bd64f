package isolation

import (
	"errors"
	"testing"

	"github.com/81adi8/erp-sub005/pkg/httputil"
)

func newTestGuard() *Guard {
	return NewGuard(NewViolationLog(16), false, nil, nil)
}

func TestValidateSchema(t *testing.T) {
	g := newTestGuard()

	tests := []struct {
		name     string
		schema   string
		wantCode string
	}{
		{"valid tenant schema", "tenant_north", ""},
		{"valid with digits", "tenant_42", ""},
		{"leading underscore", "_staging", ""},
		{"blocked public", "public", httputil.CodeSchemaNotAllowed},
		{"blocked information_schema", "information_schema", httputil.CodeSchemaNotAllowed},
		{"blocked pg_catalog", "pg_catalog", httputil.CodeSchemaNotAllowed},
		{"blocked pg_toast", "pg_toast", httputil.CodeSchemaNotAllowed},
		{"blocked root", "root", httputil.CodeSchemaNotAllowed},
		{"empty", "", httputil.CodeInvalidSchemaName},
		{"leading digit", "1tenant", httputil.CodeInvalidSchemaName},
		{"quote injection", `tenant"; DROP SCHEMA public`, httputil.CodeInvalidSchemaName},
		{"semicolon", "tenant;north", httputil.CodeInvalidSchemaName},
		{"hyphen", "tenant-north", httputil.CodeInvalidSchemaName},
		{"whitespace", "tenant north", httputil.CodeInvalidSchemaName},
		{"dot traversal", "tenant.public", httputil.CodeInvalidSchemaName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.ValidateSchema(tt.schema)
			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("ValidateSchema(%q) = %v, want nil", tt.schema, err)
				}
				return
			}
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("ValidateSchema(%q) = %v, want SchemaError", tt.schema, err)
			}
			if schemaErr.Code != tt.wantCode {
				t.Errorf("ValidateSchema(%q) code = %s, want %s", tt.schema, schemaErr.Code, tt.wantCode)
			}
		})
	}
}

func TestValidateWrite(t *testing.T) {
	g := newTestGuard()

	var schemaErr *SchemaError
	err := g.ValidateWrite("public")
	if !errors.As(err, &schemaErr) || schemaErr.Code != httputil.CodePublicSchemaWriteBlocked {
		t.Errorf("write to public must fail with PUBLIC_SCHEMA_WRITE_BLOCKED, got %v", err)
	}

	if err := g.ValidateWrite("tenant_north"); err != nil {
		t.Errorf("write to tenant schema should pass: %v", err)
	}
}

func TestValidateCrossTenantAccess(t *testing.T) {
	g := newTestGuard()

	if err := g.ValidateCrossTenantAccess("tenant-a", "tenant-a"); err != nil {
		t.Errorf("matching tenants must pass: %v", err)
	}
	if err := g.ValidateCrossTenantAccess("", "tenant-a"); err != nil {
		t.Errorf("platform-scoped token must pass: %v", err)
	}

	err := g.ValidateCrossTenantAccess("tenant-a", "tenant-b")
	var crossErr *CrossTenantError
	if !errors.As(err, &crossErr) {
		t.Fatalf("expected CrossTenantError, got %v", err)
	}
	if crossErr.TokenTenantID != "tenant-a" || crossErr.RequestTenantID != "tenant-b" {
		t.Errorf("unexpected error detail: %+v", crossErr)
	}
}

func TestViolationsRecorded(t *testing.T) {
	g := newTestGuard()

	_ = g.ValidateSchema("public")
	_ = g.ValidateCrossTenantAccess("tenant-a", "tenant-b")

	recent := g.Violations().Recent(10)
	if len(recent) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(recent))
	}
	// Newest first.
	if recent[0].Type != httputil.CodeCrossTenantAccess {
		t.Errorf("expected newest violation first, got %s", recent[0].Type)
	}
	if recent[1].Type != httputil.CodeSchemaNotAllowed {
		t.Errorf("expected schema violation second, got %s", recent[1].Type)
	}
}

func TestViolationLogEvictsOldest(t *testing.T) {
	log := NewViolationLog(3)
	for _, typ := range []string{"a", "b", "c", "d", "e"} {
		log.Record(Violation{Type: typ})
	}

	if log.Len() != 3 {
		t.Fatalf("expected capacity-bounded length 3, got %d", log.Len())
	}
	recent := log.Recent(3)
	got := []string{recent[0].Type, recent[1].Type, recent[2].Type}
	want := []string{"e", "d", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Recent(3)[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestViolationLogRecentBounds(t *testing.T) {
	log := NewViolationLog(8)
	log.Record(Violation{Type: "a"})
	log.Record(Violation{Type: "b"})

	if got := log.Recent(1); len(got) != 1 || got[0].Type != "b" {
		t.Errorf("Recent(1) = %+v, want just b", got)
	}
	if got := log.Recent(100); len(got) != 2 {
		t.Errorf("Recent(100) = %d entries, want 2", len(got))
	}
	if got := log.Recent(0); len(got) != 2 {
		t.Errorf("Recent(0) = %d entries, want all", len(got))
	}
}
