package tenant

import (
	"errors"
	"fmt"
)

// InvalidReason explains why a tenant failed resolution
type InvalidReason string

const (
	ReasonSuspended     InvalidReason = "suspended"
	ReasonInactive      InvalidReason = "inactive"
	ReasonSchemaMissing InvalidReason = "schema_missing"
)

// InvalidError is returned when a tenant exists but must not serve requests:
// suspended, otherwise inactive, or missing its schema name. The resolver
// never substitutes a default schema and never treats these as "no tenant".
type InvalidError struct {
	Slug   string
	Reason InvalidReason
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("tenant %q invalid: %s", e.Slug, e.Reason)
}

// IsInvalid reports whether err is a tenant-invalid failure
func IsInvalid(err error) bool {
	var ie *InvalidError
	return errors.As(err, &ie)
}
