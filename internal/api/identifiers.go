package api

import (
	"fmt"
	"regexp"
)

// MaxIdentifierLength bounds tenant IDs and implementation names.
const MaxIdentifierLength = 128

// identifierPattern keeps identifiers usable as path segments and store keys
// without escaping: no separators, so two distinct identifiers never map to
// the same file or key.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// InvalidIdentifierError is returned for a tenant ID or implementation name
// outside the accepted character set.
type InvalidIdentifierError struct {
	Kind  string
	Value string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid %s %q: use letters, digits, '.', '_' or '-' (at most %d characters, not starting with a symbol)",
		e.Kind, e.Value, MaxIdentifierLength)
}

// ValidateTenantID checks a tenant ID.
func ValidateTenantID(tenantID string) error {
	return validateIdentifier("tenant ID", tenantID)
}

// ValidateImplementationName checks an implementation name.
func ValidateImplementationName(name string) error {
	return validateIdentifier("implementation name", name)
}

// ValidateBindingKey checks both halves of a binding key.
func ValidateBindingKey(tenantID, implementation string) error {
	if err := ValidateTenantID(tenantID); err != nil {
		return err
	}
	return ValidateImplementationName(implementation)
}

func validateIdentifier(kind, value string) error {
	if len(value) > MaxIdentifierLength || !identifierPattern.MatchString(value) {
		return &InvalidIdentifierError{Kind: kind, Value: value}
	}
	return nil
}
