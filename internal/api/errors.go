package api

import (
	"errors"
	"fmt"
)

// NotFoundError represents a resource not found error with contextual information.
// This standardized error type provides consistent error handling across the
// registry, the binding stores and the admin commands.
type NotFoundError struct {
	// ResourceType categorizes the type of resource that was not found
	// (e.g., "implementation", "binding", "operation")
	ResourceType string

	// ResourceName is the specific identifier of the resource that was not found
	ResourceName string

	// Message provides a custom error message if the default format is insufficient
	Message string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is a NotFoundError using error unwrapping.
//
// Example:
//
//	def, err := registry.GetImplementation("scheduling")
//	if api.IsNotFound(err) {
//	    // unknown implementation
//	}
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewNotFoundError creates a new NotFoundError with the specified resource type and name.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceName: resourceName,
	}
}

// Specific NotFoundError constructors for each resource type.
var (
	// NewImplementationNotFoundError creates a capability implementation not found error.
	NewImplementationNotFoundError = func(name string) *NotFoundError {
		return NewNotFoundError("implementation", name)
	}

	// NewBindingNotFoundError creates a tenant binding not found error.
	NewBindingNotFoundError = func(tenantID, implementation string) *NotFoundError {
		return NewNotFoundError("binding", BindingKey(tenantID, implementation))
	}

	// NewOperationNotFoundError creates an operation not found error.
	NewOperationNotFoundError = func(implementation, operation string) *NotFoundError {
		return NewNotFoundError("operation", implementation+"."+operation)
	}
)

// NotConfiguredError reports that a tenant never attached an implementation.
// Callers treat it as "omit this capability", not as a failure.
type NotConfiguredError struct {
	TenantID       string
	Implementation string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("implementation %s is not configured for tenant %s", e.Implementation, e.TenantID)
}

// IsNotConfigured checks if an error is a NotConfiguredError.
func IsNotConfigured(err error) bool {
	var target *NotConfiguredError
	return errors.As(err, &target)
}

// DecryptionError is returned by the credential sealer whenever ciphertext
// cannot be turned back into a configuration mapping. It is never paired with
// partial plaintext.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	if e.Err == nil {
		return "decryption failed"
	}
	return fmt.Sprintf("decryption failed: %v", e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// IsDecryptionError checks if an error is or wraps a DecryptionError.
func IsDecryptionError(err error) bool {
	var target *DecryptionError
	return errors.As(err, &target)
}

// CapabilityUnavailableError withholds a whole implementation from a tenant's
// session, e.g. because its credentials could not be decrypted.
type CapabilityUnavailableError struct {
	TenantID       string
	Implementation string
	Reason         string
	Err            error
}

func (e *CapabilityUnavailableError) Error() string {
	msg := fmt.Sprintf("capability %s unavailable for tenant %s", e.Implementation, e.TenantID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *CapabilityUnavailableError) Unwrap() error { return e.Err }

// IsCapabilityUnavailable checks if an error is a CapabilityUnavailableError.
func IsCapabilityUnavailable(err error) bool {
	var target *CapabilityUnavailableError
	return errors.As(err, &target)
}

// ValidationError reports arguments that do not match an operation's schema.
type ValidationError struct {
	Operation string
	Message   string
	Err       error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid arguments for %s: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("invalid arguments for %s: %s", e.Operation, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// HandleError creates a CallToolResult describing err. Invocation failures are
// reported to the function-calling runtime this way instead of being returned
// as Go errors, so one failing operation never ends a session.
func HandleError(err error) *CallToolResult {
	return &CallToolResult{
		Content: []interface{}{fmt.Sprintf("Error: %v", err)},
		IsError: true,
	}
}

// HandleErrorWithPrefix creates an error CallToolResult with a custom prefix.
//
// Example:
//
//	if err != nil {
//	    return api.HandleErrorWithPrefix(err, "Tool execution failed")
//	}
func HandleErrorWithPrefix(err error, prefix string) *CallToolResult {
	return &CallToolResult{
		Content: []interface{}{fmt.Sprintf("%s: %v", prefix, err)},
		IsError: true,
	}
}
