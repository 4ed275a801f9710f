package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"switchboard/internal/api"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value, entityType string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("is required for %s", entityType),
		}
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateRange checks that an integer lies within [min, max]
func ValidateRange(field string, value, min, max int) error {
	if value < min || value > max {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("must be between %d and %d", min, max),
		}
	}
	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c SwitchboardConfig) Validate() error {
	var errs ValidationErrors
	add := func(err error) {
		var ve ValidationError
		if errors.As(err, &ve) {
			errs = append(errs, ve)
		}
	}

	add(ValidateOneOf("server.transport", c.Server.Transport, []string{MCPTransportStreamableHTTP, MCPTransportStdio}))
	switch c.Server.Transport {
	case MCPTransportStreamableHTTP:
		add(ValidateRange("server.port", c.Server.Port, 1, 65535))
		add(ValidateRequired("server.tenantHeader", c.Server.TenantHeader, "the streamable-http transport"))
		if !strings.HasPrefix(c.Server.EndpointPath, "/") {
			errs.Add("server.endpointPath", "must start with /", c.Server.EndpointPath)
		}
	case MCPTransportStdio:
		add(ValidateRequired("server.stdioTenant", c.Server.StdioTenant, "the stdio transport"))
		if c.Server.StdioTenant != "" {
			if err := api.ValidateTenantID(c.Server.StdioTenant); err != nil {
				errs.Add("server.stdioTenant", err.Error(), c.Server.StdioTenant)
			}
		}
	}
	if c.Server.MaxSessions < 0 {
		errs.Add("server.maxSessions", "must not be negative", c.Server.MaxSessions)
	}

	add(ValidateOneOf("storage.backend", c.Storage.Backend, []string{StorageBackendFile, StorageBackendMongo, StorageBackendRedis}))
	switch c.Storage.Backend {
	case StorageBackendFile:
		add(ValidateRequired("storage.path", c.Storage.Path, "the file backend"))
	case StorageBackendMongo:
		add(ValidateRequired("storage.mongo.uri", c.Storage.MongoURI(), "the mongo backend"))
		add(ValidateRequired("storage.mongo.database", c.Storage.Mongo.Database, "the mongo backend"))
		add(ValidateRequired("storage.mongo.collection", c.Storage.Mongo.Collection, "the mongo backend"))
	case StorageBackendRedis:
		add(ValidateRequired("storage.redis.addr", c.Storage.Redis.Addr, "the redis backend"))
		if c.Storage.Redis.DB < 0 {
			errs.Add("storage.redis.db", "must not be negative", c.Storage.Redis.DB)
		}
	}

	if c.Encryption.IdentityFile == "" && c.Encryption.IdentityEnv == "" {
		errs.Add("encryption", "identityFile or identityEnv is required")
	}

	for field, value := range map[string]int{
		"limits.maxResponseBytes": c.Limits.MaxResponseBytes,
		"limits.maxRecords":       c.Limits.MaxRecords,
		"limits.maxFieldBytes":    c.Limits.MaxFieldBytes,
		"resolveConcurrency":      c.ResolveConcurrency,
	} {
		if value < 0 {
			errs.Add(field, "must not be negative", value)
		}
	}
	if c.Limits.InvocationTimeout < 0 {
		errs.Add("limits.invocationTimeout", "must not be negative", c.Limits.InvocationTimeout)
	}

	add(ValidateOneOf("logging.level", c.Logging.Level, []string{"debug", "info", "warn", "error"}))
	add(ValidateOneOf("logging.format", c.Logging.Format, []string{"text", "json"}))

	if errs.HasErrors() {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
		return errs
	}
	return nil
}
