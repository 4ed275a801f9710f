package api

import (
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"time"
)

// ParamKind is the portable type tag of an operation parameter.
type ParamKind string

const (
	KindString  ParamKind = "string"
	KindInteger ParamKind = "integer"
	KindNumber  ParamKind = "number"
	KindBoolean ParamKind = "boolean"
	KindArray   ParamKind = "array"
	KindObject  ParamKind = "object"
)

// ParamType describes the declared type of a parameter in portable terms.
// Items is set only for KindArray. Nullable marks optional-of(T). Format is a
// JSON Schema format hint such as "date-time".
type ParamType struct {
	Kind     ParamKind  `json:"kind" yaml:"kind"`
	Nullable bool       `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Items    *ParamType `json:"items,omitempty" yaml:"items,omitempty"`
	Format   string     `json:"format,omitempty" yaml:"format,omitempty"`
}

// String renders the type as "string", "array<string>" or "nullable(array<string>)".
func (t ParamType) String() string {
	base := string(t.Kind)
	if t.Kind == KindArray && t.Items != nil {
		base = fmt.Sprintf("array<%s>", t.Items.String())
	}
	if t.Nullable {
		return fmt.Sprintf("nullable(%s)", base)
	}
	return base
}

// JSONSchema returns the JSON Schema fragment for this type. Nullable types
// use a type union with "null" so that an explicit null is a valid argument.
func (t ParamType) JSONSchema() map[string]interface{} {
	schema := map[string]interface{}{}
	if t.Nullable {
		schema["type"] = []interface{}{string(t.Kind), "null"}
	} else {
		schema["type"] = string(t.Kind)
	}
	if t.Kind == KindArray && t.Items != nil {
		schema["items"] = t.Items.JSONSchema()
	}
	if t.Format != "" {
		schema["format"] = t.Format
	}
	return schema
}

// Parameter describes one business parameter of an operation. The implicit
// receiver and the injected execution context are never listed.
//
// A parameter is required iff it declares no default. For optional parameters
// Default holds the declared default; a nil Default on an optional parameter
// means the declared default is null.
type Parameter struct {
	Name        string      `json:"name" yaml:"name"`
	Type        ParamType   `json:"type" yaml:"type"`
	Required    bool        `json:"required" yaml:"required"`
	Default     interface{} `json:"default,omitempty" yaml:"default,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
}

// Signature renders the parameter the way a function signature would show it,
// e.g. "max_results: integer = 10".
func (p Parameter) Signature() string {
	if p.Required {
		return fmt.Sprintf("%s: %s", p.Name, p.Type)
	}
	if p.Default == nil {
		return fmt.Sprintf("%s: %s = null", p.Name, p.Type)
	}
	if s, ok := p.Default.(string); ok {
		return fmt.Sprintf("%s: %s = %q", p.Name, p.Type, s)
	}
	return fmt.Sprintf("%s: %s = %v", p.Name, p.Type, p.Default)
}

// CapabilityDescriptor is the reflected schema of one externally callable
// operation of a capability implementation. Descriptors are produced once at
// startup and never mutated afterwards.
type CapabilityDescriptor struct {
	Implementation string      `json:"implementation" yaml:"implementation"`
	Name           string      `json:"name" yaml:"name"`
	Description    string      `json:"description" yaml:"description"`
	Parameters     []Parameter `json:"parameters" yaml:"parameters"`

	// Method is the Go method backing the operation.
	Method string `json:"-" yaml:"-"`
}

// ImplementationConfig is what a capability implementation is constructed
// with for one session.
type ImplementationConfig struct {
	TenantID  string
	Public    map[string]interface{}
	Sensitive map[string]interface{}
}

// ExecutionContext is injected into every operation call next to the business
// arguments. Credentials hold decrypted sensitive configuration and live only
// as long as the session that created them.
type ExecutionContext struct {
	TenantID       string
	SessionID      string
	Implementation string
	PublicConfig   map[string]interface{}
	Credentials    map[string]interface{}
}

// Credential returns a string credential by key.
func (ec *ExecutionContext) Credential(key string) (string, bool) {
	if ec == nil || ec.Credentials == nil {
		return "", false
	}
	v, ok := ec.Credentials[key].(string)
	return v, ok
}

// PublicString returns a string from the public config, or fallback.
func (ec *ExecutionContext) PublicString(key, fallback string) string {
	if ec == nil || ec.PublicConfig == nil {
		return fallback
	}
	if v, ok := ec.PublicConfig[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// Clone returns a copy of ec with maps of its own, so that wiping one copy
// leaves the other intact. Values inside the maps are shared.
func (ec *ExecutionContext) Clone() *ExecutionContext {
	if ec == nil {
		return nil
	}
	c := *ec
	c.PublicConfig = maps.Clone(ec.PublicConfig)
	c.Credentials = maps.Clone(ec.Credentials)
	return &c
}

// Wipe drops the decrypted credentials.
func (ec *ExecutionContext) Wipe() {
	if ec == nil {
		return
	}
	for k := range ec.Credentials {
		delete(ec.Credentials, k)
	}
	ec.Credentials = nil
}

// String never includes credential values.
func (ec *ExecutionContext) String() string {
	if ec == nil {
		return "<nil>"
	}
	return fmt.Sprintf("tenant=%s session=%s implementation=%s credentials=%s",
		ec.TenantID, ec.SessionID, ec.Implementation, redactedKeys(ec.Credentials))
}

// LogValue implements slog.LogValuer with credentials redacted.
func (ec *ExecutionContext) LogValue() slog.Value {
	if ec == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.String("tenant", ec.TenantID),
		slog.String("session", ec.SessionID),
		slog.String("implementation", ec.Implementation),
		slog.String("credentials", redactedKeys(ec.Credentials)),
	)
}

func redactedKeys(m map[string]interface{}) string {
	if len(m) == 0 {
		return "[]"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k+"=REDACTED")
	}
	sort.Strings(keys)
	return "[" + strings.Join(keys, " ") + "]"
}

// Binding is the persisted link between a tenant and a capability
// implementation.
type Binding struct {
	TenantID                 string                 `json:"tenantId" yaml:"tenantId"`
	Implementation           string                 `json:"implementation" yaml:"implementation"`
	PublicConfig             map[string]interface{} `json:"publicConfig,omitempty" yaml:"publicConfig,omitempty"`
	EncryptedSensitiveConfig string                 `json:"encryptedSensitiveConfig,omitempty" yaml:"encryptedSensitiveConfig,omitempty"`
	DisabledOperations       []string               `json:"disabledOperations,omitempty" yaml:"disabledOperations,omitempty"`
	Enabled                  bool                   `json:"enabled" yaml:"enabled"`
	CreatedAt                time.Time              `json:"createdAt" yaml:"createdAt"`
	UpdatedAt                time.Time              `json:"updatedAt" yaml:"updatedAt"`
}

// Key identifies the binding within a store.
func (b *Binding) Key() string {
	return BindingKey(b.TenantID, b.Implementation)
}

// BindingKey builds the store key for a (tenant, implementation) pair. Keys
// are unambiguous only for identifiers accepted by ValidateBindingKey.
func BindingKey(tenantID, implementation string) string {
	return tenantID + "/" + implementation
}

// CallToolResult represents the result of a tool call as handed back to the
// function-calling runtime.
type CallToolResult struct {
	Content []interface{} `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}
