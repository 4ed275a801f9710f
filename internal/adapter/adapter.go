package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"switchboard/internal/api"
	"switchboard/internal/capability"
	"switchboard/pkg/logging"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Adapter is a session-scoped, free-standing callable for one operation of a
// bound capability implementation. Its declared surface (name, description,
// ordered parameters and input schema) mirrors the operation descriptor
// exactly; the execution context is injected on every call and is not part of
// that surface.
type Adapter struct {
	descriptor api.CapabilityDescriptor
	schema     InputSchema
	validator  *jsonschema.Schema

	method   reflect.Value
	argsType reflect.Type
	fields   []fieldBinding

	mu      sync.RWMutex
	execCtx *api.ExecutionContext
}

// fieldBinding links a declared parameter to its field in the argument struct.
type fieldBinding struct {
	param api.Parameter
	index int
	// defaultJSON is the encoded declared default, nil for a null default or
	// for required parameters.
	defaultJSON []byte
}

// Synthesize builds an Adapter for the operation described by d on impl. The
// given execution context is passed to every call.
func Synthesize(impl capability.Implementation, d api.CapabilityDescriptor, ec *api.ExecutionContext) (*Adapter, error) {
	if impl == nil {
		return nil, fmt.Errorf("cannot synthesize %s: implementation is nil", d.Name)
	}

	method := reflect.ValueOf(impl).MethodByName(d.Method)
	if !method.IsValid() {
		return nil, fmt.Errorf("cannot synthesize %s: %T has no method %s", d.Name, impl, d.Method)
	}

	argsType, err := capability.OperationArgsType(method.Type())
	if err != nil {
		return nil, fmt.Errorf("cannot synthesize %s: %w", d.Name, err)
	}

	fields, err := bindFields(argsType, d.Parameters)
	if err != nil {
		return nil, fmt.Errorf("cannot synthesize %s: %w", d.Name, err)
	}

	schema := BuildInputSchema(d.Parameters)
	validator, err := compileSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("cannot synthesize %s: %w", d.Name, err)
	}

	params := make([]api.Parameter, len(d.Parameters))
	copy(params, d.Parameters)
	d.Parameters = params

	logging.Debug("AdapterSynthesizer", "Synthesized adapter %s.%s with %d parameters", d.Implementation, d.Name, len(params))

	return &Adapter{
		descriptor: d,
		schema:     schema,
		validator:  validator,
		method:     method,
		argsType:   argsType,
		fields:     fields,
		execCtx:    ec,
	}, nil
}

func bindFields(argsType reflect.Type, params []api.Parameter) ([]fieldBinding, error) {
	indexByName := make(map[string]int, argsType.NumField())
	for i := 0; i < argsType.NumField(); i++ {
		field := argsType.Field(i)
		if !field.IsExported() || field.Anonymous {
			continue
		}
		name, skip := capability.FieldParamName(field)
		if skip {
			continue
		}
		indexByName[name] = i
	}

	if len(indexByName) != len(params) {
		return nil, fmt.Errorf("argument struct %s has %d parameters, descriptor declares %d", argsType, len(indexByName), len(params))
	}

	fields := make([]fieldBinding, len(params))
	for i, p := range params {
		idx, ok := indexByName[p.Name]
		if !ok {
			return nil, fmt.Errorf("argument struct %s has no parameter %q", argsType, p.Name)
		}
		fb := fieldBinding{param: p, index: idx}
		if !p.Required && p.Default != nil {
			encoded, err := json.Marshal(p.Default)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: encoding default: %w", p.Name, err)
			}
			fb.defaultJSON = encoded
		}
		fields[i] = fb
	}
	return fields, nil
}

// Name returns the operation name.
func (a *Adapter) Name() string { return a.descriptor.Name }

// Description returns the operation description.
func (a *Adapter) Description() string { return a.descriptor.Description }

// Implementation returns the name of the implementation the adapter is bound to.
func (a *Adapter) Implementation() string { return a.descriptor.Implementation }

// Parameters returns the declared parameters in order.
func (a *Adapter) Parameters() []api.Parameter {
	out := make([]api.Parameter, len(a.descriptor.Parameters))
	copy(out, a.descriptor.Parameters)
	return out
}

// InputSchema returns the JSON Schema of the declared parameters.
func (a *Adapter) InputSchema() InputSchema { return a.schema }

// ExecutionContext returns the execution context calls are made with.
func (a *Adapter) ExecutionContext() *api.ExecutionContext {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.execCtx
}

// Release wipes the adapter's credentials. Calls already running keep the
// snapshot they started with; calls made afterwards see no credentials.
func (a *Adapter) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.execCtx.Wipe()
}

// snapshot returns a private copy of the execution context for one call.
func (a *Adapter) snapshot() *api.ExecutionContext {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.execCtx.Clone()
}

// Call validates args against the declared schema, marshals them into the
// operation's argument struct and invokes the bound method with the injected
// execution context. Omitted optional parameters receive their declared
// default; an explicit null is forwarded as null.
//
// Each call gets its own copy of the execution context, wiped when the call
// returns.
//
// Validation failures are returned as *api.ValidationError. The bound method's
// own error is returned unchanged.
func (a *Adapter) Call(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	normalized, err := normalizeArgs(args)
	if err != nil {
		return nil, &api.ValidationError{Operation: a.descriptor.Name, Message: "arguments are not valid JSON", Err: err}
	}

	if err := a.validator.Validate(normalized); err != nil {
		return nil, &api.ValidationError{Operation: a.descriptor.Name, Message: "schema validation failed", Err: err}
	}

	argsValue, err := a.buildArgs(normalized)
	if err != nil {
		return nil, err
	}

	ec := a.snapshot()
	defer ec.Wipe()

	out := a.method.Call([]reflect.Value{
		reflect.ValueOf(ctx),
		reflect.ValueOf(ec),
		argsValue,
	})

	var callErr error
	if errValue := out[1]; !errValue.IsNil() {
		callErr = errValue.Interface().(error)
	}
	return out[0].Interface(), callErr
}

func (a *Adapter) buildArgs(args map[string]interface{}) (reflect.Value, error) {
	argsValue := reflect.New(a.argsType).Elem()

	for _, fb := range a.fields {
		field := argsValue.Field(fb.index)
		raw, present := args[fb.param.Name]

		switch {
		case !present && fb.defaultJSON == nil:
			// Null default: the zero value of a nullable field is nil.
			continue
		case !present:
			if err := json.Unmarshal(fb.defaultJSON, field.Addr().Interface()); err != nil {
				return reflect.Value{}, &api.ValidationError{Operation: a.descriptor.Name, Message: fmt.Sprintf("applying default for %q", fb.param.Name), Err: err}
			}
		case raw == nil:
			field.Set(reflect.Zero(field.Type()))
		default:
			encoded, err := json.Marshal(raw)
			if err != nil {
				return reflect.Value{}, &api.ValidationError{Operation: a.descriptor.Name, Message: fmt.Sprintf("encoding %q", fb.param.Name), Err: err}
			}
			if err := json.Unmarshal(encoded, field.Addr().Interface()); err != nil {
				return reflect.Value{}, &api.ValidationError{Operation: a.descriptor.Name, Message: fmt.Sprintf("decoding %q", fb.param.Name), Err: err}
			}
		}
	}

	for name := range args {
		if !a.declares(name) {
			logging.Debug("AdapterSynthesizer", "Ignoring undeclared argument %q for %s", name, a.descriptor.Name)
		}
	}

	return argsValue, nil
}

func (a *Adapter) declares(name string) bool {
	for _, fb := range a.fields {
		if fb.param.Name == name {
			return true
		}
	}
	return false
}

// normalizeArgs round-trips args through JSON so that validation sees the
// same value shapes regardless of whether the caller passed decoded JSON or
// Go values.
func normalizeArgs(args map[string]interface{}) (map[string]interface{}, error) {
	if args == nil {
		return map[string]interface{}{}, nil
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}
