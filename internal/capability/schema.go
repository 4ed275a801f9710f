package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"switchboard/internal/api"
	"switchboard/pkg/logging"
)

// Struct tags read from operation argument structs.
const (
	// TagDefault declares a default value; its presence makes a parameter
	// optional. "null" declares a null default.
	TagDefault = "default"

	// TagDescription documents a parameter.
	TagDescription = "desc"

	// NullDefault is the literal used for a null default.
	NullDefault = "null"
)

var (
	contextType     = reflect.TypeOf((*context.Context)(nil)).Elem()
	execContextType = reflect.TypeOf((*api.ExecutionContext)(nil))
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
	timeType        = reflect.TypeOf(time.Time{})
)

// extractDescriptors reflects over the prototype's method set and builds a
// descriptor for each operation listed in OperationDocs.
func extractDescriptors(implName string, proto Implementation) []api.CapabilityDescriptor {
	docs := proto.OperationDocs()
	t := reflect.TypeOf(proto)

	matched := make(map[string]bool, len(docs))
	var descriptors []api.CapabilityDescriptor

	// reflect orders methods lexicographically, which keeps output stable.
	for i := 0; i < t.NumMethod(); i++ {
		method := t.Method(i)
		opName := OperationName(method.Name)
		description, marked := docs[opName]
		if !marked {
			continue
		}
		matched[opName] = true

		descriptor, err := describeMethod(implName, opName, description, method)
		if err != nil {
			logging.Warn("CapabilityRegistry", "Skipping operation %s.%s: %v", implName, opName, err)
			continue
		}
		descriptors = append(descriptors, descriptor)
	}

	for opName := range docs {
		if !matched[opName] {
			logging.Warn("CapabilityRegistry", "Operation %s.%s is documented but has no matching method", implName, opName)
		}
	}

	return descriptors
}

// describeMethod validates the method signature
//
//	func(ctx context.Context, ec *api.ExecutionContext, args T) (R, error)
//
// and extracts the parameters from the fields of T.
func describeMethod(implName, opName, description string, method reflect.Method) (api.CapabilityDescriptor, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return api.CapabilityDescriptor{}, fmt.Errorf("missing description")
	}

	argsType, err := operationArgsType(method.Type, true)
	if err != nil {
		return api.CapabilityDescriptor{}, err
	}

	params, err := extractParameters(argsType)
	if err != nil {
		return api.CapabilityDescriptor{}, err
	}

	return api.CapabilityDescriptor{
		Implementation: implName,
		Name:           opName,
		Description:    description,
		Parameters:     params,
		Method:         method.Name,
	}, nil
}

// OperationArgsType returns the argument struct type of a bound operation
// method value.
func OperationArgsType(fn reflect.Type) (reflect.Type, error) {
	return operationArgsType(fn, false)
}

func operationArgsType(fn reflect.Type, withReceiver bool) (reflect.Type, error) {
	offset := 0
	if withReceiver {
		offset = 1
	}
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("not a function")
	}
	if fn.NumIn() != 3+offset {
		return nil, fmt.Errorf("expected (context.Context, *api.ExecutionContext, args) parameters, got %d", fn.NumIn()-offset)
	}
	if fn.In(offset) != contextType {
		return nil, fmt.Errorf("first parameter must be context.Context")
	}
	if fn.In(offset+1) != execContextType {
		return nil, fmt.Errorf("second parameter must be *api.ExecutionContext")
	}
	argsType := fn.In(offset + 2)
	if argsType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("arguments must be a struct, got %s", argsType)
	}
	if fn.NumOut() != 2 || fn.Out(1) != errorType {
		return nil, fmt.Errorf("must return (result, error)")
	}
	return argsType, nil
}

func extractParameters(argsType reflect.Type) ([]api.Parameter, error) {
	params := make([]api.Parameter, 0, argsType.NumField())
	seen := make(map[string]bool, argsType.NumField())

	for i := 0; i < argsType.NumField(); i++ {
		field := argsType.Field(i)
		if field.Anonymous {
			return nil, fmt.Errorf("embedded field %s is not supported", field.Name)
		}
		if !field.IsExported() {
			continue
		}

		name, skip := FieldParamName(field)
		if skip {
			continue
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate parameter name %q", name)
		}
		seen[name] = true

		paramType, err := resolveType(field.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}

		param := api.Parameter{
			Name:        name,
			Type:        paramType,
			Required:    true,
			Description: field.Tag.Get(TagDescription),
		}

		if tag, ok := field.Tag.Lookup(TagDefault); ok {
			def, nullable, err := parseDefault(tag, field.Type)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", name, err)
			}
			param.Required = false
			param.Default = def
			if nullable {
				param.Type.Nullable = true
			}
		}

		params = append(params, param)
	}

	return params, nil
}

// FieldParamName returns the parameter name of a struct field: the json tag
// name, or the snake_case field name when the tag has none. skip reports a
// field tagged json:"-".
func FieldParamName(field reflect.StructField) (name string, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	if tag == "" {
		return OperationName(field.Name), false
	}
	return tag, false
}

// resolveType maps a Go type to a portable parameter type.
func resolveType(t reflect.Type) (api.ParamType, error) {
	if t == timeType {
		return api.ParamType{Kind: api.KindString, Format: "date-time"}, nil
	}

	switch t.Kind() {
	case reflect.Ptr:
		inner, err := resolveType(t.Elem())
		if err != nil {
			return api.ParamType{}, err
		}
		if inner.Nullable {
			return api.ParamType{}, fmt.Errorf("nested pointer type %s is not supported", t)
		}
		inner.Nullable = true
		return inner, nil
	case reflect.String:
		return api.ParamType{Kind: api.KindString}, nil
	case reflect.Bool:
		return api.ParamType{Kind: api.KindBoolean}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return api.ParamType{Kind: api.KindInteger}, nil
	case reflect.Float32, reflect.Float64:
		return api.ParamType{Kind: api.KindNumber}, nil
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return api.ParamType{}, fmt.Errorf("byte slices are not supported")
		}
		items, err := resolveType(t.Elem())
		if err != nil {
			return api.ParamType{}, err
		}
		return api.ParamType{Kind: api.KindArray, Items: &items}, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return api.ParamType{}, fmt.Errorf("map keys must be strings, got %s", t.Key())
		}
		return api.ParamType{Kind: api.KindObject}, nil
	case reflect.Struct:
		return api.ParamType{Kind: api.KindObject}, nil
	default:
		return api.ParamType{}, fmt.Errorf("unsupported type %s", t)
	}
}

// parseDefault decodes a default tag into a value of the field's type. For
// pointer fields the value of the pointed-to type is returned. nullable is
// true when the tag declares a null default.
func parseDefault(tag string, t reflect.Type) (value interface{}, nullable bool, err error) {
	if tag == NullDefault {
		switch t.Kind() {
		case reflect.Ptr, reflect.Slice, reflect.Map:
			return nil, true, nil
		default:
			return nil, false, fmt.Errorf("null default on non-nullable type %s", t)
		}
	}

	target := t
	if target.Kind() == reflect.Ptr {
		target = target.Elem()
	}

	if target.Kind() == reflect.String {
		return tag, false, nil
	}

	v := reflect.New(target)
	if err := json.Unmarshal([]byte(tag), v.Interface()); err != nil {
		return nil, false, fmt.Errorf("default %q does not decode as %s: %w", tag, target, err)
	}
	return v.Elem().Interface(), false, nil
}
