package adapter

import (
	"encoding/json"
	"fmt"

	"switchboard/internal/api"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// InputSchema is the JSON Schema object describing an operation's arguments.
type InputSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Required   []string               `json:"required,omitempty"`
}

// Map returns the schema as a plain JSON object.
func (s InputSchema) Map() map[string]interface{} {
	m := map[string]interface{}{
		"type":       s.Type,
		"properties": s.Properties,
	}
	if len(s.Required) > 0 {
		m["required"] = s.Required
	}
	return m
}

// BuildInputSchema derives the input schema from declared parameters. Optional
// parameters carry their default, including an explicit null default.
func BuildInputSchema(params []api.Parameter) InputSchema {
	schema := InputSchema{
		Type:       "object",
		Properties: make(map[string]interface{}, len(params)),
	}
	for _, p := range params {
		prop := p.Type.JSONSchema()
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		} else {
			prop["default"] = p.Default
		}
		schema.Properties[p.Name] = prop
	}
	return schema
}

const schemaResource = "schema.json"

func compileSchema(schema InputSchema) (*jsonschema.Schema, error) {
	encoded, err := json.Marshal(schema.Map())
	if err != nil {
		return nil, fmt.Errorf("encoding input schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return nil, fmt.Errorf("decoding input schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResource, doc); err != nil {
		return nil, fmt.Errorf("adding input schema: %w", err)
	}
	compiled, err := compiler.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("compiling input schema: %w", err)
	}
	return compiled, nil
}
