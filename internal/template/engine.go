package template

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Engine renders Go text templates with the sprig function library.
// Templates reference variables as {{ .name }} and may pipe them through
// sprig functions, e.g. {{ .subject | upper }} or {{ .fields | toJson }}.
// Referencing a missing variable is an error.
type Engine struct {
	// Pattern to match the variables a template references
	variablePattern *regexp.Regexp

	mu    sync.RWMutex
	cache map[string]*template.Template
}

// New creates a new template engine
func New() *Engine {
	return &Engine{
		variablePattern: regexp.MustCompile(`\{\{-?\s*[^}]*?\.([a-zA-Z_][a-zA-Z0-9_]*)`),
		cache:           make(map[string]*template.Template),
	}
}

// Render executes text against data.
func (e *Engine) Render(text string, data map[string]interface{}) (string, error) {
	tmpl, err := e.parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

func (e *Engine) parse(text string) (*template.Template, error) {
	e.mu.RLock()
	tmpl, ok := e.cache[text]
	e.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	tmpl, err := template.New("template").
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	e.mu.Lock()
	e.cache[text] = tmpl
	e.mu.Unlock()
	return tmpl, nil
}

// Replace renders every string in value, recursing into maps and slices.
func (e *Engine) Replace(value interface{}, context map[string]interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		if !strings.Contains(v, "{{") {
			return v, nil
		}
		return e.Render(v, context)
	case map[string]interface{}:
		return e.replaceMapTemplates(v, context)
	case []interface{}:
		return e.replaceSliceTemplates(v, context)
	default:
		// Non-templatable types are returned as-is
		return value, nil
	}
}

// replaceMapTemplates recursively replaces templates in a map
func (e *Engine) replaceMapTemplates(m map[string]interface{}, context map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(m))

	for key, value := range m {
		replacedValue, err := e.Replace(value, context)
		if err != nil {
			return nil, fmt.Errorf("error in key '%s': %w", key, err)
		}
		result[key] = replacedValue
	}

	return result, nil
}

// replaceSliceTemplates recursively replaces templates in a slice
func (e *Engine) replaceSliceTemplates(s []interface{}, context map[string]interface{}) ([]interface{}, error) {
	result := make([]interface{}, len(s))

	for i, value := range s {
		replacedValue, err := e.Replace(value, context)
		if err != nil {
			return nil, fmt.Errorf("error at index %d: %w", i, err)
		}
		result[i] = replacedValue
	}

	return result, nil
}

// ExtractVariables returns the sorted names of the top-level variables a
// value's templates reference.
func (e *Engine) ExtractVariables(value interface{}) []string {
	variables := make(map[string]bool)
	e.extractVariablesRecursive(value, variables)

	result := make([]string, 0, len(variables))
	for varName := range variables {
		result = append(result, varName)
	}
	sort.Strings(result)
	return result
}

func (e *Engine) extractVariablesRecursive(value interface{}, variables map[string]bool) {
	switch v := value.(type) {
	case string:
		for _, match := range e.variablePattern.FindAllStringSubmatch(v, -1) {
			if len(match) >= 2 {
				variables[match[1]] = true
			}
		}
	case map[string]interface{}:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	case []interface{}:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	}
}

// ValidateContext ensures all referenced variables are present in the context
func (e *Engine) ValidateContext(value interface{}, context map[string]interface{}) error {
	var missingVars []string
	for _, varName := range e.ExtractVariables(value) {
		if _, exists := context[varName]; !exists {
			missingVars = append(missingVars, varName)
		}
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required variables: %s", strings.Join(missingVars, ", "))
	}

	return nil
}
