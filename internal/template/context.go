package template

import "maps"

// Overlay returns a new map holding base with each of overrides applied on top
// in order. None of the inputs is modified.
func Overlay(base map[string]interface{}, overrides ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base))
	maps.Copy(out, base)
	for _, o := range overrides {
		maps.Copy(out, o)
	}
	return out
}
