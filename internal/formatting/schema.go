package formatting

// PrintSchema writes an operation input schema. A schema has no tabular form,
// so the table format falls back to indented JSON.
func (p *Printer) PrintSchema(schema map[string]interface{}) error {
	if schema == nil {
		schema = map[string]interface{}{}
	}
	return p.encode(schema)
}
