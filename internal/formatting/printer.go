package formatting

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"switchboard/internal/api"
	pkgstrings "switchboard/pkg/strings"
)

// PrintCapabilities lists every operation with its parameter signature.
func (p *Printer) PrintCapabilities(descriptors []api.CapabilityDescriptor) error {
	switch p.options.Format {
	case FormatJSON, FormatYAML:
		if descriptors == nil {
			descriptors = []api.CapabilityDescriptor{}
		}
		return p.encode(map[string]interface{}{"capabilities": descriptors, "count": len(descriptors)})
	}

	if len(descriptors) == 0 {
		return p.emptyMessage("No capabilities found")
	}

	t := p.createTable()
	t.AppendHeader(table.Row{"IMPLEMENTATION", "OPERATION", "PARAMETERS", "DESCRIPTION"})
	for _, d := range descriptors {
		params := make([]string, len(d.Parameters))
		for i, param := range d.Parameters {
			params[i] = param.Signature()
		}
		t.AppendRow(table.Row{d.Implementation, d.Name, strings.Join(params, "\n"), truncate(d.Description)})
	}
	t.Render()
	return p.footer(len(descriptors), "operations")
}

// PrintBindings lists bindings one per row.
func (p *Printer) PrintBindings(bindings []BindingView) error {
	switch p.options.Format {
	case FormatJSON, FormatYAML:
		if bindings == nil {
			bindings = []BindingView{}
		}
		return p.encode(map[string]interface{}{"bindings": bindings, "count": len(bindings)})
	}

	if len(bindings) == 0 {
		return p.emptyMessage("No bindings found")
	}

	t := p.createTable()
	t.AppendHeader(table.Row{"TENANT", "IMPLEMENTATION", "ENABLED", "DISABLED OPERATIONS", "UPDATED"})
	for _, b := range bindings {
		t.AppendRow(table.Row{
			b.TenantID,
			b.Implementation,
			enabledCell(b.Enabled),
			strings.Join(b.DisabledOperations, ", "),
			formatTime(b.UpdatedAt),
		})
	}
	t.Render()
	return p.footer(len(bindings), "bindings")
}

// PrintBinding shows a single binding as key/value pairs.
func (p *Printer) PrintBinding(b BindingView) error {
	switch p.options.Format {
	case FormatJSON, FormatYAML:
		return p.encode(b)
	}

	t := p.createTable()
	t.AppendHeader(table.Row{"KEY", "VALUE"})
	t.AppendRow(table.Row{"tenant", b.TenantID})
	t.AppendRow(table.Row{"implementation", b.Implementation})
	t.AppendRow(table.Row{"enabled", enabledCell(b.Enabled)})

	keys := make([]string, 0, len(b.PublicConfig))
	for k := range b.PublicConfig {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.AppendRow(table.Row{"public." + k, truncate(fmt.Sprintf("%v", b.PublicConfig[k]))})
	}
	for _, k := range b.SensitiveKeys {
		t.AppendRow(table.Row{"sensitive." + k, "REDACTED"})
	}
	if len(b.DisabledOperations) > 0 {
		t.AppendRow(table.Row{"disabled operations", strings.Join(b.DisabledOperations, ", ")})
	}
	t.AppendRow(table.Row{"created", formatTime(b.CreatedAt)})
	t.AppendRow(table.Row{"updated", formatTime(b.UpdatedAt)})
	t.Render()
	return nil
}

// createTable creates a new table with standard styling
func (p *Printer) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleRounded)
	if p.options.Color {
		t.Style().Color.Header = text.Colors{text.FgHiCyan, text.Bold}
	}
	return t
}

func (p *Printer) encode(v interface{}) error {
	if p.options.Format == FormatYAML {
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) emptyMessage(message string) error {
	if p.options.Color {
		message = text.FgYellow.Sprint(message)
	}
	_, err := fmt.Fprintln(p.out, message)
	return err
}

func (p *Printer) footer(n int, noun string) error {
	line := fmt.Sprintf("Total: %d %s", n, noun)
	if p.options.Color {
		line = fmt.Sprintf("%s %s %s", text.FgHiBlue.Sprint("Total:"), text.FgHiWhite.Sprint(n), text.FgHiBlue.Sprint(noun))
	}
	_, err := fmt.Fprintf(p.out, "\n%s\n", line)
	return err
}

func enabledCell(enabled bool) string {
	if enabled {
		return "yes"
	}
	return "no"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func truncate(s string) string {
	return pkgstrings.TruncateDescription(s, pkgstrings.DefaultDescriptionMaxLen)
}
