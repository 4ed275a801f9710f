// Package formatting renders capability descriptors and tenant bindings for
// the command line, as a table, JSON or YAML.
package formatting

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use table, json or yaml)", s)
	}
}

// Options configures the printer behavior
type Options struct {
	Format OutputFormat
	Color  bool // Enable colored table headers
}

// BindingView is a binding as shown to an operator. Sensitive values never
// appear, only the keys they are stored under.
type BindingView struct {
	TenantID           string                 `json:"tenantId" yaml:"tenantId"`
	Implementation     string                 `json:"implementation" yaml:"implementation"`
	Enabled            bool                   `json:"enabled" yaml:"enabled"`
	PublicConfig       map[string]interface{} `json:"publicConfig,omitempty" yaml:"publicConfig,omitempty"`
	SensitiveKeys      []string               `json:"sensitiveKeys,omitempty" yaml:"sensitiveKeys,omitempty"`
	DisabledOperations []string               `json:"disabledOperations,omitempty" yaml:"disabledOperations,omitempty"`
	CreatedAt          time.Time              `json:"createdAt" yaml:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt" yaml:"updatedAt"`
}

// Printer writes formatted output to a writer.
type Printer struct {
	out     io.Writer
	options Options
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer, options Options) *Printer {
	if options.Format == "" {
		options.Format = FormatTable
	}
	return &Printer{out: out, options: options}
}
