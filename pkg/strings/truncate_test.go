package strings

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestTruncateDescription(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"fits", "List upcoming events.", 60, "List upcoming events."},
		{"exact length", "Send", 4, "Send"},
		{"cut with ellipsis", "Create a calendar event for the tenant", 15, "Create a cal..."},
		{"multi-line docstring", "Send a notification.\n\n    Delivers to the channel.", 60, "Send a notification. Delivers to the channel."},
		{"crlf and tabs", "start\r\n\tend", 20, "start end"},
		{"surrounding whitespace", "  padded  ", 20, "padded"},
		{"empty", "", 10, ""},
		{"clamped to minimum", "abcdef", 1, "a..."},
		{"negative clamped", "abcdef", -3, "a..."},
		{"runes not bytes", "日本語テスト", 5, "日本..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TruncateDescription(tt.input, tt.maxLen))
		})
	}
}

func TestTruncateDescription_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("result never exceeds the limit", prop.ForAll(
		func(s string, maxLen int) bool {
			return utf8.RuneCountInString(TruncateDescription(s, maxLen)) <= max(maxLen, MinTruncateLen)
		},
		gen.AnyString(),
		gen.IntRange(-5, 80),
	))

	properties.Property("result is a single line", prop.ForAll(
		func(s string) bool {
			return !strings.ContainsAny(TruncateDescription(s, DefaultDescriptionMaxLen), "\r\n\t")
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
