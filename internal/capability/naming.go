package capability

import (
	"strings"
	"unicode"
)

// OperationName converts a Go identifier to the snake_case name used on the
// wire: ListEvents -> list_events, SendHTTPRequest -> send_http_request.
func OperationName(identifier string) string {
	runes := []rune(identifier)
	var b strings.Builder
	b.Grow(len(identifier) + 4)

	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}
