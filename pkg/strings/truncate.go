package strings

import (
	"strings"
)

// DefaultDescriptionMaxLen is the width of description cells in command output.
const DefaultDescriptionMaxLen = 60

// MinTruncateLen leaves room for one character plus "...".
const MinTruncateLen = 4

// TruncateDescription collapses s to a single line and cuts it to maxLen
// runes, ending with "..." when cut. maxLen below MinTruncateLen is raised to
// it.
func TruncateDescription(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
