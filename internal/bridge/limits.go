package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"switchboard/pkg/logging"
)

// Limits caps what a single invocation may hand back to the runtime. A zero
// value disables the corresponding cap.
type Limits struct {
	// MaxResponseBytes caps the serialized response.
	MaxResponseBytes int
	// MaxRecords caps the length of every array in the response.
	MaxRecords int
	// MaxFieldBytes caps the length of every string in the response.
	MaxFieldBytes int
	// InvocationTimeout bounds a single invocation.
	InvocationTimeout time.Duration
}

// Truncation kinds reported to metrics.
const (
	TruncatedRecords  = "records"
	TruncatedField    = "field"
	TruncatedResponse = "response"
)

// limiter enforces Limits on invocation results.
type limiter struct {
	limits  Limits
	metrics *Metrics
}

type truncationStats struct {
	arrays int
	fields int
}

// apply serializes result for the runtime and truncates it to the configured
// limits. Strings are returned as-is, everything else as JSON.
func (l *limiter) apply(ctx context.Context, tool string, result interface{}) (string, error) {
	if result == nil {
		return "null", nil
	}

	original, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}

	var value interface{}
	decoder := json.NewDecoder(bytes.NewReader(original))
	decoder.UseNumber()
	if err := decoder.Decode(&value); err != nil {
		return "", fmt.Errorf("failed to normalize result: %w", err)
	}

	var stats truncationStats
	value = l.walk(value, &stats)

	var text string
	if s, ok := value.(string); ok {
		text = s
	} else {
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to encode truncated result: %w", err)
		}
		text = string(encoded)
	}

	responseCut := false
	if l.limits.MaxResponseBytes > 0 && len(text) > l.limits.MaxResponseBytes {
		// The marker counts against the cap; a cap too small for it gets none.
		marker := fmt.Sprintf("\n... (response truncated, %d bytes total)", len(text))
		if len(marker) < l.limits.MaxResponseBytes {
			text = cutUTF8(text, l.limits.MaxResponseBytes-len(marker)) + marker
		} else {
			text = cutUTF8(text, l.limits.MaxResponseBytes)
		}
		responseCut = true
	}

	if stats.arrays > 0 || stats.fields > 0 || responseCut {
		logging.Info("Bridge", "Truncated response of %s: %d bytes before truncation, %d bytes after (%d arrays, %d fields, response cap hit: %t)",
			tool, len(original), len(text), stats.arrays, stats.fields, responseCut)
		if l.metrics != nil {
			l.metrics.recordTruncations(ctx, tool, TruncatedRecords, stats.arrays)
			l.metrics.recordTruncations(ctx, tool, TruncatedField, stats.fields)
			if responseCut {
				l.metrics.recordTruncations(ctx, tool, TruncatedResponse, 1)
			}
		}
	}

	return text, nil
}

func (l *limiter) walk(v interface{}, stats *truncationStats) interface{} {
	switch typed := v.(type) {
	case map[string]interface{}:
		for k, item := range typed {
			typed[k] = l.walk(item, stats)
		}
		return typed
	case []interface{}:
		total := len(typed)
		cut := l.limits.MaxRecords > 0 && total > l.limits.MaxRecords
		if cut {
			typed = typed[:l.limits.MaxRecords]
			stats.arrays++
		}
		for i, item := range typed {
			typed[i] = l.walk(item, stats)
		}
		if cut {
			typed = append(typed, fmt.Sprintf("... (%d more records truncated, %d total)", total-l.limits.MaxRecords, total))
		}
		return typed
	case string:
		if l.limits.MaxFieldBytes > 0 && len(typed) > l.limits.MaxFieldBytes {
			stats.fields++
			kept := cutUTF8(typed, l.limits.MaxFieldBytes)
			return kept + fmt.Sprintf("... (truncated, %d more bytes)", len(typed)-len(kept))
		}
		return typed
	default:
		return v
	}
}

// cutUTF8 returns the longest prefix of s of at most n bytes that does not
// split a rune.
func cutUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
