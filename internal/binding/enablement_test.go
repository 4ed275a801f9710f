package binding

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"switchboard/internal/api"
)

func descriptorsNamed(names ...string) []api.CapabilityDescriptor {
	out := make([]api.CapabilityDescriptor, len(names))
	for i, n := range names {
		out[i] = api.CapabilityDescriptor{Name: n}
	}
	return out
}

func TestEnabledOperations(t *testing.T) {
	tests := []struct {
		name            string
		descriptors     []string
		disabled        []string
		expectedEnabled []string
		expectedStale   []string
	}{
		{
			name:            "nothing disabled",
			descriptors:     []string{"list_events", "create_event"},
			expectedEnabled: []string{"list_events", "create_event"},
		},
		{
			name:            "stale entry is ignored",
			descriptors:     []string{"list_events", "create_event"},
			disabled:        []string{"list_events", "legacy_op"},
			expectedEnabled: []string{"create_event"},
			expectedStale:   []string{"legacy_op"},
		},
		{
			name:            "everything disabled",
			descriptors:     []string{"list_events"},
			disabled:        []string{"list_events", "list_events"},
			expectedEnabled: []string{},
		},
		{
			name:            "only stale entries",
			descriptors:     []string{"list_events"},
			disabled:        []string{"b", "a", "b"},
			expectedEnabled: []string{"list_events"},
			expectedStale:   []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled, stale := EnabledOperations(descriptorsNamed(tt.descriptors...), tt.disabled)
			assert.Equal(t, tt.expectedEnabled, enabled)
			assert.Equal(t, tt.expectedStale, stale)
		})
	}
}

func TestEnabledOperationsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	names := []string{"list_events", "create_event", "cancel_event", "send_notification", "legacy_op", "renamed_op"}
	opName := gen.IntRange(0, len(names)-1).Map(func(i int) string { return names[i] })

	properties.Property("enabled = descriptors - (disabled ∩ descriptors)", prop.ForAll(
		func(descriptorNames, disabled []string) bool {
			seen := map[string]bool{}
			var unique []string
			for _, n := range descriptorNames {
				if !seen[n] {
					seen[n] = true
					unique = append(unique, n)
				}
			}

			enabled, stale := EnabledOperations(descriptorsNamed(unique...), disabled)

			off := map[string]bool{}
			for _, d := range disabled {
				off[d] = true
			}
			var expected []string
			for _, n := range unique {
				if !off[n] {
					expected = append(expected, n)
				}
			}
			if len(expected) != len(enabled) {
				return false
			}
			for i := range expected {
				if expected[i] != enabled[i] {
					return false
				}
			}

			for _, s := range stale {
				if seen[s] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(opName),
		gen.SliceOf(opName),
	))

	properties.Property("stale entries never disable anything", prop.ForAll(
		func(descriptorNames []string, staleNames []string) bool {
			seen := map[string]bool{}
			var unique []string
			for _, n := range descriptorNames {
				if !seen[n] {
					seen[n] = true
					unique = append(unique, n)
				}
			}
			var disabled []string
			for _, s := range staleNames {
				if !seen[s] {
					disabled = append(disabled, s)
				}
			}

			enabled, _ := EnabledOperations(descriptorsNamed(unique...), disabled)
			return len(enabled) == len(unique)
		},
		gen.SliceOf(opName),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
