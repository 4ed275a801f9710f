package binding

import (
	"sort"

	"switchboard/internal/api"
)

// EnabledOperations computes descriptors minus the disabled operations that
// actually exist. Names in disabled that match no descriptor are returned as
// stale, sorted and deduplicated, and otherwise ignored: a stale entry never
// disables anything. enabled keeps descriptor order.
func EnabledOperations(descriptors []api.CapabilityDescriptor, disabled []string) (enabled, stale []string) {
	known := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		known[d.Name] = true
	}

	off := make(map[string]bool, len(disabled))
	staleSet := make(map[string]bool)
	for _, name := range disabled {
		if known[name] {
			off[name] = true
		} else {
			staleSet[name] = true
		}
	}

	enabled = make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		if !off[d.Name] {
			enabled = append(enabled, d.Name)
		}
	}

	for name := range staleSet {
		stale = append(stale, name)
	}
	sort.Strings(stale)
	return enabled, stale
}
