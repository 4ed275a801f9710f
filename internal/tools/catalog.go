// Package tools is the closed set of capability implementations shipped with
// switchboard.
package tools

import (
	"switchboard/internal/capability"
	"switchboard/internal/tools/notifier"
	"switchboard/internal/tools/scheduling"
)

// Catalog returns the definitions the capability registry discovers at
// startup.
func Catalog() []capability.Definition {
	return []capability.Definition{
		notifier.Definition(),
		scheduling.Definition(),
	}
}
