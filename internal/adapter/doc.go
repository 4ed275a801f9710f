// Package adapter synthesizes session-scoped callables from operation
// descriptors. An Adapter exposes exactly the declared business parameters
// and injects the execution context of its session on every call.
package adapter
