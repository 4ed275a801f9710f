// Package api holds the types shared by every switchboard package.
//
// It has no dependencies on other internal packages, so the registry, the
// binding stores, the adapter, the bridge and the MCP server can all speak
// the same vocabulary without importing each other.
//
// # Capability Schema
//
// CapabilityDescriptor, Parameter and ParamType describe the externally
// callable operations of a capability implementation. They are produced once
// by capability discovery and never mutated afterwards.
//
// # Tenant Data
//
// Binding is the persisted link between a tenant and an implementation.
// ImplementationConfig carries the tenant's configuration into an
// implementation's constructor, and ExecutionContext is injected into every
// operation call. Both render their credentials redacted when formatted or
// logged.
//
// # Errors
//
// The error types let callers decide how a failure is surfaced:
//
//   - NotFoundError: unknown implementation, operation or binding
//   - NotConfiguredError: the tenant never attached the implementation; the
//     capability is omitted silently
//   - CapabilityUnavailableError: the binding exists but cannot be used, e.g.
//     its credentials do not decrypt; the capability is withheld
//   - DecryptionError: ciphertext could not be opened
//   - ValidationError: call arguments do not match the operation schema
//
// HandleError turns any of them into an error CallToolResult so that a failed
// call never ends the session:
//
//	result, err := adapter.Call(ctx, args)
//	if err != nil {
//	    return api.HandleError(err)
//	}
package api
