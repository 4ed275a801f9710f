// Package bridge turns a tenant's resolved bindings into the tools of one call
// session.
//
// StartSessionAdapters resolves every implementation the tenant enabled,
// synthesizes an adapter per enabled operation and registers the resulting
// tools with a Runtime. EndSession unregisters them and wipes the decrypted
// credentials they carried. Nothing built for a session outlives it.
//
// Invocation failures are contained: Tool.Invoke always returns a
// CallToolResult, flagged as an error when the operation failed. Responses
// are cut to the configured Limits before they reach the runtime.
package bridge
