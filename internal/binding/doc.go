// Package binding resolves tenant capability bindings.
//
// A binding links a tenant to a capability implementation and carries its
// public configuration, sealed sensitive configuration and disabled
// operations. The Resolver reads it fresh from a Store for every session,
// decrypts the sensitive part in memory and computes the enabled operation
// set with EnabledOperations.
//
// Store implementations live in the memory, filestore, mongo and redis
// subpackages.
package binding
