package binding

import (
	"context"

	"switchboard/internal/api"
	"switchboard/internal/capability"
	"switchboard/pkg/logging"
)

// Decrypter opens sealed sensitive configuration. Failures must be reported
// as *api.DecryptionError.
type Decrypter interface {
	Decrypt(ciphertext string) (map[string]interface{}, error)
}

// ResolvedBinding is a binding ready to build a session from: sensitive
// configuration decrypted and the enabled operation set computed.
type ResolvedBinding struct {
	TenantID          string
	Implementation    string
	PublicConfig      map[string]interface{}
	SensitiveConfig   map[string]interface{}
	EnabledOperations []string
	StaleOperations   []string
}

// Wipe drops the decrypted sensitive configuration.
func (r *ResolvedBinding) Wipe() {
	if r == nil {
		return
	}
	for k := range r.SensitiveConfig {
		delete(r.SensitiveConfig, k)
	}
	r.SensitiveConfig = nil
}

// Resolver turns persisted bindings into resolved bindings. It never caches:
// every call reads the store.
type Resolver struct {
	store     Store
	registry  *capability.Registry
	decrypter Decrypter
}

// NewResolver creates a resolver.
func NewResolver(store Store, registry *capability.Registry, decrypter Decrypter) *Resolver {
	return &Resolver{store: store, registry: registry, decrypter: decrypter}
}

// EnabledImplementations lists the implementations the tenant has enabled.
func (r *Resolver) EnabledImplementations(ctx context.Context, tenantID string) ([]string, error) {
	return r.store.ListEnabledImplementations(ctx, tenantID)
}

// Resolve fetches and opens the tenant's binding for implementation.
//
// A missing or disabled binding yields *api.NotConfiguredError, which callers
// treat as "omit this capability". Any condition that makes the binding
// unusable (unknown implementation, storage failure, undecryptable
// credentials) yields *api.CapabilityUnavailableError so that the whole
// implementation is withheld instead of exposed with partial credentials.
func (r *Resolver) Resolve(ctx context.Context, tenantID, implementation string) (*ResolvedBinding, error) {
	b, err := r.store.GetBinding(ctx, tenantID, implementation)
	if err != nil {
		if api.IsNotFound(err) {
			return nil, &api.NotConfiguredError{TenantID: tenantID, Implementation: implementation}
		}
		return nil, &api.CapabilityUnavailableError{
			TenantID:       tenantID,
			Implementation: implementation,
			Reason:         "binding lookup failed",
			Err:            err,
		}
	}
	if !b.Enabled {
		return nil, &api.NotConfiguredError{TenantID: tenantID, Implementation: implementation}
	}

	descriptors, err := r.registry.GetDescriptors(implementation)
	if err != nil {
		return nil, &api.CapabilityUnavailableError{
			TenantID:       tenantID,
			Implementation: implementation,
			Reason:         "implementation is not registered",
			Err:            err,
		}
	}

	sensitive, err := r.decrypter.Decrypt(b.EncryptedSensitiveConfig)
	if err != nil {
		logging.Warn("BindingResolver", "Withholding %s for tenant %s: sensitive config could not be decrypted", implementation, tenantID)
		return nil, &api.CapabilityUnavailableError{
			TenantID:       tenantID,
			Implementation: implementation,
			Reason:         "sensitive config could not be decrypted",
			Err:            err,
		}
	}

	enabled, stale := EnabledOperations(descriptors, b.DisabledOperations)
	for _, name := range stale {
		logging.Warn("BindingResolver", "Tenant %s disables unknown operation %s.%s; ignoring", tenantID, implementation, name)
	}

	return &ResolvedBinding{
		TenantID:          tenantID,
		Implementation:    implementation,
		PublicConfig:      b.PublicConfig,
		SensitiveConfig:   sensitive,
		EnabledOperations: enabled,
		StaleOperations:   stale,
	}, nil
}
