package capability

import (
	"fmt"
	"sort"
	"sync"

	"switchboard/internal/api"
	"switchboard/pkg/logging"
)

// Implementation is a capability implementation bound to one tenant's
// configuration for the lifetime of one session.
//
// OperationDocs marks which exported methods are externally callable: each
// key is an operation name (the snake_case form of the method name) and each
// value is the description shown to the language model. Methods that are not
// listed are never exposed.
type Implementation interface {
	OperationDocs() map[string]string
}

// Definition describes one capability implementation known to the process.
type Definition struct {
	// Name is the stable identifier stored in tenant bindings.
	Name string

	// Description is a human-readable summary used by admin tooling.
	Description string

	// New constructs a session-scoped instance from tenant configuration.
	New func(cfg api.ImplementationConfig) (Implementation, error)

	// Prototype is an unconfigured instance used only for reflection.
	Prototype Implementation
}

// Registry holds every discovered implementation and its operation
// descriptors. It is populated once by Discover at process start and is
// read-only afterwards, so concurrent reads need no locking.
type Registry struct {
	definitions map[string]Definition
	descriptors map[string][]api.CapabilityDescriptor
	names       []string

	discoverOnce sync.Once
}

// NewRegistry creates an empty registry. Call Discover before use.
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[string]Definition),
		descriptors: make(map[string][]api.CapabilityDescriptor),
	}
}

// Discover scans the given namespace of definitions and records a descriptor
// for every eligible operation. Malformed definitions and operations are
// skipped with a warning; discovery itself never fails.
//
// Only the first call has an effect.
func (r *Registry) Discover(namespace []Definition) {
	called := false
	r.discoverOnce.Do(func() {
		called = true
		r.discover(namespace)
	})
	if !called {
		logging.Warn("CapabilityRegistry", "Discover called more than once; registry is already built")
	}
}

func (r *Registry) discover(namespace []Definition) {
	for _, def := range namespace {
		if err := validateDefinition(def); err != nil {
			logging.Warn("CapabilityRegistry", "Skipping implementation %q: %v", def.Name, err)
			continue
		}
		if _, exists := r.definitions[def.Name]; exists {
			logging.Warn("CapabilityRegistry", "Skipping duplicate implementation %q", def.Name)
			continue
		}

		descriptors := extractDescriptors(def.Name, def.Prototype)
		if len(descriptors) == 0 {
			logging.Warn("CapabilityRegistry", "Implementation %q exposes no callable operations", def.Name)
		}

		r.definitions[def.Name] = def
		r.descriptors[def.Name] = descriptors
		r.names = append(r.names, def.Name)

		logging.Info("CapabilityRegistry", "Discovered implementation %s with %d operations", def.Name, len(descriptors))
	}
	sort.Strings(r.names)
}

func validateDefinition(def Definition) error {
	switch {
	case def.Name == "":
		return fmt.Errorf("definition has no name")
	case def.New == nil:
		return fmt.Errorf("definition has no constructor")
	case def.Prototype == nil:
		return fmt.Errorf("definition has no prototype")
	}
	return api.ValidateImplementationName(def.Name)
}

// GetImplementation returns the definition registered under name.
func (r *Registry) GetImplementation(name string) (Definition, error) {
	def, ok := r.definitions[name]
	if !ok {
		return Definition{}, api.NewImplementationNotFoundError(name)
	}
	return def, nil
}

// GetDescriptors returns a copy of the operation descriptors of an
// implementation, in a stable order.
func (r *Registry) GetDescriptors(name string) ([]api.CapabilityDescriptor, error) {
	descriptors, ok := r.descriptors[name]
	if !ok {
		return nil, api.NewImplementationNotFoundError(name)
	}
	out := make([]api.CapabilityDescriptor, len(descriptors))
	for i, d := range descriptors {
		out[i] = copyDescriptor(d)
	}
	return out, nil
}

// GetDescriptor returns a single operation descriptor.
func (r *Registry) GetDescriptor(implementation, operation string) (api.CapabilityDescriptor, error) {
	descriptors, ok := r.descriptors[implementation]
	if !ok {
		return api.CapabilityDescriptor{}, api.NewImplementationNotFoundError(implementation)
	}
	for _, d := range descriptors {
		if d.Name == operation {
			return copyDescriptor(d), nil
		}
	}
	return api.CapabilityDescriptor{}, api.NewOperationNotFoundError(implementation, operation)
}

// Names returns the sorted names of all discovered implementations.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// OperationNames returns the operation names of an implementation.
func (r *Registry) OperationNames(name string) ([]string, error) {
	descriptors, ok := r.descriptors[name]
	if !ok {
		return nil, api.NewImplementationNotFoundError(name)
	}
	out := make([]string, len(descriptors))
	for i, d := range descriptors {
		out[i] = d.Name
	}
	return out, nil
}

func copyDescriptor(d api.CapabilityDescriptor) api.CapabilityDescriptor {
	params := make([]api.Parameter, len(d.Parameters))
	copy(params, d.Parameters)
	d.Parameters = params
	return d
}
