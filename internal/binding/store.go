package binding

import (
	"context"
	"sort"

	"switchboard/internal/api"
)

// Store persists tenant capability bindings.
//
// GetBinding returns an *api.NotFoundError when the tenant never attached the
// implementation. Returned bindings are copies; callers may modify them.
type Store interface {
	GetBinding(ctx context.Context, tenantID, implementation string) (*api.Binding, error)
	ListEnabledImplementations(ctx context.Context, tenantID string) ([]string, error)

	SaveBinding(ctx context.Context, b *api.Binding) error
	DeleteBinding(ctx context.Context, tenantID, implementation string) error
	// ListBindings returns the bindings of one tenant, or of every tenant when
	// tenantID is empty, ordered by tenant and implementation.
	ListBindings(ctx context.Context, tenantID string) ([]*api.Binding, error)

	Close(ctx context.Context) error
}

// Clone returns a deep copy of b.
func Clone(b *api.Binding) *api.Binding {
	if b == nil {
		return nil
	}
	out := *b
	if b.PublicConfig != nil {
		out.PublicConfig = cloneMap(b.PublicConfig)
	}
	if b.DisabledOperations != nil {
		out.DisabledOperations = append([]string(nil), b.DisabledOperations...)
	}
	return &out
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		switch typed := v.(type) {
		case map[string]interface{}:
			out[k] = cloneMap(typed)
		case []interface{}:
			out[k] = append([]interface{}(nil), typed...)
		default:
			out[k] = v
		}
	}
	return out
}

// SortBindings orders bindings by tenant, then implementation.
func SortBindings(bindings []*api.Binding) {
	sort.Slice(bindings, func(i, j int) bool {
		if bindings[i].TenantID != bindings[j].TenantID {
			return bindings[i].TenantID < bindings[j].TenantID
		}
		return bindings[i].Implementation < bindings[j].Implementation
	})
}

// EnabledImplementations filters bindings down to the sorted names of the
// enabled ones.
func EnabledImplementations(bindings []*api.Binding) []string {
	names := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if b.Enabled {
			names = append(names, b.Implementation)
		}
	}
	sort.Strings(names)
	return names
}
