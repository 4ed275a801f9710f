// Package memory provides an in-process binding store for tests and
// single-node development.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"switchboard/internal/api"
	"switchboard/internal/binding"
)

// Store keeps bindings in a map guarded by a RWMutex.
type Store struct {
	mu       sync.RWMutex
	bindings map[string]*api.Binding

	// now is replaceable in tests.
	now func() time.Time
}

var _ binding.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		bindings: make(map[string]*api.Binding),
		now:      time.Now,
	}
}

func (s *Store) GetBinding(ctx context.Context, tenantID, implementation string) (*api.Binding, error) {
	if err := api.ValidateBindingKey(tenantID, implementation); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bindings[api.BindingKey(tenantID, implementation)]
	if !ok {
		return nil, api.NewBindingNotFoundError(tenantID, implementation)
	}
	return binding.Clone(b), nil
}

func (s *Store) ListEnabledImplementations(ctx context.Context, tenantID string) ([]string, error) {
	if err := api.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	bindings, err := s.ListBindings(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return binding.EnabledImplementations(bindings), nil
}

func (s *Store) SaveBinding(ctx context.Context, b *api.Binding) error {
	if b == nil {
		return fmt.Errorf("binding requires tenant and implementation")
	}
	if err := api.ValidateBindingKey(b.TenantID, b.Implementation); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := binding.Clone(b)
	now := s.now().UTC()
	if existing, ok := s.bindings[b.Key()]; ok && !existing.CreatedAt.IsZero() {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.bindings[b.Key()] = stored
	return nil
}

func (s *Store) DeleteBinding(ctx context.Context, tenantID, implementation string) error {
	if err := api.ValidateBindingKey(tenantID, implementation); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := api.BindingKey(tenantID, implementation)
	if _, ok := s.bindings[key]; !ok {
		return api.NewBindingNotFoundError(tenantID, implementation)
	}
	delete(s.bindings, key)
	return nil
}

func (s *Store) ListBindings(ctx context.Context, tenantID string) ([]*api.Binding, error) {
	if tenantID != "" {
		if err := api.ValidateTenantID(tenantID); err != nil {
			return nil, err
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*api.Binding, 0, len(s.bindings))
	for _, b := range s.bindings {
		if tenantID == "" || b.TenantID == tenantID {
			out = append(out, binding.Clone(b))
		}
	}
	binding.SortBindings(out)
	return out, nil
}

func (s *Store) Close(ctx context.Context) error { return nil }
