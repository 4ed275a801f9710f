// Package filestore persists bindings as YAML files below a directory:
//
//	<dir>/<tenant>/<implementation>.yaml
//
// Tenant IDs and implementation names are used as path segments unchanged,
// so only identifiers accepted by api.ValidateBindingKey are stored or looked
// up.
package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"switchboard/internal/api"
	"switchboard/internal/binding"
	"switchboard/pkg/logging"
)

const fileExtension = ".yaml"

// Store is a directory-backed binding store.
type Store struct {
	mu  sync.RWMutex
	dir string
}

var _ binding.Store = (*Store)(nil)

// New returns a store rooted at dir. The directory is created on first save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) GetBinding(ctx context.Context, tenantID, implementation string) (*api.Binding, error) {
	if err := api.ValidateBindingKey(tenantID, implementation); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(tenantID, implementation)
}

func (s *Store) load(tenantID, implementation string) (*api.Binding, error) {
	path := s.path(tenantID, implementation)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, api.NewBindingNotFoundError(tenantID, implementation)
		}
		return nil, fmt.Errorf("failed to read binding file %s: %w", path, err)
	}

	var b api.Binding
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse binding file %s: %w", path, err)
	}
	// A file recorded for another key, e.g. on a case-insensitive filesystem,
	// does not belong to this one.
	if (b.TenantID != "" && b.TenantID != tenantID) || (b.Implementation != "" && b.Implementation != implementation) {
		logging.Warn("Storage", "Binding file %s records %s, not %s", path, b.Key(), api.BindingKey(tenantID, implementation))
		return nil, api.NewBindingNotFoundError(tenantID, implementation)
	}
	b.TenantID = tenantID
	b.Implementation = implementation
	return &b, nil
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
	now := time.Now().UTC()
	if existing, err := s.load(b.TenantID, b.Implementation); err == nil && !existing.CreatedAt.IsZero() {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	data, err := yaml.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode binding %s: %w", b.Key(), err)
	}

	tenantDir := filepath.Join(s.dir, b.TenantID)
	if err := os.MkdirAll(tenantDir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", tenantDir, err)
	}

	path := s.path(b.TenantID, b.Implementation)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace file %s: %w", path, err)
	}

	logging.Info("Storage", "Saved binding %s to %s", b.Key(), path)
	return nil
}

func (s *Store) DeleteBinding(ctx context.Context, tenantID, implementation string) error {
	if err := api.ValidateBindingKey(tenantID, implementation); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(tenantID, implementation)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return api.NewBindingNotFoundError(tenantID, implementation)
		}
		return fmt.Errorf("failed to delete file %s: %w", path, err)
	}

	logging.Info("Storage", "Deleted binding %s from %s", api.BindingKey(tenantID, implementation), path)
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

	var tenants []string
	if tenantID != "" {
		tenants = []string{tenantID}
	} else {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			if os.IsNotExist(err) {
				return []*api.Binding{}, nil
			}
			return nil, fmt.Errorf("failed to read directory %s: %w", s.dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if err := api.ValidateTenantID(e.Name()); err != nil {
				logging.Warn("Storage", "Skipping directory %s: %v", e.Name(), err)
				continue
			}
			tenants = append(tenants, e.Name())
		}
	}

	out := []*api.Binding{}
	for _, tenant := range tenants {
		dir := filepath.Join(s.dir, tenant)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), fileExtension) {
				continue
			}
			implementation := strings.TrimSuffix(e.Name(), fileExtension)
			if err := api.ValidateImplementationName(implementation); err != nil {
				logging.Warn("Storage", "Skipping file %s of tenant %s: %v", e.Name(), tenant, err)
				continue
			}
			b, err := s.load(tenant, implementation)
			if err != nil {
				logging.Warn("Storage", "Skipping unreadable binding %s/%s: %v", tenant, implementation, err)
				continue
			}
			out = append(out, b)
		}
	}

	binding.SortBindings(out)
	return out, nil
}

func (s *Store) Close(ctx context.Context) error { return nil }

func (s *Store) path(tenantID, implementation string) string {
	return filepath.Join(s.dir, tenantID, implementation+fileExtension)
}
