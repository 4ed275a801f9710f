// Package redis provides a Redis binding store. The bindings of a tenant live
// in one hash keyed by implementation; a set tracks the known tenants.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"switchboard/internal/api"
	"switchboard/internal/binding"
	"switchboard/pkg/logging"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "switchboard:"

// Store is a Redis implementation of binding.Store.
type Store struct {
	rdb    *redis.Client
	prefix string
	owned  bool
}

var _ binding.Store = (*Store)(nil)

// New creates a store over an existing client.
func New(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

// Connect creates a client for addr, pings it and returns a store that
// closes the client on Close.
func Connect(ctx context.Context, addr, password string, db int, prefix string) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	s := New(rdb, prefix)
	s.owned = true
	return s, nil
}

func (s *Store) tenantKey(tenantID string) string { return s.prefix + "bindings:" + tenantID }
func (s *Store) tenantsKey() string              { return s.prefix + "tenants" }

func (s *Store) GetBinding(ctx context.Context, tenantID, implementation string) (*api.Binding, error) {
	if err := api.ValidateBindingKey(tenantID, implementation); err != nil {
		return nil, err
	}
	raw, err := s.rdb.HGet(ctx, s.tenantKey(tenantID), implementation).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, api.NewBindingNotFoundError(tenantID, implementation)
		}
		return nil, fmt.Errorf("redis get binding %q: %w", api.BindingKey(tenantID, implementation), err)
	}
	return decode(tenantID, implementation, raw)
}

// ListEnabledImplementations reports undecodable entries as enabled, so the
// implementation surfaces as unavailable when its binding is resolved
// instead of failing the whole tenant.
func (s *Store) ListEnabledImplementations(ctx context.Context, tenantID string) ([]string, error) {
	if err := api.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	entries, err := s.rdb.HGetAll(ctx, s.tenantKey(tenantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list bindings for %q: %w", tenantID, err)
	}

	names := []string{}
	for implementation, raw := range entries {
		b, err := decode(tenantID, implementation, raw)
		if err != nil {
			logging.Warn("Storage", "Binding %s is unreadable: %v", api.BindingKey(tenantID, implementation), err)
			names = append(names, implementation)
			continue
		}
		if b.Enabled {
			names = append(names, implementation)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) SaveBinding(ctx context.Context, b *api.Binding) error {
	if b == nil {
		return fmt.Errorf("binding requires tenant and implementation")
	}
	if err := api.ValidateBindingKey(b.TenantID, b.Implementation); err != nil {
		return err
	}

	stored := binding.Clone(b)
	now := time.Now().UTC()
	existing, err := s.GetBinding(ctx, b.TenantID, b.Implementation)
	switch {
	case err == nil && !existing.CreatedAt.IsZero():
		stored.CreatedAt = existing.CreatedAt
	case err != nil && !api.IsNotFound(err):
		return err
	case stored.CreatedAt.IsZero():
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode binding %q: %w", b.Key(), err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.tenantKey(b.TenantID), b.Implementation, data)
		pipe.SAdd(ctx, s.tenantsKey(), b.TenantID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save binding %q: %w", b.Key(), err)
	}
	return nil
}

func (s *Store) DeleteBinding(ctx context.Context, tenantID, implementation string) error {
	if err := api.ValidateBindingKey(tenantID, implementation); err != nil {
		return err
	}
	removed, err := s.rdb.HDel(ctx, s.tenantKey(tenantID), implementation).Result()
	if err != nil {
		return fmt.Errorf("redis delete binding %q: %w", api.BindingKey(tenantID, implementation), err)
	}
	if removed == 0 {
		return api.NewBindingNotFoundError(tenantID, implementation)
	}

	remaining, err := s.rdb.HLen(ctx, s.tenantKey(tenantID)).Result()
	if err == nil && remaining == 0 {
		s.rdb.SRem(ctx, s.tenantsKey(), tenantID)
	}
	return nil
}

func (s *Store) ListBindings(ctx context.Context, tenantID string) ([]*api.Binding, error) {
	var tenants []string
	if tenantID != "" {
		if err := api.ValidateTenantID(tenantID); err != nil {
			return nil, err
		}
		tenants = []string{tenantID}
	} else {
		members, err := s.rdb.SMembers(ctx, s.tenantsKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis list tenants: %w", err)
		}
		sort.Strings(members)
		tenants = members
	}

	out := []*api.Binding{}
	for _, tenant := range tenants {
		entries, err := s.rdb.HGetAll(ctx, s.tenantKey(tenant)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis list bindings for %q: %w", tenant, err)
		}
		for implementation, raw := range entries {
			b, err := decode(tenant, implementation, raw)
			if err != nil {
				logging.Warn("Storage", "Skipping unreadable binding %s: %v", api.BindingKey(tenant, implementation), err)
				continue
			}
			out = append(out, b)
		}
	}

	binding.SortBindings(out)
	return out, nil
}

// Close closes the client when the store owns it.
func (s *Store) Close(ctx context.Context) error {
	if !s.owned {
		return nil
	}
	return s.rdb.Close()
}

// decode relabels the record with the key it was stored under.
func decode(tenantID, implementation, raw string) (*api.Binding, error) {
	var b api.Binding
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("decode binding %q: %w", api.BindingKey(tenantID, implementation), err)
	}
	b.TenantID = tenantID
	b.Implementation = implementation
	return &b, nil
}
