// Package bindingtest holds a conformance suite run against every
// binding.Store implementation.
package bindingtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchboard/internal/api"
	"switchboard/internal/binding"
)

// RunStoreSuite exercises the binding.Store contract. newStore must return an
// empty store.
func RunStoreSuite(t *testing.T, newStore func(t *testing.T) binding.Store) {
	t.Run("missing binding is not found", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetBinding(context.Background(), "tenant-a", "scheduling")
		require.Error(t, err)
		assert.True(t, api.IsNotFound(err))
	})

	t.Run("save and get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		in := &api.Binding{
			TenantID:                 "tenant-a",
			Implementation:           "scheduling",
			PublicConfig:             map[string]interface{}{"calendar_id": "primary"},
			EncryptedSensitiveConfig: "c2VhbGVk",
			DisabledOperations:       []string{"list_events", "legacy_op"},
			Enabled:                  true,
		}
		require.NoError(t, s.SaveBinding(ctx, in))

		got, err := s.GetBinding(ctx, "tenant-a", "scheduling")
		require.NoError(t, err)
		assert.Equal(t, "tenant-a", got.TenantID)
		assert.Equal(t, "scheduling", got.Implementation)
		assert.Equal(t, "primary", got.PublicConfig["calendar_id"])
		assert.Equal(t, "c2VhbGVk", got.EncryptedSensitiveConfig)
		assert.Equal(t, []string{"list_events", "legacy_op"}, got.DisabledOperations)
		assert.True(t, got.Enabled)
		assert.False(t, got.CreatedAt.IsZero())
		assert.False(t, got.UpdatedAt.IsZero())
	})

	t.Run("update keeps creation time", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveBinding(ctx, &api.Binding{TenantID: "tenant-a", Implementation: "notifier", Enabled: true}))
		first, err := s.GetBinding(ctx, "tenant-a", "notifier")
		require.NoError(t, err)

		first.Enabled = false
		require.NoError(t, s.SaveBinding(ctx, first))

		second, err := s.GetBinding(ctx, "tenant-a", "notifier")
		require.NoError(t, err)
		assert.False(t, second.Enabled)
		assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	})

	t.Run("returned bindings are copies", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveBinding(ctx, &api.Binding{
			TenantID:           "tenant-a",
			Implementation:     "scheduling",
			DisabledOperations: []string{"create_event"},
			Enabled:            true,
		}))

		got, err := s.GetBinding(ctx, "tenant-a", "scheduling")
		require.NoError(t, err)
		got.DisabledOperations[0] = "mutated"

		again, err := s.GetBinding(ctx, "tenant-a", "scheduling")
		require.NoError(t, err)
		assert.Equal(t, []string{"create_event"}, again.DisabledOperations)
	})

	t.Run("list enabled implementations", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, b := range []*api.Binding{
			{TenantID: "tenant-a", Implementation: "scheduling", Enabled: true},
			{TenantID: "tenant-a", Implementation: "notifier", Enabled: true},
			{TenantID: "tenant-a", Implementation: "crm", Enabled: false},
			{TenantID: "tenant-b", Implementation: "billing", Enabled: true},
		} {
			require.NoError(t, s.SaveBinding(ctx, b))
		}

		names, err := s.ListEnabledImplementations(ctx, "tenant-a")
		require.NoError(t, err)
		assert.Equal(t, []string{"notifier", "scheduling"}, names)

		names, err = s.ListEnabledImplementations(ctx, "tenant-c")
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("list bindings", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveBinding(ctx, &api.Binding{TenantID: "tenant-b", Implementation: "scheduling", Enabled: true}))
		require.NoError(t, s.SaveBinding(ctx, &api.Binding{TenantID: "tenant-a", Implementation: "scheduling", Enabled: true}))
		require.NoError(t, s.SaveBinding(ctx, &api.Binding{TenantID: "tenant-a", Implementation: "notifier"}))

		all, err := s.ListBindings(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "tenant-a/notifier", all[0].Key())
		assert.Equal(t, "tenant-a/scheduling", all[1].Key())
		assert.Equal(t, "tenant-b/scheduling", all[2].Key())

		one, err := s.ListBindings(ctx, "tenant-b")
		require.NoError(t, err)
		require.Len(t, one, 1)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveBinding(ctx, &api.Binding{TenantID: "tenant-a", Implementation: "scheduling", Enabled: true}))
		require.NoError(t, s.DeleteBinding(ctx, "tenant-a", "scheduling"))

		_, err := s.GetBinding(ctx, "tenant-a", "scheduling")
		assert.True(t, api.IsNotFound(err))

		err = s.DeleteBinding(ctx, "tenant-a", "scheduling")
		assert.True(t, api.IsNotFound(err))
	})

	t.Run("save rejects incomplete binding", func(t *testing.T) {
		s := newStore(t)
		assert.Error(t, s.SaveBinding(context.Background(), &api.Binding{TenantID: "tenant-a"}))
		assert.Error(t, s.SaveBinding(context.Background(), nil))
	})

	t.Run("unsafe identifiers are rejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveBinding(ctx, &api.Binding{TenantID: "acme_eu", Implementation: "scheduling", Enabled: true}))
		require.NoError(t, s.SaveBinding(ctx, &api.Binding{TenantID: "acme", Implementation: "eu_scheduling", Enabled: true}))

		for _, tenant := range []string{"acme/eu", "acme:eu", "..", ""} {
			_, err := s.GetBinding(ctx, tenant, "scheduling")
			require.Error(t, err, tenant)
			assert.False(t, api.IsNotFound(err), tenant)

			assert.Error(t, s.SaveBinding(ctx, &api.Binding{TenantID: tenant, Implementation: "scheduling"}), tenant)
			assert.Error(t, s.DeleteBinding(ctx, tenant, "scheduling"), tenant)

			_, err = s.ListEnabledImplementations(ctx, tenant)
			assert.Error(t, err, tenant)
		}

		_, err := s.GetBinding(ctx, "acme", "eu/scheduling")
		assert.Error(t, err)
		assert.Error(t, s.SaveBinding(ctx, &api.Binding{TenantID: "acme", Implementation: "eu/scheduling"}))

		all, err := s.ListBindings(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "acme/eu_scheduling", all[0].Key())
		assert.Equal(t, "acme_eu/scheduling", all[1].Key())
	})
}
