package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchboard/internal/api"
	"switchboard/internal/binding"
	"switchboard/internal/binding/bindingtest"
)

func TestStore(t *testing.T) {
	bindingtest.RunStoreSuite(t, func(t *testing.T) binding.Store {
		return New(t.TempDir())
	})
}

func TestStore_FileLayout(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	require.NoError(t, s.SaveBinding(context.Background(), &api.Binding{
		TenantID:       "tenant-a",
		Implementation: "scheduling",
		Enabled:        true,
	}))

	path := filepath.Join(dir, "tenant-a", "scheduling.yaml")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "implementation: scheduling")
}

func TestStore_HandWrittenFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tenant-a"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tenant-a", "scheduling.yaml"), []byte(`
enabled: true
publicConfig:
  calendar_id: primary
disabledOperations:
  - legacy_op
`), 0o600))

	s := New(dir)
	b, err := s.GetBinding(context.Background(), "tenant-a", "scheduling")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", b.TenantID)
	assert.Equal(t, "scheduling", b.Implementation)
	assert.Equal(t, "primary", b.PublicConfig["calendar_id"])
	assert.Equal(t, []string{"legacy_op"}, b.DisabledOperations)
}

func TestStore_UnreadableFileIsSkippedInListing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tenant-a"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tenant-a", "broken.yaml"), []byte("enabled: [unterminated"), 0o600))

	s := New(dir)
	require.NoError(t, s.SaveBinding(context.Background(), &api.Binding{TenantID: "tenant-a", Implementation: "scheduling", Enabled: true}))

	names, err := s.ListEnabledImplementations(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"scheduling"}, names)
}

func TestStore_SeparatorsDoNotAliasTenants(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	ctx := context.Background()
	require.NoError(t, s.SaveBinding(ctx, &api.Binding{TenantID: "acme_eu", Implementation: "scheduling", Enabled: true}))

	for _, tenant := range []string{"acme/eu", "acme:eu", "acme\\eu"} {
		_, err := s.GetBinding(ctx, tenant, "scheduling")
		assert.Error(t, err, tenant)
		assert.False(t, api.IsNotFound(err), tenant)
		assert.Error(t, s.SaveBinding(ctx, &api.Binding{TenantID: tenant, Implementation: "scheduling"}), tenant)
	}

	_, err := os.Stat(filepath.Join(dir, "acme"))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_FileRecordedForAnotherKeyIsIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tenant-a"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tenant-a", "scheduling.yaml"), []byte(`
tenantId: Tenant-A
implementation: scheduling
enabled: true
`), 0o600))

	s := New(dir)
	_, err := s.GetBinding(context.Background(), "tenant-a", "scheduling")
	assert.True(t, api.IsNotFound(err))
}
