package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0600))
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	want := GetDefaultConfig()
	want.Storage.Path = filepath.Join(dir, DefaultBindingsDir)
	want.Encryption.IdentityFile = filepath.Join(dir, DefaultIdentityFile)
	assert.Equal(t, want, cfg)
}

func TestLoadConfig_Override(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
server:
  transport: stdio
  stdioTenant: acme
  sessionTimeout: 5m
storage:
  backend: redis
  redis:
    addr: redis.internal:6379
    db: 2
encryption:
  identityFile: /etc/switchboard/identity.txt
limits:
  maxRecords: 10
  invocationTimeout: 2s
logging:
  format: json
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, MCPTransportStdio, cfg.Server.Transport)
	assert.Equal(t, "acme", cfg.Server.StdioTenant)
	assert.Equal(t, 5*time.Minute, cfg.Server.SessionTimeout)
	assert.Equal(t, 8090, cfg.Server.Port, "unset fields keep their defaults")

	assert.Equal(t, StorageBackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 2, cfg.Storage.Redis.DB)
	assert.Equal(t, "switchboard:", cfg.Storage.Redis.Prefix)

	assert.Equal(t, "/etc/switchboard/identity.txt", cfg.Encryption.IdentityFile)
	assert.Equal(t, 10, cfg.Limits.MaxRecords)
	assert.Equal(t, 64*1024, cfg.Limits.MaxResponseBytes)
	assert.Equal(t, 2*time.Second, cfg.Limits.InvocationTimeout)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfig_Malformed(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "server: [unclosed")

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "error loading config")
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
server:
  transport: sse
logging:
  level: verbose
`)

	_, err := LoadConfig(dir)
	require.Error(t, err)

	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Len(t, errs, 2)
	assert.Equal(t, "logging.level", errs[0].Field)
	assert.Equal(t, "server.transport", errs[1].Field)
}

func TestGetDefaultConfigPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	path, err := GetDefaultConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/tester", ".config", "switchboard"), path)
}
