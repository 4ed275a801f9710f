package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchboard/internal/api"
	"switchboard/internal/binding/filestore"
	"switchboard/internal/sealed"
)

func newTestConfigDir(t *testing.T) string {
	t.Helper()
	t.Setenv("SWITCHBOARD_IDENTITY", "")
	dir := t.TempDir()
	identity, err := sealed.GenerateIdentity()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "identity.txt"), []byte(sealed.FormatIdentity(identity, time.Now())), 0o600))
	return dir
}

func storedBinding(t *testing.T, dir, tenantID, implementation string) *api.Binding {
	t.Helper()
	b, err := filestore.New(filepath.Join(dir, "bindings")).GetBinding(context.Background(), tenantID, implementation)
	require.NoError(t, err)
	return b
}

func openSensitive(t *testing.T, dir string, b *api.Binding) map[string]interface{} {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, "identity.txt"))
	require.NoError(t, err)
	defer f.Close()
	identity, err := sealed.ParseIdentity(f)
	require.NoError(t, err)
	sensitive, err := sealed.New(identity).Decrypt(b.EncryptedSensitiveConfig)
	require.NoError(t, err)
	return sensitive
}

func TestBindingSet_EncryptsSensitiveConfig(t *testing.T) {
	dir := newTestConfigDir(t)

	out, err := execute(t, "binding", "set", "acme", "notifier", "--config-path", dir,
		"--public", "webhook_url=https://hooks.example.com/acme",
		"--sensitive", "token=s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, "Binding acme/notifier saved (enabled: true)")

	b := storedBinding(t, dir, "acme", "notifier")
	assert.True(t, b.Enabled)
	assert.Equal(t, map[string]interface{}{"webhook_url": "https://hooks.example.com/acme"}, b.PublicConfig)
	assert.NotContains(t, b.EncryptedSensitiveConfig, "s3cret")
	assert.Equal(t, map[string]interface{}{"token": "s3cret"}, openSensitive(t, dir, b))

	raw, err := os.ReadDir(filepath.Join(dir, "bindings"))
	require.NoError(t, err)
	require.NotEmpty(t, raw)
}

func TestBindingSet_FilesAndUpdates(t *testing.T) {
	dir := newTestConfigDir(t)
	credentials := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(credentials, []byte("refresh_token: r-1\nclient_id: c-1\nclient_secret: cs-1\n"), 0o600))

	_, err := execute(t, "binding", "set", "acme", "scheduling", "--config-path", dir,
		"--public", "calendar_id=team@example.com",
		"--sensitive-file", credentials,
		"--sensitive", "client_id=override",
		"--disable-operation", "cancel_event")
	require.NoError(t, err)

	b := storedBinding(t, dir, "acme", "scheduling")
	assert.Equal(t, []string{"cancel_event"}, b.DisabledOperations)
	assert.Equal(t, map[string]interface{}{"refresh_token": "r-1", "client_id": "override", "client_secret": "cs-1"}, openSensitive(t, dir, b))

	// An update without configuration flags keeps what is stored.
	_, err = execute(t, "binding", "set", "acme", "scheduling", "--config-path", dir, "--disabled")
	require.NoError(t, err)

	updated := storedBinding(t, dir, "acme", "scheduling")
	assert.False(t, updated.Enabled)
	assert.Equal(t, b.PublicConfig, updated.PublicConfig)
	assert.Equal(t, b.EncryptedSensitiveConfig, updated.EncryptedSensitiveConfig)
	assert.Equal(t, []string{"cancel_event"}, updated.DisabledOperations)
}

func TestBindingSet_Rejections(t *testing.T) {
	dir := newTestConfigDir(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "unknown implementation",
			args:    []string{"acme", "crm"},
			wantErr: "implementation crm not found",
		},
		{
			name:    "unknown operation",
			args:    []string{"acme", "scheduling", "--disable-operation", "delete_calendar"},
			wantErr: `scheduling has no operation "delete_calendar"`,
		},
		{
			name:    "configuration the implementation refuses",
			args:    []string{"acme", "notifier", "--sensitive", "token=t"},
			wantErr: "configuration rejected by notifier: webhook_url is not configured",
		},
		{
			name:    "malformed pair",
			args:    []string{"acme", "notifier", "--public", "webhook_url"},
			wantErr: `expected key=value, got "webhook_url"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"binding", "set", "--config-path", dir}, tt.args...)
			_, err := execute(t, args...)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := os.Stat(filepath.Join(dir, "bindings"))
	assert.True(t, os.IsNotExist(err), "rejected bindings must not be stored")
}

func TestBindingGet_RedactsSensitiveValues(t *testing.T) {
	dir := newTestConfigDir(t)
	_, err := execute(t, "binding", "set", "acme", "notifier", "--config-path", dir,
		"--public", "webhook_url=https://hooks.example.com/acme",
		"--sensitive", "token=s3cret")
	require.NoError(t, err)

	out, err := execute(t, "binding", "get", "acme", "notifier", "--config-path", dir, "-o", "json")
	require.NoError(t, err)
	assert.NotContains(t, out, "s3cret")

	var view map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, []interface{}{"token"}, view["sensitiveKeys"])
	assert.Equal(t, "https://hooks.example.com/acme", view["publicConfig"].(map[string]interface{})["webhook_url"])

	_, err = execute(t, "binding", "get", "acme", "scheduling", "--config-path", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCodeNotFound, getExitCode(err))
}

func TestBindingToggleAndDelete(t *testing.T) {
	dir := newTestConfigDir(t)
	_, err := execute(t, "binding", "set", "acme", "scheduling", "--config-path", dir, "--sensitive", "access_token=t")
	require.NoError(t, err)

	_, err = execute(t, "binding", "disable", "acme", "scheduling", "--config-path", dir, "--operation", "cancel_event,create_event")
	require.NoError(t, err)
	assert.Equal(t, []string{"cancel_event", "create_event"}, storedBinding(t, dir, "acme", "scheduling").DisabledOperations)

	_, err = execute(t, "binding", "enable", "acme", "scheduling", "--config-path", dir, "--operation", "create_event")
	require.NoError(t, err)
	assert.Equal(t, []string{"cancel_event"}, storedBinding(t, dir, "acme", "scheduling").DisabledOperations)

	_, err = execute(t, "binding", "disable", "acme", "scheduling", "--config-path", dir, "--operation", "nope")
	assert.ErrorContains(t, err, `has no operation "nope"`)

	_, err = execute(t, "binding", "disable", "acme", "scheduling", "--config-path", dir)
	require.NoError(t, err)
	assert.False(t, storedBinding(t, dir, "acme", "scheduling").Enabled)

	out, err := execute(t, "binding", "list", "--config-path", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "scheduling")
	assert.Contains(t, out, "Total: 1 bindings")

	_, err = execute(t, "binding", "delete", "acme", "scheduling", "--config-path", dir)
	require.NoError(t, err)

	_, err = execute(t, "binding", "delete", "acme", "scheduling", "--config-path", dir)
	assert.True(t, api.IsNotFound(err))
}

func TestToggleOperations(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, toggleOperations([]string{"a"}, []string{"b", "a"}, false))
	assert.Equal(t, []string{"b"}, toggleOperations([]string{"a", "b"}, []string{"a"}, true))
	assert.Nil(t, toggleOperations(nil, []string{"a"}, true))
}

func TestReadConfig(t *testing.T) {
	got, err := readConfig("", nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	file := filepath.Join(t.TempDir(), "public.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"headers": {"X-Env": "prod"}, "webhook_url": "https://a"}`), 0o600))

	got, err = readConfig(file, []string{"webhook_url=https://b=c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"headers":     map[string]interface{}{"X-Env": "prod"},
		"webhook_url": "https://b=c",
	}, got)
}
