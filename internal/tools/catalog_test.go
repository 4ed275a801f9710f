package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchboard/internal/capability"
)

func TestCatalog_DiscoversEveryOperation(t *testing.T) {
	registry := capability.NewRegistry()
	registry.Discover(Catalog())

	assert.Equal(t, []string{"notifier", "scheduling"}, registry.Names())

	for name, want := range map[string][]string{
		"notifier":   {"send_notification"},
		"scheduling": {"cancel_event", "create_event", "list_events"},
	} {
		ops, err := registry.OperationNames(name)
		require.NoError(t, err)
		assert.ElementsMatch(t, want, ops, name)
	}
}
