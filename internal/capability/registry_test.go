package capability_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"switchboard/internal/api"
	"switchboard/internal/capability"
	"switchboard/internal/capability/capabilitytest"
	"switchboard/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// broken mixes valid and malformed operations.
type broken struct{}

type okArgs struct {
	Query string `json:"query"`
}

type chanArgs struct {
	Stream chan int `json:"stream"`
}

type badDefaultArgs struct {
	Limit int `json:"limit" default:"ten"`
}

type nullOnScalarArgs struct {
	Limit int `json:"limit" default:"null"`
}

type emptyDefaultArgs struct {
	Label string `json:"label" default:""`
}

func (b *broken) OperationDocs() map[string]string {
	return map[string]string{
		"search":          "Search things.",
		"stream":          "Unsupported channel parameter.",
		"bad_default":     "Default does not decode.",
		"null_on_scalar":  "Null default on an int.",
		"no_description":  "   ",
		"wrong_signature": "Missing execution context.",
		"non_struct_args": "Arguments are not a struct.",
		"label":           "Empty string default.",
		"ghost_operation": "Documented without a method.",
	}
}

func (b *broken) Search(ctx context.Context, ec *api.ExecutionContext, args okArgs) (interface{}, error) {
	return nil, nil
}

func (b *broken) Stream(ctx context.Context, ec *api.ExecutionContext, args chanArgs) (interface{}, error) {
	return nil, nil
}

func (b *broken) BadDefault(ctx context.Context, ec *api.ExecutionContext, args badDefaultArgs) (interface{}, error) {
	return nil, nil
}

func (b *broken) NullOnScalar(ctx context.Context, ec *api.ExecutionContext, args nullOnScalarArgs) (interface{}, error) {
	return nil, nil
}

func (b *broken) NoDescription(ctx context.Context, ec *api.ExecutionContext, args okArgs) (interface{}, error) {
	return nil, nil
}

func (b *broken) WrongSignature(ctx context.Context, args okArgs) (interface{}, error) {
	return nil, nil
}

func (b *broken) NonStructArgs(ctx context.Context, ec *api.ExecutionContext, query string) (interface{}, error) {
	return nil, nil
}

func (b *broken) Label(ctx context.Context, ec *api.ExecutionContext, args emptyDefaultArgs) (interface{}, error) {
	return nil, nil
}

func brokenDefinition() capability.Definition {
	return capability.Definition{
		Name:      "broken",
		Prototype: &broken{},
		New: func(cfg api.ImplementationConfig) (capability.Implementation, error) {
			return &broken{}, nil
		},
	}
}

// windowed takes timestamps.
type windowed struct{}

type windowArgs struct {
	From  time.Time   `json:"from" desc:"Start of the window"`
	Until *time.Time  `json:"until" default:"null"`
	Marks []time.Time `json:"marks" default:"null"`
}

func (w *windowed) OperationDocs() map[string]string {
	return map[string]string{"find_slots": "Find free slots in a window."}
}

func (w *windowed) FindSlots(ctx context.Context, ec *api.ExecutionContext, args windowArgs) (interface{}, error) {
	return nil, nil
}

func TestRegistry_TimestampsAreDateTimeStrings(t *testing.T) {
	registry := capabilitytest.NewRegistry(capability.Definition{
		Name:      "windowed",
		Prototype: &windowed{},
		New: func(cfg api.ImplementationConfig) (capability.Implementation, error) {
			return &windowed{}, nil
		},
	})

	d, err := registry.GetDescriptor("windowed", "find_slots")
	require.NoError(t, err)
	require.Len(t, d.Parameters, 3)

	assert.Equal(t, api.ParamType{Kind: api.KindString, Format: "date-time"}, d.Parameters[0].Type)
	assert.Equal(t, map[string]interface{}{"type": "string", "format": "date-time"}, d.Parameters[0].Type.JSONSchema())
	assert.Equal(t, map[string]interface{}{"type": []interface{}{"string", "null"}, "format": "date-time"}, d.Parameters[1].Type.JSONSchema())
	assert.Equal(t, map[string]interface{}{"type": "string", "format": "date-time"}, d.Parameters[2].Type.JSONSchema()["items"])
}

func TestRegistry_DiscoverScheduling(t *testing.T) {
	registry := capabilitytest.NewRegistry(capabilitytest.SchedulingDefinition(nil))

	assert.Equal(t, []string{"scheduling"}, registry.Names())

	descriptors, err := registry.GetDescriptors("scheduling")
	require.NoError(t, err)

	names := make([]string, len(descriptors))
	for i, d := range descriptors {
		names[i] = d.Name
	}
	assert.Equal(t, []string{"bulk_records", "create_event", "list_events"}, names, "reschedule is not marked and must not be exposed")

	listEvents, err := registry.GetDescriptor("scheduling", "list_events")
	require.NoError(t, err)
	assert.Equal(t, "List upcoming calendar events.", listEvents.Description)
	assert.Equal(t, "ListEvents", listEvents.Method)
	assert.Equal(t, []api.Parameter{
		{Name: "time_min", Type: api.ParamType{Kind: api.KindString}, Required: true, Description: "RFC3339 lower bound for event start"},
		{Name: "max_results", Type: api.ParamType{Kind: api.KindInteger}, Required: false, Default: 10, Description: "Maximum number of events"},
	}, listEvents.Parameters)

	createEvent, err := registry.GetDescriptor("scheduling", "create_event")
	require.NoError(t, err)
	require.Len(t, createEvent.Parameters, 3)

	attendees := createEvent.Parameters[1]
	assert.Equal(t, "attendees", attendees.Name)
	assert.False(t, attendees.Required)
	assert.Nil(t, attendees.Default)
	assert.Equal(t, "nullable(array<string>)", attendees.Type.String())

	note := createEvent.Parameters[2]
	assert.False(t, note.Required)
	assert.Equal(t, "none", note.Default)
	assert.Equal(t, "nullable(string)", note.Type.String())
}

func TestRegistry_MalformedOperationsAreSkipped(t *testing.T) {
	var buf bytes.Buffer
	logging.InitForCLI(logging.LevelDebug, &buf)

	registry := capabilitytest.NewRegistry(brokenDefinition(), capabilitytest.SchedulingDefinition(nil))

	names, err := registry.OperationNames("broken")
	require.NoError(t, err)
	assert.Equal(t, []string{"label", "search"}, names)

	label, err := registry.GetDescriptor("broken", "label")
	require.NoError(t, err)
	assert.False(t, label.Parameters[0].Required, "an empty string default is still a default")
	assert.Equal(t, "", label.Parameters[0].Default)

	// The healthy implementation is unaffected.
	_, err = registry.GetDescriptors("scheduling")
	assert.NoError(t, err)

	logs := buf.String()
	for _, fragment := range []string{
		"broken.stream",
		"broken.bad_default",
		"broken.null_on_scalar",
		"broken.no_description",
		"broken.wrong_signature",
		"broken.non_struct_args",
		"broken.ghost_operation",
	} {
		assert.Contains(t, logs, fragment)
	}
}

func TestRegistry_InvalidDefinitions(t *testing.T) {
	registry := capabilitytest.NewRegistry(
		capability.Definition{Name: "", Prototype: &broken{}},
		capability.Definition{Name: "no-constructor", Prototype: &broken{}},
		capabilitytest.NamedDefinition("crm/eu", nil),
		capabilitytest.NamedDefinition("crm:eu", nil),
		capabilitytest.SchedulingDefinition(nil),
		capabilitytest.SchedulingDefinition(nil),
	)

	assert.Equal(t, []string{"scheduling"}, registry.Names())
}

func TestRegistry_NotFound(t *testing.T) {
	registry := capabilitytest.NewRegistry(capabilitytest.SchedulingDefinition(nil))

	_, err := registry.GetImplementation("crm")
	assert.True(t, api.IsNotFound(err))

	_, err = registry.GetDescriptors("crm")
	assert.True(t, api.IsNotFound(err))

	_, err = registry.GetDescriptor("scheduling", "delete_everything")
	assert.True(t, api.IsNotFound(err))
}

func TestRegistry_DiscoverOnlyOnce(t *testing.T) {
	registry := capability.NewRegistry()
	registry.Discover([]capability.Definition{capabilitytest.SchedulingDefinition(nil)})
	registry.Discover([]capability.Definition{capabilitytest.NamedDefinition("other", nil)})

	assert.Equal(t, []string{"scheduling"}, registry.Names())
}

func TestRegistry_DescriptorsAreCopies(t *testing.T) {
	registry := capabilitytest.NewRegistry(capabilitytest.SchedulingDefinition(nil))

	first, err := registry.GetDescriptors("scheduling")
	require.NoError(t, err)
	first[0].Parameters[0].Name = "mutated"
	first[0].Name = "mutated"

	second, err := registry.GetDescriptors("scheduling")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", second[0].Name)
	assert.NotEqual(t, "mutated", second[0].Parameters[0].Name)
}

func TestOperationName(t *testing.T) {
	tests := map[string]string{
		"ListEvents":      "list_events",
		"CreateEvent":     "create_event",
		"SendHTTPRequest": "send_http_request",
		"ID":              "id",
		"Get2FACode":      "get2_fa_code",
		"already_snake":   "already_snake",
	}
	for in, expected := range tests {
		assert.Equal(t, expected, capability.OperationName(in), in)
	}
}
