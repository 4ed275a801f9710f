package aggregator

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchboard/internal/adapter"
	"switchboard/internal/api"
)

func TestConvertToMCPSchema(t *testing.T) {
	in := adapter.InputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"title":     map[string]interface{}{"type": "string", "description": "Event title"},
			"attendees": map[string]interface{}{"type": []interface{}{"array", "null"}, "default": nil},
		},
		Required: []string{"title"},
	}

	out := convertToMCPSchema(in)
	assert.Equal(t, "object", out.Type)
	assert.Equal(t, []string{"title"}, out.Required)
	assert.Equal(t, in.Properties, out.Properties)

	attendees := out.Properties["attendees"].(map[string]interface{})
	_, hasDefault := attendees["default"]
	assert.True(t, hasDefault, "a null default must stay visible to clients")

	out.Properties["title"].(map[string]interface{})["description"] = "changed"
	out.Required[0] = "changed"
	assert.Equal(t, "Event title", in.Properties["title"].(map[string]interface{})["description"])
	assert.Equal(t, "title", in.Required[0])
}

func TestConvertToMCPSchema_NoParameters(t *testing.T) {
	out := convertToMCPSchema(adapter.InputSchema{})
	assert.Equal(t, "object", out.Type)
	assert.NotNil(t, out.Properties)
	assert.NotNil(t, out.Required)
}

func TestConvertToMCPResult(t *testing.T) {
	tests := []struct {
		name      string
		in        *api.CallToolResult
		wantTexts []string
		wantError bool
	}{
		{
			name:      "text",
			in:        &api.CallToolResult{Content: []interface{}{`{"ok":true}`}},
			wantTexts: []string{`{"ok":true}`},
		},
		{
			name:      "structured content is marshaled",
			in:        &api.CallToolResult{Content: []interface{}{map[string]interface{}{"n": 1}}},
			wantTexts: []string{`{"n":1}`},
		},
		{
			name:      "error flag is carried",
			in:        &api.CallToolResult{Content: []interface{}{"Error: boom"}, IsError: true},
			wantTexts: []string{"Error: boom"},
			wantError: true,
		},
		{
			name:      "nil result",
			in:        nil,
			wantTexts: []string{"Error: empty result"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := convertToMCPResult(tt.in)
			assert.Equal(t, tt.wantError, out.IsError)
			require.Len(t, out.Content, len(tt.wantTexts))
			for i, want := range tt.wantTexts {
				text, ok := out.Content[i].(mcp.TextContent)
				require.True(t, ok)
				assert.Equal(t, want, text.Text)
			}
		})
	}
}
