package aggregator

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"switchboard/internal/adapter"
	"switchboard/internal/api"
	"switchboard/internal/bridge"
	"switchboard/pkg/logging"
)

// newServerTools converts bridge tools into MCP session tools.
func (s *Server) newServerTools(tools []*bridge.Tool) []server.ServerTool {
	out := make([]server.ServerTool, 0, len(tools))
	for _, tool := range tools {
		out = append(out, server.ServerTool{
			Tool: mcp.Tool{
				Name:        tool.Name(),
				Description: tool.Description(),
				InputSchema: convertToMCPSchema(tool.InputSchema()),
			},
			Handler: s.createToolHandler(tool),
		})
	}
	return out
}

// createToolHandler creates the MCP handler of one bridge tool. The tool
// contains every failure in its result, so the handler never returns an
// error to the protocol layer.
func (s *Server) createToolHandler(tool *bridge.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := make(map[string]interface{})
		if req.Params.Arguments != nil {
			if argsMap, ok := req.Params.Arguments.(map[string]interface{}); ok {
				args = argsMap
			} else {
				logging.Debug("Aggregator", "Ignoring non-object arguments for %s", tool.Name())
			}
		}

		if session := server.ClientSessionFromContext(ctx); session != nil {
			s.sessions.Get(session.SessionID())
		}

		return convertToMCPResult(tool.Invoke(ctx, args)), nil
	}
}

// convertToMCPSchema converts an adapter input schema to the MCP input schema
// format. Properties are copied so that MCP clients cannot observe later
// changes.
func convertToMCPSchema(schema adapter.InputSchema) mcp.ToolInputSchema {
	properties := make(map[string]interface{}, len(schema.Properties))
	for name, prop := range schema.Properties {
		if m, ok := prop.(map[string]interface{}); ok {
			copied := make(map[string]interface{}, len(m))
			for k, v := range m {
				copied[k] = v
			}
			properties[name] = copied
			continue
		}
		properties[name] = prop
	}

	required := make([]string, len(schema.Required))
	copy(required, schema.Required)

	schemaType := schema.Type
	if schemaType == "" {
		schemaType = "object"
	}

	return mcp.ToolInputSchema{
		Type:       schemaType,
		Properties: properties,
		Required:   required,
	}
}

// convertToMCPResult converts an invocation result to MCP format. String
// content becomes text content; anything else is marshaled to JSON.
func convertToMCPResult(result *api.CallToolResult) *mcp.CallToolResult {
	if result == nil {
		return mcp.NewToolResultError("Error: empty result")
	}

	mcpContent := make([]mcp.Content, len(result.Content))
	for i, content := range result.Content {
		if text, ok := content.(string); ok {
			mcpContent[i] = mcp.NewTextContent(text)
			continue
		}
		jsonBytes, err := json.Marshal(content)
		if err != nil {
			mcpContent[i] = mcp.NewTextContent("Error: unencodable content")
			continue
		}
		mcpContent[i] = mcp.NewTextContent(string(jsonBytes))
	}

	return &mcp.CallToolResult{
		Content: mcpContent,
		IsError: result.IsError,
	}
}
