package aggregator

import (
	"context"
	"time"

	"switchboard/internal/bridge"
)

// Transport names accepted by AggregatorConfig.Transport.
const (
	TransportStreamableHTTP = "streamable-http"
	TransportStdio          = "stdio"
)

// DefaultTenantHeader carries the tenant ID of streamable-http clients.
const DefaultTenantHeader = "X-Tenant-ID"

// AggregatorConfig holds configuration for the MCP server
type AggregatorConfig struct {
	Name           string        // Server name announced to clients
	Version        string        // Server version announced to clients
	Host           string        // Host to bind to (default: localhost)
	Port           int           // Port to listen on for streamable-http
	Transport      string        // "streamable-http" or "stdio"
	EndpointPath   string        // HTTP path of the MCP endpoint (default: /mcp)
	TenantHeader   string        // Request header naming the tenant
	StdioTenant    string        // Tenant of the single stdio session
	SessionTimeout time.Duration // Idle time after which a session's adapters are dropped
	MaxSessions    int           // Concurrent session limit (0 = default)
}

// SessionManager starts and ends the adapter set of one session. It is
// implemented by *bridge.Bridge.
type SessionManager interface {
	StartSessionAdapters(ctx context.Context, tenantID, sessionID string) (*bridge.Session, error)
	EndSession(s *bridge.Session)
}

type tenantContextKey struct{}

// WithTenant returns a context carrying the tenant ID of the session being
// registered.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenantID)
}

// TenantFromContext returns the tenant ID set by WithTenant.
func TenantFromContext(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(tenantContextKey{}).(string)
	return tenantID, ok && tenantID != ""
}
