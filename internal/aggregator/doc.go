// Package aggregator exposes tenant capabilities to MCP clients.
//
// The aggregator is the function-calling runtime the bridge registers tools
// with. Every MCP session belongs to exactly one tenant and sees only that
// tenant's enabled operations: tools are added as MCP session tools when the
// session registers and removed again when it ends.
//
// # Session Lifecycle
//
//	client ──initialize──▶ MCP server ──OnRegisterSession──▶ bridge.StartSessionAdapters
//	                                                              │
//	                              AddSessionTools ◀── Register ◀──┘
//
//	client ──DELETE / EOF──▶ MCP server ──OnUnregisterSession──▶ bridge.EndSession
//	                                                              │
//	                           DeleteSessionTools ◀── Unregister ◀┘
//
// The tenant of a session is taken from the request header named by
// AggregatorConfig.TenantHeader on the streamable-http transport, and from
// AggregatorConfig.StdioTenant on the stdio transport. Requests without a
// tenant are rejected with 401.
//
// Sessions idle for longer than AggregatorConfig.SessionTimeout are ended by
// the SessionRegistry so that decrypted credentials do not outlive abandoned
// clients. Stop ends every remaining session.
//
// # Transports
//
//   - streamable-http: served on Host:Port under EndpointPath, with /healthz
//   - stdio: a single session over stdin/stdout
//
// # Usage
//
//	srv := aggregator.NewServer(aggregator.AggregatorConfig{
//		Host:      "localhost",
//		Port:      8090,
//		Transport: aggregator.TransportStreamableHTTP,
//	})
//	b := bridge.New(registry, resolver, srv, bridge.Config{})
//	if err := srv.Start(ctx, b); err != nil {
//		return err
//	}
//	defer srv.Stop(context.Background())
package aggregator
