// Package app provides application bootstrap and lifecycle management for
// switchboard.
//
// It turns a configuration directory into a running MCP server:
//
//  1. Configuration: config.LoadConfig reads config.yaml over the built-in
//     defaults; command line overrides (transport, stdio tenant) are applied
//     and the result validated again.
//  2. Logging: the configured level and format, or debug when requested.
//  3. Services: the capability registry is discovered from the built-in
//     catalog, the binding store for the configured backend (file, mongo or
//     redis) is opened, the age identity is loaded, and the resolver, MCP
//     server and bridge are wired together.
//  4. Run: the server is started with the bridge as its session manager and
//     stopped on context cancellation or SIGINT/SIGTERM.
//
// OpenStore, OpenSealer and NewRegistry are exported for the administrative
// commands, which manage bindings without starting a server.
package app
