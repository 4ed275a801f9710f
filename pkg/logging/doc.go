// Package logging provides the structured logging facade used across switchboard.
//
// It is a thin layer over Go's slog package that tags every entry with a
// subsystem name and keeps printf-style call sites short:
//
//	logging.InitWithFormat(logging.LevelInfo, logging.FormatJSON, os.Stderr)
//
//	logging.Info("Bootstrap", "Loaded %d capability implementations", n)
//	logging.Warn("BindingResolver", "Ignoring stale disabled operation %q", name)
//	logging.Error("Bridge", err, "Invocation of %s failed", toolName)
//
// # Subsystems
//
//   - Bootstrap: application initialization and startup
//   - Config: configuration loading
//   - CapabilityRegistry: discovery and schema extraction
//   - AdapterSynthesizer: adapter construction
//   - BindingResolver: tenant binding resolution and enablement filtering
//   - Bridge: session adapter sets and invocations
//   - Aggregator: MCP transport and session lifecycle
//   - Storage: binding persistence backends
//
// # Sensitive data
//
// Nothing in this package redacts values. Callers must never pass decrypted
// credentials as format arguments; api.ExecutionContext redacts itself when
// formatted, which covers the common case of logging a context value.
//
// Until one of the Init functions is called, Warn and Error entries are
// written to stderr and Debug and Info entries are dropped.
package logging
