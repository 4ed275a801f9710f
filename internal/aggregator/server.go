package aggregator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"switchboard/internal/api"
	"switchboard/internal/bridge"
	"switchboard/pkg/logging"
)

// Server exposes each session's bridge tools over MCP. It implements
// bridge.Runtime: tools are registered as MCP session tools, so every client
// only sees the operations its tenant has enabled.
type Server struct {
	config   AggregatorConfig
	mcp      *server.MCPServer
	sessions *SessionRegistry

	manager SessionManager

	// Transport-specific servers
	streamableHTTPServer *server.StreamableHTTPServer
	stdioServer          *server.StdioServer
	httpServer           *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.RWMutex
}

// NewServer creates the MCP server. Tools can be registered right away;
// transports start with Start.
func NewServer(cfg AggregatorConfig) *Server {
	if cfg.Name == "" {
		cfg.Name = "switchboard"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.TenantHeader == "" {
		cfg.TenantHeader = DefaultTenantHeader
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}

	s := &Server{config: cfg}
	s.sessions = NewSessionRegistryWithLimits(cfg.SessionTimeout, cfg.MaxSessions, s.expireSession)

	hooks := &server.Hooks{}
	hooks.AddOnRegisterSession(s.onRegisterSession)
	hooks.AddOnUnregisterSession(s.onUnregisterSession)

	s.mcp = server.NewMCPServer(
		cfg.Name,
		cfg.Version,
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
		server.WithRecovery(),
	)
	return s
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Sessions returns the session registry.
func (s *Server) Sessions() *SessionRegistry {
	return s.sessions
}

// SetSessionManager sets who builds and ends adapter sets. Sessions that
// register before it is set get no tools.
func (s *Server) SetSessionManager(m SessionManager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manager = m
}

func (s *Server) sessionManager() SessionManager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manager
}

// Register adds the tools to the MCP session.
func (s *Server) Register(ctx context.Context, sessionID string, tools []*bridge.Tool) error {
	if err := s.mcp.AddSessionTools(sessionID, s.newServerTools(tools)...); err != nil {
		return fmt.Errorf("failed to add session tools: %w", err)
	}
	logging.Debug("Aggregator", "Registered %d tools for session %s", len(tools), logging.TruncateSessionID(sessionID))
	return nil
}

// Unregister removes the tools from the MCP session. A session that is
// already gone has nothing left to remove.
func (s *Server) Unregister(sessionID string, toolNames []string) {
	if err := s.mcp.DeleteSessionTools(sessionID, toolNames...); err != nil {
		if errors.Is(err, server.ErrSessionNotFound) {
			logging.Debug("Aggregator", "Session %s already unregistered", logging.TruncateSessionID(sessionID))
			return
		}
		logging.Warn("Aggregator", "Failed to remove tools of session %s: %v", logging.TruncateSessionID(sessionID), err)
	}
}

func (s *Server) onRegisterSession(ctx context.Context, session server.ClientSession) {
	sessionID := session.SessionID()

	manager := s.sessionManager()
	if manager == nil {
		logging.Warn("Aggregator", "Session %s registered before the bridge was attached", logging.TruncateSessionID(sessionID))
		return
	}

	tenantID, ok := TenantFromContext(ctx)
	if !ok {
		logging.Warn("Aggregator", "Session %s has no tenant, it gets no tools", logging.TruncateSessionID(sessionID))
		return
	}

	state, err := s.sessions.Reserve(sessionID, tenantID)
	if err != nil {
		logging.Warn("Aggregator", "Not starting session %s: %v", logging.TruncateSessionID(sessionID), err)
		return
	}

	bs, err := manager.StartSessionAdapters(ctx, tenantID, sessionID)
	if err != nil {
		s.sessions.discard(state)
		logging.Error("Aggregator", err, "Failed to start session %s for tenant %s", logging.TruncateSessionID(sessionID), tenantID)
		return
	}

	if !state.Attach(bs) {
		logging.Info("Aggregator", "Session %s ended while its tools were being built", logging.TruncateSessionID(sessionID))
		manager.EndSession(bs)
	}
}

func (s *Server) onUnregisterSession(ctx context.Context, session server.ClientSession) {
	state := s.sessions.Remove(session.SessionID())
	if state == nil {
		return
	}
	s.endSession(state)
}

func (s *Server) expireSession(state *SessionState) {
	s.endSession(state)
}

func (s *Server) endSession(state *SessionState) {
	if manager := s.sessionManager(); manager != nil {
		manager.EndSession(state.Bridge())
	}
}

// tenantMiddleware rejects requests without a valid tenant header and stores
// the tenant in the request context for session registration.
func (s *Server) tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := strings.TrimSpace(r.Header.Get(s.config.TenantHeader))
		if tenantID == "" {
			http.Error(w, fmt.Sprintf("missing %s header", s.config.TenantHeader), http.StatusUnauthorized)
			return
		}
		if err := api.ValidateTenantID(tenantID); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tenantID)))
	})
}

// sessionTerminator ends the bridge session of a streamable-http session the
// client deletes. The streamable handler forgets the session on DELETE but
// does not run the unregister hooks.
func (s *Server) sessionTerminator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			next.ServeHTTP(w, r)
			return
		}

		sessionID := r.Header.Get(server.HeaderKeySessionID)
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		if sessionID == "" || sw.status != http.StatusOK {
			return
		}

		s.mcp.UnregisterSession(r.Context(), sessionID)
		if state := s.sessions.Remove(sessionID); state != nil {
			s.endSession(state)
		}
		logging.Debug("Aggregator", "Session %s deleted by client", logging.TruncateSessionID(sessionID))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Handler returns the HTTP handler serving the MCP endpoint and /healthz.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	if s.streamableHTTPServer == nil {
		s.streamableHTTPServer = server.NewStreamableHTTPServer(s.mcp)
	}
	streamable := s.streamableHTTPServer
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.Handle(s.config.EndpointPath, s.tenantMiddleware(s.sessionTerminator(streamable)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start starts the configured transport with m building the session tools.
func (s *Server) Start(ctx context.Context, m SessionManager) error {
	s.mu.Lock()
	if s.cancelFunc != nil {
		s.mu.Unlock()
		return fmt.Errorf("aggregator server already started")
	}
	s.manager = m
	s.ctx, s.cancelFunc = context.WithCancel(ctx)
	s.mu.Unlock()

	switch s.config.Transport {
	case TransportStdio:
		if s.config.StdioTenant == "" {
			return fmt.Errorf("stdio transport requires a tenant")
		}
		logging.Info("Aggregator", "Starting MCP server with stdio transport for tenant %s", s.config.StdioTenant)
		stdioServer := server.NewStdioServer(s.mcp)
		stdioCtx := WithTenant(s.ctx, s.config.StdioTenant)

		s.mu.Lock()
		s.stdioServer = stdioServer
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := stdioServer.Listen(stdioCtx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error("Aggregator", err, "Stdio server error")
			}
		}()

	case TransportStreamableHTTP, "":
		addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
		logging.Info("Aggregator", "Starting MCP server with streamable-http transport on %s%s", addr, s.config.EndpointPath)
		httpServer := &http.Server{
			Addr:              addr,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		s.mu.Lock()
		s.httpServer = httpServer
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("Aggregator", err, "Streamable HTTP server error")
			}
		}()

	default:
		return fmt.Errorf("unsupported transport %q", s.config.Transport)
	}

	return nil
}

// Stop shuts the transport down and ends every live session.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cancelFunc == nil {
		s.mu.Unlock()
		return fmt.Errorf("aggregator server not started")
	}

	logging.Info("Aggregator", "Stopping MCP server")

	cancelFunc := s.cancelFunc
	httpServer := s.httpServer
	streamableServer := s.streamableHTTPServer
	s.mu.Unlock()

	cancelFunc()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Aggregator", err, "Error shutting down HTTP server")
		}
	}
	if streamableServer != nil {
		if err := streamableServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Aggregator", err, "Error shutting down streamable HTTP server")
		}
	}

	// Stdio server stops on context cancellation, no explicit shutdown needed.
	s.wg.Wait()

	s.sessions.Stop()
	for _, state := range s.sessions.Drain() {
		s.endSession(state)
	}

	s.mu.Lock()
	s.cancelFunc = nil
	s.httpServer = nil
	s.streamableHTTPServer = nil
	s.stdioServer = nil
	s.mu.Unlock()

	return nil
}
