package aggregator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"switchboard/internal/api"
	"switchboard/internal/binding"
	"switchboard/internal/binding/memory"
	"switchboard/internal/bridge"
	"switchboard/internal/capability/capabilitytest"
	"switchboard/internal/sealed"
)

// fakeSession is an MCP client session that supports session tools.
type fakeSession struct {
	id            string
	notifications chan mcp.JSONRPCNotification
	initialized   atomic.Bool

	mu    sync.RWMutex
	tools map[string]server.ServerTool
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: id, notifications: make(chan mcp.JSONRPCNotification, 10)}
}

func (f *fakeSession) SessionID() string { return f.id }
func (f *fakeSession) NotificationChannel() chan<- mcp.JSONRPCNotification {
	return f.notifications
}
func (f *fakeSession) Initialize()       { f.initialized.Store(true) }
func (f *fakeSession) Initialized() bool { return f.initialized.Load() }

func (f *fakeSession) GetSessionTools() map[string]server.ServerTool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]server.ServerTool, len(f.tools))
	for k, v := range f.tools {
		out[k] = v
	}
	return out
}

func (f *fakeSession) SetSessionTools(tools map[string]server.ServerTool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tools = tools
}

type fixture struct {
	server *Server
	store  *memory.Store
	sealer *sealed.Sealer
	rec    *capabilitytest.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	identity, err := sealed.GenerateIdentity()
	require.NoError(t, err)

	f := &fixture{
		server: NewServer(AggregatorConfig{}),
		store:  memory.New(),
		sealer: sealed.New(identity),
		rec:    &capabilitytest.Recorder{},
	}
	t.Cleanup(f.server.Sessions().Stop)

	metrics, err := bridge.NewMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	registry := capabilitytest.NewRegistry(capabilitytest.SchedulingDefinition(f.rec))
	resolver := binding.NewResolver(f.store, registry, f.sealer)
	b := bridge.New(registry, resolver, f.server, bridge.Config{Metrics: metrics})
	f.server.SetSessionManager(b)
	return f
}

func (f *fixture) bind(t *testing.T, tenantID string, sensitive map[string]interface{}, disabled ...string) {
	t.Helper()
	ciphertext, err := f.sealer.Encrypt(sensitive)
	require.NoError(t, err)
	require.NoError(t, f.store.SaveBinding(context.Background(), &api.Binding{
		TenantID:                 tenantID,
		Implementation:           capabilitytest.SchedulingName,
		EncryptedSensitiveConfig: ciphertext,
		DisabledOperations:       disabled,
		Enabled:                  true,
	}))
}

func sessionToolNames(s *fakeSession) []string {
	var names []string
	for name := range s.GetSessionTools() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func TestServer_RegisterSessionAddsTenantTools(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "acme", map[string]interface{}{"token": "secret"}, "bulk_records")

	session := newFakeSession("session-1")
	ctx := WithTenant(context.Background(), "acme")
	require.NoError(t, f.server.MCPServer().RegisterSession(ctx, session))

	assert.Equal(t, []string{"create_event", "list_events"}, sessionToolNames(session))
	assert.Equal(t, 1, f.server.Sessions().Count())

	tool := session.GetSessionTools()["create_event"]
	assert.Equal(t, "object", tool.Tool.InputSchema.Type)
	assert.Equal(t, []string{"title"}, tool.Tool.InputSchema.Required)
	assert.Contains(t, tool.Tool.InputSchema.Properties, "attendees")

	req := mcp.CallToolRequest{}
	req.Params.Name = "create_event"
	req.Params.Arguments = map[string]interface{}{"title": "Standup", "attendees": []interface{}{"a@example.com"}}

	result, err := tool.Handler(ctx, req)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.JSONEq(t, `{"title":"Standup","attendees":["a@example.com"]}`, text.Text)

	call, ok := f.rec.Last().LastCall()
	require.True(t, ok)
	assert.Equal(t, "acme", call.Context.TenantID)
	assert.Equal(t, "session-1", call.Context.SessionID)
}

func TestServer_ToolsListIsPerSession(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "acme", nil)

	session := newFakeSession("session-1")
	ctx := WithTenant(context.Background(), "acme")
	require.NoError(t, f.server.MCPServer().RegisterSession(ctx, session))

	msg := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	resp := f.server.MCPServer().HandleMessage(f.server.MCPServer().WithContext(ctx, session), msg)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"name":"list_events"`)

	other := newFakeSession("session-2")
	resp = f.server.MCPServer().HandleMessage(f.server.MCPServer().WithContext(context.Background(), other), msg)
	raw, err = json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"name":"list_events"`)
}

func TestServer_InvalidArgumentsBecomeErrorResults(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "acme", nil)

	session := newFakeSession("session-1")
	ctx := WithTenant(context.Background(), "acme")
	require.NoError(t, f.server.MCPServer().RegisterSession(ctx, session))

	req := mcp.CallToolRequest{}
	req.Params.Name = "create_event"
	req.Params.Arguments = map[string]interface{}{"title": 42}

	result, err := session.GetSessionTools()["create_event"].Handler(ctx, req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestServer_SessionWithoutTenantGetsNoTools(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "acme", nil)

	session := newFakeSession("session-1")
	require.NoError(t, f.server.MCPServer().RegisterSession(context.Background(), session))

	assert.Empty(t, session.GetSessionTools())
	assert.Equal(t, 0, f.server.Sessions().Count())
}

func TestServer_UnregisterSessionEndsBridgeSession(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "acme", map[string]interface{}{"token": "secret"})

	session := newFakeSession("session-1")
	ctx := WithTenant(context.Background(), "acme")
	require.NoError(t, f.server.MCPServer().RegisterSession(ctx, session))

	state, ok := f.server.Sessions().Get("session-1")
	require.True(t, ok)
	bs := state.Bridge()
	require.NotEmpty(t, bs.Tools())

	f.server.MCPServer().UnregisterSession(ctx, "session-1")

	assert.Equal(t, 0, f.server.Sessions().Count())
	assert.True(t, bs.Ended())
	assert.Empty(t, bs.Tools())
	assert.Empty(t, f.rec.Last().Config.Sensitive)

	// A second unregistration has nothing left to end.
	f.server.MCPServer().UnregisterSession(ctx, "session-1")
}

const initializeRequest = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1.0.0"}}}`

func TestServer_HTTPDeleteEndsBridgeSession(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "acme", map[string]interface{}{"token": "secret"})
	handler := f.server.Handler()

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(initializeRequest))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(DefaultTenantHeader, "acme")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sessionID := rec.Header().Get(server.HeaderKeySessionID)
	require.NotEmpty(t, sessionID)
	state, ok := f.server.Sessions().Get(sessionID)
	require.True(t, ok)
	bs := state.Bridge()
	require.NotNil(t, bs)
	require.NotEmpty(t, bs.Tools())
	assert.Equal(t, map[string]interface{}{"token": "secret"}, f.rec.Last().Config.Sensitive)

	req = httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set(DefaultTenantHeader, "acme")
	req.Header.Set(server.HeaderKeySessionID, sessionID)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 0, f.server.Sessions().Count())
	assert.True(t, bs.Ended())
	assert.Empty(t, f.rec.Last().Config.Sensitive)
}

// gatedManager holds StartSessionAdapters until gate is closed.
type gatedManager struct {
	SessionManager
	started chan struct{}
	gate    chan struct{}
}

func (m *gatedManager) StartSessionAdapters(ctx context.Context, tenantID, sessionID string) (*bridge.Session, error) {
	m.started <- struct{}{}
	<-m.gate
	return m.SessionManager.StartSessionAdapters(ctx, tenantID, sessionID)
}

func TestServer_UnregisterWhileSessionStarts(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "acme", map[string]interface{}{"token": "secret"})

	gm := &gatedManager{SessionManager: f.server.sessionManager(), started: make(chan struct{}), gate: make(chan struct{})}
	f.server.SetSessionManager(gm)

	session := newFakeSession("session-1")
	ctx := WithTenant(context.Background(), "acme")
	registered := make(chan error, 1)
	go func() {
		registered <- f.server.MCPServer().RegisterSession(ctx, session)
	}()

	<-gm.started
	assert.Equal(t, 1, f.server.Sessions().Count(), "a starting session holds its slot")
	f.server.MCPServer().UnregisterSession(ctx, "session-1")
	close(gm.gate)
	require.NoError(t, <-registered)

	assert.Equal(t, 0, f.server.Sessions().Count())
	require.NotNil(t, f.rec.Last())
	assert.Empty(t, f.rec.Last().Config.Sensitive, "credentials of a session ended mid-start are dropped")
}

func TestServer_UnregisterUnknownSession(t *testing.T) {
	f := newFixture(t)
	assert.NotPanics(t, func() {
		f.server.Unregister("missing", []string{"list_events"})
	})
}

func TestServer_ExpiredSessionIsEnded(t *testing.T) {
	f := newFixture(t)
	f.bind(t, "acme", nil)

	session := newFakeSession("session-1")
	ctx := WithTenant(context.Background(), "acme")
	require.NoError(t, f.server.MCPServer().RegisterSession(ctx, session))

	state, ok := f.server.Sessions().Get("session-1")
	require.True(t, ok)

	expired := f.server.Sessions().expireIdle(state.LastActivity().Add(DefaultSessionTimeout + 1))
	assert.Equal(t, 1, expired)
	assert.True(t, state.Bridge().Ended())
	assert.Empty(t, session.GetSessionTools())
}

func TestServer_TenantMiddleware(t *testing.T) {
	s := NewServer(AggregatorConfig{})
	t.Cleanup(s.Sessions().Stop)

	var seen string
	handler := s.tenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = TenantFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, seen)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set(DefaultTenantHeader, " acme ")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "acme", seen)

	for _, tenant := range []string{"acme/eu", "acme:eu", "../acme"} {
		seen = ""
		req = httptest.NewRequest(http.MethodPost, "/mcp", nil)
		req.Header.Set(DefaultTenantHeader, tenant)
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tenant)
		assert.Empty(t, seen)
	}
}

func TestServer_Healthz(t *testing.T) {
	s := NewServer(AggregatorConfig{})
	t.Cleanup(s.Sessions().Stop)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServer_StartRejectsUnknownTransport(t *testing.T) {
	s := NewServer(AggregatorConfig{Transport: "carrier-pigeon"})
	t.Cleanup(s.Sessions().Stop)

	err := s.Start(context.Background(), nil)
	assert.ErrorContains(t, err, "unsupported transport")
}

func TestServer_StopBeforeStart(t *testing.T) {
	s := NewServer(AggregatorConfig{})
	t.Cleanup(s.Sessions().Stop)

	assert.Error(t, s.Stop(context.Background()))
}
