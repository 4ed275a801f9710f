package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"switchboard/internal/adapter"
	"switchboard/internal/api"
	"switchboard/internal/binding"
	"switchboard/internal/capability"
	"switchboard/pkg/logging"
)

// DefaultConcurrency bounds concurrent binding resolution within one session
// start.
const DefaultConcurrency = 4

// Runtime is the function-calling runtime tools are registered with for the
// lifetime of one session.
type Runtime interface {
	Register(ctx context.Context, sessionID string, tools []*Tool) error
	Unregister(sessionID string, toolNames []string)
}

// Config tunes a Bridge.
type Config struct {
	Limits      Limits
	Concurrency int
	// Metrics defaults to DefaultMetrics().
	Metrics *Metrics
}

// Bridge builds per-session tool sets from the registry and the tenant's
// bindings and hands them to the runtime.
type Bridge struct {
	registry    *capability.Registry
	resolver    *binding.Resolver
	runtime     Runtime
	limiter     *limiter
	metrics     *Metrics
	timeout     time.Duration
	concurrency int
}

// New creates a Bridge. runtime may be nil when tools are only built, not
// registered.
func New(registry *capability.Registry, resolver *binding.Resolver, runtime Runtime, cfg Config) *Bridge {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = DefaultMetrics()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Bridge{
		registry:    registry,
		resolver:    resolver,
		runtime:     runtime,
		limiter:     &limiter{limits: cfg.Limits, metrics: metrics},
		metrics:     metrics,
		timeout:     cfg.Limits.InvocationTimeout,
		concurrency: concurrency,
	}
}

// Session is the set of tools registered for one call session.
type Session struct {
	ID       string
	TenantID string

	mu    sync.Mutex
	tools []*Tool
	ended bool
}

// Tools returns the session's tools, empty once the session has ended.
func (s *Session) Tools() []*Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

// Ended reports whether EndSession ran.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// BuildAdapters resolves every implementation the tenant has enabled and
// synthesizes one tool per enabled operation. Implementations that are not
// configured are omitted; implementations that cannot be resolved are
// withheld and logged without affecting the others. The returned error is
// reserved for failing to list the tenant's implementations at all.
func (b *Bridge) BuildAdapters(ctx context.Context, tenantID, sessionID string) ([]*Tool, error) {
	names, err := b.resolver.EnabledImplementations(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list implementations for tenant %s: %w", tenantID, err)
	}

	perImplementation := make([][]*Tool, len(names))
	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, name := range names {
		g.Go(func() error {
			perImplementation[i] = b.buildImplementation(ctx, tenantID, sessionID, name)
			return nil
		})
	}
	_ = g.Wait()

	return b.assignNames(perImplementation), nil
}

func (b *Bridge) buildImplementation(ctx context.Context, tenantID, sessionID, name string) []*Tool {
	resolved, err := b.resolver.Resolve(ctx, tenantID, name)
	if err != nil {
		if api.IsNotConfigured(err) {
			logging.Debug("Bridge", "Omitting %s for tenant %s: not configured", name, tenantID)
		} else {
			logging.Warn("Bridge", "Withholding %s from session %s: %v", name, logging.TruncateSessionID(sessionID), err)
		}
		return nil
	}

	def, err := b.registry.GetImplementation(name)
	if err != nil {
		resolved.Wipe()
		logging.Warn("Bridge", "Withholding %s from session %s: %v", name, logging.TruncateSessionID(sessionID), err)
		return nil
	}

	impl, err := def.New(api.ImplementationConfig{
		TenantID:  tenantID,
		Public:    resolved.PublicConfig,
		Sensitive: resolved.SensitiveConfig,
	})
	if err != nil {
		resolved.Wipe()
		logging.Warn("Bridge", "Withholding %s from session %s: constructor failed: %v", name, logging.TruncateSessionID(sessionID), err)
		return nil
	}

	ec := &api.ExecutionContext{
		TenantID:       tenantID,
		SessionID:      sessionID,
		Implementation: name,
		PublicConfig:   resolved.PublicConfig,
		Credentials:    resolved.SensitiveConfig,
	}

	tools := make([]*Tool, 0, len(resolved.EnabledOperations))
	for _, op := range resolved.EnabledOperations {
		descriptor, err := b.registry.GetDescriptor(name, op)
		if err != nil {
			logging.Warn("Bridge", "Skipping %s.%s: %v", name, op, err)
			continue
		}
		a, err := adapter.Synthesize(impl, descriptor, ec.Clone())
		if err != nil {
			logging.Warn("Bridge", "Skipping %s.%s: %v", name, op, err)
			continue
		}
		tools = append(tools, &Tool{
			name:     op,
			adapter:  a,
			resolved: resolved,
			limiter:  b.limiter,
			metrics:  b.metrics,
			timeout:  b.timeout,
		})
	}

	if len(tools) == 0 {
		resolved.Wipe()
	}
	return tools
}

// assignNames flattens the per-implementation tools in implementation order.
// An operation name offered by more than one implementation is exposed as
// "<implementation>_<operation>" for every one of them. A qualified name that
// is still taken gets a numeric suffix.
func (b *Bridge) assignNames(perImplementation [][]*Tool) []*Tool {
	offered := map[string]int{}
	for _, group := range perImplementation {
		for _, tool := range group {
			offered[tool.Operation()]++
		}
	}

	taken := map[string]bool{}
	for op, n := range offered {
		if n == 1 {
			taken[op] = true
		}
	}

	var tools []*Tool
	for _, group := range perImplementation {
		for _, tool := range group {
			tools = append(tools, tool)
			if offered[tool.Operation()] == 1 {
				tool.name = tool.Operation()
				continue
			}

			qualified := tool.Implementation() + "_" + tool.Operation()
			name := qualified
			for i := 2; taken[name]; i++ {
				name = fmt.Sprintf("%s_%d", qualified, i)
			}
			taken[name] = true
			tool.name = name
			logging.Warn("Bridge", "Operation name %s is offered by %d implementations, exposing %s.%s as %s",
				tool.Operation(), offered[tool.Operation()], tool.Implementation(), tool.Operation(), name)
		}
	}
	return tools
}

// StartSessionAdapters builds the tenant's tools and registers them with the
// runtime under sessionID. An empty sessionID gets a generated one.
func (b *Bridge) StartSessionAdapters(ctx context.Context, tenantID, sessionID string) (*Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	tools, err := b.BuildAdapters(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}

	s := &Session{ID: sessionID, TenantID: tenantID, tools: tools}

	if b.runtime != nil && len(tools) > 0 {
		if err := b.runtime.Register(ctx, sessionID, tools); err != nil {
			wipe(tools)
			return nil, fmt.Errorf("failed to register tools for session %s: %w", logging.TruncateSessionID(sessionID), err)
		}
	}

	b.metrics.sessionStarted(ctx)
	logging.Info("Bridge", "Session %s for tenant %s started with %d tools", logging.TruncateSessionID(sessionID), tenantID, len(tools))
	return s, nil
}

// EndSession unregisters the session's tools and drops their decrypted
// credentials. Calling it again, or with nil, is a no-op. In-flight
// invocations are not cancelled and keep the credentials they started with
// until they return.
func (b *Bridge) EndSession(s *Session) {
	if s == nil {
		return
	}

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	tools := s.tools
	s.tools = nil
	s.mu.Unlock()

	if b.runtime != nil && len(tools) > 0 {
		names := make([]string, len(tools))
		for i, t := range tools {
			names[i] = t.Name()
		}
		b.runtime.Unregister(s.ID, names)
	}
	wipe(tools)

	b.metrics.sessionEnded(context.Background())
	logging.Info("Bridge", "Session %s for tenant %s ended", logging.TruncateSessionID(s.ID), s.TenantID)
}

func wipe(tools []*Tool) {
	for _, t := range tools {
		t.adapter.Release()
		t.resolved.Wipe()
	}
}
