package aggregator

import (
	"fmt"
	"sync"
	"time"

	"switchboard/internal/bridge"
	"switchboard/pkg/logging"
)

// Session ID validation constants.
const (
	// MaxSessionIDLength is the maximum allowed length for session IDs.
	MaxSessionIDLength = 256

	// DefaultMaxSessions is the default maximum number of concurrent sessions.
	DefaultMaxSessions = 10000

	// DefaultSessionTimeout is how long a session may stay idle before its
	// adapters are dropped.
	DefaultSessionTimeout = 30 * time.Minute
)

// SessionState ties an MCP session to the bridge session holding its tools.
// A reserved session has no bridge session until Attach; once the state is
// removed from the registry it is detached and Attach refuses.
type SessionState struct {
	SessionID string
	TenantID  string
	CreatedAt time.Time

	mu           sync.RWMutex
	lastActivity time.Time
	bridge       *bridge.Session
	detached     bool
}

// Bridge returns the bridge session, nil while the session is still being
// started.
func (s *SessionState) Bridge() *bridge.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bridge
}

// Attach stores the started bridge session. It returns false when the
// session was removed in the meantime; the caller then owns bs and must end
// it.
func (s *SessionState) Attach(bs *bridge.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached {
		return false
	}
	s.bridge = bs
	return true
}

// detach marks the state as removed. Whoever removed it ends the bridge
// session attached so far; a later Attach is refused.
func (s *SessionState) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached = true
}

// UpdateActivity marks the session as used now.
func (s *SessionState) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// LastActivity returns the time of the last recorded activity.
func (s *SessionState) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// SessionRegistry tracks live sessions by MCP session ID.
//
// Sessions idle for longer than the session timeout are expired by a
// background loop: they are removed and handed to the expire callback so that
// their decrypted credentials do not outlive an abandoned client. Callers
// MUST call Stop() when done to prevent goroutine leaks.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*SessionState

	sessionTimeout time.Duration
	maxSessions    int
	onExpire       func(*SessionState)
	stopCleanup    chan struct{}
	stopOnce       sync.Once
}

// NewSessionRegistry creates a registry with default limits. onExpire may be
// nil.
func NewSessionRegistry(sessionTimeout time.Duration, onExpire func(*SessionState)) *SessionRegistry {
	return NewSessionRegistryWithLimits(sessionTimeout, DefaultMaxSessions, onExpire)
}

// NewSessionRegistryWithLimits creates a registry with a custom session limit.
// A maxSessions of 0 means unlimited.
func NewSessionRegistryWithLimits(sessionTimeout time.Duration, maxSessions int, onExpire func(*SessionState)) *SessionRegistry {
	if sessionTimeout <= 0 {
		sessionTimeout = DefaultSessionTimeout
	}
	if maxSessions < 0 {
		maxSessions = DefaultMaxSessions
	}

	sr := &SessionRegistry{
		sessions:       make(map[string]*SessionState),
		sessionTimeout: sessionTimeout,
		maxSessions:    maxSessions,
		onExpire:       onExpire,
		stopCleanup:    make(chan struct{}),
	}

	go sr.cleanupLoop()

	return sr
}

// ValidateSessionID checks that a session ID is non-empty and not longer than
// MaxSessionIDLength.
func ValidateSessionID(sessionID string) error {
	if sessionID == "" {
		return &InvalidSessionIDError{Reason: "session ID cannot be empty"}
	}
	if len(sessionID) > MaxSessionIDLength {
		return &InvalidSessionIDError{Reason: fmt.Sprintf("session ID exceeds maximum length of %d", MaxSessionIDLength)}
	}
	return nil
}

// Reserve holds a slot for a session whose bridge session is about to be
// started. The slot counts against the session limit right away, and
// removing the session before Attach makes Attach refuse.
func (sr *SessionRegistry) Reserve(sessionID, tenantID string) (*SessionState, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		logging.Warn("SessionRegistry", "Rejected invalid session ID: %v", err)
		return nil, err
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()

	if _, exists := sr.sessions[sessionID]; exists {
		return nil, &SessionExistsError{SessionID: sessionID}
	}
	if sr.maxSessions > 0 && len(sr.sessions) >= sr.maxSessions {
		logging.Warn("SessionRegistry", "Session limit reached (%d), rejecting new session: %s",
			sr.maxSessions, logging.TruncateSessionID(sessionID))
		return nil, &SessionLimitExceededError{Limit: sr.maxSessions, Current: len(sr.sessions)}
	}

	now := time.Now()
	state := &SessionState{
		SessionID:    sessionID,
		TenantID:     tenantID,
		CreatedAt:    now,
		lastActivity: now,
	}
	sr.sessions[sessionID] = state
	logging.Debug("SessionRegistry", "Reserved session %s for tenant %s (total: %d)",
		logging.TruncateSessionID(sessionID), tenantID, len(sr.sessions))
	return state, nil
}

// Add records an already started bridge session.
func (sr *SessionRegistry) Add(sessionID, tenantID string, bs *bridge.Session) (*SessionState, error) {
	state, err := sr.Reserve(sessionID, tenantID)
	if err != nil {
		return nil, err
	}
	state.Attach(bs)
	return state, nil
}

// Get returns the session and marks it active.
func (sr *SessionRegistry) Get(sessionID string) (*SessionState, bool) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, false
	}

	sr.mu.RLock()
	state, exists := sr.sessions[sessionID]
	sr.mu.RUnlock()

	if exists {
		state.UpdateActivity()
	}
	return state, exists
}

// Remove deletes the session and returns it, or nil when it was not tracked.
// The caller ends the returned state's bridge session, if any.
func (sr *SessionRegistry) Remove(sessionID string) *SessionState {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	state, exists := sr.sessions[sessionID]
	if !exists {
		return nil
	}
	delete(sr.sessions, sessionID)
	state.detach()
	logging.Debug("SessionRegistry", "Removed session %s", logging.TruncateSessionID(sessionID))
	return state
}

// discard removes state if it is still the one tracked under its ID.
func (sr *SessionRegistry) discard(state *SessionState) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if sr.sessions[state.SessionID] == state {
		delete(sr.sessions, state.SessionID)
	}
	state.detach()
}

// Drain removes and returns every session.
func (sr *SessionRegistry) Drain() []*SessionState {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	out := make([]*SessionState, 0, len(sr.sessions))
	for id, state := range sr.sessions {
		state.detach()
		out = append(out, state)
		delete(sr.sessions, id)
	}
	return out
}

// Count returns the number of tracked sessions.
func (sr *SessionRegistry) Count() int {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.sessions)
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (sr *SessionRegistry) Stop() {
	sr.stopOnce.Do(func() { close(sr.stopCleanup) })
}

func (sr *SessionRegistry) cleanupLoop() {
	interval := sr.sessionTimeout / 2
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sr.expireIdle(time.Now())
		case <-sr.stopCleanup:
			return
		}
	}
}

// expireIdle removes sessions idle since before now minus the timeout and
// returns how many were expired.
func (sr *SessionRegistry) expireIdle(now time.Time) int {
	cutoff := now.Add(-sr.sessionTimeout)

	sr.mu.Lock()
	var expired []*SessionState
	for id, state := range sr.sessions {
		if state.LastActivity().Before(cutoff) {
			state.detach()
			expired = append(expired, state)
			delete(sr.sessions, id)
		}
	}
	sr.mu.Unlock()

	for _, state := range expired {
		logging.Info("SessionRegistry", "Expiring idle session %s for tenant %s",
			logging.TruncateSessionID(state.SessionID), state.TenantID)
		if sr.onExpire != nil {
			sr.onExpire(state)
		}
	}
	return len(expired)
}

// InvalidSessionIDError is returned when a session ID fails validation.
type InvalidSessionIDError struct {
	Reason string
}

func (e *InvalidSessionIDError) Error() string {
	return "invalid session ID: " + e.Reason
}

// SessionExistsError is returned when a session ID is already tracked.
type SessionExistsError struct {
	SessionID string
}

func (e *SessionExistsError) Error() string {
	return "session already exists: " + logging.TruncateSessionID(e.SessionID)
}

// SessionLimitExceededError is returned when the maximum session limit is reached.
type SessionLimitExceededError struct {
	Limit   int
	Current int
}

func (e *SessionLimitExceededError) Error() string {
	return fmt.Sprintf("session limit exceeded: %d/%d sessions", e.Current, e.Limit)
}
