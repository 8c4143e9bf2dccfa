package gateway

import (
	"fmt"
	"sync"
	"time"

	"postern/pkg/logging"
)

const (
	// MaxSessionIDLength caps session ID length so a hostile client cannot
	// exhaust memory with oversized IDs.
	MaxSessionIDLength = 256

	// DefaultMaxSessions is the default cap on concurrent sessions.
	DefaultMaxSessions = 10000

	// DefaultSessionTimeout is the default idle expiry for sessions.
	DefaultSessionTimeout = 30 * time.Minute

	sessionCleanupInterval = time.Minute
)

// SessionState tracks one client connection's activity.
type SessionState struct {
	SessionID    string
	CreatedAt    time.Time
	LastActivity time.Time
}

// SessionRegistry tracks live transport sessions and expires idle ones.
// Expiry releases the session's binding in the token store via the
// onExpire callback; the user's token record itself survives for the
// user's other sessions.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*SessionState

	timeout     time.Duration
	maxSessions int
	onExpire    func(sessionID string)

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewSessionRegistry creates a registry with the given idle timeout and
// session cap. onExpire is invoked, outside the registry lock, for each
// session dropped by the idle sweeper; nil is allowed.
func NewSessionRegistry(timeout time.Duration, maxSessions int, onExpire func(sessionID string)) *SessionRegistry {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	r := &SessionRegistry{
		sessions:    make(map[string]*SessionState),
		timeout:     timeout,
		maxSessions: maxSessions,
		onExpire:    onExpire,
		stopCleanup: make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

// Register adds a session. It fails when the ID is invalid or the registry
// is at capacity; re-registering a live session just refreshes its activity.
func (r *SessionRegistry) Register(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID must not be empty")
	}
	if len(sessionID) > MaxSessionIDLength {
		return fmt.Errorf("session ID exceeds maximum length of %d", MaxSessionIDLength)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if state, exists := r.sessions[sessionID]; exists {
		state.LastActivity = time.Now()
		return nil
	}
	if len(r.sessions) >= r.maxSessions {
		return fmt.Errorf("session limit reached (%d)", r.maxSessions)
	}

	now := time.Now()
	r.sessions[sessionID] = &SessionState{
		SessionID:    sessionID,
		CreatedAt:    now,
		LastActivity: now,
	}
	logging.Debug("Sessions", "Registered session %s (%d active)",
		logging.TruncateSessionID(sessionID), len(r.sessions))
	return nil
}

// Touch refreshes a session's activity timestamp.
func (r *SessionRegistry) Touch(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, exists := r.sessions[sessionID]; exists {
		state.LastActivity = time.Now()
	}
}

// Unregister removes a session without invoking onExpire. The transport
// calls this on clean disconnect; the caller handles token unbinding.
func (r *SessionRegistry) Unregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[sessionID]; exists {
		delete(r.sessions, sessionID)
		logging.Debug("Sessions", "Unregistered session %s (%d active)",
			logging.TruncateSessionID(sessionID), len(r.sessions))
	}
}

// Count returns the number of live sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Stop terminates the idle sweeper.
func (r *SessionRegistry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCleanup) })
}

func (r *SessionRegistry) cleanupLoop() {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopCleanup:
			return
		}
	}
}

func (r *SessionRegistry) sweep() {
	cutoff := time.Now().Add(-r.timeout)

	r.mu.Lock()
	var expired []string
	for id, state := range r.sessions {
		if state.LastActivity.Before(cutoff) {
			expired = append(expired, id)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		logging.Info("Sessions", "Expired idle session %s", logging.TruncateSessionID(id))
		if r.onExpire != nil {
			r.onExpire(id)
		}
	}
}
