package oauth

import (
	"sync"
	"time"

	"postern/pkg/logging"
)

// TokenStore provides thread-safe in-memory storage for session bindings and
// user token records. Sessions map to users; users map to their single
// canonical UserTokenRecord. State is process-lifetime and never persisted.
type TokenStore struct {
	mu       sync.RWMutex
	sessions map[string]string           // sessionID -> userID
	users    map[string]*UserTokenRecord // userID -> canonical record

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewTokenStore creates a new in-memory token store. It starts a background
// goroutine that drops unrecoverable records (expired with no refresh token).
// Callers must call Stop when done.
func NewTokenStore() *TokenStore {
	ts := &TokenStore{
		sessions:        make(map[string]string),
		users:           make(map[string]*UserTokenRecord),
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go ts.cleanupLoop()

	return ts
}

// BindSession associates a session with a user. All sessions bound to the
// same user share that user's token record.
func (ts *TokenStore) BindSession(sessionID, userID string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.sessions[sessionID] = userID
	logging.Debug("OAuth", "Bound session=%s to user=%s", logging.TruncateSessionID(sessionID), userID)
}

// UnbindSession removes a session's user binding. The user's token record
// stays in place for sibling sessions.
func (ts *TokenStore) UnbindSession(sessionID string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	delete(ts.sessions, sessionID)
	logging.Debug("OAuth", "Unbound session=%s", logging.TruncateSessionID(sessionID))
}

// UserForSession returns the user a session is bound to, or "" when the
// session is unauthenticated.
func (ts *TokenStore) UserForSession(sessionID string) string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.sessions[sessionID]
}

// StoreUser replaces the user's token record wholesale. Readers holding a
// previously returned record keep a consistent snapshot; they never observe
// a half-updated token.
func (ts *TokenStore) StoreUser(userID string, record *UserTokenRecord) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.users[userID] = record.Clone()
	logging.Debug("OAuth", "Stored token record for user=%s (expires: %v, scopes: %d)",
		userID, record.ExpiresAt, len(record.Scopes))
}

// GetUser returns a copy of the user's token record, or nil when the user
// has no stored tokens.
func (ts *TokenStore) GetUser(userID string) *UserTokenRecord {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.users[userID].Clone()
}

// ClearUser destroys the user's token record. Sessions bound to the user
// remain bound but unauthenticated until a new record is stored.
func (ts *TokenStore) ClearUser(userID string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	delete(ts.users, userID)
	logging.Debug("OAuth", "Cleared token record for user=%s", userID)
}

// SessionCount returns the number of bound sessions.
func (ts *TokenStore) SessionCount() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.sessions)
}

// UserCount returns the number of users with stored token records.
func (ts *TokenStore) UserCount() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.users)
}

// Stop stops the background cleanup goroutine.
func (ts *TokenStore) Stop() {
	ts.stopOnce.Do(func() {
		close(ts.stopCleanup)
	})
}

// cleanupLoop periodically removes unrecoverable token records.
func (ts *TokenStore) cleanupLoop() {
	ticker := time.NewTicker(ts.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ts.cleanup()
		case <-ts.stopCleanup:
			return
		}
	}
}

// cleanup drops records that are expired and have no refresh token. Expired
// records with a refresh token are kept: the next lookup refreshes them.
func (ts *TokenStore) cleanup() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	count := 0
	for userID, record := range ts.users {
		if record.RefreshToken == "" && record.IsExpired(0) {
			delete(ts.users, userID)
			count++
		}
	}

	if count > 0 {
		logging.Debug("OAuth", "Cleaned up %d unrecoverable token records", count)
	}
}
