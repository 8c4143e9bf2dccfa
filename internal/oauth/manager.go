package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"postern/pkg/logging"
)

// Manager orchestrates the OAuth token lifecycle for client sessions. It
// owns the token store, performs device-flow authorization, serves tokens
// with transparent proactive refresh, and verifies inbound bearer tokens.
//
// All state lives in this object; construct one per process (or per test)
// and pass it by handle.
type Manager struct {
	store    *TokenStore
	metadata *MetadataCache
	verifier *Verifier
	client   *TokenClient

	// refreshWindow is how long before expiry a token is proactively
	// refreshed during GetToken.
	refreshWindow time.Duration

	// scopes are requested during device-flow authorization. Set once at
	// startup from configuration plus the discovered capability scopes.
	scopes []string

	// refreshGroup deduplicates concurrent refreshes per user: a single
	// token endpoint call is in flight per user and concurrent callers
	// share its result.
	refreshGroup singleflight.Group
}

// NewManager creates an OAuth lifecycle manager.
func NewManager(metadata *MetadataCache, client *TokenClient, refreshWindow time.Duration) *Manager {
	return &Manager{
		store:         NewTokenStore(),
		metadata:      metadata,
		verifier:      NewVerifier(metadata),
		client:        client,
		refreshWindow: refreshWindow,
	}
}

// SetRequestedScopes sets the scopes requested during authorization flows.
func (m *Manager) SetRequestedScopes(scopes []string) {
	m.scopes = append([]string(nil), scopes...)
}

// RequestedScopes returns the scopes requested during authorization flows.
func (m *Manager) RequestedScopes() []string {
	return append([]string(nil), m.scopes...)
}

// VerifyAccessToken verifies an inbound bearer JWT. See Verifier.
func (m *Manager) VerifyAccessToken(ctx context.Context, rawToken string) (*AuthInfo, error) {
	return m.verifier.VerifyAccessToken(ctx, rawToken)
}

// GetToken returns the current access token for the session, or "" when the
// session has no resolvable token. When the stored token is expired or
// within the refresh window, a refresh is attempted first. Temporary refresh
// failures soft-fail: the existing (possibly expired) token is returned so a
// transient authorization server outage never forces re-authentication.
// Terminal failures clear the user's record and "" is returned.
func (m *Manager) GetToken(ctx context.Context, sessionID string) string {
	userID := m.store.UserForSession(sessionID)
	if userID == "" {
		return ""
	}
	record := m.store.GetUser(userID)
	if record == nil {
		return ""
	}

	if !record.IsExpired(m.refreshWindow) {
		return record.AccessToken
	}

	if record.RefreshToken == "" {
		// Nothing to refresh with. Hand out what we have and let the
		// backend make the final call.
		return record.AccessToken
	}

	refreshed, err := m.refreshUser(ctx, userID, record)
	if err != nil {
		var terminal *TerminalRefreshError
		if errors.As(err, &terminal) {
			logging.Warn("OAuth", "Refresh token rejected for user=%s, re-authentication required: %v", userID, err)
			return ""
		}
		logging.Warn("OAuth", "Proactive refresh failed for user=%s, keeping existing token: %v", userID, err)
		return record.AccessToken
	}
	return refreshed.AccessToken
}

// GetTokenScopes returns the scopes granted to the session's current token.
func (m *Manager) GetTokenScopes(sessionID string) []string {
	userID := m.store.UserForSession(sessionID)
	if userID == "" {
		return nil
	}
	record := m.store.GetUser(userID)
	if record == nil {
		return nil
	}
	return record.Scopes
}

// RefreshSessionToken performs a reactive refresh for the session's user.
// The session must already be bound to a user holding a refresh token;
// absence of either is terminal for this call. On success the shared user
// record is replaced and the new token is immediately visible to sibling
// sessions. An invalid_grant response clears the record.
func (m *Manager) RefreshSessionToken(ctx context.Context, sessionID string) error {
	userID := m.store.UserForSession(sessionID)
	if userID == "" {
		return NewAuthenticationError("Session not authenticated")
	}
	record := m.store.GetUser(userID)
	if record == nil {
		return NewAuthenticationError("Session not authenticated")
	}
	if record.RefreshToken == "" {
		return NewAuthenticationError("No refresh token available")
	}

	_, err := m.refreshUser(ctx, userID, record)
	return err
}

// refreshUser exchanges the user's refresh token for a new access token,
// deduplicating concurrent attempts per user. On success the user's record
// is replaced wholesale. Terminal failures clear the record; temporary
// failures leave it untouched.
func (m *Manager) refreshUser(ctx context.Context, userID string, prev *UserTokenRecord) (*UserTokenRecord, error) {
	result, err, shared := m.refreshGroup.Do(userID, func() (interface{}, error) {
		refreshed, err := m.client.Refresh(ctx, prev.RefreshToken)
		if err != nil {
			if ClassifyRefreshError(err) == RefreshTerminal {
				m.store.ClearUser(userID)
				return nil, &TerminalRefreshError{Err: err}
			}
			return nil, &TemporaryRefreshError{Err: err}
		}

		// Refresh responses may omit the scope field; the grant's scopes
		// are unchanged in that case.
		if len(refreshed.Scopes) == 0 {
			refreshed.Scopes = append([]string(nil), prev.Scopes...)
		}

		m.store.StoreUser(userID, refreshed)
		logging.Debug("OAuth", "Refreshed token for user=%s (expires: %v)", userID, refreshed.ExpiresAt)
		return refreshed, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logging.Debug("OAuth", "Refresh for user=%s shared an in-flight attempt", userID)
	}
	return result.(*UserTokenRecord), nil
}

// AuthenticateDeviceFlow starts a device authorization grant for the
// session. The returned DeviceAuthorization carries the verification URI and
// user code to present to the user; Authorize completes the flow.
func (m *Manager) AuthenticateDeviceFlow(ctx context.Context) (*DeviceAuthorization, error) {
	return m.client.StartDeviceFlow(ctx, m.scopes)
}

// Authorize polls the device flow to completion, stores the resulting token
// record, and binds the initiating session to the resolved user. The user ID
// comes from the access token's sub claim when the token is a verifiable
// JWT; opaque tokens get a generated user identity instead.
func (m *Manager) Authorize(ctx context.Context, sessionID string, auth *DeviceAuthorization) (string, error) {
	record, err := m.client.PollDeviceFlow(ctx, auth, m.scopes)
	if err != nil {
		return "", err
	}

	userID := m.resolveUserID(ctx, record.AccessToken)
	m.store.StoreUser(userID, record)
	m.store.BindSession(sessionID, userID)

	logging.Info("OAuth", "Device flow completed for session=%s user=%s (scopes: %v)",
		logging.TruncateSessionID(sessionID), userID, record.Scopes)
	return userID, nil
}

// BindVerifiedToken binds a session to the user identified by a verified
// inbound bearer token and records the token for backend use. An existing
// record holding a refresh token is kept in preference to the bare inbound
// token, since it can outlive the inbound token's expiry.
func (m *Manager) BindVerifiedToken(sessionID string, info *AuthInfo) string {
	userID := info.Subject()
	if userID == "" {
		userID = "client:" + info.ClientID + ":" + uuid.NewString()
	}

	if existing := m.store.GetUser(userID); existing == nil || existing.RefreshToken == "" {
		m.store.StoreUser(userID, &UserTokenRecord{
			AccessToken: info.Token,
			ExpiresAt:   info.ExpiresAt,
			Scopes:      info.Scopes,
		})
	}
	m.store.BindSession(sessionID, userID)
	return userID
}

// SessionUser returns the user a session is bound to, or "".
func (m *Manager) SessionUser(sessionID string) string {
	return m.store.UserForSession(sessionID)
}

// SessionRecord returns a copy of the session's user token record, or nil.
func (m *Manager) SessionRecord(sessionID string) *UserTokenRecord {
	userID := m.store.UserForSession(sessionID)
	if userID == "" {
		return nil
	}
	return m.store.GetUser(userID)
}

// Logout clears the session's user binding and destroys the user's token
// record.
func (m *Manager) Logout(sessionID string) {
	userID := m.store.UserForSession(sessionID)
	m.store.UnbindSession(sessionID)
	if userID != "" {
		m.store.ClearUser(userID)
		logging.Info("OAuth", "Logged out session=%s user=%s", logging.TruncateSessionID(sessionID), userID)
	}
}

// ReleaseSession drops the session's user binding without destroying the
// user's token record, for use when a connection closes.
func (m *Manager) ReleaseSession(sessionID string) {
	m.store.UnbindSession(sessionID)
}

// Stop releases background resources.
func (m *Manager) Stop() {
	m.store.Stop()
}

// resolveUserID derives a stable user identity from an access token. JWTs
// that verify against the authorization server contribute their sub claim;
// anything else gets a generated identity.
func (m *Manager) resolveUserID(ctx context.Context, accessToken string) string {
	if info, err := m.verifier.VerifyAccessToken(ctx, accessToken); err == nil {
		if sub := info.Subject(); sub != "" {
			return sub
		}
	}
	return "device:" + uuid.NewString()
}
