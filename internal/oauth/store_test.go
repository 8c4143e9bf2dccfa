package oauth

import (
	"testing"
	"time"
)

func TestTokenStore_BindAndLookup(t *testing.T) {
	ts := NewTokenStore()
	defer ts.Stop()

	ts.BindSession("session-1", "user-a")
	ts.BindSession("session-2", "user-a")
	ts.BindSession("session-3", "user-b")

	if got := ts.UserForSession("session-1"); got != "user-a" {
		t.Errorf("UserForSession(session-1) = %q, want user-a", got)
	}
	if got := ts.UserForSession("unknown"); got != "" {
		t.Errorf("UserForSession(unknown) = %q, want empty", got)
	}
	if got := ts.SessionCount(); got != 3 {
		t.Errorf("SessionCount() = %d, want 3", got)
	}
}

func TestTokenStore_SharedRecordAcrossSessions(t *testing.T) {
	ts := NewTokenStore()
	defer ts.Stop()

	ts.BindSession("session-1", "user-a")
	ts.BindSession("session-2", "user-a")

	ts.StoreUser("user-a", &UserTokenRecord{
		AccessToken:  "token-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour),
		Scopes:       []string{"content:read"},
	})

	// A replacement through either session's user is visible to both.
	ts.StoreUser("user-a", &UserTokenRecord{
		AccessToken: "token-2",
		ExpiresAt:   time.Now().Add(time.Hour),
	})

	for _, session := range []string{"session-1", "session-2"} {
		record := ts.GetUser(ts.UserForSession(session))
		if record == nil || record.AccessToken != "token-2" {
			t.Errorf("Session %s sees record %+v, want token-2", session, record)
		}
	}
}

func TestTokenStore_UserIsolation(t *testing.T) {
	ts := NewTokenStore()
	defer ts.Stop()

	ts.StoreUser("user-a", &UserTokenRecord{AccessToken: "a"})
	ts.StoreUser("user-b", &UserTokenRecord{AccessToken: "b"})

	ts.ClearUser("user-a")

	if ts.GetUser("user-a") != nil {
		t.Error("Expected user-a record to be cleared")
	}
	if record := ts.GetUser("user-b"); record == nil || record.AccessToken != "b" {
		t.Error("Expected user-b record to be untouched by user-a's clear")
	}
}

func TestTokenStore_UnbindKeepsRecord(t *testing.T) {
	ts := NewTokenStore()
	defer ts.Stop()

	ts.BindSession("session-1", "user-a")
	ts.StoreUser("user-a", &UserTokenRecord{AccessToken: "a"})

	ts.UnbindSession("session-1")

	if ts.UserForSession("session-1") != "" {
		t.Error("Expected session binding to be removed")
	}
	if ts.GetUser("user-a") == nil {
		t.Error("Expected user record to survive session unbind")
	}
}

func TestTokenStore_ReturnsCopies(t *testing.T) {
	ts := NewTokenStore()
	defer ts.Stop()

	ts.StoreUser("user-a", &UserTokenRecord{AccessToken: "a", Scopes: []string{"x"}})

	record := ts.GetUser("user-a")
	record.AccessToken = "mutated"
	record.Scopes[0] = "mutated"

	fresh := ts.GetUser("user-a")
	if fresh.AccessToken != "a" || fresh.Scopes[0] != "x" {
		t.Error("Expected stored record to be isolated from caller mutation")
	}
}

func TestUserTokenRecord_IsExpired(t *testing.T) {
	tests := []struct {
		name   string
		record UserTokenRecord
		margin time.Duration
		want   bool
	}{
		{"no expiry never expires", UserTokenRecord{}, 0, false},
		{"future expiry", UserTokenRecord{ExpiresAt: time.Now().Add(time.Hour)}, 0, false},
		{"past expiry", UserTokenRecord{ExpiresAt: time.Now().Add(-time.Minute)}, 0, true},
		{"within margin", UserTokenRecord{ExpiresAt: time.Now().Add(30 * time.Second)}, time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.IsExpired(tt.margin); got != tt.want {
				t.Errorf("IsExpired(%v) = %v, want %v", tt.margin, got, tt.want)
			}
		})
	}
}
