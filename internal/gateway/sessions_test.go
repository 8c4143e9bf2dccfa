package gateway

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSessionRegistryRegisterAndCount(t *testing.T) {
	r := NewSessionRegistry(time.Minute, 100, nil)
	defer r.Stop()

	if err := r.Register("sess-1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("sess-2"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if r.Count() != 2 {
		t.Errorf("expected 2 sessions, got %d", r.Count())
	}

	// Re-registering is idempotent.
	if err := r.Register("sess-1"); err != nil {
		t.Errorf("re-register should succeed: %v", err)
	}
	if r.Count() != 2 {
		t.Errorf("re-register must not grow the registry, got %d", r.Count())
	}

	r.Unregister("sess-1")
	if r.Count() != 1 {
		t.Errorf("expected 1 session after unregister, got %d", r.Count())
	}
}

func TestSessionRegistryValidation(t *testing.T) {
	r := NewSessionRegistry(time.Minute, 100, nil)
	defer r.Stop()

	if err := r.Register(""); err == nil {
		t.Error("empty session ID should be rejected")
	}
	if err := r.Register(strings.Repeat("x", MaxSessionIDLength+1)); err == nil {
		t.Error("oversized session ID should be rejected")
	}
}

func TestSessionRegistryCapacity(t *testing.T) {
	r := NewSessionRegistry(time.Minute, 2, nil)
	defer r.Stop()

	if err := r.Register("a"); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("b"); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("c"); err == nil || !strings.Contains(err.Error(), "session limit") {
		t.Errorf("expected session limit error, got %v", err)
	}
}

func TestSessionRegistrySweepExpiresIdle(t *testing.T) {
	var mu sync.Mutex
	var expired []string
	r := NewSessionRegistry(20*time.Millisecond, 100, func(sessionID string) {
		mu.Lock()
		expired = append(expired, sessionID)
		mu.Unlock()
	})
	defer r.Stop()

	r.Register("idle")
	r.Register("active")

	time.Sleep(30 * time.Millisecond)
	r.Touch("active")
	r.sweep()

	if r.Count() != 1 {
		t.Errorf("expected 1 surviving session, got %d", r.Count())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(expired) != 1 || expired[0] != "idle" {
		t.Errorf("expected onExpire for idle session only, got %v", expired)
	}
}
