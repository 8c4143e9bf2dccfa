package app

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestConfigWatcherTriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("backend:\n  baseUrl: http://x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var fired atomic.Int64
	watcher, err := NewConfigWatcher(path, func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("NewConfigWatcher failed: %v", err)
	}
	defer watcher.Stop()
	watcher.Start()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("backend:\n  baseUrl: http://y\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if fired.Load() == 0 {
		t.Fatal("expected change callback after config write")
	}
}

func TestConfigWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	var fired atomic.Int64
	watcher, err := NewConfigWatcher(path, func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("NewConfigWatcher failed: %v", err)
	}
	defer watcher.Stop()
	watcher.Start()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(2 * watcherDebounce)
	if fired.Load() != 0 {
		t.Errorf("unrelated file writes must not trigger, fired %d times", fired.Load())
	}
}
