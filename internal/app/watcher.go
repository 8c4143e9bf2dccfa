package app

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"postern/pkg/logging"
)

const watcherDebounce = 500 * time.Millisecond

// ConfigWatcher watches the config file and triggers a forced tool refresh
// when it changes. Events are debounced because editors produce bursts of
// writes, renames, and chmods for a single save.
type ConfigWatcher struct {
	path     string
	onChange func()
	watcher  *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewConfigWatcher creates a watcher for path. The parent directory is
// watched rather than the file itself so atomic-rename saves keep working.
func NewConfigWatcher(path string, onChange func()) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	return &ConfigWatcher{
		path:     path,
		onChange: onChange,
		watcher:  watcher,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins delivering change events.
func (w *ConfigWatcher) Start() {
	go w.loop()
	logging.Info("ConfigWatcher", "Watching %s for changes", w.path)
}

// Stop terminates the watcher.
func (w *ConfigWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
	})
}

func (w *ConfigWatcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("ConfigWatcher", "Watch error: %v", err)
		case <-w.stopCh:
			return
		}
	}
}

func (w *ConfigWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(watcherDebounce, func() {
		logging.Info("ConfigWatcher", "Configuration changed, triggering tool refresh")
		w.onChange()
	})
}
