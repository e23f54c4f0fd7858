// Package watch notifies callers when suite files change on disk.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"assay/pkg/logging"
)

const (
	// DefaultDebounceInterval is the quiet period after the last change
	// before OnChange fires.
	DefaultDebounceInterval = 300 * time.Millisecond

	// DefaultPollInterval is the fallback polling interval when fsnotify is
	// not available.
	DefaultPollInterval = time.Second
)

// Config holds configuration for a Watcher.
type Config struct {
	// Paths are the files to watch
	Paths []string

	// Debounce is the quiet period before OnChange fires
	Debounce time.Duration

	// PollInterval is used when fsnotify cannot watch a directory
	PollInterval time.Duration

	// OnChange is called once per burst of changes
	OnChange func()
}

// Watcher monitors a set of files. It watches their parent directories with
// fsnotify, which also catches editors that save by renaming a temp file,
// and falls back to polling modification times.
type Watcher struct {
	mu sync.Mutex

	config Config
	files  map[string]struct{}

	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool

	lastModTimes map[string]time.Time

	debounceTimer *time.Timer
	debounceMu    sync.Mutex
}

// New creates a watcher for config.Paths.
func New(config Config) (*Watcher, error) {
	if len(config.Paths) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounceInterval
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}

	files := make(map[string]struct{}, len(config.Paths))
	for _, p := range config.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		files[abs] = struct{}{}
	}

	return &Watcher{
		config:       config,
		files:        files,
		lastModTimes: make(map[string]time.Time),
	}, nil
}

// Start begins watching. Starting a running watcher is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.stopCh = make(chan struct{})
	w.running = true

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("Watch", "fsnotify not available, falling back to polling: %v", err)
		go w.pollForChanges()
		return nil
	}

	for _, dir := range w.dirs() {
		if err := watcher.Add(dir); err != nil {
			logging.Warn("Watch", "Failed to watch directory %s, falling back to polling: %v", dir, err)
			watcher.Close()
			go w.pollForChanges()
			return nil
		}
	}
	w.fsWatcher = watcher

	go w.processEvents(watcher.Events, watcher.Errors)

	logging.Debug("Watch", "Watching %d files for changes", len(w.files))
	return nil
}

func (w *Watcher) dirs() []string {
	seen := make(map[string]struct{})
	var dirs []string
	for f := range w.files {
		dir := filepath.Dir(f)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	return dirs
}

func (w *Watcher) processEvents(eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("Watch", err, "fsnotify error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name, err := filepath.Abs(event.Name)
	if err != nil || !w.isWatched(name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	logging.Debug("Watch", "File changed: %s", event.Name)
	w.triggerDebounced()
}

func (w *Watcher) isWatched(path string) bool {
	_, ok := w.files[path]
	return ok
}

func (w *Watcher) triggerDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.config.Debounce, func() {
		w.mu.Lock()
		running := w.running
		callback := w.config.OnChange
		w.mu.Unlock()

		if running && callback != nil {
			callback()
		}
	})
}

func (w *Watcher) pollForChanges() {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.checkForChanges()

	for {
		select {
		case <-w.stopCh:
			return

		case <-ticker.C:
			if w.checkForChanges() {
				logging.Debug("Watch", "File changes detected via polling")
				w.triggerDebounced()
			}
		}
	}
}

// checkForChanges records current modification times and reports whether
// any file changed since the previous call.
func (w *Watcher) checkForChanges() bool {
	changed := false
	for file := range w.files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}

		current := info.ModTime()
		if last, exists := w.lastModTimes[file]; exists && !current.Equal(last) {
			changed = true
		}
		w.lastModTimes[file] = current
	}
	return changed
}

// Stop stops the watcher and cancels a pending notification.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	close(w.stopCh)

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	if w.fsWatcher != nil {
		if err := w.fsWatcher.Close(); err != nil {
			logging.Warn("Watch", "Error closing fsnotify watcher: %v", err)
		}
		w.fsWatcher = nil
	}
	return nil
}

// IsRunning returns whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
