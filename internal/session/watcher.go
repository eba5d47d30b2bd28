package session

import (
	"path/filepath"
	"sync"
	"time"

	"medchat/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is the time to wait after the last file event
// before reloading, so an editor or sibling process rewriting the file
// in several steps triggers one reload, not several.
const DefaultDebounceInterval = 500 * time.Millisecond

// Watcher monitors the credentials file and reloads the store when
// another process rewrites it, e.g. a second CLI invocation that
// refreshed the token first.
type Watcher struct {
	mu sync.Mutex

	store     *Store
	onChange  func()
	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
	debounce      time.Duration
}

// NewWatcher creates a watcher for the store's credentials file.
// onChange may be nil; when set it runs after each reload.
func NewWatcher(store *Store, onChange func()) *Watcher {
	return &Watcher{
		store:    store,
		onChange: onChange,
		debounce: DefaultDebounceInterval,
	}
}

// Start begins watching. It is a no-op for memory-only or degraded
// stores, which have no file to watch.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	path := w.store.Path()
	if path == "" {
		logging.Debug("Session", "Credential store has no backing file, watcher not started")
		return nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory, not the file: rewrites via rename (the common
	// atomic-write pattern) would otherwise detach the watch.
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return err
	}

	w.fsWatcher = fsWatcher
	w.stopCh = make(chan struct{})
	w.running = true

	go w.watchLoop(fsWatcher, w.stopCh, path)

	logging.Debug("Session", "Watching credentials file %s", path)
	return nil
}

// Stop stops watching. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	close(w.stopCh)
	w.fsWatcher.Close()
	w.fsWatcher = nil
	w.running = false
}

// watchLoop consumes fsnotify events until stopped.
func (w *Watcher) watchLoop(fsWatcher *fsnotify.Watcher, stopCh <-chan struct{}, path string) {
	for {
		select {
		case <-stopCh:
			return

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			logging.Warn("Session", "Credential watcher error: %v", err)
		}
	}
}

// scheduleReload (re)arms the debounce timer.
func (w *Watcher) scheduleReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.debounce, func() {
		logging.Debug("Session", "Credentials file changed, reloading")
		w.store.Reload()
		if w.onChange != nil {
			w.onChange()
		}
	})
}
