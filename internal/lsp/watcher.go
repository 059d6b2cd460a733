package lsp

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultMarkerDebounce is how long marker changes in one root are coalesced
// before the change callback fires.
const DefaultMarkerDebounce = 500 * time.Millisecond

// builtinMarkerNames are the file names the builtin detection cascade reads.
// The watcher always reacts to these, plus any custom patterns.
var builtinMarkerNames = map[string]bool{
	"Cargo.toml":       true,
	"package.json":     true,
	"tsconfig.json":    true,
	"pyproject.toml":   true,
	"requirements.txt": true,
	"setup.py":         true,
	"go.mod":           true,
	"CMakeLists.txt":   true,
	"Makefile":         true,
}

// MarkerWatcher watches workspace roots for marker file changes and invokes
// a callback per changed root. Rapid changes within one root are debounced
// into a single callback.
type MarkerWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	roots    map[string]bool
	pending  map[string]*time.Timer
	patterns []string
	debounce time.Duration
	onChange func(workspaceRoot string)
	closed   bool
	closeCh  chan struct{}
	done     sync.WaitGroup
	log      *logrus.Entry
}

// WatcherOption configures a MarkerWatcher.
type WatcherOption func(*MarkerWatcher)

// WithDebounce sets the per-root debounce window.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *MarkerWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the watcher's logger.
func WithWatcherLogger(log *logrus.Entry) WatcherOption {
	return func(w *MarkerWatcher) {
		if log != nil {
			w.log = log
		}
	}
}

// WithMarkerPatterns adds custom marker patterns (literal names or globs)
// the watcher reacts to on top of the builtin marker names.
func WithMarkerPatterns(patterns ...string) WatcherOption {
	return func(w *MarkerWatcher) {
		w.patterns = append(w.patterns, patterns...)
	}
}

// NewMarkerWatcher creates a watcher. onChange runs on the watcher's
// goroutine once per debounced marker change, with the affected root.
func NewMarkerWatcher(onChange func(workspaceRoot string), opts ...WatcherOption) (*MarkerWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &MarkerWatcher{
		watcher:  fsw,
		roots:    make(map[string]bool),
		pending:  make(map[string]*time.Timer),
		debounce: DefaultMarkerDebounce,
		onChange: onChange,
		closeCh:  make(chan struct{}),
		log:      discardEntry(),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.done.Add(1)
	go w.processLoop()

	return w, nil
}

// Watch starts watching a workspace root. Only the root directory itself is
// watched; marker files live at the top level of a workspace.
func (w *MarkerWatcher) Watch(workspaceRoot string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}

	absRoot, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return err
	}
	if _, err := os.Stat(absRoot); err != nil {
		return err
	}
	if w.roots[absRoot] {
		return nil
	}
	if err := w.watcher.Add(absRoot); err != nil {
		return err
	}

	w.roots[absRoot] = true
	w.log.WithField("workspace_root", absRoot).Debug("watching workspace for marker changes")
	return nil
}

// Unwatch stops watching a workspace root.
func (w *MarkerWatcher) Unwatch(workspaceRoot string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}

	absRoot, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return err
	}
	if !w.roots[absRoot] {
		return nil
	}
	delete(w.roots, absRoot)
	return w.watcher.Remove(absRoot)
}

// Close stops the watcher and cancels pending callbacks.
func (w *MarkerWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for root, timer := range w.pending {
		timer.Stop()
		delete(w.pending, root)
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	w.done.Wait()
	return err
}

func (w *MarkerWatcher) processLoop() {
	defer w.done.Done()

	for {
		select {
		case <-w.closeCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("marker watcher error")
		}
	}
}

func (w *MarkerWatcher) handleEvent(event fsnotify.Event) {
	if !w.isMarker(filepath.Base(event.Name)) {
		return
	}

	root := filepath.Dir(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	w.log.WithFields(logrus.Fields{
		"workspace_root": root,
		"marker":         filepath.Base(event.Name),
		"op":             event.Op.String(),
	}).Debug("marker change observed")

	if timer, ok := w.pending[root]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.pending[root] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, root)
		closed := w.closed
		w.mu.Unlock()
		if closed || w.onChange == nil {
			return
		}
		w.onChange(root)
	})
}

// isMarker reports whether name is a builtin marker or matches a custom
// pattern.
func (w *MarkerWatcher) isMarker(name string) bool {
	if builtinMarkerNames[name] {
		return true
	}
	for _, pattern := range w.patterns {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
