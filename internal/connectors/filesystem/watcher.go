package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/scholar/internal/logger"
)

// DefaultDebounce is how long a file must stay quiet before it is reported.
const DefaultDebounce = 500 * time.Millisecond

// ErrWatcherClosed is returned by Watch after Close.
var ErrWatcherClosed = errors.New("watcher closed")

// Event reports a settled file.
type Event struct {
	// Path is the absolute file path.
	Path string

	// Removed is true when the file was deleted or renamed away.
	Removed bool
}

// Watcher follows a directory tree and reports settled files.
type Watcher struct {
	scanner  *Scanner
	debounce time.Duration

	mu     sync.Mutex
	closed bool
}

// NewWatcher creates a watcher that filters paths with scanner.
func NewWatcher(scanner *Scanner, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{scanner: scanner, debounce: debounce}
}

// Close stops future Watch calls.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

// Watch blocks until ctx is done, calling fn for every created, written
// or removed file under root once no event has arrived for the debounce
// interval. Events are delivered in path order on the calling goroutine.
// New subdirectories are followed and the files already in them reported.
func (w *Watcher) Watch(ctx context.Context, root string, fn func(Event)) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrWatcherClosed
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", root)
		}
		return fmt.Errorf("root path error: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	pending := make(map[string]Event)
	if err := w.addTree(fsw, root, root, nil); err != nil {
		return err
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.handle(fsw, root, ev, pending) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch %s: %v", root, err)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			for _, p := range paths {
				if ctx.Err() != nil {
					return nil
				}
				fn(pending[p])
				delete(pending, p)
			}
		}
	}
}

// handle records ev in pending and reports whether anything was recorded.
func (w *Watcher) handle(fsw *fsnotify.Watcher, root string, ev fsnotify.Event, pending map[string]Event) bool {
	path := ev.Name

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			before := len(pending)
			if err := w.addTree(fsw, root, path, pending); err != nil {
				logger.Warn("watch %s: %v", path, err)
			}
			return len(pending) > before
		}
	}

	if !w.scanner.Match(root, path) {
		return false
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		pending[path] = Event{Path: path, Removed: true}
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		pending[path] = Event{Path: path}
	default:
		return false
	}
	logger.Debug("watch: %s %s", ev.Op, path)
	return true
}

// addTree watches dir and its subdirectories. When pending is not nil the
// files found are recorded as created.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, root, dir string, pending map[string]Event) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root {
				if rel, err := filepath.Rel(root, path); err == nil && w.scanner.excludedDir(filepath.ToSlash(rel)) {
					return filepath.SkipDir
				}
			}
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			return nil
		}
		if pending != nil && w.scanner.Match(root, path) {
			pending[path] = Event{Path: path}
		}
		return nil
	})
}
