// Package watcher observes directory trees and notifies callbacks when
// ingestable files change or disappear. Rapid successive writes to the same
// path are coalesced with a per-path debounce timer.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/clearhaven/passage/internal/extract"
	"github.com/clearhaven/passage/internal/passerr"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher recursively watches a set of root directories. Files with a
// supported extension trigger onChange after the debounce window closes;
// removed or renamed-away files trigger onRemove immediately.
type Watcher struct {
	roots    []string
	onChange func(path string)
	onRemove func(path string)
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	timers  map[string]*time.Timer
	started bool

	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the per-path debounce window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a watcher over the given roots. Both callbacks are required;
// they receive cleaned paths and run on the watcher's internal goroutines,
// so they should not block for long.
func New(roots []string, onChange, onRemove func(path string), opts ...Option) (*Watcher, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: watcher needs at least one root directory", passerr.ErrConfiguration)
	}
	if onChange == nil || onRemove == nil {
		return nil, fmt.Errorf("%w: watcher callbacks are required", passerr.ErrConfiguration)
	}

	cleaned := make([]string, len(roots))
	for i, root := range roots {
		cleaned[i] = filepath.Clean(root)
	}

	w := &Watcher{
		roots:    cleaned,
		onChange: onChange,
		onRemove: onRemove,
		debounce: defaultDebounce,
		logger:   zap.NewNop(),
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.debounce <= 0 {
		return nil, fmt.Errorf("%w: debounce must be positive", passerr.ErrConfiguration)
	}
	return w, nil
}

// Start begins watching. Missing roots are created so that a fresh setup can
// point at directories that do not exist yet. Start may be called once.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("%w: watcher already started", passerr.ErrConfiguration)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create filesystem watcher: %w", err)
	}
	w.fsw = fsw

	for _, root := range w.roots {
		if err := w.addRootLocked(root); err != nil {
			fsw.Close()
			w.fsw = nil
			return err
		}
	}

	w.started = true
	go w.run(ctx)
	w.logger.Info("watching for file changes",
		zap.Strings("roots", w.roots),
		zap.Duration("debounce", w.debounce))
	return nil
}

// addRootLocked creates the root if missing and registers it plus every
// subdirectory with fsnotify. Caller holds w.mu.
func (w *Watcher) addRootLocked(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create watch root %s: %w", root, err)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk watch root %s: %w", root, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch directory %s: %w", path, err)
		}
		return nil
	})
}

// SyncExisting invokes onChange for every supported file already present
// under the roots. Callers typically run it right after Start so that files
// written while the watcher was down are picked up.
func (w *Watcher) SyncExisting() {
	for _, root := range w.roots {
		w.syncTree(root)
	}
}

func (w *Watcher) syncTree(root string) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !extract.Supported(filepath.Ext(path)) {
			return nil
		}
		w.onChange(path)
		return nil
	})
	if err != nil {
		w.logger.Warn("sync walk failed", zap.String("root", root), zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// handleEvent routes one fsnotify event. Ops arrive as a bitmask, so a single
// event can carry both Create and Write.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	// A rename delivers the old name; from our side that file is gone. The
	// destination shows up as a separate Create in its own directory.
	if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
		w.cancelTimer(path)
		if extract.Supported(filepath.Ext(path)) {
			w.logger.Debug("watched file removed", zap.String("path", path))
			w.onRemove(path)
		}
		return
	}

	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		// Already gone again; the removal event will follow.
		return
	}

	if info.IsDir() {
		if ev.Op.Has(fsnotify.Create) {
			w.handleNewDirectory(path)
		}
		return
	}

	if !extract.Supported(filepath.Ext(path)) {
		return
	}
	w.schedule(path)
}

// handleNewDirectory registers a directory that appeared under a watched
// tree and schedules any files it already contains. A folder copied into a
// root arrives this way, often before events for its contents.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if werr := fsw.Add(path); werr != nil {
				w.logger.Warn("watch new directory failed",
					zap.String("path", path), zap.Error(werr))
			}
			return nil
		}
		if extract.Supported(filepath.Ext(path)) {
			w.schedule(path)
		}
		return nil
	})
	if err != nil {
		w.logger.Warn("walk new directory failed", zap.String("dir", dir), zap.Error(err))
		return
	}
	w.logger.Debug("watching new directory", zap.String("dir", dir))
}

// schedule arms (or re-arms) the debounce timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.logger.Debug("watched file changed", zap.String("path", path))
		w.onChange(path)
	})
}

func (w *Watcher) cancelTimer(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

// Stop shuts the watcher down and cancels pending debounce timers. It is
// safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		defer w.mu.Unlock()
		for path, t := range w.timers {
			t.Stop()
			delete(w.timers, path)
		}
		if w.fsw != nil {
			w.fsw.Close()
		}
	})
}
