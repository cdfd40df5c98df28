package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Options.Debounce is unset.
const DefaultDebounce = 100 * time.Millisecond

// Options configures the watch behaviour.
type Options struct {
	// Path is the absolute path of the file to watch. Its parent directory
	// is watched recursively so that replace-by-rename saves are observed.
	Path string

	// Debounce is the quiet period before a burst becomes a signal.
	Debounce time.Duration

	// Logger is used for structured logging.
	Logger *slog.Logger
}

// Signal is one coalesced change of the watched file.
type Signal struct {
	// Path is the watched file.
	Path string

	// Events is the number of raw filesystem events in the burst.
	Events int

	// At is when the burst settled.
	At time.Time
}

// SignalFunc is invoked once per coalesced change.
type SignalFunc func(Signal)

// SetupError is returned when the filesystem subscription cannot be
// established.
type SetupError struct {
	Path string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("watching %s: %v", e.Path, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Watcher turns raw fsnotify events for a single file into debounced
// signals.
type Watcher struct {
	fsw       *fsnotify.Watcher
	target    string
	root      string
	anchor    string
	lost      error
	debouncer *Debouncer
	logger    *slog.Logger
}

// NewWatcher subscribes to changes below the parent directory of
// opts.Path. The file itself need not exist.
func NewWatcher(opts Options) (*Watcher, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	target := filepath.Clean(opts.Path)
	root := filepath.Dir(target)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &SetupError{Path: target, Err: fmt.Errorf("creating watcher: %w", err)}
	}

	if err := addRecursive(fsw, root); err != nil {
		_ = fsw.Close()
		return nil, &SetupError{Path: target, Err: fmt.Errorf("watching directory: %w", err)}
	}

	return &Watcher{
		fsw:       fsw,
		target:    target,
		root:      root,
		debouncer: NewDebouncer(opts.Debounce),
		logger:    opts.Logger,
	}, nil
}

// Target returns the watched file path.
func (w *Watcher) Target() string { return w.target }

// Close releases the filesystem subscription. A running Run returns.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run processes events until ctx is cancelled or the subscription is
// closed. onSignal is called from the Run goroutine, so calls never
// overlap and arrive in the order their bursts settled.
//
// Errors reported by the OS while running are logged and watching
// continues. If the directory holding the file is removed, the nearest
// existing ancestor is watched instead until the directory is back.
func (w *Watcher) Run(ctx context.Context, onSignal SignalFunc) error {
	defer w.debouncer.Stop()

	w.logger.Debug("watching settings file",
		slog.String("path", w.target),
		slog.String("root", w.root),
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}

			w.handleEvent(event)

			if w.lost != nil {
				// Report the pending change before giving up.
				if n := w.debouncer.Pending(); n > 0 {
					w.debouncer.Stop()
					w.dispatch(onSignal, Signal{Path: w.target, Events: n, At: time.Now()})
				}

				return w.lost
			}

		case watchErr, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}

			w.logger.Error("watcher error", slog.String("path", w.target), slog.String("error", watchErr.Error()))

		case <-w.debouncer.C():
			n := w.debouncer.Fire()
			w.dispatch(onSignal, Signal{Path: w.target, Events: n, At: time.Now()})
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Clean(event.Name)
	gone := event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)

	if gone && name == w.root {
		w.logger.Error("settings directory removed", slog.String("dir", w.root))
		w.climb(w.root)
		w.debouncer.Trigger()

		return
	}

	if w.anchor != "" {
		switch {
		case gone && name == w.anchor:
			w.climb(w.anchor)
		case event.Has(fsnotify.Create):
			w.followRoot()
		}

		return
	}

	// New subdirectories below the root are watched too.
	if event.Has(fsnotify.Create) && name != w.target {
		if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
			if err := addRecursive(w.fsw, event.Name); err != nil {
				w.logger.Warn("could not watch new directory",
					slog.String("dir", event.Name), slog.String("error", err.Error()))
			}
		}
	}

	if !isRelevant(event, w.target) {
		return
	}

	w.logger.Debug("settings file event",
		slog.String("op", event.Op.String()),
		slog.Int("burst", w.debouncer.Pending()+1),
	)

	w.debouncer.Trigger()
}

// climb drops the watch on dir and watches its nearest existing ancestor.
func (w *Watcher) climb(dir string) {
	_ = w.fsw.Remove(dir)
	w.anchor = ""

	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			w.lost = &SetupError{Path: w.target, Err: errors.New("no ancestor of the settings directory can be watched")}
			w.logger.Error("live reload lost", slog.String("error", w.lost.Error()))

			return
		}

		dir = parent

		if err := w.fsw.Add(dir); err == nil {
			break
		}
	}

	w.anchor = dir
	w.logger.Warn("waiting for settings directory", slog.String("dir", w.root), slog.String("watching", dir))

	// Directories may have reappeared before the ancestor watch was added.
	w.followRoot()
}

// followRoot moves the ancestor watch toward the root as directories
// reappear and resumes watching the root once it exists.
func (w *Watcher) followRoot() {
	for w.anchor != "" {
		next := childToward(w.anchor, w.root)

		info, err := os.Stat(next)
		if err != nil || !info.IsDir() {
			return
		}

		if next == w.root {
			w.restoreRoot()
			return
		}

		if err := w.fsw.Add(next); err != nil {
			return
		}

		_ = w.fsw.Remove(w.anchor)
		w.anchor = next
	}
}

func (w *Watcher) restoreRoot() {
	if err := addRecursive(w.fsw, w.root); err != nil {
		w.logger.Warn("could not watch settings directory", slog.String("dir", w.root), slog.String("error", err.Error()))
		return
	}

	_ = w.fsw.Remove(w.anchor)
	w.anchor = ""

	w.logger.Info("settings directory restored", slog.String("dir", w.root))

	// The file may have been written before the directory watch was added.
	w.debouncer.Trigger()
}

// childToward returns the direct child of ancestor on the way to dir.
func childToward(ancestor, dir string) string {
	rel, err := filepath.Rel(ancestor, dir)
	if err != nil {
		return dir
	}

	first, _, _ := strings.Cut(rel, string(filepath.Separator))

	return filepath.Join(ancestor, first)
}

func (w *Watcher) dispatch(onSignal SignalFunc, sig Signal) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("signal handler panicked", slog.Any("error", r))
		}
	}()

	onSignal(sig)
}

// addRecursive walks root and adds all directories to the watcher.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			// Skip hidden directories (e.g., .git).
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}

			return watcher.Add(path)
		}

		return nil
	})
}

// isRelevant reports whether event touches target with an operation that
// can change its contents. Attribute-only changes are ignored; reading the
// file may update its access time.
func isRelevant(event fsnotify.Event, target string) bool {
	if event.Op == 0 {
		return false
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	return filepath.Clean(event.Name) == target
}
