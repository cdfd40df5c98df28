package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hupe1980/offsetwatch/internal/notify"
	"github.com/hupe1980/offsetwatch/internal/settings"
)

// PathResolver computes the settings file location.
type PathResolver interface {
	Resolve() (string, error)
}

// TaskOptions configures a Task.
type TaskOptions struct {
	Resolver PathResolver
	Reader   notify.OffsetReader
	Sink     notify.Sink
	Debounce time.Duration
	Logger   *slog.Logger
}

// Task owns the watch pipeline for the lifetime of the process: it resolves
// the settings path, subscribes to changes, and publishes one event per
// coalesced change. A Task that cannot start logs why and stops without
// affecting the rest of the application.
type Task struct {
	opts TaskOptions
	once sync.Once
	done chan struct{}

	mu   sync.Mutex
	path string
	err  error
}

// NewTask returns a Task that has not been started.
func NewTask(opts TaskOptions) *Task {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	return &Task{
		opts: opts,
		done: make(chan struct{}),
	}
}

// Start runs the task in its own goroutine until ctx is cancelled. It is a
// no-op after the first call. The returned channel is closed when the task
// has stopped.
func (t *Task) Start(ctx context.Context) <-chan struct{} {
	t.once.Do(func() {
		go t.run(ctx)
	})

	return t.done
}

// Done is closed when the task has stopped.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err reports why the task stopped. It is nil while running and after a
// clean shutdown.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.err
}

// Path returns the resolved settings path, or empty before resolution.
func (t *Task) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.path
}

func (t *Task) run(ctx context.Context) {
	defer close(t.done)

	defer func() {
		if r := recover(); r != nil {
			t.opts.Logger.Error("watcher task panicked", slog.Any("error", r))
			t.setErr(fmt.Errorf("watcher task panicked: %v", r))
		}
	}()

	t.setErr(t.watch(ctx))
}

func (t *Task) watch(ctx context.Context) error {
	logger := t.opts.Logger

	path, err := t.opts.Resolver.Resolve()
	if err != nil {
		logger.Warn("live reload disabled", slog.String("error", err.Error()))
		return err
	}

	t.mu.Lock()
	t.path = path
	t.mu.Unlock()

	if _, statErr := os.Stat(path); statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			err = &settings.NotFoundError{Path: path}
		} else {
			err = &settings.IOError{Path: path, Err: statErr}
		}

		logger.Warn("live reload disabled", slog.String("error", err.Error()))

		return err
	}

	w, err := NewWatcher(Options{
		Path:     path,
		Debounce: t.opts.Debounce,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("live reload disabled", slog.String("error", err.Error()))
		return err
	}
	defer w.Close()

	notifier := notify.NewNotifier(path, t.opts.Reader, t.opts.Sink, logger)

	logger.Info("watching settings file",
		slog.String("path", w.Target()),
		slog.Duration("debounce", t.opts.Debounce),
	)

	err = w.Run(ctx, func(sig Signal) {
		logger.Debug("settings changed", slog.Int("events", sig.Events))
		notifier.Notify()
	})

	logger.Debug("watcher task stopped", slog.String("path", w.Target()))

	return err
}

func (t *Task) setErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err == nil {
		t.err = err
	}
}
