package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/offsetwatch/internal/config"
	"github.com/hupe1980/offsetwatch/internal/logging"
	"github.com/hupe1980/offsetwatch/internal/notify"
	"github.com/hupe1980/offsetwatch/internal/server"
	"github.com/hupe1980/offsetwatch/internal/settings"
	"github.com/hupe1980/offsetwatch/internal/watch"
)

func newServeCommand() *cobra.Command {
	var origins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Stream settings changes to a UI over HTTP and WebSocket",
		Long: `Serve runs the settings watcher in the background and exposes:

  GET /events   WebSocket; one JSON message per config_changed event
  GET /offset   one-shot read of the current offset
  GET /healthz  status, including whether live updates are active

If the settings file cannot be found at startup, live updates stay off
but /offset keeps working.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), origins)
		},
	}

	registerWatchFlags(cmd)

	f := cmd.Flags()
	f.String("listen", config.DefaultListen, "address to listen on")
	f.StringSliceVar(&origins, "allowed-origin", nil, "allowed WebSocket origins (default: any)")

	return cmd
}

func runServe(ctx context.Context, origins []string) error {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolver := settings.NewResolver(cfg.SettingsPath)
	reader := settings.NewReader(nil)

	pub := notify.NewPublisher(cfg.Buffer, logging.Component(logger, "publisher"))
	hub := server.NewHub(cfg.Buffer, logging.Component(logger, "hub"))

	task := watch.NewTask(watch.TaskOptions{
		Resolver: resolver,
		Reader:   reader,
		Sink:     pub,
		Debounce: cfg.Debounce,
		Logger:   logging.Component(logger, "watcher"),
	})

	srv := server.New(server.Options{
		Addr:           cfg.Listen,
		Resolver:       resolver,
		Reader:         reader,
		Hub:            hub,
		Watching:       func() bool { return isRunning(task) },
		AllowedOrigins: origins,
		Logger:         logging.Component(logger, "server"),
	})

	g, gctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		hub.Run(gctx, pub.Events())
		return nil
	})

	g.Go(func() error {
		<-task.Start(gctx)

		if err := task.Err(); err != nil {
			logger.Warn("serving without live updates", slog.String("error", err.Error()))
		}

		return nil
	})

	g.Go(func() error {
		return srv.Run(gctx)
	})

	err := g.Wait()
	pub.Close()

	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	return nil
}

func isRunning(task *watch.Task) bool {
	select {
	case <-task.Done():
		return false
	default:
		return task.Path() != ""
	}
}
