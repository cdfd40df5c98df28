package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/offsetwatch/internal/config"
	"github.com/hupe1980/offsetwatch/internal/logging"
	"github.com/hupe1980/offsetwatch/internal/notify"
	"github.com/hupe1980/offsetwatch/internal/settings"
	"github.com/hupe1980/offsetwatch/internal/watch"
)

const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func newWatchCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the offset every time the game saves its settings",
		Long: `Watch monitors system-options.json and prints one line per change.

Saving settings usually produces several filesystem events in quick
succession; they are debounced into a single change. Each change re-reads
the file and prints either the new rhythmTrackerPositionOffset or the
reason it could not be read. Stop with Ctrl+C.

The settings file must exist when watch starts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd, jsonOutput)
		},
	}

	registerWatchFlags(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print each event as a JSON line")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	// Trap SIGINT / SIGTERM for graceful shutdown.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pub := notify.NewPublisher(cfg.Buffer, logging.Component(logger, "publisher"))

	task := watch.NewTask(watch.TaskOptions{
		Resolver: settings.NewResolver(cfg.SettingsPath),
		Reader:   settings.NewReader(nil),
		Sink:     pub,
		Debounce: cfg.Debounce,
		Logger:   logging.Component(logger, "watcher"),
	})

	printed := make(chan struct{})

	go func() {
		defer close(printed)

		for ev := range pub.Events() {
			printEvent(cmd.OutOrStdout(), logger, ev, jsonOutput, !cfg.NoColor)
		}
	}()

	<-task.Start(sigCtx)
	pub.Close()
	<-printed

	if err := task.Err(); err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("live reload unavailable: %w", err)}
	}

	return nil
}

// printEvent writes one status line for ev.
func printEvent(w io.Writer, logger *slog.Logger, ev notify.Event, jsonOutput, color bool) {
	if jsonOutput {
		data, err := json.Marshal(ev)
		if err != nil {
			logger.Error("encoding event", slog.Uint64("seq", ev.Seq), slog.String("error", err.Error()))
			return
		}

		fmt.Fprintln(w, string(data))

		return
	}

	now := ev.Timestamp.Local().Format("15:04:05")

	if offset, ok := ev.Offset(); ok {
		fmt.Fprintf(w, "[%s] %s → %s\n", now, ev.Name,
			paint(color, ansiGreen, "offset "+strconv.FormatFloat(offset, 'g', -1, 64)))
		return
	}

	fmt.Fprintf(w, "[%s] %s → %s\n", now, ev.Name, paint(color, ansiRed, "ERROR: "+ev.Reason()))
}

func paint(enabled bool, code, s string) string {
	if !enabled {
		return s
	}

	return code + s + ansiReset
}
