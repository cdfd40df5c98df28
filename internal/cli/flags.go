package cli

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/offsetwatch/internal/config"
)

// registerWatchFlags adds the live-reload flags shared by watch and serve.
// Values reach the command through config.Load, which binds them.
func registerWatchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Duration("debounce", config.DefaultDebounce, "quiet period before a burst of file events counts as one change")
	f.Int("buffer", config.DefaultBuffer, "number of undelivered events to hold before dropping")
}
