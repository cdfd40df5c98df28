package cli

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hupe1980/offsetwatch/internal/config"
	"github.com/hupe1980/offsetwatch/internal/settings"
)

func newPathCommand() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the location of the game's settings file",
		Long: `Path prints where offsetwatch expects system-options.json:

  %APPDATA%\..\LocalLow\D-CELL GAMES\UNBEATABLE [white label]\SYSTEM\system-options.json

unless --settings-path overrides it. With --check the command fails when
the file does not exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPath(cmd.Context(), cmd, check)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "fail if the settings file does not exist")

	return cmd
}

func runPath(ctx context.Context, cmd *cobra.Command, check bool) error {
	cfg := config.FromContext(ctx)

	path, err := settings.NewResolver(cfg.SettingsPath).Resolve()
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)

	if check {
		exists, statErr := afero.Exists(afero.NewOsFs(), path)
		if statErr != nil {
			return &ExitError{Code: 1, Err: &settings.IOError{Path: path, Err: statErr}}
		}

		if !exists {
			return &ExitError{Code: 1, Err: &settings.NotFoundError{Path: path}}
		}
	}

	return nil
}
