package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/offsetwatch/internal/config"
	"github.com/hupe1980/offsetwatch/internal/settings"
)

// Supported read output formats.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

type readResult struct {
	Path   string  `json:"path" yaml:"path"`
	Offset float64 `json:"offset" yaml:"offset"`
}

func newReadCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read the current rhythm tracker offset once",
		Long: `Read loads system-options.json and prints rhythmTrackerPositionOffset.

The file is read fresh every time; nothing is cached. The command exits
with code 1 when the file is missing, unreadable, malformed, or does not
contain the offset as a number.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRead(cmd.Context(), cmd, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json, yaml")
	registerEnumCompletion(cmd, "output", outputText, outputJSON, outputYAML)

	return cmd
}

func runRead(ctx context.Context, cmd *cobra.Command, output string) error {
	switch output {
	case outputText, outputJSON, outputYAML:
	default:
		return &ExitError{Code: 2, Err: fmt.Errorf("invalid output format %q: must be one of text, json, yaml", output)}
	}

	cfg := config.FromContext(ctx)

	path, err := settings.NewResolver(cfg.SettingsPath).Resolve()
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	offset, err := settings.NewReader(nil).Read(path)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	w := cmd.OutOrStdout()
	res := readResult{Path: path, Offset: offset}

	switch output {
	case outputJSON:
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling result: %w", err)
		}

		_, err = fmt.Fprintln(w, string(data))

		return err
	case outputYAML:
		data, err := yaml.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshaling result: %w", err)
		}

		_, err = w.Write(data)

		return err
	}

	_, err = fmt.Fprintln(w, strconv.FormatFloat(offset, 'g', -1, 64))

	return err
}
