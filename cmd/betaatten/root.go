package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"betaatten/pkg/config"
)

// version is set at build time via ldflags.
var version = ""

// NewRootCmd creates the root command for betaatten.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "betaatten",
		Short: "Beta attenuation analysis for pixel detector frames",
		Long: `betaatten processes pixel detector frames recorded behind absorbers of
varying thickness. It finds 8-connected clusters of hit pixels, classifies
them by particle type and fits B(d) = B0 exp(-mu d) to the beta counts.

Datasets are directories named after the absorber thickness, e.g. 0-0_mm
for the baseline and 0-23_mm for 0.23 mm, each holding frames under
ASCIIxyC/*.txt.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: "+config.DefaultConfigFile+" or the user config directory)")

	cmd.AddCommand(NewProcessCmd())
	cmd.AddCommand(NewFitCmd())
	cmd.AddCommand(NewRunsCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVersion returns the ldflags version, then the module version, then "(devel)".
func getVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, _ = cmd.Root().PersistentFlags().GetBool("verbose")
	}
	return verbose
}

// setupLogger creates a text logger on w; verbose selects debug level.
func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig resolves and loads the configuration file. An explicit
// --config path must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	explicit, err := cmd.Flags().GetString("config")
	if err != nil {
		explicit, _ = cmd.Root().PersistentFlags().GetString("config")
	}

	path := config.FindConfigFile(explicit)
	if explicit != "" && path == "" {
		return nil, fmt.Errorf("configuration file not found: %s", explicit)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}
