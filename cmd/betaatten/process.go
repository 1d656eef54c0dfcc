package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"betaatten/internal/models"
	"betaatten/pkg/analysis"
	"betaatten/pkg/config"
	"betaatten/pkg/store"
	"betaatten/pkg/visualization"
)

// plotDirName is the output subdirectory receiving the plots.
const plotDirName = "plots"

// NewProcessCmd creates the process command.
func NewProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <data-dir>",
		Short: "Cluster every dataset and fit the attenuation",
		Long: `Process discovers the thickness datasets under data-dir, clusters and
classifies every frame, writes per-dataset cluster records, the per-type
counts and the attenuation fit to the output directory.

Examples:
  # Process with the default Sr-90 policy
  betaatten process ./data -o ./out

  # Record the run in a SQLite database and skip the plots
  betaatten process ./data -o ./out --db runs.db --no-plot

  # Keep gamma candidates in klusters.json
  betaatten process ./data --gammas`,
		Args: cobra.ExactArgs(1),
		RunE: runProcessCmd,
	}

	cmd.Flags().StringP("output", "o", "output", "Output directory")
	cmd.Flags().IntP("cores", "n", 0, "Frames processed concurrently (default: config or all CPUs)")
	cmd.Flags().String("policy", "", "Classification policy (sr90, simple)")
	cmd.Flags().String("db", "", "SQLite database the run is recorded in")
	cmd.Flags().Bool("no-plot", false, "Do not write plots")
	cmd.Flags().Bool("gammas", false, "Keep gamma candidates in the cluster records")

	return cmd
}

// applyProcessFlags overrides config values with explicitly set flags.
func applyProcessFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("cores") {
		n, err := flags.GetInt("cores")
		if err != nil {
			return err
		}
		cfg.Processing.NumCores = n
	}
	if flags.Changed("policy") {
		policy, err := flags.GetString("policy")
		if err != nil {
			return err
		}
		cfg.Classification.Policy = policy
		cfg.Classification.Bands = nil
	}
	if flags.Changed("db") {
		db, err := flags.GetString("db")
		if err != nil {
			return err
		}
		cfg.Output.Database = db
	}
	if noPlot, _ := flags.GetBool("no-plot"); noPlot {
		cfg.Output.Plot = false
	}
	if gammas, _ := flags.GetBool("gammas"); gammas {
		cfg.Processing.IncludeGammas = true
	}
	return cfg.Validate()
}

// runProcessCmd executes the process command.
func runProcessCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyProcessFlags(cmd, cfg); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	outputDir, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd) || cfg.Output.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runProcess(ctx, cmd.OutOrStdout(), cfg, args[0], outputDir, logger)
}

func runProcess(ctx context.Context, w io.Writer, cfg *config.Config, dataDir, outputDir string, logger *slog.Logger) error {
	classifier, err := cfg.Classifier()
	if err != nil {
		return err
	}
	logger.Info("classification policy", "policy", classifier.Policy().Name, "count", cfg.Attenuation.CountType)

	processor := analysis.NewProcessor(&analysis.Params{
		DataDir:        dataDir,
		OutputDir:      outputDir,
		NumCores:       cfg.Processing.NumCores,
		Classifier:     classifier,
		CountType:      cfg.Attenuation.CountType,
		IncludeGammas:  cfg.Processing.IncludeGammas,
		ThicknessError: cfg.Attenuation.ThicknessError,
	}, analysis.WithLogger(logger))

	run, procErr := processor.Process(ctx)
	if run == nil {
		return procErr
	}

	// A failed fit still leaves counts worth recording.
	if cfg.Output.Database != "" {
		meta := store.RunMeta{
			DataDir:   dataDir,
			Policy:    classifier.Policy().Name,
			CountType: cfg.Attenuation.CountType,
		}
		if err := recordRun(ctx, w, cfg.Output.Database, meta, run, logger); err != nil {
			return errors.Join(procErr, err)
		}
	}

	if cfg.Output.Plot {
		written, err := visualization.NewPlotter(filepath.Join(outputDir, plotDirName)).SaveRun(run)
		if err != nil {
			return errors.Join(procErr, fmt.Errorf("plotting failed: %w", err))
		}
		logger.Info("plots written", "count", len(written), "dir", filepath.Join(outputDir, plotDirName))
	}

	printDatasets(w, run.Datasets)
	if run.Fit != nil {
		fmt.Fprintln(w)
		printFit(w, run.Fit, unitOf(run))
	}
	fmt.Fprintf(w, "\nResults written to: %s\n", outputDir)

	return procErr
}

// recordRun saves a run to the SQLite store.
func recordRun(ctx context.Context, w io.Writer, path string, meta store.RunMeta, run *analysis.Run, logger *slog.Logger) error {
	s, err := store.Open(path, store.WithLogger(logger))
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.SaveRun(ctx, meta, run)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Run recorded as %s in %s\n\n", id, path)
	return nil
}

// printDatasets writes the per-dataset cluster type table.
func printDatasets(w io.Writer, datasets []*analysis.DatasetResult) {
	fmt.Fprintf(w, "%-12s %7s %8s", "Dataset", "Frames", "Clusters")
	for _, t := range models.AllClusterTypes() {
		fmt.Fprintf(w, " %14s", t)
	}
	fmt.Fprintln(w)

	for _, d := range datasets {
		fmt.Fprintf(w, "%-12s %7d %8d", d.Dataset.Name, d.Frames, d.Counts.Total())
		for _, t := range models.AllClusterTypes() {
			fmt.Fprintf(w, " %6d (%5.1f%%)", d.Counts[t], d.Counts.Percent(t))
		}
		fmt.Fprintln(w)
	}
}

func unitOf(run *analysis.Run) string {
	if len(run.Datasets) == 0 {
		return "mm"
	}
	return run.Datasets[0].Dataset.Unit
}
