package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"betaatten/pkg/store"
)

// NewRunsCmd creates the runs command.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded runs or show one of them",
		Long: `Runs reads the SQLite database written by process --db. Without an
argument it lists every run; with a run ID it prints the counts and the fit
of that run.

Examples:
  betaatten runs --db runs.db
  betaatten runs --db runs.db 0b6f7d1e-6c1a-4e8e-9a51-0f3a2f0c9d10`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRunsCmd,
	}

	cmd.Flags().String("db", "", "SQLite database (default: config output.database)")

	return cmd
}

// runRunsCmd executes the runs command.
func runRunsCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cfg.Output.Database
	if cmd.Flags().Changed("db") {
		if path, err = cmd.Flags().GetString("db"); err != nil {
			return err
		}
	}
	if path == "" {
		return errors.New("no database given: use --db or set output.database")
	}

	logger := setupLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd) || cfg.Output.Verbose)
	s, err := store.Open(path, store.WithLogger(logger))
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	if len(args) == 0 {
		runs, err := s.Runs(ctx)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Fprintf(w, "%s  %s  %-8s %-6s %s\n",
				r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Policy, r.CountType, r.DataDir)
		}
		return nil
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run ID %q: %w", args[0], err)
	}
	info, err := s.Run(ctx, id)
	if err != nil {
		return err
	}
	results, err := s.Results(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run %s\n", info.ID)
	fmt.Fprintf(w, "  data:   %s\n", info.DataDir)
	fmt.Fprintf(w, "  policy: %s\n", info.Policy)
	fmt.Fprintf(w, "  count:  %s\n\n", info.CountType)
	fmt.Fprintf(w, "%8s %10s\n", "d", info.CountType)
	fmt.Fprintf(w, "%8.3f %10d\n", 0.0, results.Baseline)
	for _, d := range results.Thicknesses() {
		fmt.Fprintf(w, "%8.3f %10d\n", d, results.Counts[d])
	}

	fit, err := s.Fit(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintln(w, "\nNo attenuation fit recorded.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	printFit(w, fit, "mm")
	return nil
}
