package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"betaatten/pkg/analysis"
	"betaatten/pkg/attenuation"
	"betaatten/pkg/config"
)

// NewFitCmd creates the fit command.
func NewFitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fit <results.json>",
		Short: "Fit the attenuation of an existing counts file",
		Long: `Fit reads a counts file as written by process, e.g. beta_results.json
{"0.0": 1000, "0.5": 779, ...}, and fits B(d) = B0 exp(-mu d).

Examples:
  # Print the fit
  betaatten fit out/beta_results.json

  # Write the point table and fit to a file
  betaatten fit out/beta_results.json -o attenuation.json

  # Print the report as JSON
  betaatten fit out/beta_results.json --json`,
		Args: cobra.ExactArgs(1),
		RunE: runFitCmd,
	}

	cmd.Flags().StringP("output", "o", "", "Write the fit report to this JSON file")
	cmd.Flags().Float64P("thickness-error", "e", -1, "Thickness uncertainty (default: config value)")
	cmd.Flags().BoolP("json", "j", false, "Print the fit report as JSON")
	cmd.Flags().StringP("unit", "u", "mm", "Thickness unit of the counts file")

	return cmd
}

// runFitCmd executes the fit command.
func runFitCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	thicknessErr := cfg.Attenuation.ThicknessError
	if cmd.Flags().Changed("thickness-error") {
		if thicknessErr, err = cmd.Flags().GetFloat64("thickness-error"); err != nil {
			return err
		}
		if err := config.ValidateThicknessError(thicknessErr); err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	unit, err := cmd.Flags().GetString("unit")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd) || cfg.Output.Verbose)

	results, err := analysis.ReadResults(args[0])
	if err != nil {
		return err
	}
	fit, err := analysis.FitResults(results, thicknessErr, attenuation.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("attenuation fit: %w", err)
	}
	report, err := analysis.NewFitReport(results, fit, thicknessErr)
	if err != nil {
		return err
	}

	if output != "" {
		if err := analysis.WriteJSON(output, report); err != nil {
			return err
		}
		logger.Info("fit report written", "path", output)
	}

	w := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printFit(w, fit, unit)
	fmt.Fprintln(w)
	printPoints(w, report.Points)
	return nil
}

// printFit writes the fitted parameters.
func printFit(w io.Writer, fit *attenuation.Result, unit string) {
	fmt.Fprintf(w, "Attenuation fit (%d points)\n", fit.DegreesOfFreedom+2)
	fmt.Fprintf(w, "  mu   = %.4f +/- %.4f 1/%s (%.1f%%)\n", fit.Mu, fit.MuErr, unit, fit.MuErrPercent)
	fmt.Fprintf(w, "  mfp  = %.4f +/- %.4f %s (%.1f%%)\n", fit.MeanFreePath, fit.MeanFreePathErr, unit, fit.MeanFreePathErrPercent)
	fmt.Fprintf(w, "  B0   = %.1f\n", fit.B0)
	fmt.Fprintf(w, "  chi2 = %.4f (dof %d)\n", fit.ChiSquared, fit.DegreesOfFreedom)
	if fit.PValue != nil {
		fmt.Fprintf(w, "  p    = %.4f\n", *fit.PValue)
	}
}

// printPoints writes the per-point table; undefined values print as "-".
func printPoints(w io.Writer, points []analysis.PointReport) {
	fmt.Fprintf(w, "%8s %10s %10s %10s %10s %10s\n", "d", "B", "sigma_B", "ln B", "mu_i", "B fit")
	for _, p := range points {
		fmt.Fprintf(w, "%8.3f %10.0f %10s %10s %10s %10.1f\n",
			p.Thickness, p.Count, optionalString(p.CountErr), optionalString(p.LogCount),
			optionalString(p.Mu), p.PredictedCount)
	}
}

func optionalString(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}
