// Package visualization renders the attenuation fit and cluster property
// plots of an analysis run.
package visualization

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"betaatten/internal/models"
	"betaatten/pkg/analysis"
	"betaatten/pkg/attenuation"
)

// Plot file names
const (
	AttenuationPlotName = "attenuation.png"
	SizeHistogramName   = "cluster_sizes.png"
)

// ErrNoPoints is returned when there is nothing to plot.
var ErrNoPoints = errors.New("no points to plot")

// Plotter writes plots for an analysis run into an output directory
type Plotter struct {
	outputDir string
	width     vg.Length
	height    vg.Length
}

// NewPlotter creates a plotter writing 8x6 inch images to outputDir
func NewPlotter(outputDir string) *Plotter {
	return &Plotter{
		outputDir: outputDir,
		width:     8 * vg.Inch,
		height:    6 * vg.Inch,
	}
}

// errorPoints carries points with asymmetric error bars on both axes
type errorPoints struct {
	plotter.XYs
	plotter.XErrors
	plotter.YErrors
}

// attenuationPoints returns ln(B_i) against d_i for the points the fit
// used, with the thickness error and the asymmetric log count errors.
func attenuationPoints(fit *attenuation.Result) errorPoints {
	var pts errorPoints
	for _, p := range fit.Points {
		lb, ok := p.LogCount()
		if !ok {
			continue
		}
		up, okUp := p.LogErrorUpper()
		lo, okLo := p.LogErrorLower()
		if !okUp || !okLo {
			up, lo = 0, 0
		}
		pts.XYs = append(pts.XYs, plotter.XY{X: p.Thickness(), Y: lb})
		pts.XErrors = append(pts.XErrors, struct{ Low, High float64 }{p.ThicknessError(), p.ThicknessError()})
		pts.YErrors = append(pts.YErrors, struct{ Low, High float64 }{lo, up})
	}
	return pts
}

// AttenuationPlot draws ln(B) against thickness with the fitted line
func AttenuationPlot(fit *attenuation.Result, unit string) (*plot.Plot, error) {
	pts := attenuationPoints(fit)
	if len(pts.XYs) == 0 {
		return nil, ErrNoPoints
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("μ = %.3f ± %.3f [1/%s]", fit.Mu, fit.MuErr, unit)
	p.X.Label.Text = fmt.Sprintf("Thickness [%s]", unit)
	p.Y.Label.Text = "ln(B)"

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create scatter: %w", err)
	}
	xerr, err := plotter.NewXErrorBars(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create thickness error bars: %w", err)
	}
	yerr, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create count error bars: %w", err)
	}

	line := plotter.NewFunction(func(d float64) float64 { return math.Log(fit.B0) - fit.Mu*d })
	line.XMin = 0
	line.XMax = pts.XYs[len(pts.XYs)-1].X * 1.1
	line.Width = vg.Points(1)

	p.Add(scatter, xerr, yerr, line)
	p.Legend.Add("data", scatter)
	p.Legend.Add("fit", line)
	p.Legend.Top = true
	p.X.Min = 0

	return p, nil
}

// propertyLine returns one mean property per dataset against its value
func propertyLine(datasets []*analysis.DatasetResult, prop func(analysis.PropertySummary) float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(datasets))
	for _, d := range datasets {
		if d.Properties.Clusters == 0 {
			continue
		}
		pts = append(pts, plotter.XY{X: d.Dataset.Value, Y: prop(d.Properties)})
	}
	return pts
}

// PropertyPlot draws a mean cluster property against thickness
func PropertyPlot(datasets []*analysis.DatasetResult, label string, prop func(analysis.PropertySummary) float64) (*plot.Plot, error) {
	pts := propertyLine(datasets, prop)
	if len(pts) == 0 {
		return nil, ErrNoPoints
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs thickness", label)
	p.X.Label.Text = "Thickness"
	if len(datasets) > 0 {
		p.X.Label.Text = fmt.Sprintf("Thickness [%s]", datasets[0].Dataset.Unit)
	}
	p.Y.Label.Text = label

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line, points)

	return p, nil
}

// SizeHistogram draws the cluster size distribution of the given records,
// optionally restricted to some types
func SizeHistogram(records []models.KlusterRecord, title string, types ...models.ClusterType) (*plot.Plot, error) {
	want := make(map[models.ClusterType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}

	var sizes plotter.Values
	maxSize := 0
	for _, r := range records {
		if len(want) > 0 && !want[r.Type] {
			continue
		}
		sizes = append(sizes, float64(r.Size))
		maxSize = max(maxSize, r.Size)
	}
	if len(sizes) == 0 {
		return nil, ErrNoPoints
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Cluster size [pixels]"
	p.Y.Label.Text = "Clusters"

	h, err := plotter.NewHist(sizes, max(maxSize, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram: %w", err)
	}
	p.Add(h)

	return p, nil
}

// SaveRun writes every plot of a run and returns the written paths. Plots
// without data are skipped.
func (pl *Plotter) SaveRun(run *analysis.Run) ([]string, error) {
	if err := os.MkdirAll(pl.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory: %w", err)
	}

	unit := ""
	if len(run.Datasets) > 0 {
		unit = run.Datasets[0].Dataset.Unit
	}

	var written []string
	save := func(p *plot.Plot, err error, name string) error {
		if errors.Is(err, ErrNoPoints) {
			return nil
		}
		if err != nil {
			return err
		}
		path := filepath.Join(pl.outputDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create plot directory: %w", err)
		}
		if err := p.Save(pl.width, pl.height, path); err != nil {
			return fmt.Errorf("failed to save %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	if run.Fit != nil {
		p, err := AttenuationPlot(run.Fit, unit)
		if err := save(p, err, AttenuationPlotName); err != nil {
			return written, err
		}
	}

	props := []struct {
		name  string
		label string
		value func(analysis.PropertySummary) float64
	}{
		{"mean_counts.png", "Mean counts per cluster", func(s analysis.PropertySummary) float64 { return s.MeanCounts }},
		{"mean_hits.png", "Mean hits per cluster", func(s analysis.PropertySummary) float64 { return s.MeanHits }},
		{"mean_radius.png", "Mean cluster radius", func(s analysis.PropertySummary) float64 { return s.MeanRadius }},
	}
	for _, prop := range props {
		p, err := PropertyPlot(run.Datasets, prop.label, prop.value)
		if err := save(p, err, prop.name); err != nil {
			return written, err
		}
	}

	for _, d := range run.Datasets {
		p, err := SizeHistogram(d.Records, d.Dataset.Name)
		if err := save(p, err, filepath.Join(d.Dataset.Name, SizeHistogramName)); err != nil {
			return written, err
		}
	}

	return written, nil
}
