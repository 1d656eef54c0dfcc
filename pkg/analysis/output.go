package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"betaatten/internal/models"
	"betaatten/pkg/attenuation"
)

// Output file names
const (
	KlustersFileName    = "klusters.json"
	SummaryFileName     = "summary.json"
	AttenuationFileName = "attenuation.json"
)

// ResultsFileName names the counts file for a cluster type, e.g.
// beta_results.json
func ResultsFileName(t models.ClusterType) string {
	return strings.ToLower(t.String()) + "_results.json"
}

// WriteJSON writes v as indented JSON, creating parent directories
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return nil
}

// DatasetSummary is the per-dataset entry of summary.json
type DatasetSummary struct {
	Name       string                         `json:"name"`
	Value      float64                        `json:"value"`
	Unit       string                         `json:"unit"`
	Frames     int                            `json:"frames"`
	Hits       int                            `json:"hits"`
	Masked     int                            `json:"masked"`
	Clusters   int                            `json:"clusters"`
	Counts     TypeCounts                     `json:"counts"`
	Percent    map[models.ClusterType]float64 `json:"percent"`
	Properties PropertySummary                `json:"properties"`
}

// Summary condenses a dataset result
func (d *DatasetResult) Summary() DatasetSummary {
	s := DatasetSummary{
		Name:       d.Dataset.Name,
		Value:      d.Dataset.Value,
		Unit:       d.Dataset.Unit,
		Frames:     d.Frames,
		Hits:       d.Hits,
		Masked:     d.Masked,
		Clusters:   d.Counts.Total(),
		Counts:     d.Counts,
		Percent:    make(map[models.ClusterType]float64),
		Properties: d.Properties,
	}
	for _, t := range models.AllClusterTypes() {
		s.Percent[t] = d.Counts.Percent(t)
	}
	return s
}

// Summaries condenses every dataset result
func Summaries(datasets []*DatasetResult) []DatasetSummary {
	out := make([]DatasetSummary, len(datasets))
	for k, d := range datasets {
		out[k] = d.Summary()
	}
	return out
}

// PointReport is one row of the attenuation point table. Quantities that
// are undefined for the point are omitted.
type PointReport struct {
	Thickness      float64  `json:"d"`
	ThicknessErr   float64  `json:"d_err"`
	Count          float64  `json:"count"`
	CountErr       *float64 `json:"count_err,omitempty"`
	LogCount       *float64 `json:"ln_count,omitempty"`
	LogErrUpper    *float64 `json:"ln_count_err_upper,omitempty"`
	LogErrLower    *float64 `json:"ln_count_err_lower,omitempty"`
	Mu             *float64 `json:"mu_i,omitempty"`
	SuccessRate    float64  `json:"success_rate"`
	PredictedCount float64  `json:"predicted_count"`
	Used           bool     `json:"used"`
}

// FitReport is the content of attenuation.json
type FitReport struct {
	*attenuation.Result
	Baseline int           `json:"baseline"`
	Points   []PointReport `json:"points"`
}

// NewFitReport tabulates every point of the results against the fit
func NewFitReport(r Results, fit *attenuation.Result, thicknessErr float64) (*FitReport, error) {
	points, err := r.DataPoints(thicknessErr)
	if err != nil {
		return nil, err
	}

	report := &FitReport{Result: fit, Baseline: r.Baseline, Points: make([]PointReport, len(points))}
	for k, p := range points {
		report.Points[k] = PointReport{
			Thickness:      p.Thickness(),
			ThicknessErr:   p.ThicknessError(),
			Count:          p.Count(),
			CountErr:       optional(p.CountError()),
			LogCount:       optional(p.LogCount()),
			LogErrUpper:    optional(p.LogErrorUpper()),
			LogErrLower:    optional(p.LogErrorLower()),
			Mu:             optional(p.AttenuationEstimate()),
			SuccessRate:    p.SuccessRate(),
			PredictedCount: p.PredictedCount(fit.Mu, fit.B0),
			Used:           attenuation.Usable(p),
		}
	}
	return report, nil
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
