// Package analysis runs the cluster pipeline over a family of thickness
// datasets and aggregates the per-thickness counts the attenuation fit
// consumes.
//
// The processing consists of several steps:
// 1. Discovering the thickness datasets and their frames
// 2. Clustering and classifying every frame, frames in parallel
// 3. Aggregating per-type counts and cluster properties per dataset
// 4. Writing cluster records, counts and summaries
// 5. Fitting the attenuation model to the counted type
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"betaatten/internal/models"
	"betaatten/pkg/attenuation"
	"betaatten/pkg/classification"
	"betaatten/pkg/clustering"
	"betaatten/pkg/dataset"
	"betaatten/pkg/hits"
)

// ErrNoClassifier is returned when Params carries no classifier.
var ErrNoClassifier = errors.New("no classifier configured")

// Params holds the processing configuration
type Params struct {
	// DataDir holds one directory per absorber thickness
	DataDir string

	// OutputDir receives the JSON outputs. Empty disables writing.
	OutputDir string

	// NumCores is the number of frames processed concurrently; below 1
	// means one per CPU
	NumCores int

	// Classifier assigns cluster types
	Classifier *classification.Classifier

	// CountType is the cluster type counted for the attenuation fit
	CountType models.ClusterType

	// IncludeGammas keeps gamma candidates in the cluster records
	IncludeGammas bool

	// ThicknessError is the absorber thickness uncertainty in mm
	ThicknessError float64
}

// FrameResult is the outcome of processing one frame
type FrameResult struct {
	ID       string
	Hits     int
	Masked   int
	Clusters []*models.Cluster
	Records  []models.KlusterRecord
}

// DatasetResult aggregates the frames of one dataset
type DatasetResult struct {
	Dataset    *dataset.Dataset
	Frames     int
	Hits       int
	Masked     int
	Counts     TypeCounts
	Properties PropertySummary
	Records    []models.KlusterRecord
}

// Run is the outcome of processing every dataset under DataDir
type Run struct {
	Datasets []*DatasetResult
	Results  Results
	Fit      *attenuation.Result
}

// Option configures a Processor
type Option func(*Processor)

// WithLogger sets the logger used for progress and fit diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// Processor runs the cluster pipeline over thickness datasets
type Processor struct {
	params *Params
	cores  int
	logger *slog.Logger
}

// NewProcessor creates a new processor with the provided parameters
func NewProcessor(params *Params, opts ...Option) *Processor {
	p := &Processor{params: params}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	p.cores = params.NumCores
	if p.cores < 1 {
		p.cores = runtime.NumCPU()
	}
	return p
}

// Process runs the complete pipeline. When the fit fails, the returned run
// still carries the dataset results and counts alongside the error.
func (p *Processor) Process(ctx context.Context) (*Run, error) {
	if p.params.Classifier == nil {
		return nil, ErrNoClassifier
	}
	start := time.Now()

	p.logger.Info("discovering datasets", "dir", p.params.DataDir)
	datasets, err := dataset.Discover(p.params.DataDir)
	if err != nil {
		return nil, err
	}

	// Every input must be present before any clustering begins.
	framePaths := make([][]string, len(datasets))
	hasBaseline := false
	for k, d := range datasets {
		if framePaths[k], err = d.FramePaths(); err != nil {
			return nil, err
		}
		hasBaseline = hasBaseline || d.IsBaseline()
	}
	if !hasBaseline {
		return nil, fmt.Errorf("%w: no zero-thickness dataset in %s", ErrNoBaseline, p.params.DataDir)
	}

	run := &Run{Results: NewResults(0)}
	for k, d := range datasets {
		dr, err := p.processDataset(ctx, d, framePaths[k])
		if err != nil {
			return nil, err
		}
		run.Datasets = append(run.Datasets, dr)
		run.Results.Set(d.Value, dr.Counts[p.params.CountType])
	}

	if err := p.writeDatasets(run); err != nil {
		return nil, err
	}

	fit, err := FitResults(run.Results, p.params.ThicknessError, attenuation.WithLogger(p.logger))
	if err != nil {
		return run, fmt.Errorf("attenuation fit: %w", err)
	}
	run.Fit = fit

	if err := p.writeFit(run); err != nil {
		return run, err
	}

	p.logger.Info("processing complete",
		"datasets", len(run.Datasets),
		"baseline", run.Results.Baseline,
		"elapsed", time.Since(start),
	)
	return run, nil
}

// ProcessDataset clusters and classifies every frame of one dataset
func (p *Processor) ProcessDataset(ctx context.Context, d *dataset.Dataset) (*DatasetResult, error) {
	if p.params.Classifier == nil {
		return nil, ErrNoClassifier
	}
	paths, err := d.FramePaths()
	if err != nil {
		return nil, err
	}
	return p.processDataset(ctx, d, paths)
}

func (p *Processor) processDataset(ctx context.Context, d *dataset.Dataset, paths []string) (*DatasetResult, error) {
	mask, err := hits.ReadMaskFile(d.MaskPath())
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.Name, err)
	}

	p.logger.Info("processing dataset",
		"dataset", d.Name,
		"value", d.Value,
		"unit", d.Unit,
		"frames", len(paths),
		"masked_pixels", mask.Len(),
	)

	// Each goroutine owns one slot, so no lock is needed.
	frames := make([]*FrameResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cores)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fr, err := p.ProcessFrame(path, mask)
			if err != nil {
				return err
			}
			frames[i] = fr
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.Name, err)
	}

	dr := &DatasetResult{
		Dataset: d,
		Frames:  len(frames),
		Counts:  make(TypeCounts),
	}
	var clusters []*models.Cluster
	for _, fr := range frames {
		dr.Hits += fr.Hits
		dr.Masked += fr.Masked
		dr.Records = append(dr.Records, fr.Records...)
		for _, k := range fr.Clusters {
			dr.Counts.Add(k.Type)
		}
		clusters = append(clusters, fr.Clusters...)
	}
	dr.Properties = Summarise(clusters)

	p.logger.Info("dataset processed",
		"dataset", d.Name,
		"hits", dr.Hits,
		"clusters", dr.Counts.Total(),
		"edge", dr.Counts[models.Edge],
		p.params.CountType.String(), dr.Counts[p.params.CountType],
	)
	return dr, nil
}

// ProcessFrame reads one hit file, drops masked pixels, then clusters,
// analyses and classifies its hits.
func (p *Processor) ProcessFrame(path string, mask *hits.Mask) (*FrameResult, error) {
	frame, err := hits.ReadFrame(path)
	if err != nil {
		return nil, err
	}

	fr := &FrameResult{ID: frame.ID}
	if mask.Len() > 0 {
		kept := mask.Apply(frame.Hits)
		fr.Masked = len(frame.Hits) - len(kept)
		frame = models.NewFrame(frame.ID, kept)
	}
	fr.Hits = frame.Len()

	fr.Clusters = clustering.BuildAll(frame)
	p.params.Classifier.ClassifyAll(fr.Clusters)

	for _, k := range fr.Clusters {
		if k.Type == models.Gamma && !p.params.IncludeGammas {
			continue
		}
		fr.Records = append(fr.Records, clustering.Record(frame.ID, k.Index, k))
	}

	p.logger.Debug("frame processed",
		"frame", frame.ID,
		"hits", fr.Hits,
		"masked", fr.Masked,
		"clusters", len(fr.Clusters),
	)
	return fr, nil
}

func (p *Processor) writeDatasets(run *Run) error {
	if p.params.OutputDir == "" {
		return nil
	}
	for _, dr := range run.Datasets {
		path := filepath.Join(p.params.OutputDir, dr.Dataset.Name, KlustersFileName)
		if err := WriteJSON(path, recordsOrEmpty(dr.Records)); err != nil {
			return err
		}
	}
	if err := WriteJSON(filepath.Join(p.params.OutputDir, ResultsFileName(p.params.CountType)), run.Results); err != nil {
		return err
	}
	return WriteJSON(filepath.Join(p.params.OutputDir, SummaryFileName), Summaries(run.Datasets))
}

func (p *Processor) writeFit(run *Run) error {
	if p.params.OutputDir == "" {
		return nil
	}
	report, err := NewFitReport(run.Results, run.Fit, p.params.ThicknessError)
	if err != nil {
		return err
	}
	return WriteJSON(filepath.Join(p.params.OutputDir, AttenuationFileName), report)
}

func recordsOrEmpty(r []models.KlusterRecord) []models.KlusterRecord {
	if r == nil {
		return []models.KlusterRecord{}
	}
	return r
}
