package attenuation

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Result holds the fitted attenuation parameters. It is computed once by
// Fit and never modified afterwards.
type Result struct {
	// Slope and Intercept of ln(B_i) = Slope·d_i + Intercept
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`

	// Mu is the estimated attenuation coefficient [mm^-1]
	Mu float64 `json:"mu"`

	// MuErr is the maximum-log-likelihood standard error on Mu
	MuErr        float64 `json:"mu_err"`
	MuErrPercent float64 `json:"mu_err_pc"`

	// B0 is the fitted initial count exp(Intercept)
	B0 float64 `json:"b0"`

	// MeanFreePath is 1/Mu [mm] with its propagated error
	MeanFreePath           float64 `json:"mfp"`
	MeanFreePathErr        float64 `json:"mfp_err"`
	MeanFreePathErrPercent float64 `json:"mfp_err_pc"`

	// ChiSquared compares observed and predicted ln(B_i); the degrees of
	// freedom are the number of fitted points minus the two parameters.
	ChiSquared       float64 `json:"chi2"`
	DegreesOfFreedom int     `json:"dof"`

	// PValue is the chi-squared survival probability, nil when there are
	// no degrees of freedom.
	PValue *float64 `json:"p_value,omitempty"`

	// Points are the data points used in the fit, sorted by thickness
	Points []DataPoint `json:"-"`
}

// Predict returns the model count at thickness d
func (r *Result) Predict(d float64) float64 {
	return r.B0 * math.Exp(-r.Mu*d)
}

// PredictedLogCounts returns ln of the model count at each fitted point
func (r *Result) PredictedLogCounts() []float64 {
	out := make([]float64, len(r.Points))
	for k, p := range r.Points {
		out[k] = p.PredictedLogCount(r.Mu, r.B0)
	}
	return out
}

// Option configures Fit
type Option func(*fitter)

type fitter struct {
	logger *slog.Logger
}

// WithLogger sets the logger receiving the per-point likelihood terms
func WithLogger(logger *slog.Logger) Option {
	return func(f *fitter) {
		f.logger = logger
	}
}

// Usable reports whether a point takes part in the fit: it must lie
// behind an absorber and have a non-zero count.
func Usable(p DataPoint) bool {
	return !p.IsBaseline() && p.count > 0
}

// Fit estimates μ and B0 from the points. Baseline (zero-thickness) points
// and zero counts are excluded. The same points always give the same
// result.
func Fit(points []DataPoint, opts ...Option) (*Result, error) {
	f := &fitter{}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.New(slog.DiscardHandler)
	}

	used := make([]DataPoint, 0, len(points))
	for _, p := range points {
		if Usable(p) {
			used = append(used, p)
		}
	}
	sort.SliceStable(used, func(i, j int) bool { return used[i].thickness < used[j].thickness })

	if len(used) < 2 || used[0].thickness == used[len(used)-1].thickness {
		return nil, fmt.Errorf("%w: %d usable of %d", ErrTooFewPoints, len(used), len(points))
	}

	xs := make([]float64, len(used))
	ys := make([]float64, len(used))
	for k, p := range used {
		xs[k] = p.thickness
		ys[k] = math.Log(p.count)
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	mu := -slope
	if mu == 0 {
		return nil, ErrZeroAttenuation
	}
	b0 := math.Exp(intercept)

	muErr, err := f.likelihoodError(used, b0)
	if err != nil {
		return nil, err
	}

	r := &Result{
		Slope:           slope,
		Intercept:       intercept,
		Mu:              mu,
		MuErr:           muErr,
		MuErrPercent:    100 * muErr / mu,
		B0:              b0,
		MeanFreePath:    1 / mu,
		MeanFreePathErr: muErr / (mu * mu),
		Points:          used,
	}
	r.MeanFreePathErrPercent = 100 * r.MeanFreePathErr / r.MeanFreePath

	r.ChiSquared = stat.ChiSquare(ys, r.PredictedLogCounts())
	r.DegreesOfFreedom = len(used) - 2
	if r.DegreesOfFreedom > 0 {
		p := distuv.ChiSquared{K: float64(r.DegreesOfFreedom)}.Survival(r.ChiSquared)
		r.PValue = &p
	}

	f.logger.Info("attenuation fit",
		"mu", r.Mu, "mu_err", r.MuErr, "mu_err_pc", r.MuErrPercent,
		"mfp", r.MeanFreePath, "mfp_err", r.MeanFreePathErr,
		"b0", r.B0, "chi2", r.ChiSquared, "dof", r.DegreesOfFreedom,
	)

	return r, nil
}

// likelihoodError returns σ_μ = 1/sqrt(Σ d_i²·B_i·B0/(B0 − B_i))
func (f *fitter) likelihoodError(points []DataPoint, b0 float64) (float64, error) {
	sum := 0.0
	for _, p := range points {
		denom := b0 - p.count
		if denom <= 0 {
			return 0, fmt.Errorf("%w: d=%g B=%g B0=%g", ErrNonPositiveDenominator, p.thickness, p.count, b0)
		}
		term := p.thickness * p.thickness * p.count * b0 / denom
		sum += term

		f.logger.Debug("likelihood term",
			"d", p.thickness, "count", p.count,
			"d2", p.thickness*p.thickness, "count_frac", p.count*b0/denom, "term", term,
		)
	}
	f.logger.Debug("likelihood sum", "sum", sum)

	return 1 / math.Sqrt(sum), nil
}
