// Package attenuation estimates the exponential attenuation of a particle
// flux through an absorber from counts measured at several thicknesses.
//
// The model is B(d) = B0·exp(−μ·d). ln(B) is fitted against d by least
// squares; the error on μ comes from the curvature of the binomial log
// likelihood rather than from the regression residuals.
package attenuation

import (
	"errors"
	"fmt"
	"math"
)

// DefaultThicknessError is the measurement uncertainty on an absorber
// thickness, in mm.
const DefaultThicknessError = 0.01

var (
	// ErrInvalidDataPoint is returned for negative thicknesses or counts,
	// or a non-positive baseline.
	ErrInvalidDataPoint = errors.New("invalid data point")

	// ErrTooFewPoints is returned when fewer than two usable points with
	// distinct thicknesses remain after excluding the baseline.
	ErrTooFewPoints = errors.New("too few data points to fit")

	// ErrNonPositiveDenominator is returned when an observed count is not
	// below the fitted initial count, which makes the likelihood error
	// term undefined.
	ErrNonPositiveDenominator = errors.New("fitted initial count does not exceed observed count")

	// ErrZeroAttenuation is returned when the fitted slope is exactly zero
	// and the mean free path is unbounded.
	ErrZeroAttenuation = errors.New("fitted attenuation coefficient is zero")
)

// DataPoint is the count observed behind one absorber thickness
type DataPoint struct {
	thickness    float64
	thicknessErr float64
	count        float64
	baseline     float64
}

// NewDataPoint creates a data point for thickness d (mm), observed count b
// and baseline count b0 measured without absorber.
func NewDataPoint(d, b, b0 float64) (DataPoint, error) {
	if math.IsNaN(d) || d < 0 {
		return DataPoint{}, fmt.Errorf("%w: thickness %g", ErrInvalidDataPoint, d)
	}
	if math.IsNaN(b) || b < 0 {
		return DataPoint{}, fmt.Errorf("%w: count %g", ErrInvalidDataPoint, b)
	}
	if math.IsNaN(b0) || b0 <= 0 {
		return DataPoint{}, fmt.Errorf("%w: baseline %g", ErrInvalidDataPoint, b0)
	}
	return DataPoint{
		thickness:    d,
		thicknessErr: DefaultThicknessError,
		count:        b,
		baseline:     b0,
	}, nil
}

// WithThicknessError returns a copy with a different thickness uncertainty
func (p DataPoint) WithThicknessError(e float64) DataPoint {
	p.thicknessErr = e
	return p
}

// Thickness returns d_i in mm
func (p DataPoint) Thickness() float64 { return p.thickness }

// ThicknessError returns the uncertainty on d_i
func (p DataPoint) ThicknessError() float64 { return p.thicknessErr }

// Count returns B_i
func (p DataPoint) Count() float64 { return p.count }

// Baseline returns B_0
func (p DataPoint) Baseline() float64 { return p.baseline }

// IsBaseline reports whether the point was measured without absorber
func (p DataPoint) IsBaseline() bool { return p.thickness == 0 }

// SuccessRate returns the fraction B_i / B_0 of particles that got through
func (p DataPoint) SuccessRate() float64 {
	return p.count / p.baseline
}

// CountError returns the binomial error sqrt(B_i·(1 − B_i/B_0)). It is
// undefined (ok == false) when the count exceeds the baseline.
func (p DataPoint) CountError() (float64, bool) {
	v := p.count * (1 - p.count/p.baseline)
	if v < 0 {
		return math.NaN(), false
	}
	return math.Sqrt(v), true
}

// LogCount returns ln(B_i). It is undefined for a zero count.
func (p DataPoint) LogCount() (float64, bool) {
	if p.count <= 0 {
		return math.NaN(), false
	}
	return math.Log(p.count), true
}

// AttenuationEstimate returns the single-point estimate
// μ_i = ln(B_0/B_i) / d_i, defined only behind an absorber and for a
// non-zero count.
func (p DataPoint) AttenuationEstimate() (float64, bool) {
	if p.thickness <= 0 || p.count <= 0 {
		return math.NaN(), false
	}
	return math.Log(p.baseline/p.count) / p.thickness, true
}

// PredictedCount returns B0·exp(−μ·d_i)
func (p DataPoint) PredictedCount(mu, b0 float64) float64 {
	return b0 * math.Exp(-mu*p.thickness)
}

// PredictedLogCount returns ln(B0) − μ·d_i
func (p DataPoint) PredictedLogCount(mu, b0 float64) float64 {
	return math.Log(b0) - mu*p.thickness
}

// LogErrorUpper returns ln(B_i + σ_i) − ln(B_i), the upper error bar on
// ln(B_i).
func (p DataPoint) LogErrorUpper() (float64, bool) {
	sigma, ok := p.CountError()
	if !ok || p.count <= 0 {
		return math.NaN(), false
	}
	return math.Log(p.count+sigma) - math.Log(p.count), true
}

// LogErrorLower returns ln(B_i) − ln(B_i − σ_i), the lower error bar on
// ln(B_i).
func (p DataPoint) LogErrorLower() (float64, bool) {
	sigma, ok := p.CountError()
	if !ok || p.count <= sigma {
		return math.NaN(), false
	}
	return math.Log(p.count) - math.Log(p.count-sigma), true
}
