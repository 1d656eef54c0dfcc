package attenuation

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func synthetic(t *testing.T, b0, mu float64, ds ...float64) []DataPoint {
	t.Helper()
	points := make([]DataPoint, 0, len(ds))
	for _, d := range ds {
		p, err := NewDataPoint(d, b0*math.Exp(-mu*d), b0)
		require.NoError(t, err)
		points = append(points, p)
	}
	return points
}

func TestFitNoiselessRoundTrip(t *testing.T) {
	points := synthetic(t, 1000, 0.5, 0.5, 1.0, 1.5, 2.0)

	r, err := Fit(points)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, r.Mu, 1e-9)
	assert.InDelta(t, -0.5, r.Slope, 1e-9)
	assert.InDelta(t, 1000, r.B0, 1e-6)
	assert.InDelta(t, 2.0, r.MeanFreePath, 1e-9)
	assert.InDelta(t, 0, r.ChiSquared, 1e-12)
	assert.Equal(t, 2, r.DegreesOfFreedom)
	require.NotNil(t, r.PValue)
	assert.InDelta(t, 1, *r.PValue, 1e-9)

	sum := 0.0
	for _, d := range []float64{0.5, 1.0, 1.5, 2.0} {
		b := 1000 * math.Exp(-0.5*d)
		sum += d * d * b * 1000 / (1000 - b)
	}
	assert.InDelta(t, 1/math.Sqrt(sum), r.MuErr, 1e-9)
	assert.InDelta(t, r.MuErr/(r.Mu*r.Mu), r.MeanFreePathErr, 1e-12)
	assert.InDelta(t, 100*r.MuErr/r.Mu, r.MuErrPercent, 1e-9)
	assert.InDelta(t, r.MuErrPercent, r.MeanFreePathErrPercent, 1e-9)
}

func TestFitExcludesBaselineAndZeroCounts(t *testing.T) {
	points := synthetic(t, 1000, 0.5, 0.0, 0.5, 1.0, 1.5)
	zero, err := NewDataPoint(20, 0, 1000)
	require.NoError(t, err)
	points = append(points, zero)

	r, err := Fit(points)
	require.NoError(t, err)

	require.Len(t, r.Points, 3)
	for _, p := range r.Points {
		assert.True(t, Usable(p))
	}
	assert.InDelta(t, 0.5, r.Mu, 1e-9)
	assert.Equal(t, 1, r.DegreesOfFreedom)
}

func TestFitSortsPointsByThickness(t *testing.T) {
	points := synthetic(t, 500, 0.3, 2.0, 0.5, 1.0)

	r, err := Fit(points)
	require.NoError(t, err)
	assert.Equal(t, 0.5, r.Points[0].Thickness())
	assert.Equal(t, 1.0, r.Points[1].Thickness())
	assert.Equal(t, 2.0, r.Points[2].Thickness())
}

func TestFitTwoPointsHasNoPValue(t *testing.T) {
	r, err := Fit(synthetic(t, 1000, 0.5, 1.0, 2.0))
	require.NoError(t, err)
	assert.Equal(t, 0, r.DegreesOfFreedom)
	assert.Nil(t, r.PValue)
}

func TestFitNoisyPValueInRange(t *testing.T) {
	ds := []float64{0.25, 0.5, 0.75, 1.0, 1.25, 1.5}
	noise := []float64{1.03, 0.97, 1.02, 0.99, 1.04, 0.96}
	points := make([]DataPoint, len(ds))
	for k, d := range ds {
		p, err := NewDataPoint(d, math.Round(2000*math.Exp(-0.8*d)*noise[k]), 2000)
		require.NoError(t, err)
		points[k] = p
	}

	r, err := Fit(points)
	require.NoError(t, err)
	assert.Greater(t, r.ChiSquared, 0.0)
	require.NotNil(t, r.PValue)
	assert.GreaterOrEqual(t, *r.PValue, 0.0)
	assert.LessOrEqual(t, *r.PValue, 1.0)
	assert.InDelta(t, 0.8, r.Mu, 0.1)

	again, err := Fit(points)
	require.NoError(t, err)
	assert.Equal(t, r, again)
}

func TestFitTooFewPoints(t *testing.T) {
	_, err := Fit(nil)
	assert.ErrorIs(t, err, ErrTooFewPoints)

	_, err = Fit(synthetic(t, 1000, 0.5, 0.0, 1.0))
	assert.ErrorIs(t, err, ErrTooFewPoints)

	same := synthetic(t, 1000, 0.5, 1.0, 1.0)
	_, err = Fit(same)
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestFitNonPositiveDenominator(t *testing.T) {
	// Counts that grow with thickness fit an initial count below the
	// observed counts.
	a, err := NewDataPoint(1, 100, 1000)
	require.NoError(t, err)
	b, err := NewDataPoint(2, 200, 1000)
	require.NoError(t, err)

	r, err := Fit([]DataPoint{a, b})
	assert.ErrorIs(t, err, ErrNonPositiveDenominator)
	assert.Nil(t, r)
}

func TestFitZeroAttenuation(t *testing.T) {
	a, err := NewDataPoint(1, 100, 1000)
	require.NoError(t, err)
	b, err := NewDataPoint(2, 100, 1000)
	require.NoError(t, err)

	_, err = Fit([]DataPoint{a, b})
	assert.ErrorIs(t, err, ErrZeroAttenuation)
}

func TestFitLogsLikelihoodTerms(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Fit(synthetic(t, 1000, 0.5, 0.5, 1.0, 1.5), WithLogger(logger))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "likelihood term")
	assert.Contains(t, buf.String(), "attenuation fit")
}

func TestResultPredict(t *testing.T) {
	r, err := Fit(synthetic(t, 1000, 0.5, 0.5, 1.0, 1.5))
	require.NoError(t, err)
	assert.InDelta(t, 1000*math.Exp(-1.5), r.Predict(3), 1e-6)
}
