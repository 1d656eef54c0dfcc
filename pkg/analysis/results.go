package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"betaatten/pkg/attenuation"
)

// BaselineKey is the reserved results key holding the count measured
// without absorber
const BaselineKey = "0.0"

var (
	// ErrNoBaseline is returned when results lack the zero-thickness count.
	ErrNoBaseline = errors.New("no baseline count")

	// ErrInvalidThickness is returned for a negative or unparsable key.
	ErrInvalidThickness = errors.New("invalid thickness")

	// ErrDuplicateThickness is returned when two keys spell the same
	// thickness, e.g. "0.5" and "0.50".
	ErrDuplicateThickness = errors.New("duplicate thickness")
)

// Results maps each absorber thickness to the number of clusters of the
// counted type observed at it. The zero-thickness count is kept apart as
// the baseline.
type Results struct {
	Baseline int
	Counts   map[float64]int
}

// NewResults creates empty results with the given baseline
func NewResults(baseline int) Results {
	return Results{Baseline: baseline, Counts: make(map[float64]int)}
}

// Set records the count at thickness d. A zero thickness sets the baseline.
func (r *Results) Set(d float64, n int) {
	if d == 0 {
		r.Baseline = n
		return
	}
	if r.Counts == nil {
		r.Counts = make(map[float64]int)
	}
	r.Counts[d] = n
}

// Thicknesses returns the non-zero thicknesses in ascending order
func (r Results) Thicknesses() []float64 {
	ds := make([]float64, 0, len(r.Counts))
	for d := range r.Counts {
		ds = append(ds, d)
	}
	sort.Float64s(ds)
	return ds
}

// ThicknessKey formats a thickness the way results files key it, always
// with a decimal point: 0 is "0.0", 0.23 is "0.23", 1 is "1.0".
func ThicknessKey(d float64) string {
	s := strconv.FormatFloat(d, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// MarshalJSON writes the results as an object keyed by thickness
func (r Results) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, len(r.Counts)+1)
	m[BaselineKey] = r.Baseline
	for d, n := range r.Counts {
		m[ThicknessKey(d)] = n
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads an object keyed by thickness. The baseline key is
// required.
func (r *Results) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	out := NewResults(0)
	keys := make(map[float64]string, len(m))
	for k, n := range m {
		d, err := strconv.ParseFloat(k, 64)
		if err != nil || d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return fmt.Errorf("%w: %q", ErrInvalidThickness, k)
		}
		if prev, ok := keys[d]; ok {
			first, second := min(prev, k), max(prev, k)
			return fmt.Errorf("%w: %q and %q", ErrDuplicateThickness, first, second)
		}
		keys[d] = k
		out.Set(d, n)
	}
	if _, ok := keys[0]; !ok {
		return fmt.Errorf("%w: missing key %q", ErrNoBaseline, BaselineKey)
	}

	*r = out
	return nil
}

// ReadResults loads a results file
func ReadResults(path string) (Results, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided results path
	if err != nil {
		return Results{}, fmt.Errorf("error reading results: %w", err)
	}
	var r Results
	if err := json.Unmarshal(data, &r); err != nil {
		return Results{}, fmt.Errorf("error parsing results %s: %w", path, err)
	}
	return r, nil
}

// DataPoints converts the results into attenuation data points using the
// baseline as B_0. The baseline itself is not included.
func (r Results) DataPoints(thicknessErr float64) ([]attenuation.DataPoint, error) {
	points := make([]attenuation.DataPoint, 0, len(r.Counts))
	for _, d := range r.Thicknesses() {
		p, err := attenuation.NewDataPoint(d, float64(r.Counts[d]), float64(r.Baseline))
		if err != nil {
			return nil, fmt.Errorf("thickness %s: %w", ThicknessKey(d), err)
		}
		points = append(points, p.WithThicknessError(thicknessErr))
	}
	return points, nil
}

// FitResults fits the attenuation model to the results
func FitResults(r Results, thicknessErr float64, opts ...attenuation.Option) (*attenuation.Result, error) {
	points, err := r.DataPoints(thicknessErr)
	if err != nil {
		return nil, err
	}
	return attenuation.Fit(points, opts...)
}
