package classification

import (
	"fmt"
	"math"
	"strings"

	"betaatten/internal/models"
)

// Metric is the cluster property a size band compares against its threshold
type Metric string

const (
	// MetricNone assigns the band's Below type unconditionally. An empty
	// metric means the same.
	MetricNone Metric = "none"
	// MetricRadius compares the unweighted cluster radius.
	MetricRadius Metric = "radius"
	// MetricDensity compares size / radius².
	MetricDensity Metric = "density"
)

// Radii of the most compact tri- and tetra-pixel clusters: the L-shaped
// tripixel and the 2x2 square.
var (
	TripixelRadius   = math.Sqrt(5) / 3
	TetrapixelRadius = math.Sqrt2 / 2
)

// thresholdTolerance absorbs rounding in computed radii so that a cluster
// with exactly the threshold geometry compares as Equal.
const thresholdTolerance = 1e-9

// Band classifies clusters whose size lies in [MinSize, MaxSize]. A
// MaxSize of 0 leaves the band open-ended. Clusters whose metric value is
// below, equal to or above Threshold receive Below, Equal or Above.
type Band struct {
	MinSize   int                `yaml:"minSize"`
	MaxSize   int                `yaml:"maxSize"`
	Metric    Metric             `yaml:"metric"`
	Threshold float64            `yaml:"threshold"`
	Below     models.ClusterType `yaml:"below"`
	Equal     models.ClusterType `yaml:"equal"`
	Above     models.ClusterType `yaml:"above"`
}

// Contains reports whether a cluster of the given size falls in the band
func (b Band) Contains(size int) bool {
	if size < b.MinSize {
		return false
	}
	return b.MaxSize == 0 || size <= b.MaxSize
}

func (b Band) assign(c *models.Cluster) models.ClusterType {
	var v float64
	switch b.Metric {
	case MetricRadius:
		v = c.Radius
	case MetricDensity:
		v = c.Density
	default:
		return b.Below
	}

	switch {
	case v < b.Threshold-thresholdTolerance:
		return b.Below
	case v > b.Threshold+thresholdTolerance:
		return b.Above
	default:
		return b.Equal
	}
}

// Policy is a named set of size bands, evaluated in order. The first band
// containing the cluster's size decides its type; clusters matching no
// band are None.
type Policy struct {
	Name  string `yaml:"name"`
	Bands []Band `yaml:"bands"`
}

// Validate checks that every band is well formed
func (p Policy) Validate() error {
	if len(p.Bands) == 0 {
		return fmt.Errorf("%w: policy %q has no bands", ErrInvalidBand, p.Name)
	}
	for k, b := range p.Bands {
		if b.MinSize < 1 {
			return fmt.Errorf("%w: band %d: minimum size must be at least 1", ErrInvalidBand, k)
		}
		if b.MaxSize != 0 && b.MaxSize < b.MinSize {
			return fmt.Errorf("%w: band %d: maximum size %d below minimum %d", ErrInvalidBand, k, b.MaxSize, b.MinSize)
		}
		switch b.Metric {
		case "", MetricNone, MetricRadius, MetricDensity:
		default:
			return fmt.Errorf("%w: band %d: unknown metric %q", ErrInvalidBand, k, b.Metric)
		}
		if b.Metric != MetricNone && b.Metric != "" && (math.IsNaN(b.Threshold) || b.Threshold < 0) {
			return fmt.Errorf("%w: band %d: threshold must be non-negative", ErrInvalidBand, k)
		}
	}
	return nil
}

// PolicySr90 reproduces the strontium-90 sorting thresholds: one- and
// two-pixel clusters are gammas, three- and four-pixel clusters are gammas
// only when as compact as the tightest possible shape, everything larger
// is a beta. No alphas are expected from the source.
func PolicySr90() Policy {
	return Policy{
		Name: "sr90",
		Bands: []Band{
			{MinSize: 1, MaxSize: 2, Metric: MetricNone, Below: models.Gamma},
			{MinSize: 3, MaxSize: 3, Metric: MetricRadius, Threshold: TripixelRadius,
				Below: models.Gamma, Equal: models.Gamma, Above: models.Beta},
			{MinSize: 4, MaxSize: 4, Metric: MetricRadius, Threshold: TetrapixelRadius,
				Below: models.Gamma, Equal: models.Gamma, Above: models.Beta},
			{MinSize: 5, Metric: MetricNone, Below: models.Beta},
		},
	}
}

// PolicySimple reproduces the general-purpose cluster analyser thresholds.
// Large clusters with a density of exactly 3.14 fall between the alpha and
// beta cuts and stay None.
func PolicySimple() Policy {
	return Policy{
		Name: "simple",
		Bands: []Band{
			{MinSize: 1, MaxSize: 4, Metric: MetricRadius, Threshold: 0.71,
				Below: models.Gamma, Equal: models.Gamma, Above: models.Beta},
			{MinSize: 5, MaxSize: 6, Metric: MetricRadius, Threshold: 1.42,
				Below: models.Alpha, Equal: models.Alpha, Above: models.Beta},
			{MinSize: 7, Metric: MetricDensity, Threshold: 3.14,
				Below: models.Beta, Equal: models.None, Above: models.Alpha},
		},
	}
}

// PolicyByName returns a built-in policy
func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(name) {
	case "sr90":
		return PolicySr90(), nil
	case "simple":
		return PolicySimple(), nil
	default:
		return Policy{}, fmt.Errorf("%w: %q (known: sr90, simple)", ErrUnknownPolicy, name)
	}
}
