// Package classification assigns particle types to analysed clusters.
//
// Clusters touching the sensor margins are Edge clusters. All other
// clusters are classified by a Policy of size bands refined by radius or
// density thresholds. Thresholds are detector-calibration values and are
// always supplied by the caller.
package classification

import (
	"errors"
	"fmt"
	"math"

	"betaatten/internal/models"
)

var (
	// ErrUnknownPolicy is returned when a policy name is not built in.
	ErrUnknownPolicy = errors.New("unknown classification policy")

	// ErrInvalidBand is returned when a policy band is malformed.
	ErrInvalidBand = errors.New("invalid classification band")

	// ErrInvalidMargins is returned when a frame margin has Min >= Max.
	ErrInvalidMargins = errors.New("invalid frame margins")
)

// Margins bounds one sensor axis. Coordinates at or beyond a margin are
// on the edge of the frame.
type Margins struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// FrameMargins holds the margins of both sensor axes
type FrameMargins struct {
	I Margins `yaml:"i"`
	J Margins `yaml:"j"`
}

// DefaultFrameMargins returns the margins of a 256x256 pixel sensor
func DefaultFrameMargins() FrameMargins {
	m := Margins{Min: 0.1, Max: 254.9}
	return FrameMargins{I: m, J: m}
}

// Validate checks that each axis has Min < Max
func (f FrameMargins) Validate() error {
	for _, axis := range []struct {
		name string
		m    Margins
	}{{"i", f.I}, {"j", f.J}} {
		if math.IsNaN(axis.m.Min) || math.IsNaN(axis.m.Max) || axis.m.Min >= axis.m.Max {
			return fmt.Errorf("%w: %s axis [%g, %g]", ErrInvalidMargins, axis.name, axis.m.Min, axis.m.Max)
		}
	}
	return nil
}

// Touches reports whether the bounding box reaches a frame margin
func (f FrameMargins) Touches(b models.BoundingBox) bool {
	return float64(b.IMin) <= f.I.Min || float64(b.IMax) >= f.I.Max ||
		float64(b.JMin) <= f.J.Min || float64(b.JMax) >= f.J.Max
}

// Classifier applies the edge check and a size-band policy
type Classifier struct {
	margins FrameMargins
	policy  Policy
}

// NewClassifier validates the margins and policy and returns a classifier
func NewClassifier(margins FrameMargins, policy Policy) (*Classifier, error) {
	if err := margins.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{margins: margins, policy: policy}, nil
}

// Policy returns the active policy
func (c *Classifier) Policy() Policy {
	return c.policy
}

// Margins returns the frame margins used for edge detection
func (c *Classifier) Margins() FrameMargins {
	return c.margins
}

// Type returns the type of an analysed cluster without modifying it.
// Clusters that have not been analysed are None.
func (c *Classifier) Type(k *models.Cluster) models.ClusterType {
	if !k.Analysed || k.Size == 0 {
		return models.None
	}
	if c.margins.Touches(k.Bounds) {
		return models.Edge
	}
	for _, b := range c.policy.Bands {
		if b.Contains(k.Size) {
			return b.assign(k)
		}
	}
	return models.None
}

// Classify sets and returns the cluster's type. Geometry is untouched.
func (c *Classifier) Classify(k *models.Cluster) models.ClusterType {
	k.Type = c.Type(k)
	return k.Type
}

// ClassifyAll classifies every cluster in place
func (c *Classifier) ClassifyAll(clusters []*models.Cluster) {
	for _, k := range clusters {
		c.Classify(k)
	}
}
