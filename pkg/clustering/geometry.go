package clustering

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"betaatten/internal/models"
)

// Analyse computes the geometry of a fully grown cluster: the unweighted
// centroid, the radius (largest centroid-to-hit distance), the density
// size/radius² (0 for a single-pixel cluster), the bounding box, and the
// summed and maximum counts.
//
// Analyse derives everything from the member hits, so calling it again
// on the same cluster yields the same values.
func Analyse(frame *models.Frame, c *models.Cluster) {
	c.Size = len(c.Hits)
	if c.Size == 0 {
		c.Analysed = true
		return
	}

	is := make([]float64, c.Size)
	js := make([]float64, c.Size)
	sum, maxVal := 0, 0
	for k, idx := range c.Hits {
		h := frame.Hits[idx]
		is[k] = float64(h.I)
		js[k] = float64(h.J)
		sum += h.Val
		if h.Val > maxVal {
			maxVal = h.Val
		}
	}
	c.Sum = sum
	c.MaxVal = maxVal

	c.CentroidI = stat.Mean(is, nil)
	c.CentroidJ = stat.Mean(js, nil)

	rmax2 := 0.0
	for k := range is {
		di := is[k] - c.CentroidI
		dj := js[k] - c.CentroidJ
		if r2 := di*di + dj*dj; r2 > rmax2 {
			rmax2 = r2
		}
	}
	c.Radius = math.Sqrt(rmax2)

	if c.Radius > 0 {
		c.Density = float64(c.Size) / (c.Radius * c.Radius)
	} else {
		c.Density = 0
	}

	c.Bounds = models.BoundingBox{
		IMin: int(floats.Min(is)),
		IMax: int(floats.Max(is)),
		JMin: int(floats.Min(js)),
		JMax: int(floats.Max(js)),
	}
	c.Analysed = true
}

// Record builds the cluster property record for the k-th cluster of the
// frame. The cluster must have been analysed.
func Record(frameID string, k int, c *models.Cluster) models.KlusterRecord {
	return models.KlusterRecord{
		ID:          models.KlusterID(frameID, k),
		Size:        c.Size,
		RadiusUW:    c.Radius,
		DensityUW:   c.Density,
		TotalCounts: c.Sum,
		MaxCounts:   c.MaxVal,
		XMin:        float64(c.Bounds.IMin),
		XMax:        float64(c.Bounds.IMax),
		YMin:        float64(c.Bounds.JMin),
		YMax:        float64(c.Bounds.JMax),
		XBar:        c.CentroidI,
		YBar:        c.CentroidJ,
		Type:        c.Type,
	}
}
