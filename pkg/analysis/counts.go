package analysis

import (
	"gonum.org/v1/gonum/stat"

	"betaatten/internal/models"
)

// TypeCounts is the number of clusters of each type in a dataset
type TypeCounts map[models.ClusterType]int

// Add counts one cluster of type t
func (c TypeCounts) Add(t models.ClusterType) {
	c[t]++
}

// Merge adds other's counts into c
func (c TypeCounts) Merge(other TypeCounts) {
	for t, n := range other {
		c[t] += n
	}
}

// Total returns the number of clusters of any type
func (c TypeCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// NonEdge returns the number of clusters not touching the frame margins
func (c TypeCounts) NonEdge() int {
	return c.Total() - c[models.Edge]
}

// Percent returns the share of type t among the non-edge clusters. Edge
// clusters are reported as a share of all clusters.
func (c TypeCounts) Percent(t models.ClusterType) float64 {
	denom := c.NonEdge()
	if t == models.Edge {
		denom = c.Total()
	}
	if denom == 0 {
		return 0
	}
	return 100 * float64(c[t]) / float64(denom)
}

// PropertySummary holds the mean properties of a dataset's non-edge
// clusters
type PropertySummary struct {
	Clusters   int     `json:"clusters"`
	MeanCounts float64 `json:"mean_counts"`
	MeanHits   float64 `json:"mean_hits"`
	MeanRadius float64 `json:"mean_radius"`
}

// Summarise computes the mean counts, hits and radius per non-edge cluster
func Summarise(clusters []*models.Cluster) PropertySummary {
	var counts, size, radius []float64
	for _, k := range clusters {
		if k.Type == models.Edge {
			continue
		}
		counts = append(counts, float64(k.Sum))
		size = append(size, float64(k.Size))
		radius = append(radius, k.Radius)
	}
	if len(counts) == 0 {
		return PropertySummary{}
	}
	return PropertySummary{
		Clusters:   len(counts),
		MeanCounts: stat.Mean(counts, nil),
		MeanHits:   stat.Mean(size, nil),
		MeanRadius: stat.Mean(radius, nil),
	}
}
