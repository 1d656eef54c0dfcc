package models

import (
	"fmt"
	"strings"
)

// ClusterType is the inferred particle type of an analysed cluster
type ClusterType int

const (
	None ClusterType = iota
	Edge
	Alpha
	Beta
	Gamma
)

var clusterTypeNames = [...]string{
	None:  "None",
	Edge:  "Edge",
	Alpha: "Alpha",
	Beta:  "Beta",
	Gamma: "Gamma",
}

// AllClusterTypes lists every cluster type in declaration order
func AllClusterTypes() []ClusterType {
	return []ClusterType{None, Edge, Alpha, Beta, Gamma}
}

func (t ClusterType) String() string {
	if t < None || t > Gamma {
		return fmt.Sprintf("ClusterType(%d)", int(t))
	}
	return clusterTypeNames[t]
}

// ParseClusterType converts a type name (case-insensitive) to a ClusterType
func ParseClusterType(s string) (ClusterType, error) {
	for i, name := range clusterTypeNames {
		if strings.EqualFold(name, s) {
			return ClusterType(i), nil
		}
	}
	return None, fmt.Errorf("unknown cluster type %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (t ClusterType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *ClusterType) UnmarshalText(text []byte) error {
	parsed, err := ParseClusterType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// BoundingBox holds the coordinate extrema of a cluster's hits
type BoundingBox struct {
	IMin, IMax int
	JMin, JMax int
}

// Cluster is a set of 8-connected hits within one frame
type Cluster struct {
	// Index is the cluster's position in the frame's discovery order
	Index int

	// Hits holds indices into the owning Frame's Hits, in discovery order
	Hits []int

	// Sum is the total recorded count over all member hits
	Sum int

	// Size is the number of member hits
	Size int

	// MaxVal is the largest single-pixel count in the cluster
	MaxVal int

	// CentroidI and CentroidJ are the unweighted mean hit coordinates
	CentroidI float64
	CentroidJ float64

	// Radius is the largest distance from the centroid to a member hit
	Radius float64

	// Density is Size / Radius², or 0 for a zero radius
	Density float64

	// Bounds is the bounding box of the member hits
	Bounds BoundingBox

	// Analysed is set once the geometry has been computed
	Analysed bool

	// Type is the classification result
	Type ClusterType
}

// NewCluster creates an empty cluster with the given discovery index
func NewCluster(index int) *Cluster {
	return &Cluster{Index: index}
}

// Add appends the hit at position idx of the frame to the cluster and
// records the back-reference on the hit.
func (c *Cluster) Add(frame *Frame, idx int) {
	frame.Hits[idx].Cluster = c.Index
	c.Hits = append(c.Hits, idx)
	c.Sum += frame.Hits[idx].Val
	c.Size = len(c.Hits)
}

// KlusterRecord is the per-cluster property record written to klusters.json
// and consumed by the reporting layer.
type KlusterRecord struct {
	ID          string      `json:"id"`
	Size        int         `json:"size"`
	RadiusUW    float64     `json:"radius_uw"`
	DensityUW   float64     `json:"density_uw"`
	TotalCounts int         `json:"totalcounts"`
	MaxCounts   int         `json:"maxcounts"`
	XMin        float64     `json:"xmin"`
	XMax        float64     `json:"xmax"`
	YMin        float64     `json:"ymin"`
	YMax        float64     `json:"ymax"`
	XBar        float64     `json:"xbar"`
	YBar        float64     `json:"ybar"`
	Type        ClusterType `json:"type"`
}

// KlusterID builds the record identifier for the k-th cluster of a frame
func KlusterID(frameID string, k int) string {
	return fmt.Sprintf("%s_k%05d", frameID, k)
}
