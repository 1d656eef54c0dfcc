package models

// Unclustered marks a hit that has not been assigned to a cluster yet.
const Unclustered = -1

// Hit represents a single activated pixel read from a detector frame
type Hit struct {
	// I is the pixel's column coordinate
	I int

	// J is the pixel's row coordinate
	J int

	// Val is the recorded count (C) for the pixel
	Val int

	// Cluster is the index of the owning cluster within the frame,
	// or Unclustered. It is set exactly once by the cluster builder.
	Cluster int
}

// NewHit creates an unclustered hit
func NewHit(i, j, val int) Hit {
	return Hit{I: i, J: j, Val: val, Cluster: Unclustered}
}

// IsClustered reports whether the hit has been assigned to a cluster
func (h Hit) IsClustered() bool {
	return h.Cluster != Unclustered
}

// Frame is the arena of hits recorded in one acquisition. Clusters refer
// to hits by their index into Hits.
type Frame struct {
	// ID identifies the frame, usually the hit file's base name
	ID string

	// Hits holds the frame's activated pixels in input order
	Hits []Hit
}

// NewFrame creates a frame holding the given hits
func NewFrame(id string, hits []Hit) *Frame {
	return &Frame{ID: id, Hits: hits}
}

// Len returns the number of hits in the frame
func (f *Frame) Len() int {
	return len(f.Hits)
}
