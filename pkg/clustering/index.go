package clustering

import (
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"betaatten/internal/models"
)

// adjacencyRadius2 is the squared search radius for 8-connected neighbours.
// On the integer pixel lattice the diagonal neighbour sits at squared
// distance 2 and the nearest non-neighbour at 4, so any value in [2, 4)
// selects exactly |Δi| <= 1 && |Δj| <= 1.
const adjacencyRadius2 = 2.5

// pixelPoint is a hit position in the kd-tree, carrying its frame index
type pixelPoint struct {
	I, J float64
	Idx  int
}

// Compare implements the kdtree.Comparable interface
func (p pixelPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(pixelPoint)
	switch d {
	case 0:
		return p.I - q.I
	case 1:
		return p.J - q.J
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p pixelPoint) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two pixels
func (p pixelPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(pixelPoint)
	di := p.I - q.I
	dj := p.J - q.J
	return di*di + dj*dj
}

// pixelPoints is a collection of pixelPoint that satisfies kdtree.Interface
type pixelPoints []pixelPoint

func (p pixelPoints) Index(i int) kdtree.Comparable        { return p[i] }
func (p pixelPoints) Len() int                             { return len(p) }
func (p pixelPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p pixelPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pixelPlane{pixelPoints: p, Dim: d}, kdtree.MedianOfRandoms(pixelPlane{pixelPoints: p, Dim: d}, 100))
}

// pixelPlane implements sort.Interface and kdtree.SortSlicer for pixelPoints
type pixelPlane struct {
	pixelPoints
	kdtree.Dim
}

func (p pixelPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.pixelPoints[i].I < p.pixelPoints[j].I
	case 1:
		return p.pixelPoints[i].J < p.pixelPoints[j].J
	default:
		panic("illegal dimension")
	}
}

func (p pixelPlane) Slice(start, end int) kdtree.SortSlicer {
	return pixelPlane{pixelPoints: p.pixelPoints[start:end], Dim: p.Dim}
}

func (p pixelPlane) Swap(i, j int) {
	p.pixelPoints[i], p.pixelPoints[j] = p.pixelPoints[j], p.pixelPoints[i]
}

// neighbourIndex answers 8-connectivity queries over a frame's hits
type neighbourIndex struct {
	tree *kdtree.Tree
}

// newNeighbourIndex builds the index. The tree is built over a copy of
// the positions because kdtree.New reorders its input.
func newNeighbourIndex(hits []models.Hit) *neighbourIndex {
	points := make(pixelPoints, len(hits))
	for k, h := range hits {
		points[k] = pixelPoint{I: float64(h.I), J: float64(h.J), Idx: k}
	}
	return &neighbourIndex{tree: kdtree.New(points, false)}
}

// neighbours returns the frame indices of every hit adjacent to h,
// including h itself and any duplicates at the same coordinate,
// in ascending index order.
func (n *neighbourIndex) neighbours(h models.Hit) []int {
	keeper := kdtree.NewDistKeeper(adjacencyRadius2)
	n.tree.NearestSet(keeper, pixelPoint{I: float64(h.I), J: float64(h.J)})

	out := make([]int, 0, len(keeper.Heap))
	for _, c := range keeper.Heap {
		if c.Comparable == nil {
			continue
		}
		out = append(out, c.Comparable.(pixelPoint).Idx)
	}
	sort.Ints(out)
	return out
}
