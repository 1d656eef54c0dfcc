package clustering

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"betaatten/internal/models"
)

func newFrame(rows ...[3]int) *models.Frame {
	hits := make([]models.Hit, len(rows))
	for k, r := range rows {
		hits[k] = models.NewHit(r[0], r[1], r[2])
	}
	return models.NewFrame("test", hits)
}

// scanClusters is the straightforward fixed-point formulation: seed from
// the first unclustered hit, then repeat full passes over the remaining
// hits until a pass adds nothing. Used as the membership oracle.
func scanClusters(frame *models.Frame) [][]int {
	owner := make([]int, frame.Len())
	for k := range owner {
		owner[k] = -1
	}

	var out [][]int
	for seed := range frame.Hits {
		if owner[seed] >= 0 {
			continue
		}
		id := len(out)
		members := []int{seed}
		owner[seed] = id

		found := true
		for found {
			found = false
			for k, h := range frame.Hits {
				if owner[k] >= 0 {
					continue
				}
				for _, m := range members {
					mh := frame.Hits[m]
					if abs(mh.I-h.I) <= 1 && abs(mh.J-h.J) <= 1 {
						owner[k] = id
						members = append(members, k)
						found = true
						break
					}
				}
			}
		}
		out = append(out, members)
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// memberships returns each cluster's hit indices sorted ascending
func memberships(clusters []*models.Cluster) [][]int {
	out := make([][]int, len(clusters))
	for k, c := range clusters {
		m := append([]int(nil), c.Hits...)
		sort.Ints(m)
		out[k] = m
	}
	return out
}

func sortedMemberships(in [][]int) [][]int {
	out := make([][]int, len(in))
	for k, m := range in {
		s := append([]int(nil), m...)
		sort.Ints(s)
		out[k] = s
	}
	return out
}

func TestBuildEmptyFrame(t *testing.T) {
	clusters := Build(newFrame())
	assert.Empty(t, clusters)
	assert.Empty(t, Build(nil))
}

func TestBuildSingleHit(t *testing.T) {
	frame := newFrame([3]int{10, 10, 42})
	clusters := BuildAll(frame)

	require.Len(t, clusters, 1)
	c := clusters[0]
	assert.Equal(t, 1, c.Size)
	assert.Equal(t, 42, c.Sum)
	assert.Equal(t, 0.0, c.Radius)
	assert.Equal(t, 0.0, c.Density)
	assert.Equal(t, 0, frame.Hits[0].Cluster)
}

func TestBuildDiagonalIsConnected(t *testing.T) {
	clusters := Build(newFrame([3]int{0, 0, 1}, [3]int{1, 1, 1}))
	require.Len(t, clusters, 1)
	assert.Equal(t, 2, clusters[0].Size)
}

func TestBuildGapIsNotConnected(t *testing.T) {
	clusters := Build(newFrame([3]int{0, 0, 1}, [3]int{2, 0, 1}))
	require.Len(t, clusters, 2)
	assert.Equal(t, 1, clusters[0].Size)
	assert.Equal(t, 1, clusters[1].Size)
}

func TestBuildEndToEndScenario(t *testing.T) {
	frame := newFrame([3]int{0, 0, 5}, [3]int{0, 1, 3}, [3]int{5, 5, 7})
	clusters := BuildAll(frame)

	require.Len(t, clusters, 2)

	first := clusters[0]
	assert.Equal(t, 2, first.Size)
	assert.Equal(t, 8, first.Sum)
	assert.InDelta(t, 0.0, first.CentroidI, 1e-12)
	assert.InDelta(t, 0.5, first.CentroidJ, 1e-12)

	second := clusters[1]
	assert.Equal(t, 1, second.Size)
	assert.Equal(t, 7, second.Sum)
	assert.InDelta(t, 5.0, second.CentroidI, 1e-12)
	assert.InDelta(t, 5.0, second.CentroidJ, 1e-12)
}

func TestBuildChainReachesThroughLaterHits(t *testing.T) {
	// (0,0) is only connected to (2,2) through (1,1), which comes last.
	frame := newFrame([3]int{0, 0, 1}, [3]int{2, 2, 1}, [3]int{9, 9, 1}, [3]int{1, 1, 1})
	clusters := Build(frame)

	require.Len(t, clusters, 2)
	if diff := cmp.Diff([][]int{{0, 1, 3}, {2}}, memberships(clusters)); diff != "" {
		t.Errorf("membership mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildDuplicateCoordinatesAreDistinctHits(t *testing.T) {
	frame := newFrame([3]int{4, 4, 1}, [3]int{4, 4, 2})
	clusters := BuildAll(frame)

	require.Len(t, clusters, 1)
	assert.Equal(t, 2, clusters[0].Size)
	assert.Equal(t, 3, clusters[0].Sum)
}

func TestBuildMatchesFixedPointScan(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 50; trial++ {
		n := rng.Intn(120)
		rows := make([][3]int, n)
		for k := range rows {
			rows[k] = [3]int{rng.Intn(24), rng.Intn(24), rng.Intn(100)}
		}

		want := sortedMemberships(scanClusters(newFrame(rows...)))

		frame := newFrame(rows...)
		clusters := Build(frame)

		if diff := cmp.Diff(want, memberships(clusters)); diff != "" {
			t.Fatalf("trial %d: membership mismatch (-want +got):\n%s", trial, diff)
		}

		// Every hit is in exactly one cluster.
		total := 0
		for _, c := range clusters {
			total += c.Size
			assert.Equal(t, len(c.Hits), c.Size)
			for _, idx := range c.Hits {
				assert.Equal(t, c.Index, frame.Hits[idx].Cluster)
			}
		}
		assert.Equal(t, n, total)
	}
}

func TestBuildMembershipIndependentOfOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	rows := make([][3]int, 80)
	for k := range rows {
		rows[k] = [3]int{rng.Intn(16), rng.Intn(16), 1}
	}

	key := func(rows [][3]int, clusters []*models.Cluster, frame *models.Frame) map[[2]int]int {
		// Map each coordinate to the size of its cluster.
		out := make(map[[2]int]int)
		for _, c := range clusters {
			for _, idx := range c.Hits {
				h := frame.Hits[idx]
				out[[2]int{h.I, h.J}] = c.Size
			}
		}
		return out
	}

	frameA := newFrame(rows...)
	a := key(rows, Build(frameA), frameA)

	shuffled := append([][3]int(nil), rows...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	frameB := newFrame(shuffled...)
	b := key(shuffled, Build(frameB), frameB)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("cluster sizes depend on input order (-a +b):\n%s", diff)
	}
}
