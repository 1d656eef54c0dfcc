package classification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"betaatten/internal/models"
	"betaatten/pkg/clustering"
)

// shape builds and analyses a single cluster from pixel offsets placed
// around (100, 100), well inside the default margins.
func shape(t *testing.T, offsets ...[2]int) *models.Cluster {
	t.Helper()
	return shapeAt(t, 100, 100, offsets...)
}

func shapeAt(t *testing.T, i0, j0 int, offsets ...[2]int) *models.Cluster {
	t.Helper()
	hits := make([]models.Hit, len(offsets))
	for k, o := range offsets {
		hits[k] = models.NewHit(i0+o[0], j0+o[1], 10)
	}
	clusters := clustering.BuildAll(models.NewFrame("shape", hits))
	require.Len(t, clusters, 1)
	return clusters[0]
}

var (
	single    = [][2]int{{0, 0}}
	pair      = [][2]int{{0, 0}, {1, 0}}
	tripixelL = [][2]int{{0, 0}, {1, 0}, {0, 1}}
	tripixelI = [][2]int{{0, 0}, {1, 0}, {2, 0}}
	square    = [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	line4     = [][2]int{{0, 0}, {1, 0}, {2, 0}, {3, 0}}
	plus      = [][2]int{{0, 0}, {1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	line5     = [][2]int{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {4, 0}}
	line7     = [][2]int{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {4, 0}, {5, 0}, {6, 0}}
	block3x3  = [][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {0, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}
)

func newClassifier(t *testing.T, p Policy) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultFrameMargins(), p)
	require.NoError(t, err)
	return c
}

func TestClassifySr90(t *testing.T) {
	c := newClassifier(t, PolicySr90())

	tests := []struct {
		name    string
		offsets [][2]int
		want    models.ClusterType
	}{
		{"single pixel", single, models.Gamma},
		{"pair", pair, models.Gamma},
		{"L tripixel", tripixelL, models.Gamma},
		{"straight tripixel", tripixelI, models.Beta},
		{"square tetrapixel", square, models.Gamma},
		{"straight tetrapixel", line4, models.Beta},
		{"five pixels", plus, models.Beta},
		{"large block", block3x3, models.Beta},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(shape(t, tt.offsets...)))
		})
	}
}

func TestClassifySimple(t *testing.T) {
	c := newClassifier(t, PolicySimple())

	tests := []struct {
		name    string
		offsets [][2]int
		want    models.ClusterType
	}{
		{"single pixel", single, models.Gamma},
		{"pair", pair, models.Gamma},
		{"straight tripixel", tripixelI, models.Beta},
		{"square tetrapixel", square, models.Gamma},
		{"compact five", plus, models.Alpha},
		{"straight five", line5, models.Beta},
		{"sparse seven", line7, models.Beta},
		{"dense nine", block3x3, models.Alpha},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(shape(t, tt.offsets...)))
		})
	}
}

func TestClassifyEqualThresholdFallsBetweenCuts(t *testing.T) {
	p := Policy{Name: "cut", Bands: []Band{
		{MinSize: 1, Metric: MetricDensity, Threshold: 8.0,
			Below: models.Beta, Equal: models.None, Above: models.Alpha},
	}}
	c := newClassifier(t, p)

	// A 2x2 square has density 4 / 0.5 = 8.
	assert.Equal(t, models.None, c.Classify(shape(t, square...)))
}

func TestClassifyEdgeOverridesPolicy(t *testing.T) {
	for _, name := range []string{"sr90", "simple"} {
		p, err := PolicyByName(name)
		require.NoError(t, err)
		c := newClassifier(t, p)

		t.Run(name, func(t *testing.T) {
			assert.Equal(t, models.Edge, c.Classify(shapeAt(t, 0, 50, single...)))
			assert.Equal(t, models.Edge, c.Classify(shapeAt(t, 50, 0, pair...)))
			assert.Equal(t, models.Edge, c.Classify(shapeAt(t, 253, 50, line4...)))
			assert.Equal(t, models.Edge, c.Classify(shapeAt(t, 50, 255, single...)))
			assert.NotEqual(t, models.Edge, c.Classify(shapeAt(t, 1, 1, single...)))
			assert.NotEqual(t, models.Edge, c.Classify(shapeAt(t, 254, 254, single...)))
		})
	}
}

func TestClassifyCustomMargins(t *testing.T) {
	margins := FrameMargins{I: Margins{Min: 9.5, Max: 20.5}, J: Margins{Min: -1, Max: 1000}}
	c, err := NewClassifier(margins, PolicySr90())
	require.NoError(t, err)

	assert.Equal(t, models.Edge, c.Classify(shapeAt(t, 9, 100, single...)))
	assert.Equal(t, models.Edge, c.Classify(shapeAt(t, 20, 100, pair...)))
	assert.Equal(t, models.Gamma, c.Classify(shapeAt(t, 15, 0, single...)))
}

func TestClassifyIsDeterministicAndKeepsGeometry(t *testing.T) {
	c := newClassifier(t, PolicySimple())
	k := shape(t, block3x3...)
	before := *k

	first := c.Classify(k)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Classify(k))
	}

	after := *k
	after.Type = before.Type
	assert.Equal(t, before, after)
}

func TestClassifyUnanalysedIsNone(t *testing.T) {
	c := newClassifier(t, PolicySr90())
	k := models.NewCluster(0)
	assert.Equal(t, models.None, c.Classify(k))
}

func TestClassifyAll(t *testing.T) {
	c := newClassifier(t, PolicySr90())
	hits := []models.Hit{
		models.NewHit(0, 0, 1),
		models.NewHit(50, 50, 1),
		models.NewHit(80, 80, 1), models.NewHit(81, 80, 1), models.NewHit(82, 80, 1),
	}
	clusters := clustering.BuildAll(models.NewFrame("f", hits))
	c.ClassifyAll(clusters)

	require.Len(t, clusters, 3)
	assert.Equal(t, models.Edge, clusters[0].Type)
	assert.Equal(t, models.Gamma, clusters[1].Type)
	assert.Equal(t, models.Beta, clusters[2].Type)
}

func TestNewClassifierValidation(t *testing.T) {
	_, err := NewClassifier(FrameMargins{I: Margins{Min: 5, Max: 5}, J: Margins{Min: 0, Max: 1}}, PolicySr90())
	assert.ErrorIs(t, err, ErrInvalidMargins)

	_, err = NewClassifier(DefaultFrameMargins(), Policy{Name: "empty"})
	assert.ErrorIs(t, err, ErrInvalidBand)

	_, err = NewClassifier(DefaultFrameMargins(), Policy{Name: "bad", Bands: []Band{{MinSize: 0}}})
	assert.ErrorIs(t, err, ErrInvalidBand)

	_, err = NewClassifier(DefaultFrameMargins(), Policy{Name: "bad", Bands: []Band{{MinSize: 3, MaxSize: 2, Metric: MetricNone}}})
	assert.ErrorIs(t, err, ErrInvalidBand)

	_, err = NewClassifier(DefaultFrameMargins(), Policy{Name: "bad", Bands: []Band{{MinSize: 1, Metric: "linearity"}}})
	assert.ErrorIs(t, err, ErrInvalidBand)

	_, err = PolicyByName("potassium")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestPresetsAreValid(t *testing.T) {
	require.NoError(t, PolicySr90().Validate())
	require.NoError(t, PolicySimple().Validate())
}
