package cluster

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/samephoto/internal/similarity"
)

const (
	testWidth  = 4
	testHeight = 4
)

func solid(value float64) []float64 {
	v := make([]float64, testWidth*testHeight)
	for i := range v {
		v[i] = value
	}
	return v
}

// gradient returns a horizontal ramp shifted by offset, so nearby offsets are similar.
func gradient(offset float64) []float64 {
	v := make([]float64, testWidth*testHeight)
	for y := range testHeight {
		for x := range testWidth {
			v[y*testWidth+x] = math.Min(1, float64(x)/float64(testWidth)+offset)
		}
	}
	return v
}

func items(vectors ...[]float64) []Item {
	out := make([]Item, len(vectors))
	for i, v := range vectors {
		out[i] = Item{ID: fmt.Sprintf("img-%d", i), Vector: v}
	}
	return out
}

func defaultParams() Params {
	return Params{Width: testWidth, Height: testHeight, Threshold: 0.6, Window: 100}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"defaults", defaultParams(), false},
		{"threshold -1", Params{Width: 1, Height: 1, Threshold: -1, Window: 1}, false},
		{"threshold 1", Params{Width: 1, Height: 1, Threshold: 1, Window: 1}, false},
		{"zero width", Params{Width: 0, Height: 4, Threshold: 0.6, Window: 10}, true},
		{"negative height", Params{Width: 4, Height: -1, Threshold: 0.6, Window: 10}, true},
		{"zero window", Params{Width: 4, Height: 4, Threshold: 0.6, Window: 0}, true},
		{"threshold above 1", Params{Width: 4, Height: 4, Threshold: 1.01, Window: 10}, true},
		{"threshold below -1", Params{Width: 4, Height: 4, Threshold: -1.5, Window: 10}, true},
		{"threshold NaN", Params{Width: 4, Height: 4, Threshold: math.NaN(), Window: 10}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.params.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParams)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRun_InvalidParamsRejectedBeforeWork(t *testing.T) {
	// The mismatched vector would fail clustering; validation must fail first.
	bad := items([]float64{1})
	_, err := Run(bad, 4, 4, 2, 10)
	assert.ErrorIs(t, err, ErrInvalidParams)
	assert.NotErrorIs(t, err, similarity.ErrShapeMismatch)
}

func TestCluster_IdenticalGrays(t *testing.T) {
	in := items(solid(0.5), solid(0.5), solid(0.5), solid(0.5), solid(0.5))

	groups, err := Run(in, testWidth, testHeight, 0.6, 100)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"img-0", "img-1", "img-2", "img-3", "img-4"}, groups[0].IDs())
	assert.Equal(t, 1.0, groups[0].Members[0].Score)
	for _, m := range groups[0].Members[1:] {
		assert.InDelta(t, 1.0, m.Score, 1e-12)
	}
}

func TestCluster_BlackAndWhite(t *testing.T) {
	in := items(solid(0), solid(1))

	groups, err := Run(in, testWidth, testHeight, 0.6, 100)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestCluster_WindowBoundarySplit(t *testing.T) {
	in := items(solid(0.5), solid(0.5), solid(0.5))

	// Item 0 only reaches item 1; item 2 is left alone and dropped.
	groups, err := Run(in, testWidth, testHeight, 0.6, 2)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"img-0", "img-1"}, groups[0].IDs())
}

func TestCluster_WindowOneComparesNothing(t *testing.T) {
	in := items(solid(0.5), solid(0.5), solid(0.5))

	groups, err := Run(in, testWidth, testHeight, 0.6, 1)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestCluster_ThresholdIsStrict(t *testing.T) {
	in := items(solid(0.5), solid(0.5))

	// Identical vectors score exactly 1, which does not exceed a threshold of 1.
	groups, err := Run(in, testWidth, testHeight, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestCluster_InvertedLeftAlone(t *testing.T) {
	// a and b are near-identical ramps, c is the inverted ramp.
	a := gradient(0)
	b := gradient(0.02)
	c := make([]float64, len(a))
	for i := range c {
		c[i] = 1 - a[i]
	}

	groups, err := Run(items(a, b, c), testWidth, testHeight, 0.6, 10)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"img-0", "img-1"}, groups[0].IDs())
}

func TestCluster_MultipleGroups(t *testing.T) {
	in := items(solid(0.2), solid(1), solid(0.2), solid(1), gradient(0))

	groups, err := Run(in, testWidth, testHeight, 0.6, 100)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"img-0", "img-2"}, groups[0].IDs())
	assert.Equal(t, []string{"img-1", "img-3"}, groups[1].IDs())
	assert.Equal(t, 4, TotalImages(groups))
}

func TestCluster_ShapeMismatch(t *testing.T) {
	in := items(solid(0.5), []float64{0.5, 0.5})

	groups, err := Run(in, testWidth, testHeight, 0.6, 100)
	assert.ErrorIs(t, err, similarity.ErrShapeMismatch)
	assert.Contains(t, err.Error(), "img-1")
	assert.Nil(t, groups)
}

func TestCluster_Empty(t *testing.T) {
	groups, err := Run(nil, testWidth, testHeight, 0.6, 100)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func randomItems(r *rand.Rand, n int) []Item {
	palette := []float64{0.1, 0.5, 0.9}
	vectors := make([][]float64, n)
	for i := range vectors {
		v := solid(palette[r.IntN(len(palette))])
		// Add a little noise so scores are not all exactly 1.
		for k := range v {
			v[k] = math.Min(1, v[k]+r.Float64()*0.05)
		}
		vectors[i] = v
	}
	return items(vectors...)
}

func TestCluster_Properties(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 8))

	for _, window := range []int{1, 2, 5, 50} {
		t.Run(fmt.Sprintf("window=%d", window), func(t *testing.T) {
			in := randomItems(r, 40)
			engine, err := NewEngine(Params{Width: testWidth, Height: testHeight, Threshold: 0.3, Window: window})
			require.NoError(t, err)

			first, err := engine.Cluster(in)
			require.NoError(t, err)
			second, err := engine.Cluster(in)
			require.NoError(t, err)
			assert.Equal(t, first, second, "clustering must be deterministic")

			position := make(map[string]int, len(in))
			for i, item := range in {
				position[item.ID] = i
			}

			seen := make(map[string]bool)
			for _, g := range first {
				assert.GreaterOrEqual(t, g.Len(), 2)
				seed := position[g.Members[0].ID]
				for _, m := range g.Members {
					assert.False(t, seen[m.ID], "%s appears in more than one group", m.ID)
					seen[m.ID] = true
				}
				for _, m := range g.Members[1:] {
					assert.Less(t, position[m.ID]-seed, window, "member outside the window of its seed")
					assert.Greater(t, position[m.ID], seed)
					assert.Greater(t, m.Score, 0.3)
				}
			}
		})
	}
}
