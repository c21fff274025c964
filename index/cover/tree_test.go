package cover

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-loc/index"
	"github.com/viant/sqlite-loc/index/bruteforce"
	"github.com/viant/sqlite-loc/metric"
)

type point struct{ x, y float64 }

var euclid = metric.Infallible(func(a, b point) float64 { return math.Hypot(a.x-b.x, a.y-b.y) })

func randomPoints(r *rand.Rand, n int) []point {
	out := make([]point, n)
	for i := range out {
		out[i] = point{x: r.Float64() * 10, y: r.Float64() * 10}
	}
	return out
}

func ids[T any](matches []index.Match[T]) []int {
	out := make([]int, len(matches))
	for i, m := range matches {
		out[i] = m.ID
	}
	return out
}

func TestIndex_MatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewPCG(21, 22))
	items := randomPoints(r, 400)
	annotator := index.AnnotatorFunc[point](func(p point) index.Annotation {
		return index.Annotation{Experimental: p.x > 5}
	})

	tree := New[point](0)
	require.NoError(t, tree.Build(items, euclid, annotator))
	assert.Equal(t, len(items), tree.Len())
	oracle := &bruteforce.Index[point]{}
	require.NoError(t, oracle.Build(items, euclid, annotator))

	filters := []index.Filter{nil, &index.Constraints{RequireExperimental: true}}
	for q := 0; q < 30; q++ {
		query := point{x: r.Float64() * 10, y: r.Float64() * 10}
		for _, filter := range filters {
			for _, k := range []int{1, 5, 17} {
				want, err := oracle.KNearest(query, k, filter)
				require.NoError(t, err)
				got, err := tree.KNearest(query, k, filter)
				require.NoError(t, err)
				assert.Equal(t, ids(want), ids(got), "k=%d query=%v", k, query)
			}
			for _, radius := range []float64{0, 0.7, 2.5} {
				want, err := oracle.RangeQuery(query, radius, filter)
				require.NoError(t, err)
				got, err := tree.RangeQuery(query, radius, filter)
				require.NoError(t, err)
				assert.Equal(t, ids(want), ids(got), "radius=%v query=%v", radius, query)
			}
		}
	}
}

func TestIndex_Duplicates(t *testing.T) {
	items := []point{{1, 1}, {1, 1}, {1, 1}, {4, 4}}
	tree := New[point](2)
	require.NoError(t, tree.Build(items, euclid, nil))

	nn, err := tree.KNearest(point{1, 1}, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, ids(nn))

	hits, err := tree.RangeQuery(point{1, 1}, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, ids(hits))
}

func TestIndex_SkipsFailingItems(t *testing.T) {
	errBad := errors.New("bad")
	m := metric.Func[point](func(a, b point) (float64, error) {
		if a.x < 0 || b.x < 0 {
			return 0, errBad
		}
		return math.Hypot(a.x-b.x, a.y-b.y), nil
	})
	tree := New[point](0)
	require.NoError(t, tree.Build([]point{{0, 0}, {-1, 0}, {3, 0}}, m, nil))
	assert.Equal(t, 2, tree.Len())
	assert.Equal(t, 1, tree.Skipped())

	nn, err := tree.KNearest(point{2, 0}, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, ids(nn))
}

func TestIndex_InvalidArguments(t *testing.T) {
	tree := New[point](0)
	require.ErrorIs(t, tree.Build(nil, nil, nil), index.ErrInvalidArgument)
	require.NoError(t, tree.Build(nil, euclid, nil))
	nn, err := tree.KNearest(point{}, 3, nil)
	require.NoError(t, err)
	assert.Empty(t, nn)

	_, err = tree.KNearest(point{}, 0, nil)
	assert.ErrorIs(t, err, index.ErrInvalidArgument)
	_, err = tree.RangeQuery(point{}, math.NaN(), nil)
	assert.ErrorIs(t, err, index.ErrInvalidArgument)
}
