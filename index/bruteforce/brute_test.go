package bruteforce

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-loc/index"
	"github.com/viant/sqlite-loc/metric"
)

var line = metric.Infallible(func(a, b float64) float64 { return math.Abs(a - b) })

func TestIndex_Queries(t *testing.T) {
	idx := &Index[float64]{}
	require.NoError(t, idx.Build([]float64{0, 1, 5, 6}, line, nil))
	assert.Equal(t, 4, idx.Len())

	hits, err := idx.RangeQuery(0, 1.5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0.0, hits[0].Item)
	assert.Equal(t, 1.0, hits[1].Item)

	nn, err := idx.KNearest(5.4, 2, nil)
	require.NoError(t, err)
	require.Len(t, nn, 2)
	assert.Equal(t, 5.0, nn[0].Item)
	assert.Equal(t, 6.0, nn[1].Item)
	assert.Equal(t, 3, nn[1].ID)

	all, err := idx.KNearest(0, 10, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestIndex_Filter(t *testing.T) {
	idx := &Index[float64]{}
	annotator := index.AnnotatorFunc[float64](func(v float64) index.Annotation {
		return index.Annotation{Experimental: v > 2}
	})
	require.NoError(t, idx.Build([]float64{0, 1, 5, 6}, line, annotator))
	nn, err := idx.KNearest(0, 1, &index.Constraints{RequireExperimental: true})
	require.NoError(t, err)
	require.Len(t, nn, 1)
	assert.Equal(t, 5.0, nn[0].Item)
}

func TestIndex_InvalidArguments(t *testing.T) {
	idx := &Index[float64]{}
	require.ErrorIs(t, idx.Build(nil, nil, nil), index.ErrInvalidArgument)
	require.NoError(t, idx.Build([]float64{1}, line, nil))
	_, err := idx.KNearest(0, 0, nil)
	assert.ErrorIs(t, err, index.ErrInvalidArgument)
	_, err = idx.RangeQuery(0, -1, nil)
	assert.ErrorIs(t, err, index.ErrInvalidArgument)
}
