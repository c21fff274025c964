package loc

import (
	"context"
	"fmt"
	"math"

	"github.com/viant/sqlite-loc/index"
	"github.com/viant/sqlite-loc/internal/parallel"
)

// BatchKNearest runs KNearest for every query concurrently and returns the
// results in query order.
func (x *Index[T]) BatchKNearest(ctx context.Context, queries []T, k int, filter Filter) ([][]index.Match[T], error) {
	if k <= 0 {
		return nil, fmt.Errorf("loc: k=%d: %w", k, ErrInvalidArgument)
	}
	return parallel.Map(ctx, queries, x.workers, func(_ context.Context, _ int, q T) ([]index.Match[T], error) {
		return x.KNearest(q, k, filter)
	})
}

// BatchRangeQuery runs RangeQuery for every query concurrently and returns
// the results in query order.
func (x *Index[T]) BatchRangeQuery(ctx context.Context, queries []T, radius float64, filter Filter) ([][]index.Match[T], error) {
	if radius < 0 || math.IsNaN(radius) {
		return nil, fmt.Errorf("loc: radius %v: %w", radius, ErrInvalidArgument)
	}
	return parallel.Map(ctx, queries, x.workers, func(_ context.Context, _ int, q T) ([]index.Match[T], error) {
		return x.RangeQuery(q, radius, filter)
	})
}
