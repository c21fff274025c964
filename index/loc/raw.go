package loc

import (
	"fmt"
	"math"

	"github.com/viant/sqlite-loc/index"
)

// Parsed answers queries given in raw form, normalising them with the same
// function used at build time. Inputs that fail to normalise are reported
// as ErrInvalidQuery.
type Parsed[R, T any] struct {
	Index     *Index[T]
	Normalize func(R) (T, error)
}

func (p Parsed[R, T]) parse(raw R) (T, error) {
	item, err := safeNormalize(p.Normalize, raw)
	if err != nil {
		return item, fmt.Errorf("loc: query %v: %w: %w", raw, ErrInvalidQuery, err)
	}
	return item, nil
}

// RangeQuery implements Index.RangeQuery for raw queries.
func (p Parsed[R, T]) RangeQuery(raw R, radius float64, filter Filter) ([]index.Match[T], error) {
	if radius < 0 || math.IsNaN(radius) {
		return nil, fmt.Errorf("loc: radius %v: %w", radius, ErrInvalidArgument)
	}
	query, err := p.parse(raw)
	if err != nil {
		return nil, err
	}
	return p.Index.RangeQuery(query, radius, filter)
}

// KNearest implements Index.KNearest for raw queries.
func (p Parsed[R, T]) KNearest(raw R, k int, filter Filter) ([]index.Match[T], error) {
	if k <= 0 {
		return nil, fmt.Errorf("loc: k=%d: %w", k, ErrInvalidArgument)
	}
	query, err := p.parse(raw)
	if err != nil {
		return nil, err
	}
	return p.Index.KNearest(query, k, filter)
}

// Nearest is KNearest with the index's default k.
func (p Parsed[R, T]) Nearest(raw R, filter Filter) ([]index.Match[T], error) {
	return p.KNearest(raw, p.Index.DefaultK(), filter)
}
