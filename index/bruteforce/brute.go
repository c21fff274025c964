package bruteforce

import (
	"fmt"
	"math"
	"sort"

	"github.com/viant/sqlite-loc/index"
	"github.com/viant/sqlite-loc/metric"
)

// Index is a simple brute-force metric index: every query computes the
// distance to every item.
type Index[T any] struct {
	items       []T
	annotations []index.Annotation
	metric      metric.Metric[T]
}

// Build loads items and their annotations. annotator may be nil.
func (i *Index[T]) Build(items []T, m metric.Metric[T], annotator index.Annotator[T]) error {
	if m == nil {
		return fmt.Errorf("bruteforce: metric is nil: %w", index.ErrInvalidArgument)
	}
	annotations := make([]index.Annotation, len(items))
	if annotator != nil {
		for j := range items {
			annotations[j] = annotator.Annotate(items[j])
		}
	}
	i.items = append([]T(nil), items...)
	i.annotations = annotations
	i.metric = m
	return nil
}

// Len returns the number of indexed items.
func (i *Index[T]) Len() int { return len(i.items) }

// RangeQuery returns every accepted item within radius of query, ordered by
// distance. Items whose distance cannot be computed are skipped.
func (i *Index[T]) RangeQuery(query T, radius float64, filter index.Filter) ([]index.Match[T], error) {
	if radius < 0 || math.IsNaN(radius) {
		return nil, fmt.Errorf("bruteforce: radius %v: %w", radius, index.ErrInvalidArgument)
	}
	scored := i.scan(query, filter)
	n := sort.Search(len(scored), func(j int) bool { return scored[j].Distance > radius })
	return scored[:n], nil
}

// KNearest returns the k accepted items closest to query. When fewer than k
// items are indexed, all of them are returned.
func (i *Index[T]) KNearest(query T, k int, filter index.Filter) ([]index.Match[T], error) {
	if k <= 0 {
		return nil, fmt.Errorf("bruteforce: k=%d: %w", k, index.ErrInvalidArgument)
	}
	scored := i.scan(query, filter)
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func (i *Index[T]) scan(query T, filter index.Filter) []index.Match[T] {
	scored := make([]index.Match[T], 0, len(i.items))
	for j := range i.items {
		if !index.Accept(filter, &i.annotations[j]) {
			continue
		}
		d, err := i.metric.Distance(query, i.items[j])
		if err != nil {
			continue
		}
		scored = append(scored, index.Match[T]{ID: j, Item: i.items[j], Distance: d, Ref: i.annotations[j].Ref})
	}
	sort.SliceStable(scored, func(a, b int) bool { return scored[a].Distance < scored[b].Distance })
	return scored
}

var _ index.Index[int] = (*Index[int])(nil)
