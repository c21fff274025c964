package loc

import (
	"fmt"
	"math"
	"sort"

	"github.com/viant/sqlite-loc/index"
)

// RangeQuery returns every accepted item within radius of query, sorted by
// ascending distance. Items whose distance to the query cannot be computed
// are logged and left out. A nil filter accepts every item.
func (x *Index[T]) RangeQuery(query T, radius float64, filter Filter) ([]index.Match[T], error) {
	if radius < 0 || math.IsNaN(radius) {
		return nil, fmt.Errorf("loc: radius %v: %w", radius, ErrInvalidArgument)
	}
	var out []index.Match[T]
	for ci := range x.clusters {
		c := &x.clusters[ci]
		dc, err := x.metric.Distance(query, c.Center)
		if err != nil {
			x.logger.Printf("loc: center %d: %v", c.CenterID, err)
			out = x.rangeScan(c.Members, query, radius, filter, out)
			continue
		}
		if dc > c.Radius+radius {
			continue
		}
		lo := lowerBound(c.Members, dc-radius)
		hi := upperBound(c.Members, dc+radius)
		out = x.rangeScan(c.Members[lo:hi], query, radius, filter, out)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

func (x *Index[T]) rangeScan(members []Member[T], query T, radius float64, filter Filter, out []index.Match[T]) []index.Match[T] {
	for i := range members {
		mem := &members[i]
		if !index.Accept(filter, &mem.Annotation) {
			continue
		}
		d, err := x.metric.Distance(query, mem.Item)
		if err != nil {
			x.logger.Printf("loc: item %d: %v", mem.ID, err)
			continue
		}
		if d <= radius {
			out = append(out, x.match(mem, d))
		}
	}
	return out
}
