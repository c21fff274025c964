package loc

import (
	"fmt"
	"sort"

	"github.com/viant/sqlite-loc/index"
)

// neighbors is a bounded result list kept sorted by ascending distance.
type neighbors[T any] struct {
	k     int
	items []index.Match[T]
}

func (n *neighbors[T]) full() bool { return len(n.items) == n.k }

// bound is the current k-th distance; only valid when full.
func (n *neighbors[T]) bound() float64 { return n.items[len(n.items)-1].Distance }

// add inserts m after any equal distance. On a full list, m replaces the
// worst entry only when strictly closer, so ties at the boundary keep the
// earlier item.
func (n *neighbors[T]) add(m index.Match[T]) {
	if n.full() && m.Distance >= n.bound() {
		return
	}
	pos := sort.Search(len(n.items), func(i int) bool { return n.items[i].Distance > m.Distance })
	if len(n.items) < n.k {
		n.items = append(n.items, index.Match[T]{})
	}
	copy(n.items[pos+1:], n.items[pos:len(n.items)-1])
	n.items[pos] = m
}

type probe struct {
	cluster  int
	distance float64
	ok       bool
}

// KNearest returns the k accepted items closest to query, sorted by
// ascending distance. Fewer than k items are returned when the index (or the
// filter) does not offer k candidates.
func (x *Index[T]) KNearest(query T, k int, filter Filter) ([]index.Match[T], error) {
	if k <= 0 {
		return nil, fmt.Errorf("loc: k=%d: %w", k, ErrInvalidArgument)
	}
	probes := make([]probe, len(x.clusters))
	for i := range x.clusters {
		d, err := x.metric.Distance(query, x.clusters[i].Center)
		if err != nil {
			x.logger.Printf("loc: center %d: %v", x.clusters[i].CenterID, err)
		}
		probes[i] = probe{cluster: i, distance: d, ok: err == nil}
	}
	// Clusters without a center distance cannot be pruned and go last.
	sort.SliceStable(probes, func(i, j int) bool {
		if probes[i].ok != probes[j].ok {
			return probes[i].ok
		}
		return probes[i].distance < probes[j].distance
	})

	result := &neighbors[T]{k: k, items: make([]index.Match[T], 0, min(k, x.size))}
	for i, p := range probes {
		c := &x.clusters[p.cluster]
		if !p.ok {
			x.knnScan(c.Members, query, filter, result)
			continue
		}
		if i > 0 && result.full() && p.distance-c.Radius > result.bound() {
			continue
		}
		x.knnCluster(c, p.distance, query, filter, result)
	}
	return result.items, nil
}

// knnCluster scans the members of c whose distance to the center lies
// within the current bound of dc.
func (x *Index[T]) knnCluster(c *Cluster[T], dc float64, query T, filter Filter, result *neighbors[T]) {
	for i := 0; i < len(c.Members); i++ {
		mem := &c.Members[i]
		if result.full() {
			bound := result.bound()
			if mem.Distance > dc+bound {
				return
			}
			if dc-mem.Distance > bound {
				i = lowerBound(c.Members, dc-bound) - 1
				continue
			}
		}
		if !index.Accept(filter, &mem.Annotation) {
			continue
		}
		d, err := x.metric.Distance(query, mem.Item)
		if err != nil {
			x.logger.Printf("loc: item %d: %v", mem.ID, err)
			continue
		}
		result.add(x.match(mem, d))
	}
}

func (x *Index[T]) knnScan(members []Member[T], query T, filter Filter, result *neighbors[T]) {
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
		result.add(x.match(mem, d))
	}
}

// Nearest is KNearest with the index's default k.
func (x *Index[T]) Nearest(query T, filter Filter) ([]index.Match[T], error) {
	return x.KNearest(query, x.k, filter)
}
