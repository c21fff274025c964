package loc

import (
	"log"

	"github.com/viant/sqlite-loc/index"
	"github.com/viant/sqlite-loc/metric"
)

type (
	// Annotation is the provenance attached to a member.
	Annotation = index.Annotation
	// Filter restricts query results by annotation.
	Filter = index.Filter
	// FilterFunc adapts a function to Filter.
	FilterFunc = index.FilterFunc
	// Constraints is the standard provenance filter.
	Constraints = index.Constraints
)

// Member is an indexed item within a cluster.
type Member[T any] struct {
	// ID is the position of the item in the build input.
	ID   int
	Item T
	// Distance is the distance from Item to the cluster center.
	Distance float64
	Annotation
}

// Cluster groups the items nearest to one center. Members are sorted by
// ascending Distance and Radius equals the largest member distance.
type Cluster[T any] struct {
	Center   T
	CenterID int
	Members  []Member[T]
	Radius   float64
}

// insert places m after any member with an equal distance and widens the
// covering radius when needed.
func (c *Cluster[T]) insert(m Member[T]) {
	pos := upperBound(c.Members, m.Distance)
	c.Members = append(c.Members, Member[T]{})
	copy(c.Members[pos+1:], c.Members[pos:])
	c.Members[pos] = m
	if m.Distance > c.Radius {
		c.Radius = m.Distance
	}
}

// Index is an immutable List-of-Clusters index.
type Index[T any] struct {
	clusters []Cluster[T]
	metric   metric.Metric[T]
	k        int
	size     int
	workers  int
	logger   *log.Logger
	report   BuildReport
}

// Len returns the number of indexed items.
func (x *Index[T]) Len() int { return x.size }

// Clusters exposes the clusters for inspection. Callers must not modify them.
func (x *Index[T]) Clusters() []Cluster[T] { return x.clusters }

// DefaultK returns the neighbour count used by Nearest.
func (x *Index[T]) DefaultK() int { return x.k }

// Report returns the build summary.
func (x *Index[T]) Report() BuildReport { return x.report }

func (x *Index[T]) match(m *Member[T], d float64) index.Match[T] {
	return index.Match[T]{ID: m.ID, Item: m.Item, Distance: d, Ref: m.Ref}
}

var _ index.Index[int] = (*Index[int])(nil)
