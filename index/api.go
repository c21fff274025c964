package index

import "errors"

var (
	// ErrInvalidArgument reports malformed query or build parameters.
	ErrInvalidArgument = errors.New("index: invalid argument")
	// ErrInvalidQuery reports query input that cannot be normalised into an item.
	ErrInvalidQuery = errors.New("index: invalid query")
)

// Match is a single query hit.
type Match[T any] struct {
	// ID is the position of the item in the build input.
	ID int
	// Item is the indexed item.
	Item T
	// Distance is the metric distance from the query to Item.
	Distance float64
	// Ref is the provenance lookup key attached at build time, empty when no
	// lookup tables were supplied.
	Ref string
}

// Index defines a read-only metric index over items of type T. Results are
// ordered by ascending distance; a nil filter accepts every item.
type Index[T any] interface {
	// Len returns the number of indexed items.
	Len() int

	// RangeQuery returns every item within radius of query.
	RangeQuery(query T, radius float64, filter Filter) ([]Match[T], error)

	// KNearest returns up to k items closest to query.
	KNearest(query T, k int, filter Filter) ([]Match[T], error)
}
