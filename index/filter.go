package index

import "github.com/RoaringBitmap/roaring"

// Annotation carries the provenance attached to an indexed item at build
// time. Flags are false and Keys is nil when no annotator was supplied.
type Annotation struct {
	Experimental bool
	Structure    bool
	// Ref is the key of the lookup-table entry the item was matched to.
	Ref string
	// Keys is the per-item key set used by containment filters.
	Keys *roaring.Bitmap
}

// Annotator derives an Annotation for an item.
type Annotator[T any] interface {
	Annotate(item T) Annotation
}

// AnnotatorFunc adapts a function to Annotator.
type AnnotatorFunc[T any] func(item T) Annotation

// Annotate implements Annotator.
func (f AnnotatorFunc[T]) Annotate(item T) Annotation { return f(item) }

// Filter decides whether an indexed item may appear in query results. It is
// evaluated before the item's distance is computed.
type Filter interface {
	Accepts(a *Annotation) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(a *Annotation) bool

// Accepts implements Filter.
func (f FilterFunc) Accepts(a *Annotation) bool { return f(a) }

// Constraints is the standard provenance filter.
type Constraints struct {
	RequireStructure    bool
	RequireExperimental bool
	// MustContain lists keys every accepted item must have.
	MustContain *roaring.Bitmap
	// MustExclude lists keys no accepted item may have.
	MustExclude *roaring.Bitmap
}

// Accepts implements Filter. Flag checks run before set checks.
func (c *Constraints) Accepts(a *Annotation) bool {
	if c == nil {
		return true
	}
	if c.RequireStructure && !a.Structure {
		return false
	}
	if c.RequireExperimental && !a.Experimental {
		return false
	}
	if c.MustContain != nil && !c.MustContain.IsEmpty() {
		if a.Keys == nil || a.Keys.AndCardinality(c.MustContain) != c.MustContain.GetCardinality() {
			return false
		}
	}
	if c.MustExclude != nil && a.Keys != nil && a.Keys.Intersects(c.MustExclude) {
		return false
	}
	return true
}

// Accept reports whether filter accepts a; a nil filter accepts everything.
func Accept(filter Filter, a *Annotation) bool {
	return filter == nil || filter.Accepts(a)
}
