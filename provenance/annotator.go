package provenance

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/viant/sqlite-loc/composition"
	"github.com/viant/sqlite-loc/index"
)

// Annotator attaches provenance to compositions at index build time. Every
// composition gets its element key set; flags and Ref are set only when the
// composition is found in the source.
type Annotator struct {
	source  Source
	catalog Catalog
}

// NewAnnotator creates an annotator. source may be nil, in which case only
// element key sets are attached.
func NewAnnotator(source Source, catalog Catalog) *Annotator {
	return &Annotator{source: source, catalog: catalog}
}

// Annotate implements index.Annotator.
func (a *Annotator) Annotate(c composition.Composition) index.Annotation {
	ann := index.Annotation{Keys: roaring.BitmapOf(c.Keys()...)}
	if a.source == nil {
		return ann
	}
	entry, ok := a.source.Lookup(c.CanonicalKey())
	if !ok {
		return ann
	}
	ann.Ref = entry.Key
	ann.Experimental, ann.Structure = a.catalog.Flags(entry.Databases)
	return ann
}

var _ index.Annotator[composition.Composition] = (*Annotator)(nil)
