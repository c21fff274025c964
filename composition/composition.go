// Package composition models chemical compositions as immutable element
// fraction vectors. A Composition is what the cluster index stores; the index
// only ever sees it through a metric and its canonical key.
package composition

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"
)

// Amount is the quantity of one element in a formula.
type Amount struct {
	Element string
	Count   float64
}

// Composition is a normalised chemical composition. The zero value is an
// empty composition.
type Composition struct {
	amounts   []Amount // sorted by element, merged, positive counts
	fractions map[string]float64
	key       string
}

// New builds a composition from element counts. Counts of the same element
// are summed; zero counts are dropped.
func New(counts map[string]float64) (Composition, error) {
	amounts := make([]Amount, 0, len(counts))
	for el, n := range counts {
		if _, ok := AtomicNumber(el); !ok {
			return Composition{}, fmt.Errorf("%w: unknown element %q", ErrInvalidFormula, el)
		}
		if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			return Composition{}, fmt.Errorf("%w: invalid amount %v for %s", ErrInvalidFormula, n, el)
		}
		if n == 0 {
			continue
		}
		amounts = append(amounts, Amount{Element: el, Count: n})
	}
	if len(amounts) == 0 {
		return Composition{}, fmt.Errorf("%w: empty composition", ErrInvalidFormula)
	}
	sort.Slice(amounts, func(i, j int) bool { return amounts[i].Element < amounts[j].Element })
	var total float64
	for _, a := range amounts {
		total += a.Count
	}
	c := Composition{amounts: amounts, fractions: make(map[string]float64, len(amounts))}
	for _, a := range amounts {
		c.fractions[a.Element] = a.Count / total
	}
	c.key = canonicalKey(amounts)
	return c, nil
}

// CanonicalKey returns the stable lookup key of the composition: elements in
// alphabetical order with integer counts reduced by their greatest common
// divisor, so that Fe4O6 and O3Fe2 both map to "Fe2O3".
func (c Composition) CanonicalKey() string { return c.key }

// String implements fmt.Stringer.
func (c Composition) String() string { return c.key }

// IsZero reports whether c is the empty composition.
func (c Composition) IsZero() bool { return len(c.amounts) == 0 }

// Len returns the number of distinct elements.
func (c Composition) Len() int { return len(c.amounts) }

// Elements returns the element symbols in alphabetical order.
func (c Composition) Elements() []string {
	out := make([]string, len(c.amounts))
	for i, a := range c.amounts {
		out[i] = a.Element
	}
	return out
}

// Fraction returns the atomic fraction of an element, 0 if absent.
func (c Composition) Fraction(element string) float64 { return c.fractions[element] }

// Keys returns the atomic numbers of the elements present.
func (c Composition) Keys() []uint32 {
	out := make([]uint32, 0, len(c.amounts))
	for _, a := range c.amounts {
		z, _ := AtomicNumber(a.Element)
		out = append(out, z)
	}
	return out
}

// KeySet returns a bitmap of atomic numbers for the given element symbols.
// Unknown symbols are reported as an error.
func KeySet(elements ...string) (*roaring.Bitmap, error) {
	bm := roaring.New()
	for _, el := range elements {
		z, ok := AtomicNumber(el)
		if !ok {
			return nil, fmt.Errorf("%w: unknown element %q", ErrInvalidFormula, el)
		}
		bm.Add(z)
	}
	return bm, nil
}

func canonicalKey(amounts []Amount) string {
	integral := true
	for _, a := range amounts {
		if a.Count != math.Trunc(a.Count) || a.Count > math.MaxInt32 {
			integral = false
			break
		}
	}
	divisor := 1.0
	if integral {
		g := int64(0)
		for _, a := range amounts {
			g = gcd(g, int64(a.Count))
		}
		if g > 1 {
			divisor = float64(g)
		}
	}
	var b strings.Builder
	for _, a := range amounts {
		b.WriteString(a.Element)
		n := a.Count / divisor
		if n != 1 {
			b.WriteString(strconv.FormatFloat(n, 'f', -1, 64))
		}
	}
	return b.String()
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
