package composition

import (
	"math"

	"github.com/viant/sqlite-loc/metric"
)

// L1 returns the fractional Manhattan distance between compositions: the sum
// over all elements of the absolute difference of atomic fractions. It is a
// true metric with values in [0, 2].
func L1() metric.Metric[Composition] {
	return metric.Infallible(Distance)
}

// Distance computes the fractional Manhattan distance between a and b.
func Distance(a, b Composition) float64 {
	var d float64
	i, j := 0, 0
	for i < len(a.amounts) || j < len(b.amounts) {
		switch {
		case j >= len(b.amounts) || (i < len(a.amounts) && a.amounts[i].Element < b.amounts[j].Element):
			d += a.fractions[a.amounts[i].Element]
			i++
		case i >= len(a.amounts) || b.amounts[j].Element < a.amounts[i].Element:
			d += b.fractions[b.amounts[j].Element]
			j++
		default:
			el := a.amounts[i].Element
			d += math.Abs(a.fractions[el] - b.fractions[el])
			i++
			j++
		}
	}
	return d
}

// Codec encodes compositions by their canonical key.
type Codec struct{}

// Encode implements loc.Codec.
func (Codec) Encode(c Composition) ([]byte, error) { return []byte(c.CanonicalKey()), nil }

// Decode implements loc.Codec.
func (Codec) Decode(data []byte) (Composition, error) { return Parse(string(data)) }
