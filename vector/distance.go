package vector

import (
	"errors"
	"fmt"
	"math"

	"github.com/viant/sqlite-loc/metric"
	"github.com/viant/vec/search"
)

// ErrZeroVector is returned by Angular when either vector has zero magnitude.
var ErrZeroVector = errors.New("vector: zero-magnitude vector")

// Euclidean returns the L2 metric over embeddings.
func Euclidean() metric.Metric[[]float32] { return metric.Func[[]float32](L2Distance) }

// Angular returns the angular distance metric, arccos(cosine similarity)/π.
// Unlike 1-cosine it satisfies the triangle inequality, so cluster pruning
// stays exact.
func Angular() metric.Metric[[]float32] { return metric.Func[[]float32](AngularDistance) }

// L2Distance computes the Euclidean (L2) distance between two vectors. It
// returns an error if the vectors have different lengths.
func L2Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: L2 distance dimension mismatch: %d vs %d", len(a), len(b))
	}
	return float64(search.Float32s(a).EuclideanDistance(b)), nil
}

// CosineSimilarity computes the cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: cosine similarity dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("vector: cosine similarity on empty vectors")
	}
	va, vb := search.Float32s(a), search.Float32s(b)
	if va.Magnitude() == 0 || vb.Magnitude() == 0 {
		return 0, ErrZeroVector
	}
	return 1 - float64(va.CosineDistance(b)), nil
}

// AngularDistance returns arccos(cosine similarity)/π in [0, 1].
func AngularDistance(a, b []float32) (float64, error) {
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	sim = math.Max(-1, math.Min(1, sim))
	return math.Acos(sim) / math.Pi, nil
}
