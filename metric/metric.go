package metric

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDistance is returned by Safe when the wrapped metric produces a
// negative, NaN or infinite distance, or panics.
var ErrInvalidDistance = errors.New("metric: invalid distance")

// Metric computes the distance between two items.
type Metric[T any] interface {
	Distance(a, b T) (float64, error)
}

// Func adapts a function to Metric.
type Func[T any] func(a, b T) (float64, error)

// Distance implements Metric.
func (f Func[T]) Distance(a, b T) (float64, error) { return f(a, b) }

// Infallible adapts a distance function that cannot fail.
func Infallible[T any](fn func(a, b T) float64) Metric[T] {
	return Func[T](func(a, b T) (float64, error) { return fn(a, b), nil })
}

type safe[T any] struct {
	m Metric[T]
}

// Safe wraps m so that panics and out-of-domain results surface as errors
// wrapping ErrInvalidDistance instead of corrupting an index.
func Safe[T any](m Metric[T]) Metric[T] {
	if s, ok := m.(*safe[T]); ok {
		return s
	}
	return &safe[T]{m: m}
}

func (s *safe[T]) Distance(a, b T) (d float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			d, err = 0, fmt.Errorf("%w: panic: %v", ErrInvalidDistance, r)
		}
	}()
	d, err = s.m.Distance(a, b)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDistance, d)
	}
	return d, nil
}
