package metric

import (
	"fmt"
	"os"
)

// Loader resolves an item reference, such as a file name, into a value.
type Loader[R, T any] func(ref R) (T, error)

// Loading is a metric over references: both sides are loaded and the
// distance is delegated to the wrapped metric. It lets an index hold small
// handles while the full values stay on disk.
type Loading[R, T any] struct {
	load Loader[R, T]
	m    Metric[T]
}

// NewLoading creates a loading metric.
func NewLoading[R, T any](load Loader[R, T], m Metric[T]) *Loading[R, T] {
	return &Loading[R, T]{load: load, m: m}
}

// Distance implements Metric.
func (l *Loading[R, T]) Distance(a, b R) (float64, error) {
	va, err := l.load(a)
	if err != nil {
		return 0, fmt.Errorf("metric: load %v: %w", a, err)
	}
	vb, err := l.load(b)
	if err != nil {
		return 0, fmt.Errorf("metric: load %v: %w", b, err)
	}
	return l.m.Distance(va, vb)
}

// FileLoader reads the named file and decodes it.
func FileLoader[T any](decode func([]byte) (T, error)) Loader[string, T] {
	return func(path string) (T, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			var zero T
			return zero, err
		}
		return decode(data)
	}
}
