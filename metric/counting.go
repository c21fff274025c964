package metric

import "sync/atomic"

// Counting decorates a metric with a call counter. It replaces ad-hoc global
// counters: tests and benchmarks read Count, production code may pass an
// observer to export the calls elsewhere.
type Counting[T any] struct {
	m        Metric[T]
	calls    atomic.Int64
	observer func()
}

// NewCounting wraps m. observer, when non-nil, runs after every evaluation and
// must be safe for concurrent use.
func NewCounting[T any](m Metric[T], observer func()) *Counting[T] {
	return &Counting[T]{m: m, observer: observer}
}

// Distance implements Metric.
func (c *Counting[T]) Distance(a, b T) (float64, error) {
	c.calls.Add(1)
	if c.observer != nil {
		c.observer()
	}
	return c.m.Distance(a, b)
}

// Count returns the number of evaluations so far.
func (c *Counting[T]) Count() int64 { return c.calls.Load() }

// Reset zeroes the counter and returns its previous value.
func (c *Counting[T]) Reset() int64 { return c.calls.Swap(0) }
