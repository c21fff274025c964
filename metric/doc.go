// Package metric defines the pluggable distance strategy used by the indexes
// in this module, together with decorators that guard, count and resolve
// items before delegating to a concrete metric.
//
// Index pruning is only exact when the metric is non-negative, symmetric and
// honours the triangle inequality. Approximate metrics are accepted but may
// cause queries to miss true matches.
package metric
