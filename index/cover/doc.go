// Package cover implements a cover tree over any metric, a second exact
// index.Index implementation next to the list of clusters. Every node caches
// the radius of its subtree, so kNN and range queries prune with the
// triangle inequality and remain exact for true metrics.
package cover
