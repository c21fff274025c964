// Package index defines a minimal abstraction for metric indexes that can be
// built from items and a distance function and answer range and k-nearest
// neighbour queries. Implementations in this module are a List-of-Clusters
// index (index/loc) and a brute-force baseline (index/bruteforce).
package index
