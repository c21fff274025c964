// Package loc implements a List-of-Clusters metric index.
//
// A build picks a random subset of the items as cluster centers, assigns
// every item to its nearest center and keeps each cluster's members sorted
// by their distance to the center together with the cluster's covering
// radius. Range and k-nearest-neighbour queries then use the triangle
// inequality to skip whole clusters and to bound the window of members that
// must be compared against the query. Answers are exact when the distance is
// a true metric; with quasi-metrics the index still answers, approximately.
//
// The index is immutable once built and safe for concurrent queries.
package loc
