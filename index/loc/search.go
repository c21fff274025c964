package loc

import "sort"

// lowerBound returns the first member with Distance >= d.
func lowerBound[T any](members []Member[T], d float64) int {
	return sort.Search(len(members), func(i int) bool { return members[i].Distance >= d })
}

// upperBound returns the first member with Distance > d.
func upperBound[T any](members []Member[T], d float64) int {
	return sort.Search(len(members), func(i int) bool { return members[i].Distance > d })
}
