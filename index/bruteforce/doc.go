// Package bruteforce provides a simple metric index that answers range and
// kNN queries by scanning all items. It is the correctness baseline for the
// cluster index and a reasonable choice for very small corpora.
package bruteforce
