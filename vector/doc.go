// Package vector provides float32 embeddings as a second item type for the
// cluster index:
//   - Euclidean and angular metrics backed by github.com/viant/vec kernels
//   - BLOB encoding for SQLite columns and index blobs
//   - SQLiteStore, a document store answering similarity searches from a
//     cluster index under the angular metric
package vector
