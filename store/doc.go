// Package store persists the inputs and outputs of index builds: formula
// rows in SQLite and encoded index blobs in either SQLite or Badger.
package store
