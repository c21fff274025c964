package vector

import (
	"context"
)

// Document represents a logical document stored in the vector store.
type Document struct {
	// ID is the logical identifier of the document.
	ID string `db:"id"`

	// Content holds the main text/body of the document.
	Content string `db:"content"`

	// Metadata is an opaque JSON or structured payload associated with the
	// document.
	Metadata string `db:"meta"`

	// Embedding is the vector representation of the document content.
	Embedding []float32 `db:"-"`

	// Distance is the angular distance to the query; set by SimilaritySearch.
	Distance float64 `db:"-"`
}

// Store defines the application-level vector store API.
type Store interface {
	// AddDocuments inserts or replaces documents and returns their IDs.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// SimilaritySearch returns up to k documents nearest to queryEmbedding,
	// closest first.
	SimilaritySearch(ctx context.Context, queryEmbedding []float32, k int) ([]Document, error)

	// Remove deletes the document with the given ID.
	Remove(ctx context.Context, id string) error
}
