// Package vector implements the dense-vector storage and similarity search
// that backs half of the Hybrid Retriever (C3, spec.md §4.3). Sparse lexical
// scoring, reciprocal-rank fusion, reranking, and citation tagging live in
// pkg/rag, which composes one Provider here with a sparse index.
package vector

import "context"

// Result is one dense-vector match, independent of which Provider produced
// it — every implementation below normalizes into this shape so pkg/rag
// never branches on backend.
type Result struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]any
	Score    float64
}

// Provider is a dense-vector store: upsert embedded chunks, search by
// similarity, optionally filtered by metadata.
type Provider interface {
	// Name identifies the backend ("qdrant", "pinecone", "memory").
	Name() string

	// Upsert adds or replaces the vector and metadata for id in collection.
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error

	// Search returns the topK nearest neighbors of vector in collection.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	// SearchWithFilter additionally restricts results to points matching filter
	// (exact-match metadata fields only — the KB chunk domain/org/visibility
	// filters from spec.md §4.3 use this).
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)

	// Delete removes id from collection.
	Delete(ctx context.Context, collection string, id string) error

	// Close releases any underlying connection.
	Close() error
}
