// Package rag defines the vector-store boundary for the retrieval pipeline:
// collection lifecycle, point upsert, and filtered similarity search.
// The Qdrant implementation satisfies VectorStore; tests substitute fakes so
// the answer engine never needs a live backend.
package rag

import "context"

// Point is the durable unit stored in the vector index: a sequential
// integer id assigned at ingestion time, the chunk's embedding, and a
// payload holding the chunk content plus document metadata.
type Point struct {
	// ID is the ingestion-time sequential position of the chunk. Not
	// content-derived — re-ingestion produces a fresh id space only when
	// the collection is recreated.
	ID uint64
	// Vector is the chunk's embedding.
	Vector []float32
	// Content is the chunk text.
	Content string
	// Payload holds the chunk's metadata (title, section, week, url, ...).
	Payload map[string]string
}

// ScoredDocument is the read-only projection of a stored point returned by
// a search, plus its similarity score. Never persisted; built fresh per
// query.
type ScoredDocument struct {
	// ID is the stored point id.
	ID uint64
	// Content is the chunk text.
	Content string
	// Title is the source document title.
	Title string
	// URL is the canonical source URL.
	URL string
	// Week is the grouping key the chunk was stored under.
	Week string
	// Section is the heading path of the chunk.
	Section string
	// Score is the cosine similarity in [0,1].
	Score float32
}

// VectorStore owns one named collection of points. Implementations must be
// safe to call from multiple goroutines; the collection is read-mostly at
// serving time and only the ingestion job writes.
type VectorStore interface {
	// EnsureCollection makes the collection exist with the configured
	// vector size and cosine metric. Idempotent when recreate is false;
	// when true, an existing collection is deleted and rebuilt empty.
	EnsureCollection(ctx context.Context, recreate bool) error

	// Upsert applies points in batches with last-write-wins semantics per id.
	Upsert(ctx context.Context, points []Point, batchSize int) error

	// Search returns at most limit documents with score >= threshold,
	// ordered by descending score (ties broken by ascending id). weekFilter
	// restricts results to one grouping key; empty means no filter. An
	// empty result set is a valid outcome, not an error.
	Search(ctx context.Context, vector []float32, weekFilter string, limit int, threshold float32) ([]ScoredDocument, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context) (uint64, error)

	// Close releases the underlying connection.
	Close() error
}
