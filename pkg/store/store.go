// Package store provides the storage backends context items are persisted
// to and retrieved from: an embedded Badger vector store, a Neo4j graph
// store, and an in-memory store used for tests and ephemeral deployments.
package store

import (
	"context"
	"errors"

	"github.com/soundprediction/recall/pkg/types"
)

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("item not found")

// Hit is one raw candidate returned by a backend search. Score semantics
// depend on the search: cosine similarity for vector search, a lexical
// match score in [0, 1] for text search, a combined relevance score for
// graph search.
type Hit struct {
	ID       string
	Score    float64
	Payload  map[string]any
	Metadata map[string]any
}

// VectorStore persists context items and serves dense and lexical search
// over them.
type VectorStore interface {
	// Upsert stores items, replacing any existing item with the same id.
	Upsert(ctx context.Context, items []types.ContextItem) error

	// VectorSearch returns up to limit items nearest to the query vector,
	// scored by cosine similarity. The filter matches against item
	// metadata; a nil filter matches everything.
	VectorSearch(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]Hit, error)

	// TextSearch returns up to limit items whose text matches the query,
	// with lexical scores in [0, 1].
	TextSearch(ctx context.Context, query string, limit int, filter map[string]any) ([]Hit, error)

	// Get retrieves a single item by id.
	Get(ctx context.Context, id string) (*types.ContextItem, error)

	Close() error
}

// GraphStore persists context items as graph nodes and serves relationship
// aware search over them.
type GraphStore interface {
	// Upsert stores items as nodes, replacing nodes with the same id.
	Upsert(ctx context.Context, items []types.ContextItem) error

	// Search combines fulltext and vector similarity over the graph and
	// returns up to limit hits scored in [0, 1]. Either query or vector
	// may be empty.
	Search(ctx context.Context, query string, vector []float32, limit int, filter map[string]any) ([]Hit, error)

	Close() error
}

func matchesFilter(metadata, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}
