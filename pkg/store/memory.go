package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/soundprediction/recall/pkg/rerank"
	"github.com/soundprediction/recall/pkg/types"
	"github.com/soundprediction/recall/pkg/utils"
)

// MemoryStore is a thread-safe in-memory store implementing both
// VectorStore and GraphStore. It backs tests and deployments that do not
// need persistence.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]types.ContextItem
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]types.ContextItem)}
}

// Upsert stores items keyed by id. Items without an id are skipped.
func (m *MemoryStore) Upsert(ctx context.Context, items []types.ContextItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		m.items[item.ID] = item
	}
	return nil
}

// Get retrieves a single item by id.
func (m *MemoryStore) Get(ctx context.Context, id string) (*types.ContextItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

// VectorSearch scores every stored item by cosine similarity against the
// query vector and returns the top limit hits.
func (m *MemoryStore) VectorSearch(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]Hit, 0, len(m.items))
	for _, item := range m.items {
		if len(item.Embedding) == 0 || !matchesFilter(item.Metadata, filter) {
			continue
		}
		hits = append(hits, Hit{
			ID:       item.ID,
			Score:    utils.CosineSimilarity(vector, item.Embedding),
			Payload:  item.Content,
			Metadata: item.Metadata,
		})
	}
	return topHits(hits, limit), nil
}

// TextSearch returns items whose extracted text contains the query,
// case-insensitively. Lexical scores are binary: 1 for a match.
func (m *MemoryStore) TextSearch(ctx context.Context, query string, limit int, filter map[string]any) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Hit
	for _, item := range m.items {
		if !matchesFilter(item.Metadata, filter) {
			continue
		}
		text := strings.ToLower(rerank.ExtractText(item.Content))
		if text == "" || !strings.Contains(text, q) {
			continue
		}
		hits = append(hits, Hit{ID: item.ID, Score: 1, Payload: item.Content, Metadata: item.Metadata})
	}
	return topHits(hits, limit), nil
}

// Search implements GraphStore over the same item set: the better of the
// lexical and vector scores per item.
func (m *MemoryStore) Search(ctx context.Context, query string, vector []float32, limit int, filter map[string]any) ([]Hit, error) {
	textHits, err := m.TextSearch(ctx, query, 0, filter)
	if err != nil {
		return nil, err
	}

	best := make(map[string]Hit, len(textHits))
	for _, h := range textHits {
		best[h.ID] = h
	}

	if len(vector) > 0 {
		vectorHits, err := m.VectorSearch(ctx, vector, 0, filter)
		if err != nil {
			return nil, err
		}
		for _, h := range vectorHits {
			if existing, ok := best[h.ID]; !ok || h.Score > existing.Score {
				best[h.ID] = h
			}
		}
	}

	hits := make([]Hit, 0, len(best))
	for _, h := range best {
		hits = append(hits, h)
	}
	return topHits(hits, limit), nil
}

// Len reports the number of stored items.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryStore) Close() error { return nil }

// topHits sorts hits by score descending, ties broken by id, and truncates
// to limit. A non-positive limit returns everything.
func topHits(hits []Hit, limit int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

var (
	_ VectorStore = (*MemoryStore)(nil)
	_ GraphStore  = (*MemoryStore)(nil)
)
