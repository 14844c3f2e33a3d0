package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/soundprediction/recall/pkg/rerank"
	"github.com/soundprediction/recall/pkg/types"
	"github.com/soundprediction/recall/pkg/utils"
)

const badgerItemPrefix = "item/"

// BadgerStore is an embedded persistent VectorStore backed by Badger.
// Search is a brute-force scan over stored embeddings, which is fine for
// the per-session corpus sizes this engine targets.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger database at path. An empty
// path opens an in-memory database.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Upsert stores items keyed by id. Items without an id are skipped.
func (b *BadgerStore) Upsert(ctx context.Context, items []types.ContextItem) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for _, item := range items {
		if item.ID == "" {
			continue
		}
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to encode item %s: %w", item.ID, err)
		}
		if err := wb.Set([]byte(badgerItemPrefix+item.ID), data); err != nil {
			return fmt.Errorf("failed to write item %s: %w", item.ID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush item batch: %w", err)
	}
	return nil
}

// Get retrieves a single item by id.
func (b *BadgerStore) Get(ctx context.Context, id string) (*types.ContextItem, error) {
	var item types.ContextItem
	err := b.db.View(func(txn *badger.Txn) error {
		entry, err := txn.Get([]byte(badgerItemPrefix + id))
		if err != nil {
			return err
		}
		return entry.Value(func(val []byte) error {
			return json.Unmarshal(val, &item)
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read item %s: %w", id, err)
	}
	return &item, nil
}

// VectorSearch scans stored items and scores them by cosine similarity.
func (b *BadgerStore) VectorSearch(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]Hit, error) {
	var hits []Hit
	err := b.scan(ctx, func(item types.ContextItem) {
		if len(item.Embedding) == 0 || !matchesFilter(item.Metadata, filter) {
			return
		}
		hits = append(hits, Hit{
			ID:       item.ID,
			Score:    utils.CosineSimilarity(vector, item.Embedding),
			Payload:  item.Content,
			Metadata: item.Metadata,
		})
	})
	if err != nil {
		return nil, err
	}
	return topHits(hits, limit), nil
}

// TextSearch scans stored items for a case-insensitive substring match.
// Lexical scores are binary: 1 for a match.
func (b *BadgerStore) TextSearch(ctx context.Context, query string, limit int, filter map[string]any) ([]Hit, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}

	var hits []Hit
	err := b.scan(ctx, func(item types.ContextItem) {
		if !matchesFilter(item.Metadata, filter) {
			return
		}
		text := strings.ToLower(rerank.ExtractText(item.Content))
		if text == "" || !strings.Contains(text, q) {
			return
		}
		hits = append(hits, Hit{ID: item.ID, Score: 1, Payload: item.Content, Metadata: item.Metadata})
	})
	if err != nil {
		return nil, err
	}
	return topHits(hits, limit), nil
}

func (b *BadgerStore) scan(ctx context.Context, fn func(types.ContextItem)) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerItemPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				var item types.ContextItem
				if err := json.Unmarshal(val, &item); err != nil {
					// Skip undecodable rows rather than failing the search.
					return nil
				}
				fn(item)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

var _ VectorStore = (*BadgerStore)(nil)
