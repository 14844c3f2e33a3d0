package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/recall/pkg/types"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := NewBadgerStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestBadgerStore(t)

	require.NoError(t, s.Upsert(ctx, seedItems()))

	item, err := s.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, types.ContentTypeConversation, item.ContentType)
	assert.Equal(t, []float32{0.7, 0.7, 0}, item.Embedding)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStoreVectorSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestBadgerStore(t)
	require.NoError(t, s.Upsert(ctx, seedItems()))

	hits, err := s.VectorSearch(ctx, []float32{0, 1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "log-1", hits[0].ID)
}

func TestBadgerStoreTextSearchWithFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestBadgerStore(t)
	require.NoError(t, s.Upsert(ctx, seedItems()))

	hits, err := s.TextSearch(ctx, "alice", 10, map[string]any{"session_id": "s1"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "conv-1", hits[0].ID)

	hits, err = s.TextSearch(ctx, "alice", 10, map[string]any{"session_id": "s2"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBadgerStoreUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestBadgerStore(t)
	require.NoError(t, s.Upsert(ctx, seedItems()))

	require.NoError(t, s.Upsert(ctx, []types.ContextItem{{
		ID:      "design-1",
		Content: map[string]any{"text": "rewritten design note"},
	}}))

	item, err := s.Get(ctx, "design-1")
	require.NoError(t, err)
	assert.Equal(t, "rewritten design note", item.Content["text"])
}
