package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/recall/pkg/rerank"
	"github.com/soundprediction/recall/pkg/store"
	"github.com/soundprediction/recall/pkg/types"
)

type failingVectorStore struct{}

func (failingVectorStore) Upsert(ctx context.Context, items []types.ContextItem) error {
	return errors.New("backend down")
}

func (failingVectorStore) VectorSearch(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]store.Hit, error) {
	return nil, errors.New("backend down")
}

func (failingVectorStore) TextSearch(ctx context.Context, query string, limit int, filter map[string]any) ([]store.Hit, error) {
	return nil, errors.New("backend down")
}

func (failingVectorStore) Get(ctx context.Context, id string) (*types.ContextItem, error) {
	return nil, errors.New("backend down")
}

func (failingVectorStore) Close() error { return nil }

type failingGraphStore struct{}

func (failingGraphStore) Upsert(ctx context.Context, items []types.ContextItem) error {
	return errors.New("backend down")
}

func (failingGraphStore) Search(ctx context.Context, query string, vector []float32, limit int, filter map[string]any) ([]store.Hit, error) {
	return nil, errors.New("backend down")
}

func (failingGraphStore) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func seededMemoryStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	require.NoError(t, s.Upsert(context.Background(), []types.ContextItem{
		{
			ID:      "note-1",
			Content: map[string]any{"text": "the retry backoff doubles per attempt"},
		},
		{
			ID:      "note-2",
			Content: map[string]any{"text": "deployment checklist for staging"},
		},
		{
			ID:      "conv-1",
			Content: map[string]any{"text": "my name is Matt"},
			Metadata: map[string]any{
				"qa_pairs": []types.QARelationship{
					{
						QuestionContent: "What is my name?",
						AnswerContent:   "My name is Matt",
						QuestionIndex:   0,
						AnswerIndex:     1,
						Confidence:      0.9,
					},
				},
				"facts": []types.FactualStatement{
					{Content: "My name is Matt", FactTypes: []types.FactType{types.FactName}},
				},
			},
		},
	}))
	return s
}

func TestSearchLexicalMatchReturnsResult(t *testing.T) {
	s := NewSearcher(nil, nil, seededMemoryStore(t), nil, nil, discardLogger())

	resp := s.Search(context.Background(), "retry backoff", Options{})
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "note-1", resp.Results[0].ID)
	assert.Greater(t, resp.Results[0].Score, 0.0)
	assert.Equal(t, 1.0, resp.Results[0].Scores.Lexical)
}

func TestSearchExpansionBridgesQuestionToAnswer(t *testing.T) {
	// The stored text answers the question without sharing its phrasing;
	// only an expansion phrase can find it lexically.
	s := NewSearcher(nil, nil, seededMemoryStore(t), nil, nil, discardLogger())

	resp := s.Search(context.Background(), "What's my name?", Options{})
	require.True(t, resp.Success)

	found := false
	for _, r := range resp.Results {
		if r.ID == "conv-1" {
			found = true
		}
	}
	assert.True(t, found, "expansion should surface the stored answer")
}

func TestSearchQAMetadataBoostsCandidate(t *testing.T) {
	mem := seededMemoryStore(t)
	s := NewSearcher(nil, nil, mem, mem, nil, discardLogger())

	resp := s.Search(context.Background(), "What is my name?", Options{})
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "conv-1", resp.Results[0].ID, "the Q&A-annotated item should rank first")
}

func TestSearchAllBackendsFailing(t *testing.T) {
	s := NewSearcher(nil, nil, failingVectorStore{}, failingGraphStore{}, nil, discardLogger())

	resp := s.Search(context.Background(), "anything", Options{})
	assert.False(t, resp.Success)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 0, resp.Total)
}

func TestSearchPartialBackendFailureDegrades(t *testing.T) {
	s := NewSearcher(nil, nil, seededMemoryStore(t), failingGraphStore{}, nil, discardLogger())

	resp := s.Search(context.Background(), "retry backoff", Options{})
	assert.True(t, resp.Success, "one live backend keeps the request successful")
	assert.NotEmpty(t, resp.Results)
}

func TestSearchVectorBackendFailureWithLiveGraph(t *testing.T) {
	s := NewSearcher(nil, nil, failingVectorStore{}, seededMemoryStore(t), nil, discardLogger())

	resp := s.Search(context.Background(), "retry backoff", Options{})
	assert.True(t, resp.Success)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, types.SourceGraph, resp.Results[0].Source)
}

func TestSearchRespectsLimit(t *testing.T) {
	s := NewSearcher(nil, nil, seededMemoryStore(t), nil, nil, discardLogger())

	resp := s.Search(context.Background(), "the", Options{Limit: 1})
	assert.LessOrEqual(t, len(resp.Results), 1)
}

func TestSearchWithRerankerOrdersByRelevance(t *testing.T) {
	s := NewSearcher(nil, nil, seededMemoryStore(t), nil, rerank.New(nil, 0), discardLogger())

	resp := s.Search(context.Background(), "retry backoff", Options{Rerank: true})
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "note-1", resp.Results[0].ID)
	require.NotNil(t, resp.Results[0].Scores.Rerank)
}

func TestSearchEmptyQueryStillSucceeds(t *testing.T) {
	s := NewSearcher(nil, nil, seededMemoryStore(t), nil, nil, discardLogger())

	resp := s.Search(context.Background(), "", Options{})
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Results)
}

func TestAnnotateQADecodesStoredMetadata(t *testing.T) {
	s := NewSearcher(nil, nil, store.NewMemoryStore(), nil, nil, discardLogger())

	// Metadata as it comes back from a JSON store: []any of maps.
	c := types.SearchCandidate{
		ID: "x",
		RawPayload: map[string]any{
			"text": "my name is Matt",
			"_metadata": map[string]any{
				"qa_pairs": []any{
					map[string]any{
						"question_content": "What is my name?",
						"answer_content":   "My name is Matt",
						"confidence":       0.9,
					},
				},
			},
		},
	}
	s.annotateQA("what is my name", &c, Options{}.withDefaults())

	require.Len(t, c.RelevantQAPairs, 1)
	assert.Greater(t, c.QARelevanceScore, 0.0)
	assert.Equal(t, DefaultQABoostMultiplier, c.QABoost)
}
