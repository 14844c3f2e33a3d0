package rerank

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/recall/pkg/types"
)

func candidate(id, text string, hybrid float64) types.SearchCandidate {
	return types.SearchCandidate{
		ID:          id,
		RawPayload:  map[string]any{"text": text},
		HybridScore: hybrid,
	}
}

func TestRerankRelevantDocumentRises(t *testing.T) {
	r := New(nil, 0)

	// The relevant document sits third by pre-rerank hybrid score.
	candidates := []types.SearchCandidate{
		candidate("a", "weekly sprint planning notes and action items", 0.95),
		candidate("b", "deployment checklist for the staging cluster", 0.90),
		candidate("gold", "the retry backoff doubles per attempt with a configurable cap", 0.85),
		candidate("d", "meeting transcript about hiring plans", 0.80),
		candidate("e", "grocery list and weekend errands", 0.75),
	}

	out := r.Rerank(context.Background(), "how is the retry backoff configured", candidates)
	require.Len(t, out, 5)

	goldPos := -1
	for i, c := range out {
		if c.ID == "gold" {
			goldPos = i
		}
	}
	require.NotEqual(t, -1, goldPos)
	assert.LessOrEqual(t, goldPos, 2, "relevant document must improve or hold its position")

	// Rerank scores must show real variance across distinct texts.
	seen := make(map[float64]bool)
	for _, c := range out {
		require.NotNil(t, c.RerankScore)
		seen[*c.RerankScore] = true
	}
	assert.Greater(t, len(seen), 1, "scores must not collapse to a single value")
}

func TestRerankNeverAllEqualScores(t *testing.T) {
	r := New(nil, 0)

	// No candidate shares a term with the query, so the local scorer gives
	// every passage zero. The output scores must still differ.
	candidates := []types.SearchCandidate{
		candidate("a", "alpha beta gamma", 0.9),
		candidate("b", "delta epsilon zeta", 0.8),
		candidate("c", "eta theta iota", 0.7),
	}

	out := r.Rerank(context.Background(), "completely unrelated query terms", candidates)
	require.Len(t, out, 3)

	seen := make(map[float64]bool)
	for _, c := range out {
		require.NotNil(t, c.RerankScore)
		seen[*c.RerankScore] = true
	}
	assert.Equal(t, 3, len(seen), "every candidate must receive a distinct score")

	// The spread follows the incoming hybrid order.
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
	assert.Equal(t, "c", out[2].ID)
}

func TestRerankEmptyPayloadsSinkToBottom(t *testing.T) {
	r := New(nil, 0)

	candidates := []types.SearchCandidate{
		{ID: "empty", RawPayload: map[string]any{}, HybridScore: 0.99},
		candidate("real", "retry backoff configuration", 0.10),
	}

	out := r.Rerank(context.Background(), "retry backoff", candidates)
	require.Len(t, out, 2)
	assert.Equal(t, "real", out[0].ID)
	assert.Equal(t, "empty", out[1].ID)
	assert.Nil(t, out[1].RerankScore)
	require.NotNil(t, out[0].RerankScore)
	assert.Greater(t, *out[0].RerankScore, 0.0)
}

type failingScorer struct{}

func (failingScorer) Rank(ctx context.Context, query string, passages []string) ([]RankedPassage, error) {
	return nil, errors.New("scorer backend down")
}

func TestRerankScorerFailureFallsBackToLocal(t *testing.T) {
	r := New(failingScorer{}, 0)

	candidates := []types.SearchCandidate{
		candidate("a", "retry backoff doubles per attempt", 0.5),
		candidate("b", "unrelated meeting notes", 0.9),
	}

	out := r.Rerank(context.Background(), "retry backoff", candidates)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID, "local fallback should still rank by relevance")
	require.NotNil(t, out[0].RerankScore)
	require.NotNil(t, out[1].RerankScore)
	assert.Greater(t, *out[0].RerankScore, *out[1].RerankScore)
}

type truncatedScorer struct{}

func (truncatedScorer) Rank(ctx context.Context, query string, passages []string) ([]RankedPassage, error) {
	// Returns fewer results than passages, which must be treated as failure.
	return []RankedPassage{{Passage: passages[0], Score: 1}}, nil
}

func TestRerankLengthMismatchFallsBackToLocal(t *testing.T) {
	r := New(truncatedScorer{}, 0)

	candidates := []types.SearchCandidate{
		candidate("a", "unrelated meeting notes", 0.9),
		candidate("b", "retry backoff doubles per attempt", 0.5),
	}

	out := r.Rerank(context.Background(), "retry backoff", candidates)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ID)
}

func TestRerankEmptyInput(t *testing.T) {
	r := New(nil, 0)
	assert.Empty(t, r.Rerank(context.Background(), "query", nil))
}

func TestRerankDeterministicTieBreak(t *testing.T) {
	r := New(nil, 0)

	// Identical text and hybrid score: the flat-score spread keeps the
	// incoming order, and repeated calls agree.
	candidates := []types.SearchCandidate{
		candidate("zulu", "retry backoff notes", 0.5),
		candidate("alpha", "retry backoff notes", 0.5),
	}

	first := r.Rerank(context.Background(), "retry backoff", candidates)
	second := r.Rerank(context.Background(), "retry backoff", candidates)
	require.Len(t, first, 2)
	assert.Equal(t, "zulu", first[0].ID)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[1].ID, second[1].ID)
}

func TestLocalScorerExactPhraseBonus(t *testing.T) {
	s := NewLocalScorer()

	with := s.scorePassage("retry backoff", "configure the retry backoff here")
	without := s.scorePassage("retry backoff", "backoff settings control retry behaviour")
	assert.Greater(t, with, without)
	assert.LessOrEqual(t, with, 1.0)
}
