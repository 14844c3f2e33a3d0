package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/recall/pkg/types"
)

func TestCombineHybridDefaults(t *testing.T) {
	assert.InDelta(t, 0.7, CombineHybrid(1, 0, DefaultAlpha, DefaultBeta), 1e-9)
	assert.InDelta(t, 0.3, CombineHybrid(0, 1, DefaultAlpha, DefaultBeta), 1e-9)
	assert.InDelta(t, 1.0, CombineHybrid(1, 1, DefaultAlpha, DefaultBeta), 1e-9)
}

func TestCombineHybridNoRenormalization(t *testing.T) {
	// Weights need not sum to 1.
	assert.InDelta(t, 1.5, CombineHybrid(1, 1, 1.0, 0.5), 1e-9)
}

func TestMergeDeduplicatesByID(t *testing.T) {
	vector := []types.SearchCandidate{
		{ID: "a", HybridScore: 0.8, Source: types.SourceVector},
		{ID: "b", HybridScore: 0.6, Source: types.SourceVector},
	}
	graph := []types.SearchCandidate{
		{ID: "a", HybridScore: 0.5, Source: types.SourceGraph},
		{ID: "c", HybridScore: 0.4, Source: types.SourceGraph},
	}

	merged := Merge("query", vector, graph, 10)
	seen := make(map[string]bool)
	for _, c := range merged {
		assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
	}
	assert.Len(t, merged, 3)
}

func TestMergeRespectsLimit(t *testing.T) {
	var vector []types.SearchCandidate
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		vector = append(vector, types.SearchCandidate{ID: id, HybridScore: 0.5, Source: types.SourceVector})
	}
	merged := Merge("query", vector, nil, 2)
	assert.Len(t, merged, 2)
}

func TestMergeDropsCandidatesWithoutID(t *testing.T) {
	vector := []types.SearchCandidate{
		{ID: "", HybridScore: 0.9, Source: types.SourceVector},
		{ID: "a", HybridScore: 0.5, Source: types.SourceVector},
	}
	merged := Merge("query", vector, nil, 10)
	require.Len(t, merged, 1)
	assert.Equal(t, "a", merged[0].ID)
}

func TestMergeGraphWinsWithQABoost(t *testing.T) {
	vector := []types.SearchCandidate{
		{ID: "a", HybridScore: 0.5, Source: types.SourceVector},
	}
	graph := []types.SearchCandidate{
		{ID: "a", HybridScore: 0.4, QABoost: 2.0, Source: types.SourceGraph},
	}

	// Graph effective score 0.4*2.0 = 0.8 beats the vector 0.5.
	merged := Merge("query", vector, graph, 10)
	require.Len(t, merged, 1)
	assert.Equal(t, types.SourceGraph, merged[0].Source)
	assert.InDelta(t, 0.8, merged[0].FusedScore, 1e-9)
}

func TestMergeVectorWinsWithoutBoost(t *testing.T) {
	vector := []types.SearchCandidate{
		{ID: "a", HybridScore: 0.7, Source: types.SourceVector},
	}
	graph := []types.SearchCandidate{
		{ID: "a", HybridScore: 0.6, Source: types.SourceGraph},
	}

	merged := Merge("query", vector, graph, 10)
	require.Len(t, merged, 1)
	assert.Equal(t, types.SourceVector, merged[0].Source)
	assert.InDelta(t, 0.7, merged[0].FusedScore, 1e-9)
}

func TestMergeQARelevanceBoost(t *testing.T) {
	vector := []types.SearchCandidate{
		{ID: "a", HybridScore: 0.5, QARelevanceScore: 0.5, Source: types.SourceVector},
	}
	merged := Merge("query", vector, nil, 10)
	require.Len(t, merged, 1)
	assert.InDelta(t, 0.5+0.2*0.5, merged[0].FusedScore, 1e-9)
}

func TestMergeFactBoostCapped(t *testing.T) {
	vector := []types.SearchCandidate{
		{
			ID:          "a",
			HybridScore: 0.4,
			RelevantFacts: []string{
				"fact one", "fact two", "fact three", "fact four", "fact five",
			},
			Source: types.SourceVector,
		},
	}
	merged := Merge("query", vector, nil, 10)
	require.Len(t, merged, 1)
	// Five facts would add 0.5 uncapped; the cap holds it to 0.3.
	assert.InDelta(t, 0.7, merged[0].FusedScore, 1e-9)
}

func TestMergeQuestionMatchBoost(t *testing.T) {
	vector := []types.SearchCandidate{
		{
			ID:          "a",
			HybridScore: 0.5,
			RelevantQAPairs: []types.QARelationship{
				{QuestionContent: "What is my name?", AnswerContent: "My name is Matt", Confidence: 0.8},
			},
			Source: types.SourceVector,
		},
	}

	merged := Merge("what is my name", vector, nil, 10)
	require.Len(t, merged, 1)
	assert.InDelta(t, 0.65, merged[0].FusedScore, 1e-9)

	// A different question gets no flat boost.
	merged = Merge("where do i live", vector, nil, 10)
	assert.InDelta(t, 0.5, merged[0].FusedScore, 1e-9)
}

func TestMergeClampsToUnitInterval(t *testing.T) {
	vector := []types.SearchCandidate{
		{
			ID:               "a",
			HybridScore:      0.9,
			QABoost:          2.0,
			QARelevanceScore: 1.0,
			RelevantFacts:    []string{"f1", "f2", "f3"},
			Source:           types.SourceVector,
		},
	}
	merged := Merge("query", vector, nil, 10)
	require.Len(t, merged, 1)
	assert.Equal(t, 1.0, merged[0].FusedScore)
}

func TestMergeSortedDescendingWithDeterministicTies(t *testing.T) {
	vector := []types.SearchCandidate{
		{ID: "b", HybridScore: 0.5, Source: types.SourceVector},
		{ID: "a", HybridScore: 0.5, Source: types.SourceVector},
		{ID: "c", HybridScore: 0.9, Source: types.SourceVector},
	}
	merged := Merge("query", vector, nil, 10)
	require.Len(t, merged, 3)
	assert.Equal(t, "c", merged[0].ID)
	assert.Equal(t, "a", merged[1].ID)
	assert.Equal(t, "b", merged[2].ID)
}

func TestMergeEmptyInputs(t *testing.T) {
	assert.Empty(t, Merge("query", nil, nil, 10))
}
