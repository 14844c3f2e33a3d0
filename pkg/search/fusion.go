package search

import (
	"sort"
	"strings"

	"github.com/soundprediction/recall/pkg/types"
)

// Fusion boost weights. The fact boost is capped so a candidate carrying
// many facts cannot drown out genuinely better-scoring candidates.
const (
	DefaultQABoostMultiplier = 2.0
	qaRelevanceWeight        = 0.2
	factBoostPerFact         = 0.1
	maxFactBoost             = 0.3
	questionMatchBoost       = 0.15
)

// Merge combines the vector and graph candidate lists into one ranked list
// of at most limit entries with no duplicate ids. When an id appears in
// both lists the entry with the higher effective score wins: the vector
// hybrid score against the graph score multiplied by its qaBoost. The
// winner's final score is score*qaBoost, plus the Q&A relevance and fact
// boosts, plus a flat boost when a matched Q&A pair's question is the
// incoming query, clamped to [0, 1]. Candidates without an id are dropped.
func Merge(query string, vectorResults, graphResults []types.SearchCandidate, limit int) []types.SearchCandidate {
	best := make(map[string]fusionEntry)

	for _, list := range [][]types.SearchCandidate{vectorResults, graphResults} {
		for _, c := range list {
			if c.ID == "" {
				continue
			}
			e := fusionEntry{cand: c, score: c.HybridScore}
			if existing, ok := best[c.ID]; !ok || e.effective() > existing.effective() {
				best[c.ID] = e
			}
		}
	}

	merged := make([]types.SearchCandidate, 0, len(best))
	for _, e := range best {
		c := e.cand
		final := e.score * boostOrOne(c.QABoost)
		final += qaRelevanceWeight * c.QARelevanceScore

		factBoost := factBoostPerFact * float64(len(c.RelevantFacts))
		if factBoost > maxFactBoost {
			factBoost = maxFactBoost
		}
		final += factBoost

		if questionMatches(query, c.RelevantQAPairs) {
			final += questionMatchBoost
		}

		c.FusedScore = clamp01(final)
		merged = append(merged, c)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].FusedScore != merged[j].FusedScore {
			return merged[i].FusedScore > merged[j].FusedScore
		}
		return merged[i].ID < merged[j].ID
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// fusionEntry pairs a candidate with the pre-boost score of its source.
type fusionEntry struct {
	cand  types.SearchCandidate
	score float64
}

// effective is the score used to pick a winner when an id appears in both
// input lists: graph candidates compete with their qaBoost applied.
func (e fusionEntry) effective() float64 {
	if e.cand.Source == types.SourceGraph {
		return e.score * boostOrOne(e.cand.QABoost)
	}
	return e.score
}

// boostOrOne treats the zero value as the default multiplier of 1.
func boostOrOne(boost float64) float64 {
	if boost <= 0 {
		return 1
	}
	return boost
}

// questionMatches reports whether any matched Q&A pair's question text is
// the incoming query, after normalization.
func questionMatches(query string, pairs []types.QARelationship) bool {
	q := normalizeQuestion(query)
	if q == "" {
		return false
	}
	for _, pair := range pairs {
		if normalizeQuestion(pair.QuestionContent) == q {
			return true
		}
	}
	return false
}

func normalizeQuestion(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	return strings.TrimRight(text, "?!. ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
