package rerank

import (
	"context"
	"math"
	"sort"
	"strings"
)

// LocalScorer ranks passages with cosine similarity over term-frequency
// vectors plus an exact-phrase bonus. Not a true cross-encoder, but
// monotonic in term overlap, dependency-free and deterministic, which makes
// it the safe default scorer.
type LocalScorer struct{}

// NewLocalScorer creates the local term-frequency scorer.
func NewLocalScorer() *LocalScorer {
	return &LocalScorer{}
}

// Rank scores every passage against the query and returns them sorted by
// score descending. It never fails.
func (s *LocalScorer) Rank(ctx context.Context, query string, passages []string) ([]RankedPassage, error) {
	results := make([]RankedPassage, 0, len(passages))
	for _, passage := range passages {
		results = append(results, RankedPassage{
			Passage: passage,
			Score:   s.scorePassage(query, passage),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

func (s *LocalScorer) scorePassage(query, passage string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	p := strings.ToLower(strings.TrimSpace(passage))
	if q == "" || p == "" {
		return 0
	}

	score := 0.9 * tfCosine(q, p)
	if strings.Contains(p, q) {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}

// tfCosine computes cosine similarity between term-frequency vectors of the
// two texts.
func tfCosine(a, b string) float64 {
	fa := termFrequencies(a)
	fb := termFrequencies(b)
	if len(fa) == 0 || len(fb) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for term, ca := range fa {
		normA += ca * ca
		if cb, ok := fb[term]; ok {
			dot += ca * cb
		}
	}
	for _, cb := range fb {
		normB += cb * cb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func termFrequencies(text string) map[string]float64 {
	freqs := make(map[string]float64)
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	}) {
		if tok == "" {
			continue
		}
		freqs[tok]++
	}
	return freqs
}

func isWordRune(r rune) bool {
	return r == '\'' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r > 127
}
