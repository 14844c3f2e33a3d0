// Package search orchestrates one retrieval request: query expansion,
// concurrent vector and graph backend calls, hybrid scoring, optional
// reranking and result fusion.
package search

// Default hybrid weights. The weights are caller-supplied and are not
// renormalized; they need not sum to 1.
const (
	DefaultAlpha = 0.7
	DefaultBeta  = 0.3
)

// CombineHybrid returns the weighted sum of a dense and a lexical score.
// It is the basis for ranking decisions upstream, so it lives as its own
// unit despite being a one-liner.
func CombineHybrid(dense, lexical, alpha, beta float64) float64 {
	return alpha*dense + beta*lexical
}
