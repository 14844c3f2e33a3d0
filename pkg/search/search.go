package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/recall/pkg/embedding"
	"github.com/soundprediction/recall/pkg/expansion"
	"github.com/soundprediction/recall/pkg/rerank"
	"github.com/soundprediction/recall/pkg/store"
	"github.com/soundprediction/recall/pkg/types"
	"github.com/soundprediction/recall/pkg/utils"
)

const (
	// DefaultLimit bounds the result list when the caller does not.
	DefaultLimit = 10

	// DefaultBackendTimeout bounds each backend call. A slow backend
	// degrades recall for that request instead of stalling it.
	DefaultBackendTimeout = 5 * time.Second
)

// Options tune one retrieval request.
type Options struct {
	Limit          int
	Mode           types.SearchMode
	Alpha          float64
	Beta           float64
	Filter         map[string]any
	Rerank         bool
	QABoost        float64
	BackendTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Mode == "" {
		o.Mode = types.SearchModeHybrid
	}
	if o.Alpha == 0 && o.Beta == 0 {
		o.Alpha, o.Beta = DefaultAlpha, DefaultBeta
	}
	if o.QABoost <= 0 {
		o.QABoost = DefaultQABoostMultiplier
	}
	if o.BackendTimeout <= 0 {
		o.BackendTimeout = DefaultBackendTimeout
	}
	return o
}

// Searcher runs retrieval requests against a vector store and an optional
// graph store.
type Searcher struct {
	embedder *embedding.Service
	expander *expansion.Expander
	vector   store.VectorStore
	graph    store.GraphStore
	reranker *rerank.Reranker
	logger   *slog.Logger
}

// NewSearcher wires a searcher. The graph store and reranker may be nil;
// the affected stages are skipped.
func NewSearcher(embedder *embedding.Service, expander *expansion.Expander, vector store.VectorStore, graph store.GraphStore, reranker *rerank.Reranker, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	if expander == nil {
		expander = expansion.MustNewExpander()
	}
	return &Searcher{
		embedder: embedder,
		expander: expander,
		vector:   vector,
		graph:    graph,
		reranker: reranker,
		logger:   logger,
	}
}

// Search runs the full pipeline for one query: expansion, concurrent
// backend calls, hybrid scoring, fusion and optional reranking. Backend
// failures degrade recall; Success is false only when every configured
// backend failed.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) *types.RetrieveResponse {
	opts = opts.withDefaults()
	started := time.Now()

	expansions := s.expander.ExpandQuery(query)
	if len(expansions) > expansion.MaxFanOut {
		expansions = expansions[:expansion.MaxFanOut]
	}

	queryVector := s.embedQuery(ctx, query, opts)

	var (
		mu           sync.Mutex
		vectorCands  []types.SearchCandidate
		graphCands   []types.SearchCandidate
		vectorFailed bool
		graphFailed  bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cands, err := s.searchVector(gctx, expansions, queryVector, opts)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			s.logger.Warn("vector backend failed, continuing without it", "error", err)
			vectorFailed = true
			return nil
		}
		vectorCands = cands
		return nil
	})
	if s.graph != nil {
		g.Go(func() error {
			cands, err := s.searchGraph(gctx, expansions, queryVector, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("graph backend failed, continuing without it", "error", err)
				graphFailed = true
				return nil
			}
			graphCands = cands
			return nil
		})
	}
	_ = g.Wait()

	for i := range vectorCands {
		s.annotateQA(query, &vectorCands[i], opts)
	}
	for i := range graphCands {
		s.annotateQA(query, &graphCands[i], opts)
	}

	merged := Merge(query, vectorCands, graphCands, opts.Limit)
	if opts.Rerank && s.reranker != nil {
		merged = s.reranker.Rerank(ctx, query, merged)
	}

	allFailed := vectorFailed && (s.graph == nil || graphFailed)
	resp := &types.RetrieveResponse{
		Query:   query,
		Success: !allFailed,
		Results: toResults(merged),
	}
	resp.Total = len(resp.Results)

	s.logger.Debug("search completed",
		"query", query,
		"expansions", len(expansions),
		"results", resp.Total,
		"success", resp.Success,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return resp
}

// embedQuery returns the query embedding, or nil when the embedder is
// unavailable. Dense scoring is skipped without a vector; lexical and
// graph fulltext search still run.
func (s *Searcher) embedQuery(ctx context.Context, query string, opts Options) []float32 {
	if s.embedder == nil || opts.Mode == types.SearchModeLexical {
		return nil
	}
	vector, err := s.embedder.GenerateEmbedding(ctx, query, true)
	if err != nil {
		s.logger.Warn("query embedding failed, dense scoring disabled for this request", "error", err)
		return nil
	}
	return vector
}

// searchVector issues dense and lexical searches against the vector store
// and folds the hits into per-id candidates.
func (s *Searcher) searchVector(ctx context.Context, expansions []string, queryVector []float32, opts Options) ([]types.SearchCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.BackendTimeout)
	defer cancel()

	byID := make(map[string]*types.SearchCandidate)
	var lastErr error
	succeeded := false

	// Candidate pool: fetch more than the final limit so fusion has
	// something to deduplicate and boost.
	fetch := opts.Limit * 3

	if len(queryVector) > 0 && opts.Mode != types.SearchModeLexical {
		hits, err := s.vector.VectorSearch(ctx, queryVector, fetch, opts.Filter)
		if err != nil {
			lastErr = err
		} else {
			succeeded = true
			for _, h := range hits {
				c := candidateFor(byID, h, types.SourceVector)
				if h.Score > c.DenseScore {
					c.DenseScore = h.Score
				}
			}
		}
	}

	if opts.Mode != types.SearchModeDense {
		var mu sync.Mutex
		fns := make([]func() error, 0, len(expansions))
		for _, q := range expansions {
			fns = append(fns, func() error {
				hits, err := s.vector.TextSearch(ctx, q, fetch, opts.Filter)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				succeeded = true
				for _, h := range hits {
					c := candidateFor(byID, h, types.SourceVector)
					if h.Score > c.LexicalScore {
						c.LexicalScore = h.Score
					}
				}
				return nil
			})
		}
		for _, err := range utils.SemaphoreGather(ctx, expansion.MaxFanOut, fns...) {
			if err != nil {
				lastErr = err
			}
		}
	}

	if !succeeded {
		return nil, lastErr
	}

	cands := make([]types.SearchCandidate, 0, len(byID))
	for _, c := range byID {
		switch opts.Mode {
		case types.SearchModeDense:
			c.HybridScore = c.DenseScore
		case types.SearchModeLexical:
			c.HybridScore = c.LexicalScore
		default:
			c.HybridScore = CombineHybrid(c.DenseScore, c.LexicalScore, opts.Alpha, opts.Beta)
		}
		cands = append(cands, *c)
	}
	return cands, nil
}

// searchGraph issues one graph search per expansion and keeps the best
// score per id. Graph scores are opaque values in [0, 1].
func (s *Searcher) searchGraph(ctx context.Context, expansions []string, queryVector []float32, opts Options) ([]types.SearchCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.BackendTimeout)
	defer cancel()

	byID := make(map[string]*types.SearchCandidate)
	var lastErr error
	succeeded := false

	var mu sync.Mutex
	fns := make([]func() error, 0, len(expansions))
	for i, q := range expansions {
		// The vector adds nothing to repeated calls; send it once.
		var vec []float32
		if i == 0 {
			vec = queryVector
		}
		fns = append(fns, func() error {
			hits, err := s.graph.Search(ctx, q, vec, opts.Limit*3, opts.Filter)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			succeeded = true
			for _, h := range hits {
				c := candidateFor(byID, h, types.SourceGraph)
				if h.Score > c.HybridScore {
					c.HybridScore = h.Score
				}
			}
			return nil
		})
	}
	for _, err := range utils.SemaphoreGather(ctx, expansion.MaxFanOut, fns...) {
		if err != nil {
			lastErr = err
		}
	}

	if !succeeded {
		return nil, lastErr
	}

	cands := make([]types.SearchCandidate, 0, len(byID))
	for _, c := range byID {
		cands = append(cands, *c)
	}
	return cands, nil
}

func candidateFor(byID map[string]*types.SearchCandidate, h store.Hit, source types.SearchSource) *types.SearchCandidate {
	c, ok := byID[h.ID]
	if !ok {
		payload := h.Payload
		if len(h.Metadata) > 0 {
			payload = cloneWithMetadata(h.Payload, h.Metadata)
		}
		c = &types.SearchCandidate{ID: h.ID, RawPayload: payload, Source: source}
		byID[h.ID] = c
	}
	return c
}

// cloneWithMetadata attaches store metadata to the payload under a reserved
// key without mutating the stored map.
func cloneWithMetadata(payload, metadata map[string]any) map[string]any {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["_metadata"] = metadata
	return out
}

// annotateQA matches the candidate's Q&A side-channel metadata against the
// query and fills the boost fields fusion consumes.
func (s *Searcher) annotateQA(query string, c *types.SearchCandidate, opts Options) {
	metadata, _ := c.RawPayload["_metadata"].(map[string]any)
	if metadata == nil {
		return
	}

	queryTokens := tokenSet(query)
	if len(queryTokens) == 0 {
		return
	}

	var pairs []types.QARelationship
	decodeMetadataField(metadata, "qa_pairs", &pairs)
	for _, pair := range pairs {
		overlap := overlapFraction(queryTokens, pair.QuestionContent+" "+pair.AnswerContent)
		if overlap == 0 {
			continue
		}
		c.RelevantQAPairs = append(c.RelevantQAPairs, pair)
		if score := overlap * pair.Confidence; score > c.QARelevanceScore {
			c.QARelevanceScore = score
		}
	}

	var facts []types.FactualStatement
	decodeMetadataField(metadata, "facts", &facts)
	for _, fact := range facts {
		if overlapFraction(queryTokens, fact.Content) > 0 {
			c.RelevantFacts = append(c.RelevantFacts, fact.Content)
		}
	}

	if len(c.RelevantQAPairs) > 0 || len(c.RelevantFacts) > 0 {
		c.QABoost = opts.QABoost
	}
}

// decodeMetadataField round-trips a metadata value through JSON so both
// typed slices (fresh from ingestion) and []any (decoded from storage)
// land in the target type.
func decodeMetadataField(metadata map[string]any, key string, target any) {
	raw, ok := metadata[key]
	if !ok || raw == nil {
		return
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, target)
}

var searchStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"my": true, "your": true, "his": true, "her": true, "their": true,
	"what": true, "who": true, "where": true, "when": true, "how": true,
	"do": true, "does": true, "did": true, "i": true, "you": true,
	"me": true, "it": true, "of": true, "to": true, "in": true, "s": true,
}

func tokenSet(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r == '\'' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127)
	}) {
		tok = strings.Trim(tok, "'")
		if tok == "" || searchStopwords[tok] {
			continue
		}
		tokens[tok] = true
	}
	return tokens
}

func overlapFraction(queryTokens map[string]bool, text string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	matched := 0
	for tok := range tokenSet(text) {
		if queryTokens[tok] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

func toResults(cands []types.SearchCandidate) []types.SearchResult {
	results := make([]types.SearchResult, 0, len(cands))
	for _, c := range cands {
		results = append(results, types.SearchResult{
			ID:      c.ID,
			Content: c.RawPayload,
			Score:   c.FusedScore,
			Source:  c.Source,
			Scores: types.ScoreBreakdown{
				Dense:   c.DenseScore,
				Lexical: c.LexicalScore,
				Hybrid:  c.HybridScore,
				Rerank:  c.RerankScore,
			},
		})
	}
	return results
}
