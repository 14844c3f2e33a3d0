package recall

import (
	"context"
	"time"

	"github.com/soundprediction/recall/pkg/search"
	"github.com/soundprediction/recall/pkg/types"
)

// RetrieveContext runs the full retrieval pipeline: query expansion,
// concurrent vector and graph search, hybrid scoring, fusion and
// reranking. Backend outages degrade recall; the call itself fails only on
// programmer error, with Success=false signalling that every backend was
// unreachable.
func (e *Engine) RetrieveContext(ctx context.Context, query string, opts *RetrieveOptions) (*types.RetrieveResponse, error) {
	searchOpts := e.searchOptions(opts)
	resp := e.searcher.Search(ctx, query, searchOpts)
	return resp, nil
}

func (e *Engine) searchOptions(opts *RetrieveOptions) search.Options {
	cfg := e.cfg.Search

	out := search.Options{
		Limit:          cfg.Limit,
		Mode:           types.SearchMode(cfg.Mode),
		Alpha:          cfg.Alpha,
		Beta:           cfg.Beta,
		Rerank:         cfg.RerankEnabled,
		QABoost:        cfg.QABoost,
		BackendTimeout: time.Duration(cfg.BackendTimeoutMS) * time.Millisecond,
	}
	if opts == nil {
		return out
	}
	if opts.Limit > 0 {
		out.Limit = opts.Limit
	}
	if opts.Mode != "" {
		out.Mode = opts.Mode
	}
	if opts.Filter != nil {
		out.Filter = opts.Filter
	}
	if opts.Rerank != nil {
		out.Rerank = *opts.Rerank
	}
	return out
}
