package recall

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/recall/pkg/alert"
	"github.com/soundprediction/recall/pkg/config"
	"github.com/soundprediction/recall/pkg/embedding"
	"github.com/soundprediction/recall/pkg/expansion"
	"github.com/soundprediction/recall/pkg/qa"
	"github.com/soundprediction/recall/pkg/rerank"
	"github.com/soundprediction/recall/pkg/search"
	"github.com/soundprediction/recall/pkg/store"
	"github.com/soundprediction/recall/pkg/types"
)

// Recall is the public surface of the engine.
type Recall interface {
	// StoreContext ingests one context item: embeds it, extracts Q&A
	// side-channel metadata from conversational content, and upserts it
	// into the configured backends.
	StoreContext(ctx context.Context, req StoreRequest) (*types.ContextItem, error)

	// RetrieveContext runs the retrieval pipeline for a query.
	RetrieveContext(ctx context.Context, query string, opts *RetrieveOptions) (*types.RetrieveResponse, error)

	// EmbeddingHealth reports the embedding service's health snapshot.
	EmbeddingHealth() embedding.Health

	// Close releases backend resources.
	Close() error
}

// StoreRequest describes one item to ingest. Turns are optional; when
// present (or when ContentType is conversation and Content carries turns)
// the Q&A detector enriches the item's metadata.
type StoreRequest struct {
	ID          string
	ContentType types.ContentType
	Content     map[string]any
	Metadata    map[string]any
	Turns       []types.Turn
}

// RetrieveOptions tune one retrieval call. Nil means defaults.
type RetrieveOptions struct {
	Limit  int
	Mode   types.SearchMode
	Filter map[string]any
	Rerank *bool
}

// Engine is the default Recall implementation.
type Engine struct {
	cfg      *config.Config
	embedder *embedding.Service
	detector *qa.Detector
	searcher *search.Searcher
	vector   store.VectorStore
	graph    store.GraphStore
	watcher  *alert.HealthWatcher
	logger   *slog.Logger
}

// New builds an engine from configuration: model client, embedding
// service, stores, expander, reranker and searcher.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	model, err := newModelClient(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.NewService(model, embedding.Config{
		TargetDimensions: cfg.Embedding.TargetDimensions,
		MaxRetries:       cfg.Embedding.MaxRetries,
		CacheSize:        cfg.Embedding.CacheSize,
		CacheMemoryMB:    cfg.Embedding.CacheMemoryMB,
		CacheTTL:         time.Duration(cfg.Embedding.CacheTTLHours) * time.Hour,
		BreakerEnabled:   cfg.CircuitBreaker.Enabled,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build embedding service: %w", err)
	}
	if err := embedder.Initialize(ctx); err != nil {
		// A dead model degrades dense search; lexical retrieval still works.
		logger.Warn("embedding model unavailable at startup", "error", err)
	}

	vector, err := newVectorStore(cfg.VectorStore)
	if err != nil {
		return nil, err
	}

	var graph store.GraphStore
	if cfg.GraphStore.Enabled {
		neo, err := store.NewNeo4jStore(
			cfg.GraphStore.URI,
			cfg.GraphStore.Username,
			cfg.GraphStore.Password,
			cfg.GraphStore.Database,
			cfg.Embedding.TargetDimensions,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect graph store: %w", err)
		}
		if err := neo.EnsureIndexes(ctx); err != nil {
			logger.Warn("failed to ensure graph indexes", "error", err)
		}
		graph = neo
	}

	var alerter alert.Alerter = &alert.NoOpAlerter{}
	if cfg.Alert.Enabled {
		alerter = alert.NewEmailAlerter(cfg.Alert)
	}

	expander, err := expansion.NewExpander()
	if err != nil {
		return nil, fmt.Errorf("failed to load expansion patterns: %w", err)
	}

	reranker := rerank.New(nil, cfg.Search.RerankMaxTokens)
	searcher := search.NewSearcher(embedder, expander, vector, graph, reranker, logger)

	return &Engine{
		cfg:      cfg,
		embedder: embedder,
		detector: qa.NewDetector(),
		searcher: searcher,
		vector:   vector,
		graph:    graph,
		watcher:  alert.NewHealthWatcher(alerter, logger),
		logger:   logger,
	}, nil
}

// NewWithStores builds an engine on caller-supplied stores, bypassing
// configuration-driven construction. The embedder may be nil; dense
// scoring is then skipped. Used by tests and embedders-as-libraries.
func NewWithStores(cfg *config.Config, embedder *embedding.Service, vector store.VectorStore, graph store.GraphStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	reranker := rerank.New(nil, cfg.Search.RerankMaxTokens)
	searcher := search.NewSearcher(embedder, expansion.MustNewExpander(), vector, graph, reranker, logger)
	return &Engine{
		cfg:      cfg,
		embedder: embedder,
		detector: qa.NewDetector(),
		searcher: searcher,
		vector:   vector,
		graph:    graph,
		watcher:  alert.NewHealthWatcher(&alert.NoOpAlerter{}, logger),
		logger:   logger,
	}
}

func newModelClient(cfg config.EmbeddingConfig) (embedding.ModelClient, error) {
	switch cfg.Provider {
	case "openai":
		return embedding.NewOpenAIClient(embedding.OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}), nil
	case "", "local":
		return embedding.NewLocalClient(embedding.LocalConfig{Model: cfg.Model})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func newVectorStore(cfg config.VectorStoreConfig) (store.VectorStore, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "", "badger":
		s, err := store.NewBadgerStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown vector store driver %q", cfg.Driver)
	}
}

// EmbeddingHealth implements Recall and feeds the alert watcher.
func (e *Engine) EmbeddingHealth() embedding.Health {
	if e.embedder == nil {
		return embedding.Health{Status: embedding.StatusUnhealthy}
	}
	h := e.embedder.Health()
	e.watcher.Observe(h)
	return h
}

// Close releases store and model resources.
func (e *Engine) Close() error {
	var firstErr error
	if e.embedder != nil {
		if err := e.embedder.Close(); err != nil {
			firstErr = err
		}
	}
	if e.vector != nil {
		if err := e.vector.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.graph != nil {
		if err := e.graph.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Recall = (*Engine)(nil)

func mintID() string {
	return uuid.New().String()
}
