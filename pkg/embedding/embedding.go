package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// Defaults for the embedding service.
const (
	DefaultTargetDimensions = 1536
	DefaultMaxRetries       = 3
	DefaultCacheSize        = 10000
	DefaultCacheMemoryMB    = 256
	DefaultCacheTTL         = 24 * time.Hour
)

// Sentinel errors of the embedding service.
var (
	// ErrModelNotLoaded indicates the backing model is unavailable. Fatal at
	// startup.
	ErrModelNotLoaded = errors.New("embedding model not loaded")
	// ErrEmbedding wraps per-request generation failures after all retries
	// are exhausted.
	ErrEmbedding = errors.New("embedding generation failed")
	// ErrDimensionConfig is reserved for configuration validation; dimension
	// mismatches at generation time are reconciled silently, never raised.
	ErrDimensionConfig = errors.New("invalid embedding dimension configuration")
)

// ModelClient is the pluggable embedding model behind the service.
type ModelClient interface {
	// Embed generates embeddings for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the model's native output dimension.
	Dimensions() int

	// Close cleans up any resources.
	Close() error
}

// Config holds embedding service configuration.
type Config struct {
	TargetDimensions int
	MaxRetries       int
	CacheSize        int
	CacheMemoryMB    int
	CacheTTL         time.Duration

	// BreakerEnabled wraps model calls in a circuit breaker so a dead model
	// endpoint fails fast instead of burning the retry budget per request.
	BreakerEnabled bool
}

// Service turns text or structured content into fixed-dimension vectors.
// It owns the only mutable shared state in the core: a bounded TTL LRU cache.
type Service struct {
	model   ModelClient
	config  Config
	cache   *vectorCache
	retry   RetryPolicy
	breaker *gobreaker.CircuitBreaker
	metrics *metrics
	logger  *slog.Logger

	loaded bool
}

// NewService creates an embedding service around the given model client.
// Initialize must be called before GenerateEmbedding.
func NewService(model ModelClient, config Config, logger *slog.Logger) (*Service, error) {
	if config.TargetDimensions < 0 {
		return nil, fmt.Errorf("%w: target dimensions %d", ErrDimensionConfig, config.TargetDimensions)
	}
	if config.TargetDimensions == 0 {
		config.TargetDimensions = DefaultTargetDimensions
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := newVectorCache(config.CacheSize, config.CacheMemoryMB, config.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	s := &Service{
		model:   model,
		config:  config,
		cache:   cache,
		retry:   DefaultRetryPolicy(config.MaxRetries),
		metrics: newMetrics(),
		logger:  logger,
	}

	if config.BreakerEnabled {
		s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "embedding-model",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
			},
		})
	}

	return s, nil
}

// SetRetryPolicy replaces the retry policy. Intended for tests that need to
// fake backoff timing.
func (s *Service) SetRetryPolicy(policy RetryPolicy) {
	s.retry = policy
}

// Initialize loads the embedding model. Fails with ErrModelNotLoaded when the
// backing client is unavailable.
func (s *Service) Initialize(ctx context.Context) error {
	if s.model == nil {
		return ErrModelNotLoaded
	}

	// Probe the model with a trivial call so a dead endpoint is caught at
	// startup rather than on the first user request.
	if _, err := s.model.Embed(ctx, []string{"ping"}); err != nil {
		return fmt.Errorf("%w: %v", ErrModelNotLoaded, err)
	}

	s.loaded = true
	s.logger.Info("embedding model loaded",
		"native_dimensions", s.model.Dimensions(),
		"target_dimensions", s.config.TargetDimensions)
	return nil
}

// Loaded reports whether Initialize succeeded.
func (s *Service) Loaded() bool {
	return s.loaded
}

// TargetDimensions returns the configured output dimension.
func (s *Service) TargetDimensions() int {
	return s.config.TargetDimensions
}

// GenerateEmbedding turns content (a string or a structured map) into a
// vector of exactly TargetDimensions components when adjustDimensions is
// true. Results are cached by content hash; misses call the model with
// bounded, cancellable retries.
func (s *Service) GenerateEmbedding(ctx context.Context, content any, adjustDimensions bool) ([]float32, error) {
	start := time.Now()
	s.metrics.recordRequest()

	if !s.loaded {
		s.metrics.recordFailure()
		return nil, ErrModelNotLoaded
	}

	text := ExtractContentText(content)
	key := cacheKey(text)

	if vector, ok := s.cache.Get(key); ok {
		s.metrics.recordCacheHit()
		s.metrics.recordSuccess(time.Since(start))
		return vector, nil
	}
	s.metrics.recordCacheMiss()

	// The model call runs outside the cache mutex so concurrent cache hits
	// never block on in-flight generation.
	var vector []float32
	err := s.retry.Do(ctx, func() error {
		vectors, err := s.embedOnce(ctx, text)
		if err != nil {
			return err
		}
		if len(vectors) == 0 || len(vectors[0]) == 0 {
			return fmt.Errorf("model returned no embedding")
		}
		vector = vectors[0]
		return nil
	})
	if err != nil {
		s.metrics.recordFailure()
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	if adjustDimensions {
		vector = AdjustDimensions(vector, s.config.TargetDimensions)
	}

	s.cache.Put(key, vector)
	s.metrics.recordSuccess(time.Since(start))
	s.metrics.setCacheStats(s.cache.Len(), s.cache.SizeBytes())

	return vector, nil
}

func (s *Service) embedOnce(ctx context.Context, text string) ([][]float32, error) {
	if s.breaker == nil {
		return s.model.Embed(ctx, []string{text})
	}
	result, err := s.breaker.Execute(func() (any, error) {
		return s.model.Embed(ctx, []string{text})
	})
	if err != nil {
		return nil, err
	}
	return result.([][]float32), nil
}

// Close releases the model client and drops the cache.
func (s *Service) Close() error {
	s.cache.Purge()
	if s.model != nil {
		return s.model.Close()
	}
	return nil
}

// AdjustDimensions reconciles a vector to exactly target components: shorter
// vectors are padded with trailing zeros, longer ones keep their first target
// components. Mismatches are never an error.
func AdjustDimensions(vector []float32, target int) []float32 {
	if target <= 0 || len(vector) == target {
		return vector
	}
	if len(vector) > target {
		return vector[:target]
	}
	padded := make([]float32, target)
	copy(padded, vector)
	return padded
}

// Content fields consulted, in priority order, when extracting text from
// structured content.
var contentTextFields = []string{"title", "description", "text", "content", "body"}

// ExtractContentText derives the text to embed from raw string content or a
// structured map. Structured maps concatenate the known text-bearing fields
// in priority order and fall back to a canonical JSON serialization when
// none are present.
func ExtractContentText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case map[string]any:
		var parts []string
		for _, field := range contentTextFields {
			if raw, ok := v[field]; ok {
				if str, ok := raw.(string); ok && strings.TrimSpace(str) != "" {
					parts = append(parts, str)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
		return canonicalJSON(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// canonicalJSON serializes a map deterministically (encoding/json sorts map
// keys), so equal content always hits the same cache entry.
func canonicalJSON(v map[string]any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
