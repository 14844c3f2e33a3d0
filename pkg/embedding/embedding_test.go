package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockModel implements ModelClient with scripted behaviour.
type mockModel struct {
	mu         sync.Mutex
	dimensions int
	calls      int
	failures   int // fail the first N Embed calls
	err        error
}

func (m *mockModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.failures > 0 {
		m.failures--
		return nil, fmt.Errorf("transient model failure")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, m.dimensions)
		for j := range vec {
			vec[j] = float32(j%7) + 0.5
		}
		out[i] = vec
	}
	return out, nil
}

func (m *mockModel) Dimensions() int { return m.dimensions }
func (m *mockModel) Close() error    { return nil }

func (m *mockModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func instantRetry(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries: maxRetries,
		Backoff:    func(int) time.Duration { return 0 },
		Sleep:      func(context.Context, time.Duration) error { return nil },
	}
}

func newTestService(t *testing.T, model *mockModel, config Config) *Service {
	t.Helper()
	svc, err := NewService(model, config, nil)
	require.NoError(t, err)
	svc.SetRetryPolicy(instantRetry(config.MaxRetries))
	require.NoError(t, svc.Initialize(context.Background()))
	return svc
}

func TestGenerateEmbeddingPadsToTargetDimensions(t *testing.T) {
	model := &mockModel{dimensions: 384}
	svc := newTestService(t, model, Config{TargetDimensions: 1536})

	vector, err := svc.GenerateEmbedding(context.Background(), "pad me", true)
	require.NoError(t, err)
	require.Len(t, vector, 1536)

	for i := 0; i < 384; i++ {
		assert.Equal(t, float32(i%7)+0.5, vector[i])
	}
	for i := 384; i < 1536; i++ {
		assert.Equal(t, float32(0), vector[i])
	}
}

func TestGenerateEmbeddingTruncatesToTargetDimensions(t *testing.T) {
	model := &mockModel{dimensions: 3072}
	svc := newTestService(t, model, Config{TargetDimensions: 1536})

	vector, err := svc.GenerateEmbedding(context.Background(), "truncate me", true)
	require.NoError(t, err)
	require.Len(t, vector, 1536)
	for i := range vector {
		assert.Equal(t, float32(i%7)+0.5, vector[i])
	}
}

func TestGenerateEmbeddingDimensionInvariant(t *testing.T) {
	for _, native := range []int{1, 100, 1536, 2000} {
		for _, target := range []int{8, 384, 1536} {
			model := &mockModel{dimensions: native}
			svc := newTestService(t, model, Config{TargetDimensions: target})

			vector, err := svc.GenerateEmbedding(context.Background(), "dim check", true)
			require.NoError(t, err)
			assert.Len(t, vector, target, "native=%d target=%d", native, target)
		}
	}
}

func TestGenerateEmbeddingCacheHitSkipsModel(t *testing.T) {
	model := &mockModel{dimensions: 8}
	svc := newTestService(t, model, Config{TargetDimensions: 8})

	_, err := svc.GenerateEmbedding(context.Background(), "same text", true)
	require.NoError(t, err)
	callsAfterFirst := model.callCount()

	_, err = svc.GenerateEmbedding(context.Background(), "same text", true)
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, model.callCount(), "second call must be served from cache")

	health := svc.Health()
	assert.Equal(t, int64(2), health.TotalRequests)
	assert.Greater(t, health.CacheHitRate, 0.0)
}

func TestGenerateEmbeddingRetriesThenSucceeds(t *testing.T) {
	model := &mockModel{dimensions: 8, failures: 2}
	svc := newTestService(t, model, Config{TargetDimensions: 8, MaxRetries: 3})

	vector, err := svc.GenerateEmbedding(context.Background(), "flaky", true)
	require.NoError(t, err)
	assert.Len(t, vector, 8)
}

func TestGenerateEmbeddingExhaustedRetriesReturnsEmbeddingError(t *testing.T) {
	model := &mockModel{dimensions: 8}
	svc := newTestService(t, model, Config{TargetDimensions: 8, MaxRetries: 2})
	model.err = fmt.Errorf("model down")

	_, err := svc.GenerateEmbedding(context.Background(), "doomed", true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmbedding))
}

func TestGenerateEmbeddingCancellableMidBackoff(t *testing.T) {
	model := &mockModel{dimensions: 8}
	svc, err := NewService(model, Config{TargetDimensions: 8, MaxRetries: 3}, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background()))
	model.err = fmt.Errorf("model down")

	ctx, cancel := context.WithCancel(context.Background())
	svc.SetRetryPolicy(RetryPolicy{
		MaxRetries: 3,
		Backoff:    func(int) time.Duration { return time.Hour },
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		},
	})

	_, err = svc.GenerateEmbedding(ctx, "cancelled", true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmbedding))
}

func TestGenerateEmbeddingRequiresInitialize(t *testing.T) {
	svc, err := NewService(&mockModel{dimensions: 8}, Config{}, nil)
	require.NoError(t, err)

	_, err = svc.GenerateEmbedding(context.Background(), "x", true)
	assert.True(t, errors.Is(err, ErrModelNotLoaded))
}

func TestInitializeFailsWhenModelUnavailable(t *testing.T) {
	model := &mockModel{dimensions: 8, err: fmt.Errorf("no such model")}
	svc, err := NewService(model, Config{}, nil)
	require.NoError(t, err)

	err = svc.Initialize(context.Background())
	assert.True(t, errors.Is(err, ErrModelNotLoaded))
}

func TestNewServiceRejectsNegativeDimensions(t *testing.T) {
	_, err := NewService(&mockModel{dimensions: 8}, Config{TargetDimensions: -1}, nil)
	assert.True(t, errors.Is(err, ErrDimensionConfig))
}

func TestExtractContentText(t *testing.T) {
	tests := []struct {
		name    string
		content any
		want    string
	}{
		{"raw string", "hello", "hello"},
		{"title only", map[string]any{"title": "Design Doc"}, "Design Doc"},
		{"title and text concatenated", map[string]any{"title": "T", "text": "body"}, "T body"},
		{"priority order", map[string]any{"text": "later", "title": "first"}, "first later"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractContentText(tt.content))
		})
	}
}

func TestExtractContentTextFallsBackToCanonicalJSON(t *testing.T) {
	got := ExtractContentText(map[string]any{"zeta": 1, "alpha": 2})
	// encoding/json sorts map keys, so the serialization is deterministic.
	assert.Equal(t, `{"alpha":2,"zeta":1}`, got)
}

func TestCacheCountBoundEnforced(t *testing.T) {
	model := &mockModel{dimensions: 8}
	svc := newTestService(t, model, Config{TargetDimensions: 8, CacheSize: 5})

	for i := 0; i < 20; i++ {
		_, err := svc.GenerateEmbedding(context.Background(), fmt.Sprintf("text %d", i), true)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, svc.cache.Len(), 5)
}

func TestCacheByteBoundEnforced(t *testing.T) {
	cache, err := newVectorCache(10000, 1, 0) // 1 MB budget
	require.NoError(t, err)

	// Each entry: 16384*8 + overhead ~ 131 KB, so only a handful fit.
	vec := make([]float32, 16384)
	for i := 0; i < 50; i++ {
		cache.Put(fmt.Sprintf("key-%d", i), vec)
	}

	assert.LessOrEqual(t, cache.SizeBytes(), int64(1024*1024))
	assert.Less(t, cache.Len(), 50)
}

func TestCacheTTLExpiryCheckedLazily(t *testing.T) {
	cache, err := newVectorCache(10, 16, time.Minute)
	require.NoError(t, err)

	current := time.Unix(1000, 0)
	cache.now = func() time.Time { return current }

	cache.Put("k", []float32{1, 2, 3})
	_, ok := cache.Get("k")
	assert.True(t, ok)

	current = current.Add(2 * time.Minute)
	_, ok = cache.Get("k")
	assert.False(t, ok, "expired entry must be dropped on read")
	assert.Equal(t, 0, cache.Len())
}

func TestHealthStatusDerivation(t *testing.T) {
	model := &mockModel{dimensions: 8}
	svc := newTestService(t, model, Config{TargetDimensions: 8})

	health := svc.Health()
	assert.Equal(t, StatusHealthy, health.Status)
	assert.True(t, health.ModelLoaded)
	assert.Empty(t, health.Alerts)

	// Drive the error rate above 10%.
	model.err = fmt.Errorf("down")
	for i := 0; i < 5; i++ {
		_, _ = svc.GenerateEmbedding(context.Background(), fmt.Sprintf("fail %d", i), true)
	}

	health = svc.Health()
	assert.Equal(t, StatusWarning, health.Status)
	require.NotEmpty(t, health.Alerts)
	assert.Equal(t, SeverityWarning, health.Alerts[0].Severity)
}

func TestHealthUnhealthyBeforeInitialize(t *testing.T) {
	svc, err := NewService(&mockModel{dimensions: 8}, Config{}, nil)
	require.NoError(t, err)

	health := svc.Health()
	assert.Equal(t, StatusUnhealthy, health.Status)
	require.NotEmpty(t, health.Alerts)
	assert.Equal(t, SeverityCritical, health.Alerts[0].Severity)
}
