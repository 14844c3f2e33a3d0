package embedding

import (
	"sync"
	"time"
)

// Status is the overall condition of the embedding service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusWarning   Status = "warning"
	StatusCritical  Status = "critical"
	StatusUnhealthy Status = "unhealthy"
)

// Alert severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alert is one derived health finding.
type Alert struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Health is the externally visible health/metrics object of the service.
type Health struct {
	Status             Status  `json:"status"`
	ModelLoaded        bool    `json:"model_loaded"`
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	FailedRequests     int64   `json:"failed_requests"`
	ErrorRate          float64 `json:"error_rate"`
	CacheHitRate       float64 `json:"cache_hit_rate"`
	CacheEntries       int     `json:"cache_entries"`
	CacheMemoryBytes   int64   `json:"cache_memory_bytes"`
	AvgGenerationMs    float64 `json:"avg_generation_ms"`
	Alerts             []Alert `json:"alerts"`
}

type metrics struct {
	mu              sync.Mutex
	totalRequests   int64
	successRequests int64
	failedRequests  int64
	cacheHits       int64
	cacheMisses     int64
	totalGenTime    time.Duration
	generations     int64
	cacheEntries    int
	cacheBytes      int64
}

func newMetrics() *metrics {
	return &metrics{}
}

func (m *metrics) recordRequest() {
	m.mu.Lock()
	m.totalRequests++
	m.mu.Unlock()
}

func (m *metrics) recordSuccess(elapsed time.Duration) {
	m.mu.Lock()
	m.successRequests++
	m.totalGenTime += elapsed
	m.generations++
	m.mu.Unlock()
}

func (m *metrics) recordFailure() {
	m.mu.Lock()
	m.failedRequests++
	m.mu.Unlock()
}

func (m *metrics) recordCacheHit() {
	m.mu.Lock()
	m.cacheHits++
	m.mu.Unlock()
}

func (m *metrics) recordCacheMiss() {
	m.mu.Lock()
	m.cacheMisses++
	m.mu.Unlock()
}

func (m *metrics) setCacheStats(entries int, bytes int64) {
	m.mu.Lock()
	m.cacheEntries = entries
	m.cacheBytes = bytes
	m.mu.Unlock()
}

// Health derives the alert list and overall status from current counters.
// Thresholds: critical when the model is not loaded, warning when the error
// rate exceeds 10% or average latency exceeds 5s, info when the cache hit
// rate is below 20% after at least 10 requests.
func (s *Service) Health() Health {
	s.metrics.mu.Lock()
	defer s.metrics.mu.Unlock()

	m := s.metrics
	h := Health{
		ModelLoaded:        s.loaded,
		TotalRequests:      m.totalRequests,
		SuccessfulRequests: m.successRequests,
		FailedRequests:     m.failedRequests,
		CacheEntries:       s.cache.Len(),
		CacheMemoryBytes:   s.cache.SizeBytes(),
		Alerts:             []Alert{},
	}

	if m.totalRequests > 0 {
		h.ErrorRate = float64(m.failedRequests) / float64(m.totalRequests)
	}
	if lookups := m.cacheHits + m.cacheMisses; lookups > 0 {
		h.CacheHitRate = float64(m.cacheHits) / float64(lookups)
	}
	if m.generations > 0 {
		h.AvgGenerationMs = float64(m.totalGenTime.Milliseconds()) / float64(m.generations)
	}

	if !s.loaded {
		h.Alerts = append(h.Alerts, Alert{SeverityCritical, "embedding model not loaded"})
	}
	if m.totalRequests > 0 && h.ErrorRate > 0.10 {
		h.Alerts = append(h.Alerts, Alert{SeverityWarning, "embedding error rate above 10%"})
	}
	if h.AvgGenerationMs > 5000 {
		h.Alerts = append(h.Alerts, Alert{SeverityWarning, "average embedding latency above 5s"})
	}
	if m.totalRequests >= 10 && h.CacheHitRate < 0.20 {
		h.Alerts = append(h.Alerts, Alert{SeverityInfo, "embedding cache hit rate below 20%"})
	}

	h.Status = deriveStatus(h.Alerts, s.loaded)
	return h
}

func deriveStatus(alerts []Alert, loaded bool) Status {
	if !loaded {
		return StatusUnhealthy
	}
	status := StatusHealthy
	for _, a := range alerts {
		switch a.Severity {
		case SeverityCritical:
			return StatusCritical
		case SeverityWarning:
			status = StatusWarning
		}
	}
	return status
}
