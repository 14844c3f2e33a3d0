package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/recall"
	"github.com/soundprediction/recall/pkg/embedding"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// HealthHandler handles health check requests
type HealthHandler struct {
	engine recall.Recall
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(engine recall.Recall) *HealthHandler {
	return &HealthHandler{engine: engine}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "recall",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// ReadinessCheck handles GET /ready. The service is ready when the engine
// is wired; a degraded embedding model only lowers recall quality.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	response := gin.H{
		"status":    "ready",
		"service":   "recall",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    gin.H{},
	}
	checks := response["checks"].(gin.H)

	if h.engine == nil {
		checks["engine"] = gin.H{"status": "unhealthy", "error": "engine not initialized"}
		response["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	health := h.engine.EmbeddingHealth()
	checks["embedding"] = gin.H{
		"status":       string(health.Status),
		"model_loaded": health.ModelLoaded,
	}
	checks["system"] = gin.H{
		"status":     "healthy",
		"goroutines": runtime.NumGoroutine(),
	}

	c.JSON(http.StatusOK, response)
}

// LivenessCheck handles GET /live - Kubernetes liveness probe endpoint
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   "recall",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// EmbeddingHealth handles GET /health/embedding - the embedding service's
// full health snapshot with derived alerts.
func (h *HealthHandler) EmbeddingHealth(c *gin.Context) {
	if h.engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine not initialized"})
		return
	}

	health := h.engine.EmbeddingHealth()
	status := http.StatusOK
	if health.Status == embedding.StatusUnhealthy || health.Status == embedding.StatusCritical {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}
