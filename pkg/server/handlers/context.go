package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/recall"
	"github.com/soundprediction/recall/pkg/types"
)

// ContextHandler handles ingestion and retrieval requests
type ContextHandler struct {
	engine recall.Recall
}

// NewContextHandler creates a new context handler
func NewContextHandler(engine recall.Recall) *ContextHandler {
	return &ContextHandler{engine: engine}
}

// StoreContextRequest is the body of POST /api/v1/context.
type StoreContextRequest struct {
	ID          string         `json:"id"`
	ContentType string         `json:"content_type"`
	Content     map[string]any `json:"content"`
	Metadata    map[string]any `json:"metadata"`
	Turns       []types.Turn   `json:"turns"`
}

// StoreContext handles POST /api/v1/context
func (h *ContextHandler) StoreContext(c *gin.Context) {
	var req StoreContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	item, err := h.engine.StoreContext(c.Request.Context(), recall.StoreRequest{
		ID:          req.ID,
		ContentType: types.ContentType(req.ContentType),
		Content:     req.Content,
		Metadata:    req.Metadata,
		Turns:       req.Turns,
	})
	if err != nil {
		if errors.Is(err, recall.ErrEmptyContent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":           item.ID,
		"content_type": item.ContentType,
		"embedded":     len(item.Embedding) > 0,
	})
}

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query  string         `json:"query"`
	Limit  int            `json:"limit"`
	Mode   string         `json:"mode"`
	Filter map[string]any `json:"filter"`
	Rerank *bool          `json:"rerank"`
}

// Search handles POST /api/v1/search
func (h *ContextHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "query field is required and cannot be empty"})
		return
	}

	resp, err := h.engine.RetrieveContext(c.Request.Context(), req.Query, &recall.RetrieveOptions{
		Limit:  req.Limit,
		Mode:   types.SearchMode(req.Mode),
		Filter: req.Filter,
		Rerank: req.Rerank,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search_failed", "message": err.Error()})
		return
	}

	// Both backends down: the response carries success=false with an
	// empty result set rather than an opaque 500.
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
