package handler

import (
	"net/http"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/analysis"
	"github.com/gin-gonic/gin"
)

// SearchHandler handles semantic transcript search endpoints.
type SearchHandler struct {
	embedder analysis.Embedder
	index    *analysis.TranscriptIndex
}

// NewSearchHandler creates a new search handler. Both dependencies may be nil
// when embedding is disabled; the endpoint then reports the feature as off.
// Parameters:
//   - embedder: query embedder.
//   - index: transcript vector index.
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(embedder analysis.Embedder, index *analysis.TranscriptIndex) *SearchHandler {
	return &SearchHandler{
		embedder: embedder,
		index:    index,
	}
}

// SearchRequest is the transcript search request body.
type SearchRequest struct {
	Query     string `json:"query" binding:"required"`
	ChannelID string `json:"channel_id"`
	Limit     int    `json:"limit"`
}

// Search handles POST /api/v1/search: embeds the query and runs a similarity
// search over indexed transcripts, optionally scoped to one channel.
func (h *SearchHandler) Search(c *gin.Context) {
	if h.embedder == nil || h.index == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Transcript search is disabled",
		})
		return
	}

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 10
	}

	ctx := c.Request.Context()
	vector, err := h.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to embed query: " + err.Error(),
		})
		return
	}

	results, err := h.index.Search(ctx, vector, req.Limit, req.ChannelID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Search failed: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}
