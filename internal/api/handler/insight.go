package handler

import (
	"net/http"
	"strconv"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/repository"
	"github.com/gin-gonic/gin"
)

// InsightHandler handles operator-facing AI insight endpoints.
type InsightHandler struct {
	insights *repository.InsightRepository
	analyses *repository.AnalysisRepository
}

// NewInsightHandler creates a new insight handler.
// Parameters:
//   - insights: insight repository.
//   - analyses: analysis repository for result lookups.
// Returns:
//   - *InsightHandler: initialized handler.
func NewInsightHandler(insights *repository.InsightRepository, analyses *repository.AnalysisRepository) *InsightHandler {
	return &InsightHandler{
		insights: insights,
		analyses: analyses,
	}
}

// ListByChannel handles GET /api/v1/channels/:id/insights.
func (h *InsightHandler) ListByChannel(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	insights, err := h.insights.ListByChannel(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list insights: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"insights": insights, "count": len(insights)})
}

// MarkRead handles POST /api/v1/insights/:id/read.
func (h *InsightHandler) MarkRead(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.insights.GetByID(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Insight not found"})
		return
	}
	if err := h.insights.MarkRead(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark insight read: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_read": true})
}

// MarkActionTaken handles POST /api/v1/insights/:id/action. Only actionable
// insights accept the flag.
func (h *InsightHandler) MarkActionTaken(c *gin.Context) {
	id := c.Param("id")
	insight, err := h.insights.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Insight not found"})
		return
	}
	if !insight.IsActionable {
		c.JSON(http.StatusConflict, gin.H{"error": "Insight is not actionable"})
		return
	}
	if err := h.insights.MarkActionTaken(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark action taken: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"action_taken": true})
}

// GetAnalysis handles GET /api/v1/analyses/:id with its result row.
func (h *InsightHandler) GetAnalysis(c *gin.Context) {
	ctx := c.Request.Context()
	job, err := h.analyses.GetByID(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
		return
	}

	response := gin.H{"analysis": job}
	if row, err := h.analyses.GetTranscription(ctx, job.ID); err == nil {
		response["transcription"] = row
	}
	if row, err := h.analyses.GetContentAnalysis(ctx, job.ID); err == nil {
		response["content_analysis"] = row
	}
	if row, err := h.analyses.GetSummary(ctx, job.ID); err == nil {
		response["summary"] = row
	}
	c.JSON(http.StatusOK, response)
}
