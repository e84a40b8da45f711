package handler

import (
	"net/http"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/analysis"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/repository"
	"github.com/gin-gonic/gin"
)

// SegmentHandler handles the external encoder's segment status callbacks and
// segment queries.
type SegmentHandler struct {
	segments     *repository.SegmentRepository
	analyses     *repository.AnalysisRepository
	orchestrator *analysis.Orchestrator
}

// NewSegmentHandler creates a new segment handler.
// Parameters:
//   - segments: segment repository.
//   - analyses: analysis repository for per-segment job queries.
//   - orchestrator: analysis orchestrator to fan completed segments out to.
// Returns:
//   - *SegmentHandler: initialized handler.
func NewSegmentHandler(segments *repository.SegmentRepository, analyses *repository.AnalysisRepository, orchestrator *analysis.Orchestrator) *SegmentHandler {
	return &SegmentHandler{
		segments:     segments,
		analyses:     analyses,
		orchestrator: orchestrator,
	}
}

// GetSegment handles GET /api/v1/segments/:id.
func (h *SegmentHandler) GetSegment(c *gin.Context) {
	segment, err := h.segments.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Segment not found",
		})
		return
	}
	c.JSON(http.StatusOK, segment)
}

// ListAnalyses handles GET /api/v1/segments/:id/analyses.
func (h *SegmentHandler) ListAnalyses(c *gin.Context) {
	jobs, err := h.analyses.ListBySegment(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list analyses: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": jobs, "count": len(jobs)})
}

type segmentStatusRequest struct {
	Status        domain.SegmentStatus `json:"status" binding:"required"`
	FileSizeBytes int64                `json:"file_size_bytes"`
}

// UpdateStatus handles POST /api/v1/segments/:id/status, the encoder's
// delivery callback. The conditional write rejects rewinds; a completed
// segment fans out into analysis jobs.
func (h *SegmentHandler) UpdateStatus(c *gin.Context) {
	var req segmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown segment status: " + string(req.Status)})
		return
	}

	ctx := c.Request.Context()
	segment, err := h.segments.GetByID(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Segment not found"})
		return
	}

	if segment.Status == req.Status {
		// Encoder callbacks are at-least-once; a replay is acknowledged
		// without re-applying anything.
		c.JSON(http.StatusOK, gin.H{"status": string(segment.Status)})
		return
	}
	if !segment.Status.CanTransition(req.Status) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Segment cannot move from " + string(segment.Status) + " to " + string(req.Status),
		})
		return
	}

	updated, err := h.segments.UpdateStatus(ctx, segment.ID, segment.Status, req.Status, req.FileSizeBytes)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update segment: " + err.Error()})
		return
	}
	if !updated {
		c.JSON(http.StatusConflict, gin.H{"error": "Segment status changed concurrently"})
		return
	}

	if req.Status == domain.SegmentStatusCompleted && h.orchestrator != nil {
		segment.Status = req.Status
		segment.FileSizeBytes = req.FileSizeBytes
		if err := h.orchestrator.OnSegmentCompleted(ctx, segment); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue analyses: " + err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": string(req.Status)})
}

// ListByRecording handles GET /api/v1/recordings/:id/segments.
func (h *SegmentHandler) ListByRecording(c *gin.Context) {
	segments, err := h.segments.ListByRecording(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list segments: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"segments": segments, "count": len(segments)})
}
