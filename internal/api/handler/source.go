package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/engine"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/repository"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SourceHandler handles ingest source endpoints, including the metrics ingest
// feed from the external probes.
type SourceHandler struct {
	sources  *repository.SourceRepository
	metrics  *repository.MetricRepository
	sourceSM *engine.SourceStateMachine
}

// NewSourceHandler creates a new source handler.
// Parameters:
//   - sources: source repository.
//   - metrics: metric repository.
//   - sourceSM: source state machine for operator-driven transitions.
// Returns:
//   - *SourceHandler: initialized handler.
func NewSourceHandler(sources *repository.SourceRepository, metrics *repository.MetricRepository, sourceSM *engine.SourceStateMachine) *SourceHandler {
	return &SourceHandler{
		sources:  sources,
		metrics:  metrics,
		sourceSM: sourceSM,
	}
}

// ListSources handles GET /api/v1/sources.
func (h *SourceHandler) ListSources(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	sources, err := h.sources.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list sources: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources, "count": len(sources)})
}

// GetSource handles GET /api/v1/sources/:id.
func (h *SourceHandler) GetSource(c *gin.Context) {
	source, err := h.sources.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Source not found",
		})
		return
	}
	c.JSON(http.StatusOK, source)
}

type metricRequest struct {
	Timestamp         *time.Time `json:"timestamp"`
	BitrateKbps       int        `json:"bitrate_kbps"`
	FPS               float64    `json:"fps"`
	LatencyMs         int        `json:"latency_ms"`
	PacketLossPercent float64    `json:"packet_loss_percent"`
	JitterMs          int        `json:"jitter_ms"`
	BufferHealth      float64    `json:"buffer_health"`
	VideoCodec        string     `json:"video_codec"`
	AudioCodec        string     `json:"audio_codec"`
	Resolution        string     `json:"resolution"`
	ErrorCount        int        `json:"error_count"`
}

// IngestMetric handles POST /api/v1/sources/:id/metrics. Samples are
// append-only; the monitor loop picks them up on its next cycle.
func (h *SourceHandler) IngestMetric(c *gin.Context) {
	var req metricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	sourceID := c.Param("id")
	if _, err := h.sources.GetByID(ctx, sourceID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}

	timestamp := time.Now()
	if req.Timestamp != nil {
		timestamp = *req.Timestamp
	}
	metric := domain.SourceMetric{
		SourceID:          sourceID,
		Timestamp:         timestamp,
		BitrateKbps:       req.BitrateKbps,
		FPS:               req.FPS,
		LatencyMs:         req.LatencyMs,
		PacketLossPercent: req.PacketLossPercent,
		JitterMs:          req.JitterMs,
		BufferHealth:      req.BufferHealth,
		VideoCodec:        req.VideoCodec,
		AudioCodec:        req.AudioCodec,
		Resolution:        req.Resolution,
		ErrorCount:        req.ErrorCount,
	}
	if err := h.metrics.Append(ctx, &metric); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store metric: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": metric.ID})
}

// ListMetrics handles GET /api/v1/sources/:id/metrics.
func (h *SourceHandler) ListMetrics(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	metrics, err := h.metrics.ListRecent(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list metrics: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": metrics, "count": len(metrics)})
}

// Reconnect handles POST /api/v1/sources/:id/reconnect. Only error or offline
// sources can be sent back to connecting.
func (h *SourceHandler) Reconnect(c *gin.Context) {
	if err := h.sourceSM.Reconnect(c.Request.Context(), c.Param("id")); err != nil {
		writeSourceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(domain.SourceStatusConnecting)})
}

type streamClosedRequest struct {
	Reason string `json:"reason"`
}

// StreamClosed handles POST /api/v1/sources/:id/stream-closed, the ingest
// edge's notification that a stream ended abnormally.
func (h *SourceHandler) StreamClosed(c *gin.Context) {
	var req streamClosedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if err := h.sourceSM.StreamClosed(c.Request.Context(), c.Param("id"), req.Reason); err != nil {
		writeSourceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(domain.SourceStatusError)})
}

// Deactivate handles DELETE /api/v1/sources/:id. A deactivated source drops
// out of the monitor's active set on the next cycle, which also discards its
// sampling window.
func (h *SourceHandler) Deactivate(c *gin.Context) {
	ctx := c.Request.Context()
	sourceID := c.Param("id")
	if _, err := h.sources.GetByID(ctx, sourceID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}
	if err := h.sources.Deactivate(ctx, sourceID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate source: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deactivated": true})
}

func writeSourceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
