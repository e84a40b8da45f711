package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/analysis"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/engine"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChannelHandler handles channel-related endpoints. All state changes go
// through the state machines; the handler never writes a status directly.
type ChannelHandler struct {
	channels     *repository.ChannelRepository
	sources      *repository.SourceRepository
	events       *repository.EventRepository
	recordings   *repository.RecordingRepository
	channelSM    *engine.ChannelStateMachine
	failover     *engine.FailoverDecisionEngine
	orchestrator *analysis.Orchestrator
}

// NewChannelHandler creates a new channel handler.
// Parameters:
//   - channels: channel repository.
//   - sources: source repository.
//   - events: event repository.
//   - recordings: recording repository.
//   - channelSM: channel state machine.
//   - failover: failover decision engine for manual overrides.
//   - orchestrator: analysis orchestrator, used to cancel queued jobs.
// Returns:
//   - *ChannelHandler: initialized handler.
func NewChannelHandler(channels *repository.ChannelRepository, sources *repository.SourceRepository, events *repository.EventRepository, recordings *repository.RecordingRepository, channelSM *engine.ChannelStateMachine, failover *engine.FailoverDecisionEngine, orchestrator *analysis.Orchestrator) *ChannelHandler {
	return &ChannelHandler{
		channels:     channels,
		sources:      sources,
		events:       events,
		recordings:   recordings,
		channelSM:    channelSM,
		failover:     failover,
		orchestrator: orchestrator,
	}
}

type createChannelRequest struct {
	Name             string              `json:"name" binding:"required"`
	Slug             string              `json:"slug" binding:"required"`
	SourceID         string              `json:"source_id" binding:"required"`
	FallbackSourceID string              `json:"fallback_source_id"`
	OutputFormat     domain.OutputFormat `json:"output_format"`
	Category         string              `json:"category"`
	Priority         int                 `json:"priority"`
	RecordingEnabled bool                `json:"recording_enabled"`
	AnalysisProfile  []string            `json:"analysis_profile"`
}

// CreateChannel handles POST /api/v1/channels. Source wiring is validated
// here and in the repository so a fallback equal to the primary never reaches
// the state machines.
func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.channels.GetBySlug(ctx, req.Slug); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Slug already in use: " + req.Slug})
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check slug: " + err.Error()})
		return
	}
	if _, err := h.sources.GetByID(ctx, req.SourceID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Primary source not found: " + req.SourceID})
		return
	}
	if req.FallbackSourceID != "" {
		if _, err := h.sources.GetByID(ctx, req.FallbackSourceID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Fallback source not found: " + req.FallbackSourceID})
			return
		}
	}

	format := req.OutputFormat
	if format == "" {
		format = domain.OutputFormatHLS
	}
	channel := &domain.Channel{
		ID:               uuid.NewString(),
		Name:             req.Name,
		Slug:             req.Slug,
		SourceID:         req.SourceID,
		FallbackSourceID: req.FallbackSourceID,
		Status:           domain.ChannelStatusOffline,
		OutputFormat:     format,
		Category:         req.Category,
		Priority:         req.Priority,
		CreatedBy:        userID(c),
		IsActive:         true,
		RecordingEnabled: req.RecordingEnabled,
		AnalysisProfile:  domain.StringList(req.AnalysisProfile),
	}
	if err := h.channels.Create(ctx, channel); err != nil {
		if errors.Is(err, repository.ErrFallbackEqualsSource) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create channel: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, channel)
}

type reassignSourceRequest struct {
	SourceID         string `json:"source_id" binding:"required"`
	FallbackSourceID string `json:"fallback_source_id"`
}

// ReassignSource handles PUT /api/v1/channels/:id/source, rewiring the
// channel's primary and fallback sources.
func (h *ChannelHandler) ReassignSource(c *gin.Context) {
	var req reassignSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	channelID := c.Param("id")
	if _, err := h.channels.GetByID(ctx, channelID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return
	}
	if _, err := h.sources.GetByID(ctx, req.SourceID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Primary source not found: " + req.SourceID})
		return
	}
	if req.FallbackSourceID != "" {
		if _, err := h.sources.GetByID(ctx, req.FallbackSourceID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Fallback source not found: " + req.FallbackSourceID})
			return
		}
	}

	if err := h.channels.ReassignSource(ctx, channelID, req.SourceID, req.FallbackSourceID); err != nil {
		if errors.Is(err, repository.ErrFallbackEqualsSource) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reassign sources: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"source_id":          req.SourceID,
		"fallback_source_id": req.FallbackSourceID,
	})
}

// Deactivate handles DELETE /api/v1/channels/:id. Deactivation retires the
// channel's queued analysis jobs; a channel with an open recording must be
// stopped first so the recording gets finalized.
func (h *ChannelHandler) Deactivate(c *gin.Context) {
	ctx := c.Request.Context()
	channelID := c.Param("id")
	if _, err := h.channels.GetByID(ctx, channelID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return
	}

	open, err := h.recordings.CountOpen(ctx, channelID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check recordings: " + err.Error()})
		return
	}
	if open > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Channel has an open recording; stop the channel first"})
		return
	}

	if err := h.channels.Deactivate(ctx, channelID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate channel: " + err.Error()})
		return
	}
	if h.orchestrator != nil {
		if err := h.orchestrator.CancelForChannel(ctx, channelID, "channel deactivated"); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel analysis jobs: " + err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"deactivated": true})
}

// ListChannels handles GET /api/v1/channels.
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	status := domain.ChannelStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown channel status: " + string(status),
		})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	channels, err := h.channels.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list channels: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels, "count": len(channels)})
}

// GetChannel handles GET /api/v1/channels/:id.
func (h *ChannelHandler) GetChannel(c *gin.Context) {
	channel, err := h.channels.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Channel not found",
		})
		return
	}
	c.JSON(http.StatusOK, channel)
}

// ListEvents handles GET /api/v1/channels/:id/events.
func (h *ChannelHandler) ListEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	events, err := h.events.ListByChannel(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list events: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// ListRecordings handles GET /api/v1/channels/:id/recordings.
func (h *ChannelHandler) ListRecordings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	recordings, err := h.recordings.ListByChannel(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list recordings: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recordings": recordings, "count": len(recordings)})
}

// StartChannel handles POST /api/v1/channels/:id/start. Going live requires
// the active source to be online.
func (h *ChannelHandler) StartChannel(c *gin.Context) {
	ctx := c.Request.Context()
	channel, err := h.channels.GetByID(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return
	}

	activeID := channel.ActiveSource()
	if activeID == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "Channel has no source assigned"})
		return
	}
	source, err := h.sources.GetByID(ctx, activeID)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Active source not found"})
		return
	}
	if source.Status != domain.SourceStatusOnline {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Active source is " + string(source.Status) + ", must be online to go live",
		})
		return
	}

	if err := h.channelSM.Transition(ctx, channel, domain.ChannelStatusLive, engine.TransitionEvent{
		TriggeredBy: domain.TriggerUser,
		UserID:      userID(c),
	}); err != nil {
		writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(domain.ChannelStatusLive)})
}

// StopChannel handles POST /api/v1/channels/:id/stop.
func (h *ChannelHandler) StopChannel(c *gin.Context) {
	if err := h.channelSM.TransitionByID(c.Request.Context(), c.Param("id"), domain.ChannelStatusOffline, engine.TransitionEvent{
		TriggeredBy: domain.TriggerUser,
		UserID:      userID(c),
	}); err != nil {
		writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(domain.ChannelStatusOffline)})
}

type maintenanceRequest struct {
	Enabled bool `json:"enabled"`
}

// SetMaintenance handles POST /api/v1/channels/:id/maintenance. Entering
// maintenance also cancels queued analysis jobs for the channel.
func (h *ChannelHandler) SetMaintenance(c *gin.Context) {
	var req maintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	channelID := c.Param("id")
	if err := h.channelSM.SetMaintenance(ctx, channelID, req.Enabled, userID(c)); err != nil {
		writeTransitionError(c, err)
		return
	}
	if req.Enabled && h.orchestrator != nil {
		if err := h.orchestrator.CancelForChannel(ctx, channelID, "channel entered maintenance"); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel analysis jobs: " + err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"maintenance": req.Enabled})
}

// Failover handles POST /api/v1/channels/:id/failover.
func (h *ChannelHandler) Failover(c *gin.Context) {
	if err := h.failover.ManualFailover(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
		writeFailoverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "failover applied"})
}

// Failback handles POST /api/v1/channels/:id/failback.
func (h *ChannelHandler) Failback(c *gin.Context) {
	if err := h.failover.ManualFailback(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
		writeFailoverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "failback applied"})
}

// userID resolves the acting operator from the request. The gateway in front
// of this service authenticates and forwards the user identity.
func userID(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}

func writeTransitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func writeFailoverError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrNoAlternate), errors.Is(err, engine.ErrAlternateNotOnline):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
