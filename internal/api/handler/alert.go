package handler

import (
	"net/http"
	"strconv"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/repository"
	"github.com/gin-gonic/gin"
)

// AlertHandler handles operational alert endpoints.
type AlertHandler struct {
	alerts *repository.AlertRepository
}

// NewAlertHandler creates a new alert handler.
// Parameters:
//   - alerts: alert repository.
// Returns:
//   - *AlertHandler: initialized handler.
func NewAlertHandler(alerts *repository.AlertRepository) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// ListAlerts handles GET /api/v1/alerts. The acknowledged query parameter
// filters by acknowledgment state when present.
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	var acknowledged *bool
	if raw := c.Query("acknowledged"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid acknowledged filter: " + raw})
			return
		}
		acknowledged = &parsed
	}

	alerts, err := h.alerts.List(c.Request.Context(), acknowledged, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list alerts: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// Acknowledge handles POST /api/v1/alerts/:id/ack.
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	user := c.GetHeader("X-User-ID")
	if user == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-User-ID header is required"})
		return
	}
	if err := h.alerts.Acknowledge(c.Request.Context(), c.Param("id"), user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to acknowledge alert: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}
