package api

import (
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/api/handler"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/api/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers bundles the route handlers the router mounts.
type Handlers struct {
	Health   *handler.HealthHandler
	Channels *handler.ChannelHandler
	Sources  *handler.SourceHandler
	Segments *handler.SegmentHandler
	Insights *handler.InsightHandler
	Alerts   *handler.AlertHandler
	Search   *handler.SearchHandler
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(h Handlers, mode string, cors middleware.CORSConfig) *gin.Engine {
	// Set Gin mode
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cors))

	// Health check
	r.GET("/health", h.Health.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Channels
		v1.GET("/channels", h.Channels.ListChannels)
		v1.POST("/channels", h.Channels.CreateChannel)
		v1.GET("/channels/:id", h.Channels.GetChannel)
		v1.PUT("/channels/:id/source", h.Channels.ReassignSource)
		v1.DELETE("/channels/:id", h.Channels.Deactivate)
		v1.GET("/channels/:id/events", h.Channels.ListEvents)
		v1.GET("/channels/:id/recordings", h.Channels.ListRecordings)
		v1.GET("/channels/:id/insights", h.Insights.ListByChannel)
		v1.POST("/channels/:id/start", h.Channels.StartChannel)
		v1.POST("/channels/:id/stop", h.Channels.StopChannel)
		v1.POST("/channels/:id/maintenance", h.Channels.SetMaintenance)
		v1.POST("/channels/:id/failover", h.Channels.Failover)
		v1.POST("/channels/:id/failback", h.Channels.Failback)

		// Sources
		v1.GET("/sources", h.Sources.ListSources)
		v1.GET("/sources/:id", h.Sources.GetSource)
		v1.GET("/sources/:id/metrics", h.Sources.ListMetrics)
		v1.POST("/sources/:id/metrics", h.Sources.IngestMetric)
		v1.POST("/sources/:id/reconnect", h.Sources.Reconnect)
		v1.POST("/sources/:id/stream-closed", h.Sources.StreamClosed)
		v1.DELETE("/sources/:id", h.Sources.Deactivate)

		// Segments and analyses
		v1.GET("/segments/:id", h.Segments.GetSegment)
		v1.GET("/segments/:id/analyses", h.Segments.ListAnalyses)
		v1.POST("/segments/:id/status", h.Segments.UpdateStatus)
		v1.GET("/recordings/:id/segments", h.Segments.ListByRecording)
		v1.GET("/analyses/:id", h.Insights.GetAnalysis)

		// Insights
		v1.POST("/insights/:id/read", h.Insights.MarkRead)
		v1.POST("/insights/:id/action", h.Insights.MarkActionTaken)

		// Alerts
		v1.GET("/alerts", h.Alerts.ListAlerts)
		v1.POST("/alerts/:id/ack", h.Alerts.Acknowledge)

		// Transcript search
		v1.POST("/search", h.Search.Search)
	}

	return r
}
