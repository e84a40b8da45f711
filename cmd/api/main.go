package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/analysis"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/api"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/api/handler"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/api/middleware"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/config"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/engine"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/logger"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/repository"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/storage"
)

func main() {
	// Initialize logger
	log := logger.NewDefault()
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize repositories
	sourceRepo := repository.NewSourceRepository(db)
	metricRepo := repository.NewMetricRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	eventRepo := repository.NewEventRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	recordingRepo := repository.NewRecordingRepository(db)
	segmentRepo := repository.NewSegmentRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	insightRepo := repository.NewInsightRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	// Initialize media storage
	mediaStorage, err := storage.NewStorage(&storage.S3Config{
		Type:      storage.StorageType(cfg.Storage.Type),
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize media storage: %v", err)
	}

	ctx := context.Background()
	if err := mediaStorage.EnsureBucket(ctx); err != nil {
		log.Fatalf("Failed to ensure media bucket: %v", err)
	}

	// Transcript search is optional; the endpoint reports itself disabled
	// when embedding is off.
	var embedder analysis.Embedder
	var transcriptIndex *analysis.TranscriptIndex
	if cfg.Embedding.Enabled {
		embedder = analysis.NewEmbeddingService(&analysis.EmbeddingConfig{
			Provider:   cfg.Embedding.Provider,
			Model:      cfg.Embedding.Model,
			APIKey:     cfg.Embedding.APIKey,
			Endpoint:   cfg.Embedding.Endpoint,
			Dimensions: cfg.Embedding.Dimensions,
		})

		transcriptIndex, err = analysis.NewTranscriptIndex(&analysis.QdrantConnectionConfig{
			Host:            cfg.Qdrant.Host,
			Port:            cfg.Qdrant.Port,
			Collection:      cfg.Qdrant.Collection,
			APIKey:          cfg.Qdrant.APIKey,
			UseTLS:          cfg.Qdrant.UseTLS,
			VectorDimension: cfg.Embedding.Dimensions,
		})
		if err != nil {
			log.Fatalf("Failed to initialize transcript index: %v", err)
		}
		defer transcriptIndex.Close()

		if err := transcriptIndex.EnsureCollection(ctx); err != nil {
			log.Fatalf("Failed to ensure transcript collection: %v", err)
		}
	}

	inference := analysis.NewInferenceClient(&analysis.InferenceConfig{
		Provider: cfg.AI.Provider,
		Model:    cfg.AI.Model,
		APIKey:   cfg.AI.APIKey,
		BaseURL:  cfg.AI.BaseURL,
	})

	// Initialize the control plane. API handlers never write channel or
	// source status directly; every mutation goes through these.
	recorder := engine.NewEventRecorder(eventRepo, auditRepo)
	scheduler := engine.NewRecordingScheduler(recordingRepo, segmentRepo, cfg.Recording.SegmentSeconds, cfg.Recording.Format)
	channelSM := engine.NewChannelStateMachine(channelRepo, recorder, scheduler)
	failover := engine.NewFailoverDecisionEngine(channelRepo, sourceRepo, channelSM, recorder, alertRepo, cfg.Monitor.FailbackMode)
	channelSM.AddHook(failover)
	sourceSM := engine.NewSourceStateMachine(sourceRepo, failover, cfg.Monitor.Debounce)

	// The API process enqueues and cancels analysis jobs; the engine
	// process runs the workers.
	orchestrator := analysis.NewOrchestrator(analysisRepo, segmentRepo, channelRepo, insightRepo, alertRepo,
		mediaStorage, inference, embedder, transcriptIndex, analysis.Config{
			Workers:      cfg.Analysis.Workers,
			MaxRetries:   cfg.Analysis.MaxRetries,
			BackoffBase:  cfg.Analysis.BackoffBase,
			JobTimeout:   cfg.Analysis.JobTimeout,
			PollInterval: cfg.Analysis.PollInterval,
			SummaryType:  domain.SummaryType(cfg.Analysis.SummaryType),
		})

	// Setup router
	router := api.SetupRouter(api.Handlers{
		Health:   handler.NewHealthHandler(),
		Channels: handler.NewChannelHandler(channelRepo, sourceRepo, eventRepo, recordingRepo, channelSM, failover, orchestrator),
		Sources:  handler.NewSourceHandler(sourceRepo, metricRepo, sourceSM),
		Segments: handler.NewSegmentHandler(segmentRepo, analysisRepo, orchestrator),
		Insights: handler.NewInsightHandler(insightRepo, analysisRepo),
		Alerts:   handler.NewAlertHandler(alertRepo),
		Search:   handler.NewSearchHandler(embedder, transcriptIndex),
	}, cfg.Server.Mode, middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Infof("Starting API server on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
