package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/analysis"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/config"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/engine"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/health"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/logger"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/repository"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/storage"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "gateway-engine",
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	appLogger.WithFields(logger.Fields{
		"eval_interval": cfg.Monitor.EvalInterval.String(),
		"failback_mode": cfg.Monitor.FailbackMode,
		"workers":       cfg.Analysis.Workers,
	}).Info("Starting engine")

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	// Ensure bucket exists
	if err := mediaStorage.EnsureBucket(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
	}

	// Optional transcript indexing
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
			appLogger.WithError(err).Fatal("Failed to initialize transcript index")
		}
		defer transcriptIndex.Close()

		if err := transcriptIndex.EnsureCollection(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure transcript collection")
		}
	}

	inference := analysis.NewInferenceClient(&analysis.InferenceConfig{
		Provider: cfg.AI.Provider,
		Model:    cfg.AI.Model,
		APIKey:   cfg.AI.APIKey,
		BaseURL:  cfg.AI.BaseURL,
	})

	// Initialize the control plane
	recorder := engine.NewEventRecorder(eventRepo, auditRepo)
	scheduler := engine.NewRecordingScheduler(recordingRepo, segmentRepo, cfg.Recording.SegmentSeconds, cfg.Recording.Format)
	channelSM := engine.NewChannelStateMachine(channelRepo, recorder, scheduler)
	failover := engine.NewFailoverDecisionEngine(channelRepo, sourceRepo, channelSM, recorder, alertRepo, cfg.Monitor.FailbackMode)
	channelSM.AddHook(failover)
	sourceSM := engine.NewSourceStateMachine(sourceRepo, failover, cfg.Monitor.Debounce)

	sampler := health.NewSampler(health.Config{
		WindowSize:        cfg.Monitor.WindowSize,
		WindowDuration:    cfg.Monitor.WindowDuration,
		StalenessTimeout:  cfg.Monitor.StalenessTimeout,
		PacketLossPercent: cfg.Monitor.Thresholds.PacketLossPercent,
		LatencyMs:         cfg.Monitor.Thresholds.LatencyMs,
		BufferHealth:      cfg.Monitor.Thresholds.BufferHealth,
		ErrorCount:        cfg.Monitor.Thresholds.ErrorCount,
	})

	monitor := engine.NewMonitor(sourceRepo, metricRepo, channelRepo, sampler, sourceSM, scheduler,
		cfg.Monitor.EvalInterval, cfg.Monitor.WindowDuration)

	orchestrator := analysis.NewOrchestrator(analysisRepo, segmentRepo, channelRepo, insightRepo, alertRepo,
		mediaStorage, inference, embedder, transcriptIndex, analysis.Config{
			Workers:      cfg.Analysis.Workers,
			MaxRetries:   cfg.Analysis.MaxRetries,
			BackoffBase:  cfg.Analysis.BackoffBase,
			JobTimeout:   cfg.Analysis.JobTimeout,
			PollInterval: cfg.Analysis.PollInterval,
			SummaryType:  domain.SummaryType(cfg.Analysis.SummaryType),
		})

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		monitor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		orchestrator.Run(ctx)
	}()
	wg.Wait()

	appLogger.Info("Engine stopped")
}
