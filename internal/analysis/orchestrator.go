package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"github.com/eliudefrancisco14/gateway-matrix-api/internal/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStore is the persistence surface the orchestrator needs for analysis
// jobs and their result rows.
type JobStore interface {
	Enqueue(ctx context.Context, job *domain.AIAnalysis) (bool, error)
	ClaimNext(ctx context.Context, now time.Time) (*domain.AIAnalysis, error)
	Complete(ctx context.Context, id string, completedAt time.Time, processingTimeMs int) (bool, error)
	Requeue(ctx context.Context, id, errMsg string, nextAttemptAt time.Time) (bool, error)
	Fail(ctx context.Context, id string, from domain.AnalysisStatus, errMsg string) (bool, error)
	ListStale(ctx context.Context, cutoff time.Time) ([]domain.AIAnalysis, error)
	ListQueuedByChannel(ctx context.Context, channelID string) ([]domain.AIAnalysis, error)
	ListBySegment(ctx context.Context, segmentID string) ([]domain.AIAnalysis, error)
	SaveTranscription(ctx context.Context, row *domain.Transcription) error
	SaveContentAnalysis(ctx context.Context, row *domain.ContentAnalysis) error
	SaveSummary(ctx context.Context, row *domain.Summary) error
	GetTranscription(ctx context.Context, analysisID string) (*domain.Transcription, error)
}

// SegmentReader looks up the media segment a job operates on.
type SegmentReader interface {
	GetByID(ctx context.Context, id string) (*domain.MediaSegment, error)
}

// ChannelReader looks up the channel whose analysis profile drives fan-out.
type ChannelReader interface {
	GetByID(ctx context.Context, id string) (*domain.Channel, error)
}

// InsightSink receives operator-facing findings.
type InsightSink interface {
	Create(ctx context.Context, insight *domain.AIInsight) error
}

// AlertSink receives operational alerts.
type AlertSink interface {
	Create(ctx context.Context, alert *domain.Alert) error
}

// URLResolver turns a storage key into a URL the inference service can fetch.
// Satisfied by storage.MediaStorage.
type URLResolver interface {
	GetURL(key string) string
}

// Indexer receives transcript vectors for semantic search. Satisfied by
// TranscriptIndex.
type Indexer interface {
	Upsert(ctx context.Context, pointID string, vector []float32, payload *TranscriptPayload) error
}

// Config holds the orchestrator tunables.
type Config struct {
	Workers      int
	MaxRetries   int
	BackoffBase  time.Duration
	JobTimeout   time.Duration
	PollInterval time.Duration
	SummaryType  domain.SummaryType
}

// criticalSentiment is the threshold below which content is surfaced to
// operators as a critical finding.
const criticalSentiment = -0.8

// Orchestrator fans segments out into analysis jobs and drives a worker pool
// over the persistent queue. Claiming, retries and completion are all
// conditional status writes, so workers and the reaper can race freely: a job
// is processed by one worker at a time and a finished job never moves again.
type Orchestrator struct {
	jobs      JobStore
	segments  SegmentReader
	channels  ChannelReader
	insights  InsightSink
	alerts    AlertSink
	media     URLResolver
	inference Inference
	embedder  Embedder
	index     Indexer
	cfg       Config

	nowFn func() time.Time
}

// NewOrchestrator creates an Orchestrator.
// Parameters:
//   - jobs: job persistence.
//   - segments: segment lookup.
//   - channels: channel lookup for analysis profiles.
//   - insights: finding sink; nil disables insights.
//   - alerts: alert sink for operational failures; nil disables alerts.
//   - media: storage URL resolver for segment files.
//   - inference: AI model boundary.
//   - embedder: transcript embedder; nil disables indexing.
//   - index: transcript vector index; nil disables indexing.
//   - cfg: worker pool and retry tunables.
// Returns:
//   - *Orchestrator: orchestrator instance.
func NewOrchestrator(jobs JobStore, segments SegmentReader, channels ChannelReader, insights InsightSink, alerts AlertSink, media URLResolver, inference Inference, embedder Embedder, index Indexer, cfg Config) *Orchestrator {
	if cfg.SummaryType == "" {
		cfg.SummaryType = domain.SummaryBrief
	}
	return &Orchestrator{
		jobs:      jobs,
		segments:  segments,
		channels:  channels,
		insights:  insights,
		alerts:    alerts,
		media:     media,
		inference: inference,
		embedder:  embedder,
		index:     index,
		cfg:       cfg,
		nowFn:     time.Now,
	}
}

// OnSegmentCompleted fans a finished segment out into queued analysis jobs:
// a transcription always, plus whatever the channel's analysis profile asks
// for. Enqueueing is idempotent per (segment, type), so encoder callback
// retries are harmless.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - segment: completed media segment.
// Returns:
//   - error: non-nil if the channel lookup or an insert fails.
func (o *Orchestrator) OnSegmentCompleted(ctx context.Context, segment *domain.MediaSegment) error {
	channel, err := o.channels.GetByID(ctx, segment.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to load channel %s: %w", segment.ChannelID, err)
	}

	types := []domain.AnalysisType{domain.AnalysisTranscription}
	for _, raw := range channel.AnalysisProfile {
		t := domain.AnalysisType(raw)
		if !t.Valid() {
			logger.CtxWarn(ctx, "channel %s has unknown analysis profile entry %q, skipping", channel.ID, raw)
			continue
		}
		if t == domain.AnalysisTranscription {
			continue
		}
		types = append(types, t)
	}

	for _, t := range types {
		created, err := o.jobs.Enqueue(ctx, &domain.AIAnalysis{
			ID:           uuid.NewString(),
			SegmentID:    segment.ID,
			ChannelID:    segment.ChannelID,
			AnalysisType: t,
			CreatedAt:    o.nowFn(),
			CreatedBy:    "system",
		})
		if err != nil {
			return fmt.Errorf("failed to enqueue %s job for segment %s: %w", t, segment.ID, err)
		}
		if created {
			logger.CtxInfo(ctx, "queued %s analysis for segment %s", t, segment.ID)
		}
	}
	return nil
}

// Run starts the worker pool and the stale-job reaper and blocks until the
// context is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			o.workerLoop(ctx, worker)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.reaperLoop(ctx)
	}()

	wg.Wait()
}

func (o *Orchestrator) workerLoop(ctx context.Context, worker int) {
	for {
		job, err := o.jobs.ClaimNext(ctx, o.nowFn())
		if err != nil {
			logger.CtxError(ctx, "worker %d failed to claim job: %v", worker, err)
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.cfg.PollInterval):
				continue
			}
		}

		jobCtx, cancel := context.WithTimeout(ctx, o.cfg.JobTimeout)
		o.Process(jobCtx, job)
		cancel()

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (o *Orchestrator) reaperLoop(ctx context.Context) {
	interval := o.cfg.JobTimeout / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := o.Reap(ctx, now); err != nil {
				logger.CtxError(ctx, "stale job reaping failed: %v", err)
			}
		}
	}
}

// Process runs one claimed job to completion, requeue or failure.
// Parameters:
//   - ctx: per-job context carrying the job timeout.
//   - job: claimed job in processing status.
func (o *Orchestrator) Process(ctx context.Context, job *domain.AIAnalysis) {
	started := o.nowFn()

	segment, err := o.segments.GetByID(ctx, job.SegmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Segment is gone; the job can never succeed.
			if _, err := o.jobs.Fail(ctx, job.ID, domain.AnalysisStatusProcessing, "segment no longer exists"); err != nil {
				logger.CtxError(ctx, "failed to fail orphaned job %s: %v", job.ID, err)
			}
			return
		}
		o.handleFailure(ctx, job, fmt.Errorf("failed to load segment %s: %w", job.SegmentID, err))
		return
	}

	if err := o.runAnalysis(ctx, job, segment); err != nil {
		o.handleFailure(ctx, job, err)
		return
	}

	elapsed := int(o.nowFn().Sub(started).Milliseconds())
	updated, err := o.jobs.Complete(ctx, job.ID, o.nowFn(), elapsed)
	if err != nil {
		logger.CtxError(ctx, "failed to complete job %s: %v", job.ID, err)
		return
	}
	if !updated {
		// Reaped or cancelled while we were working. The result rows are
		// idempotent inserts, so the replayed attempt will reuse them.
		logger.CtxWarn(ctx, "job %s finished but was no longer processing", job.ID)
		return
	}
	logger.CtxInfo(ctx, "completed %s analysis for segment %s in %dms", job.AnalysisType, job.SegmentID, elapsed)
}

func (o *Orchestrator) runAnalysis(ctx context.Context, job *domain.AIAnalysis, segment *domain.MediaSegment) error {
	job.ModelUsed = o.inference.Model()

	switch job.AnalysisType {
	case domain.AnalysisTranscription:
		_, err := o.transcribe(ctx, job, segment)
		return err

	case domain.AnalysisEntities, domain.AnalysisEmotions, domain.AnalysisThemes:
		text, err := o.transcriptText(ctx, job, segment)
		if err != nil {
			return err
		}
		return o.analyzeContent(ctx, job, segment, text)

	case domain.AnalysisSummary:
		text, err := o.transcriptText(ctx, job, segment)
		if err != nil {
			return err
		}
		return o.summarize(ctx, job, text)

	case domain.AnalysisFull:
		result, err := o.transcribe(ctx, job, segment)
		if err != nil {
			return err
		}
		if err := o.analyzeContent(ctx, job, segment, result.FullText); err != nil {
			return err
		}
		return o.summarize(ctx, job, result.FullText)

	default:
		return fmt.Errorf("unknown analysis type %q", job.AnalysisType)
	}
}

// transcribe runs speech-to-text over the segment file, persists the result
// row and hands the text to the vector index.
func (o *Orchestrator) transcribe(ctx context.Context, job *domain.AIAnalysis, segment *domain.MediaSegment) (*TranscriptionResult, error) {
	result, err := o.inference.Transcribe(ctx, o.media.GetURL(segment.FilePath))
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	if err := o.jobs.SaveTranscription(ctx, &domain.Transcription{
		ID:         uuid.NewString(),
		AnalysisID: job.ID,
		FullText:   result.FullText,
		Language:   result.Language,
		Confidence: result.Confidence,
		WordCount:  len(strings.Fields(result.FullText)),
		Segments:   result.Segments,
	}); err != nil {
		return nil, fmt.Errorf("failed to save transcription: %w", err)
	}

	o.indexTranscript(ctx, segment, result)
	return result, nil
}

// indexTranscript embeds the transcript and upserts it into the vector index.
// Indexing is best effort: a search index gap must not fail the analysis.
func (o *Orchestrator) indexTranscript(ctx context.Context, segment *domain.MediaSegment, result *TranscriptionResult) {
	if o.embedder == nil || o.index == nil || result.FullText == "" {
		return
	}
	vector, err := o.embedder.Embed(ctx, result.FullText)
	if err != nil {
		logger.CtxError(ctx, "failed to embed transcript for segment %s: %v", segment.ID, err)
		return
	}
	if err := o.index.Upsert(ctx, PointID(segment.ID), vector, &TranscriptPayload{
		SegmentID:   segment.ID,
		ChannelID:   segment.ChannelID,
		RecordingID: segment.RecordingID,
		Text:        result.FullText,
		Language:    result.Language,
		StartTime:   segment.StartTime.Format(time.RFC3339),
		EndTime:     segment.EndTime.Format(time.RFC3339),
	}); err != nil {
		logger.CtxError(ctx, "failed to index transcript for segment %s: %v", segment.ID, err)
	}
}

func (o *Orchestrator) analyzeContent(ctx context.Context, job *domain.AIAnalysis, segment *domain.MediaSegment, text string) error {
	result, err := o.inference.AnalyzeContent(ctx, text)
	if err != nil {
		return fmt.Errorf("content analysis failed: %w", err)
	}

	if err := o.jobs.SaveContentAnalysis(ctx, &domain.ContentAnalysis{
		ID:              uuid.NewString(),
		AnalysisID:      job.ID,
		Themes:          result.Themes,
		Entities:        result.Entities,
		Emotions:        result.Emotions,
		DominantEmotion: result.DominantEmotion,
		SentimentScore:  result.SentimentScore,
		Keywords:        result.Keywords,
		Categories:      result.Categories,
	}); err != nil {
		return fmt.Errorf("failed to save content analysis: %w", err)
	}

	o.surfaceCriticalFindings(ctx, job, segment, result)
	return nil
}

// surfaceCriticalFindings raises an actionable critical insight when the
// content itself demands operator attention.
func (o *Orchestrator) surfaceCriticalFindings(ctx context.Context, job *domain.AIAnalysis, segment *domain.MediaSegment, result *ContentResult) {
	if o.insights == nil {
		return
	}

	var flagged []string
	for _, e := range result.Entities {
		if e.Flagged {
			flagged = append(flagged, e.Text)
		}
	}
	if result.SentimentScore > criticalSentiment && len(flagged) == 0 {
		return
	}

	description := fmt.Sprintf("segment %s requires review", segment.ID)
	if len(flagged) > 0 {
		description = fmt.Sprintf("segment %s mentions flagged entities: %s", segment.ID, strings.Join(flagged, ", "))
	} else if result.SentimentScore <= criticalSentiment {
		description = fmt.Sprintf("segment %s has strongly negative sentiment (%.2f)", segment.ID, result.SentimentScore)
	}

	if err := o.insights.Create(ctx, &domain.AIInsight{
		ID:          uuid.NewString(),
		ChannelID:   job.ChannelID,
		AnalysisID:  job.ID,
		InsightType: domain.InsightAlert,
		Severity:    domain.SeverityCritical,
		Title:       "Critical content finding",
		Description: description,
		Data: domain.JSONMap{
			"segment_id":       segment.ID,
			"sentiment_score":  result.SentimentScore,
			"flagged_entities": flagged,
		},
		IsActionable: true,
		CreatedAt:    o.nowFn(),
	}); err != nil {
		logger.CtxError(ctx, "failed to create critical insight for job %s: %v", job.ID, err)
	}
}

func (o *Orchestrator) summarize(ctx context.Context, job *domain.AIAnalysis, text string) error {
	result, err := o.inference.Summarize(ctx, text, o.cfg.SummaryType)
	if err != nil {
		return fmt.Errorf("summarization failed: %w", err)
	}

	if err := o.jobs.SaveSummary(ctx, &domain.Summary{
		ID:           uuid.NewString(),
		AnalysisID:   job.ID,
		SummaryType:  o.cfg.SummaryType,
		Content:      result.Content,
		BulletPoints: result.BulletPoints,
		KeyMoments:   result.KeyMoments,
		WordCount:    len(strings.Fields(result.Content)),
	}); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

// transcriptText resolves the transcript a downstream analysis works on:
// a completed transcription of the same segment if one exists, otherwise an
// inline transcription that is not persisted as a separate result.
func (o *Orchestrator) transcriptText(ctx context.Context, job *domain.AIAnalysis, segment *domain.MediaSegment) (string, error) {
	siblings, err := o.jobs.ListBySegment(ctx, segment.ID)
	if err != nil {
		return "", fmt.Errorf("failed to list sibling jobs: %w", err)
	}
	for i := range siblings {
		s := &siblings[i]
		if s.AnalysisType != domain.AnalysisTranscription || s.Status != domain.AnalysisStatusCompleted {
			continue
		}
		row, err := o.jobs.GetTranscription(ctx, s.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return "", fmt.Errorf("failed to load transcription for job %s: %w", s.ID, err)
		}
		return row.FullText, nil
	}

	result, err := o.inference.Transcribe(ctx, o.media.GetURL(segment.FilePath))
	if err != nil {
		return "", fmt.Errorf("inline transcription failed: %w", err)
	}
	return result.FullText, nil
}

// handleFailure requeues a failed attempt with exponential backoff, or
// retires the job after the retry budget and surfaces the exhaustion as an
// anomaly insight.
func (o *Orchestrator) handleFailure(ctx context.Context, job *domain.AIAnalysis, cause error) {
	logger.CtxError(ctx, "%s analysis attempt %d for segment %s failed: %v", job.AnalysisType, job.RetryCount+1, job.SegmentID, cause)

	if job.RetryCount+1 >= o.cfg.MaxRetries {
		updated, err := o.jobs.Fail(ctx, job.ID, domain.AnalysisStatusProcessing, cause.Error())
		if err != nil {
			logger.CtxError(ctx, "failed to retire job %s: %v", job.ID, err)
			return
		}
		if updated {
			o.surfaceExhaustion(ctx, job, cause)
		}
		return
	}

	backoff := o.cfg.BackoffBase * time.Duration(1<<uint(job.RetryCount))
	if _, err := o.jobs.Requeue(ctx, job.ID, cause.Error(), o.nowFn().Add(backoff)); err != nil {
		logger.CtxError(ctx, "failed to requeue job %s: %v", job.ID, err)
	}
}

func (o *Orchestrator) surfaceExhaustion(ctx context.Context, job *domain.AIAnalysis, cause error) {
	if o.insights != nil {
		if err := o.insights.Create(ctx, &domain.AIInsight{
			ID:          uuid.NewString(),
			ChannelID:   job.ChannelID,
			AnalysisID:  job.ID,
			InsightType: domain.InsightAnomaly,
			Severity:    domain.SeverityWarning,
			Title:       fmt.Sprintf("%s analysis failed", job.AnalysisType),
			Description: fmt.Sprintf("analysis of segment %s gave up after %d attempts: %v", job.SegmentID, job.RetryCount+1, cause),
			Data: domain.JSONMap{
				"segment_id": job.SegmentID,
				"attempts":   job.RetryCount + 1,
			},
			CreatedAt: o.nowFn(),
		}); err != nil {
			logger.CtxError(ctx, "failed to create exhaustion insight for job %s: %v", job.ID, err)
		}
	}

	if o.alerts != nil {
		if err := o.alerts.Create(ctx, &domain.Alert{
			ID:        uuid.NewString(),
			Severity:  domain.AlertSeverityWarning,
			Message:   fmt.Sprintf("analysis job %s (%s) for segment %s exhausted its retries", job.ID, job.AnalysisType, job.SegmentID),
			ChannelID: job.ChannelID,
			CreatedAt: o.nowFn(),
		}); err != nil {
			logger.CtxError(ctx, "failed to create exhaustion alert for job %s: %v", job.ID, err)
		}
	}
}

// Reap requeues or retires jobs whose worker died mid-attempt. A stale claim
// older than the job timeout counts as one consumed attempt.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - now: reap time.
// Returns:
//   - error: non-nil if the stale listing fails.
func (o *Orchestrator) Reap(ctx context.Context, now time.Time) error {
	stale, err := o.jobs.ListStale(ctx, now.Add(-o.cfg.JobTimeout))
	if err != nil {
		return fmt.Errorf("failed to list stale jobs: %w", err)
	}
	for i := range stale {
		job := &stale[i]
		if job.RetryCount+1 >= o.cfg.MaxRetries {
			updated, err := o.jobs.Fail(ctx, job.ID, domain.AnalysisStatusProcessing, "attempt timed out")
			if err != nil {
				logger.CtxError(ctx, "failed to retire stale job %s: %v", job.ID, err)
				continue
			}
			if updated {
				o.surfaceExhaustion(ctx, job, errors.New("attempt timed out"))
			}
			continue
		}
		if _, err := o.jobs.Requeue(ctx, job.ID, "attempt timed out", now); err != nil {
			logger.CtxError(ctx, "failed to requeue stale job %s: %v", job.ID, err)
		}
	}
	return nil
}

// CancelForChannel retires all queued jobs for a channel, used when a channel
// is deactivated or enters maintenance. Jobs already processing finish their
// current attempt.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - channelID: channel whose queued jobs are cancelled.
//   - reason: recorded as the final error message.
// Returns:
//   - error: non-nil if the queued listing fails.
func (o *Orchestrator) CancelForChannel(ctx context.Context, channelID, reason string) error {
	queued, err := o.jobs.ListQueuedByChannel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("failed to list queued jobs for channel %s: %w", channelID, err)
	}
	for i := range queued {
		if _, err := o.jobs.Fail(ctx, queued[i].ID, domain.AnalysisStatusQueued, "cancelled: "+reason); err != nil {
			logger.CtxError(ctx, "failed to cancel job %s: %v", queued[i].ID, err)
		}
	}
	if len(queued) > 0 {
		logger.CtxInfo(ctx, "cancelled %d queued analysis jobs for channel %s (%s)", len(queued), channelID, reason)
	}
	return nil
}
