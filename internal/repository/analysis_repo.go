package repository

import (
	"context"
	"errors"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalysisRepository handles analysis jobs and their specialized result rows.
// Status writes are conditional on the current status, which is what makes
// job claiming and retries safe under concurrent workers and crash restarts.
type AnalysisRepository struct {
	db *gorm.DB
}

// NewAnalysisRepository creates a new AnalysisRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *AnalysisRepository: repository instance bound to db.
func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Enqueue inserts a queued job for (segment_id, analysis_type). A duplicate
// pair is a no-op, so re-enqueueing a segment is idempotent.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job row to persist; status is forced to queued.
// Returns:
//   - bool: true if a new job was created.
//   - error: non-nil if the insert fails.
func (r *AnalysisRepository) Enqueue(ctx context.Context, job *domain.AIAnalysis) (bool, error) {
	job.Status = domain.AnalysisStatusQueued
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "segment_id"}, {Name: "analysis_type"}},
		DoNothing: true,
	}).Create(job)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByID retrieves a job by its ID.
func (r *AnalysisRepository) GetByID(ctx context.Context, id string) (*domain.AIAnalysis, error) {
	var job domain.AIAnalysis
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimNext atomically claims the oldest due queued job by transitioning it
// queued -> processing. The conditional update guarantees a job is claimed by
// exactly one worker.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - now: claim time, recorded as started_at.
// Returns:
//   - *domain.AIAnalysis: claimed job, or nil when the queue is empty.
//   - error: non-nil if the query or update fails.
func (r *AnalysisRepository) ClaimNext(ctx context.Context, now time.Time) (*domain.AIAnalysis, error) {
	for {
		var job domain.AIAnalysis
		err := r.db.WithContext(ctx).
			Where("status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)",
				domain.AnalysisStatusQueued, now).
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		result := r.db.WithContext(ctx).
			Model(&domain.AIAnalysis{}).
			Where("id = ? AND status = ?", job.ID, domain.AnalysisStatusQueued).
			Updates(map[string]interface{}{
				"status":     domain.AnalysisStatusProcessing,
				"started_at": now,
			})
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			// Lost the race to another worker; try the next job
			continue
		}
		job.Status = domain.AnalysisStatusProcessing
		job.StartedAt = &now
		return &job, nil
	}
}

// Complete marks a processing job completed. Conditional on processing status,
// so a reaped or cancelled job cannot complete afterwards (monotonic status).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - completedAt: completion time.
//   - processingTimeMs: wall-clock processing duration.
// Returns:
//   - bool: true if the row was updated.
//   - error: non-nil if the update fails.
func (r *AnalysisRepository) Complete(ctx context.Context, id string, completedAt time.Time, processingTimeMs int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.AIAnalysis{}).
		Where("id = ? AND status = ?", id, domain.AnalysisStatusProcessing).
		Updates(map[string]interface{}{
			"status":             domain.AnalysisStatusCompleted,
			"completed_at":       completedAt,
			"processing_time_ms": processingTimeMs,
			"error_message":      "",
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Requeue returns a processing job to the queue for another attempt,
// incrementing the retry counter and recording the failure and backoff.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - errMsg: failure description from this attempt.
//   - nextAttemptAt: earliest time the job may be claimed again.
// Returns:
//   - bool: true if the row was updated.
//   - error: non-nil if the update fails.
func (r *AnalysisRepository) Requeue(ctx context.Context, id, errMsg string, nextAttemptAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.AIAnalysis{}).
		Where("id = ? AND status = ?", id, domain.AnalysisStatusProcessing).
		Updates(map[string]interface{}{
			"status":          domain.AnalysisStatusQueued,
			"retry_count":     gorm.Expr("retry_count + 1"),
			"error_message":   errMsg,
			"next_attempt_at": nextAttemptAt,
			"started_at":      nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Fail marks a job failed with its final error message.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - from: expected current status (queued for cancellation, processing for exhaustion).
//   - errMsg: final failure description.
// Returns:
//   - bool: true if the row was updated.
//   - error: non-nil if the update fails.
func (r *AnalysisRepository) Fail(ctx context.Context, id string, from domain.AnalysisStatus, errMsg string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.AIAnalysis{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":        domain.AnalysisStatusFailed,
			"error_message": errMsg,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListStale retrieves processing jobs whose attempt started before the cutoff.
// These are treated as timed out and requeued or failed by the orchestrator.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - cutoff: jobs started before this time are stale.
// Returns:
//   - []domain.AIAnalysis: stale jobs.
//   - error: non-nil if the query fails.
func (r *AnalysisRepository) ListStale(ctx context.Context, cutoff time.Time) ([]domain.AIAnalysis, error) {
	var jobs []domain.AIAnalysis
	if err := r.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", domain.AnalysisStatusProcessing, cutoff).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListQueuedByChannel retrieves queued jobs for a channel, used for
// maintenance and deactivation cancellation.
func (r *AnalysisRepository) ListQueuedByChannel(ctx context.Context, channelID string) ([]domain.AIAnalysis, error) {
	var jobs []domain.AIAnalysis
	if err := r.db.WithContext(ctx).
		Where("channel_id = ? AND status = ?", channelID, domain.AnalysisStatusQueued).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListBySegment retrieves all jobs for a segment.
func (r *AnalysisRepository) ListBySegment(ctx context.Context, segmentID string) ([]domain.AIAnalysis, error) {
	var jobs []domain.AIAnalysis
	if err := r.db.WithContext(ctx).
		Where("segment_id = ?", segmentID).
		Order("created_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// SaveTranscription inserts the transcription result row for an analysis.
// The unique analysis_id index enforces exactly one result per job.
func (r *AnalysisRepository) SaveTranscription(ctx context.Context, row *domain.Transcription) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "analysis_id"}},
		DoNothing: true,
	}).Create(row).Error
}

// SaveContentAnalysis inserts the content analysis result row for an analysis.
func (r *AnalysisRepository) SaveContentAnalysis(ctx context.Context, row *domain.ContentAnalysis) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "analysis_id"}},
		DoNothing: true,
	}).Create(row).Error
}

// SaveSummary inserts the summary result row for an analysis.
func (r *AnalysisRepository) SaveSummary(ctx context.Context, row *domain.Summary) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "analysis_id"}},
		DoNothing: true,
	}).Create(row).Error
}

// GetTranscription retrieves the transcription result for an analysis.
func (r *AnalysisRepository) GetTranscription(ctx context.Context, analysisID string) (*domain.Transcription, error) {
	var row domain.Transcription
	if err := r.db.WithContext(ctx).First(&row, "analysis_id = ?", analysisID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// GetContentAnalysis retrieves the content analysis result for an analysis.
func (r *AnalysisRepository) GetContentAnalysis(ctx context.Context, analysisID string) (*domain.ContentAnalysis, error) {
	var row domain.ContentAnalysis
	if err := r.db.WithContext(ctx).First(&row, "analysis_id = ?", analysisID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// GetSummary retrieves the summary result for an analysis.
func (r *AnalysisRepository) GetSummary(ctx context.Context, analysisID string) (*domain.Summary, error) {
	var row domain.Summary
	if err := r.db.WithContext(ctx).First(&row, "analysis_id = ?", analysisID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
