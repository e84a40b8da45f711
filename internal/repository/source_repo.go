package repository

import (
	"context"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"gorm.io/gorm"
)

// SourceRepository handles source and source metric data operations.
type SourceRepository struct {
	db *gorm.DB
}

// NewSourceRepository creates a new SourceRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *SourceRepository: repository instance bound to db.
func NewSourceRepository(db *gorm.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// Create inserts a new source record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - source: source record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *SourceRepository) Create(ctx context.Context, source *domain.Source) error {
	return r.db.WithContext(ctx).Create(source).Error
}

// GetByID retrieves a source by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: source ID.
// Returns:
//   - *domain.Source: source record if found.
//   - error: non-nil if lookup fails.
func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	var source domain.Source
	if err := r.db.WithContext(ctx).First(&source, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &source, nil
}

// ListActive retrieves all active sources.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []domain.Source: active source records.
//   - error: non-nil if the query fails.
func (r *SourceRepository) ListActive(ctx context.Context) ([]domain.Source, error) {
	var sources []domain.Source
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name").
		Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

// List retrieves sources with pagination.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.Source: matching source records.
//   - error: non-nil if the query fails.
func (r *SourceRepository) List(ctx context.Context, limit, offset int) ([]domain.Source, error) {
	var sources []domain.Source
	if err := r.db.WithContext(ctx).
		Limit(limit).
		Offset(offset).
		Order("created_at DESC").
		Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

// UpdateStatus transitions a source to a new status and touches last_seen_at.
// The write is conditional on the current status so concurrent evaluators
// cannot apply conflicting transitions.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: source ID.
//   - from: expected current status.
//   - to: target status.
//   - seenAt: verdict receipt time recorded as last_seen_at; nil leaves it unchanged.
// Returns:
//   - bool: true if the row was updated.
//   - error: non-nil if the update fails.
func (r *SourceRepository) UpdateStatus(ctx context.Context, id string, from, to domain.SourceStatus, seenAt *time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if seenAt != nil {
		updates["last_seen_at"] = *seenAt
	}
	result := r.db.WithContext(ctx).
		Model(&domain.Source{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// TouchLastSeen updates last_seen_at without changing status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: source ID.
//   - seenAt: verdict receipt time.
// Returns:
//   - error: non-nil if the update fails.
func (r *SourceRepository) TouchLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Source{}).
		Where("id = ?", id).
		Update("last_seen_at", seenAt).Error
}

// Deactivate soft-deletes a source.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: source ID.
// Returns:
//   - error: non-nil if the update fails.
func (r *SourceRepository) Deactivate(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Source{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()}).Error
}

// Delete removes a source and cascades to its metrics. Channel references are
// the caller's responsibility: they must be nulled or reassigned first so a
// live channel is never silently orphaned.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: source ID to delete.
// Returns:
//   - error: non-nil if the delete fails.
func (r *SourceRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_id = ?", id).Delete(&domain.SourceMetric{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Source{}, "id = ?", id).Error
	})
}

// MetricRepository handles append-only source metric samples.
type MetricRepository struct {
	db *gorm.DB
}

// NewMetricRepository creates a new MetricRepository.
func NewMetricRepository(db *gorm.DB) *MetricRepository {
	return &MetricRepository{db: db}
}

// Append inserts one immutable metric sample. Samples are never updated.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - metric: sample to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *MetricRepository) Append(ctx context.Context, metric *domain.SourceMetric) error {
	return r.db.WithContext(ctx).Create(metric).Error
}

// ListSince retrieves samples for a source newer than the given time, oldest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - sourceID: source to query.
//   - since: exclusive lower bound on sample timestamp.
// Returns:
//   - []domain.SourceMetric: matching samples.
//   - error: non-nil if the query fails.
func (r *MetricRepository) ListSince(ctx context.Context, sourceID string, since time.Time) ([]domain.SourceMetric, error) {
	var metrics []domain.SourceMetric
	if err := r.db.WithContext(ctx).
		Where("source_id = ? AND timestamp > ?", sourceID, since).
		Order("timestamp ASC").
		Find(&metrics).Error; err != nil {
		return nil, err
	}
	return metrics, nil
}

// ListRecent retrieves the newest samples for a source, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - sourceID: source to query.
//   - limit: maximum number of samples to return.
// Returns:
//   - []domain.SourceMetric: matching samples.
//   - error: non-nil if the query fails.
func (r *MetricRepository) ListRecent(ctx context.Context, sourceID string, limit int) ([]domain.SourceMetric, error) {
	var metrics []domain.SourceMetric
	if err := r.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&metrics).Error; err != nil {
		return nil, err
	}
	return metrics, nil
}
