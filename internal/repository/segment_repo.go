package repository

import (
	"context"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"gorm.io/gorm"
)

// SegmentRepository handles media segment data operations.
type SegmentRepository struct {
	db *gorm.DB
}

// NewSegmentRepository creates a new SegmentRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *SegmentRepository: repository instance bound to db.
func NewSegmentRepository(db *gorm.DB) *SegmentRepository {
	return &SegmentRepository{db: db}
}

// Create inserts a new segment row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - segment: segment row to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *SegmentRepository) Create(ctx context.Context, segment *domain.MediaSegment) error {
	return r.db.WithContext(ctx).Create(segment).Error
}

// GetByID retrieves a segment by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: segment ID.
// Returns:
//   - *domain.MediaSegment: segment row if found.
//   - error: non-nil if lookup fails.
func (r *SegmentRepository) GetByID(ctx context.Context, id string) (*domain.MediaSegment, error) {
	var segment domain.MediaSegment
	if err := r.db.WithContext(ctx).First(&segment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &segment, nil
}

// UpdateStatus transitions a segment, conditional on the expected current
// status so the external encoder cannot rewind a finished segment.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: segment ID.
//   - from: expected current status.
//   - to: target status.
//   - fileSizeBytes: delivered file size; zero leaves the column untouched.
// Returns:
//   - bool: true if the row was updated.
//   - error: non-nil if the update fails.
func (r *SegmentRepository) UpdateStatus(ctx context.Context, id string, from, to domain.SegmentStatus, fileSizeBytes int64) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if to == domain.SegmentStatusCompleted || to == domain.SegmentStatusFailed {
		now := time.Now()
		updates["processed_at"] = now
	}
	if fileSizeBytes > 0 {
		updates["file_size_bytes"] = fileSizeBytes
	}
	result := r.db.WithContext(ctx).
		Model(&domain.MediaSegment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListByRecording retrieves segments of a recording ordered by start time.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - recordingID: recording to query.
// Returns:
//   - []domain.MediaSegment: matching segments.
//   - error: non-nil if the query fails.
func (r *SegmentRepository) ListByRecording(ctx context.Context, recordingID string) ([]domain.MediaSegment, error) {
	var segments []domain.MediaSegment
	if err := r.db.WithContext(ctx).
		Where("recording_id = ?", recordingID).
		Order("start_time ASC").
		Find(&segments).Error; err != nil {
		return nil, err
	}
	return segments, nil
}

// ListByChannelStatus retrieves segments for a channel in one status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - channelID: channel to query.
//   - status: segment status to filter by.
//   - limit: maximum number of segments to return.
// Returns:
//   - []domain.MediaSegment: matching segments.
//   - error: non-nil if the query fails.
func (r *SegmentRepository) ListByChannelStatus(ctx context.Context, channelID string, status domain.SegmentStatus, limit int) ([]domain.MediaSegment, error) {
	var segments []domain.MediaSegment
	if err := r.db.WithContext(ctx).
		Where("channel_id = ? AND status = ?", channelID, status).
		Order("start_time ASC").
		Limit(limit).
		Find(&segments).Error; err != nil {
		return nil, err
	}
	return segments, nil
}
