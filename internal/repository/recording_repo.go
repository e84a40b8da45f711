package repository

import (
	"context"
	"errors"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"gorm.io/gorm"
)

// ErrRecordingOpen is returned when opening a recording for a channel that
// already has one in recording status.
var ErrRecordingOpen = errors.New("channel already has an open recording")

// RecordingRepository handles recording and media segment data operations.
type RecordingRepository struct {
	db *gorm.DB
}

// NewRecordingRepository creates a new RecordingRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *RecordingRepository: repository instance bound to db.
func NewRecordingRepository(db *gorm.DB) *RecordingRepository {
	return &RecordingRepository{db: db}
}

// Open creates a recording row in recording status. The insert runs inside a
// transaction that first checks no other recording is open for the channel,
// enforcing the at-most-one-open invariant.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - recording: recording row to persist; status is forced to recording.
// Returns:
//   - error: ErrRecordingOpen if one is already open, otherwise insert errors.
func (r *RecordingRepository) Open(ctx context.Context, recording *domain.Recording) error {
	recording.Status = domain.RecordingStatusRecording
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Recording{}).
			Where("channel_id = ? AND status = ?", recording.ChannelID, domain.RecordingStatusRecording).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrRecordingOpen
		}
		return tx.Create(recording).Error
	})
}

// GetOpen retrieves the open recording for a channel, if any.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - channelID: channel to query.
// Returns:
//   - *domain.Recording: open recording or nil when none exists.
//   - error: non-nil if the query fails.
func (r *RecordingRepository) GetOpen(ctx context.Context, channelID string) (*domain.Recording, error) {
	var recording domain.Recording
	err := r.db.WithContext(ctx).
		First(&recording, "channel_id = ? AND status = ?", channelID, domain.RecordingStatusRecording).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &recording, nil
}

// GetByID retrieves a recording by its ID.
func (r *RecordingRepository) GetByID(ctx context.Context, id string) (*domain.Recording, error) {
	var recording domain.Recording
	if err := r.db.WithContext(ctx).First(&recording, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &recording, nil
}

// Close finalizes an open recording with its end time, duration and file
// size. Conditional on the row still being open so a double close is a no-op.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: recording ID.
//   - status: terminal status, completed or failed.
//   - endedAt: end timestamp.
//   - durationSeconds: elapsed seconds since started_at.
//   - fileSizeBytes: final file size.
// Returns:
//   - bool: true if the row was closed by this call.
//   - error: non-nil if the update fails.
func (r *RecordingRepository) Close(ctx context.Context, id string, status domain.RecordingStatus, endedAt time.Time, durationSeconds int, fileSizeBytes int64) (bool, error) {
	if status != domain.RecordingStatusCompleted && status != domain.RecordingStatusFailed {
		return false, errors.New("recording close status must be completed or failed")
	}
	result := r.db.WithContext(ctx).
		Model(&domain.Recording{}).
		Where("id = ? AND status = ?", id, domain.RecordingStatusRecording).
		Updates(map[string]interface{}{
			"status":           status,
			"ended_at":         endedAt,
			"duration_seconds": durationSeconds,
			"file_size_bytes":  fileSizeBytes,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListByChannel retrieves recordings for a channel, newest first.
func (r *RecordingRepository) ListByChannel(ctx context.Context, channelID string, limit, offset int) ([]domain.Recording, error) {
	var recordings []domain.Recording
	if err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&recordings).Error; err != nil {
		return nil, err
	}
	return recordings, nil
}

// CountOpen counts recordings in recording status for a channel.
func (r *RecordingRepository) CountOpen(ctx context.Context, channelID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Recording{}).
		Where("channel_id = ? AND status = ?", channelID, domain.RecordingStatusRecording).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
