package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"gorm.io/gorm"
)

// ErrFallbackEqualsSource is returned when a channel configuration points the
// fallback at the primary source. Rejected at configuration time, never
// allowed to reach the running state machines.
var ErrFallbackEqualsSource = errors.New("fallback_source_id must differ from source_id")

// ChannelRepository handles channel data operations.
type ChannelRepository struct {
	db *gorm.DB
}

// NewChannelRepository creates a new ChannelRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ChannelRepository: repository instance bound to db.
func NewChannelRepository(db *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// Create inserts a new channel record after validating its source wiring.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - channel: channel record to persist.
// Returns:
//   - error: non-nil if validation or the insert fails.
func (r *ChannelRepository) Create(ctx context.Context, channel *domain.Channel) error {
	if channel.FallbackSourceID != "" && channel.FallbackSourceID == channel.SourceID {
		return ErrFallbackEqualsSource
	}
	return r.db.WithContext(ctx).Create(channel).Error
}

// GetByID retrieves a channel by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: channel ID.
// Returns:
//   - *domain.Channel: channel record if found.
//   - error: non-nil if lookup fails.
func (r *ChannelRepository) GetByID(ctx context.Context, id string) (*domain.Channel, error) {
	var channel domain.Channel
	if err := r.db.WithContext(ctx).First(&channel, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &channel, nil
}

// GetBySlug retrieves a channel by its slug.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - slug: unique channel slug.
// Returns:
//   - *domain.Channel: channel record if found.
//   - error: non-nil if lookup fails.
func (r *ChannelRepository) GetBySlug(ctx context.Context, slug string) (*domain.Channel, error) {
	var channel domain.Channel
	if err := r.db.WithContext(ctx).First(&channel, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &channel, nil
}

// List retrieves channels with pagination and optional status filter.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - status: channel status to filter by; empty means all.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.Channel: matching channel records.
//   - error: non-nil if the query fails.
func (r *ChannelRepository) List(ctx context.Context, status domain.ChannelStatus, limit, offset int) ([]domain.Channel, error) {
	var channels []domain.Channel
	query := r.db.WithContext(ctx)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.
		Where("is_active = ?", true).
		Limit(limit).
		Offset(offset).
		Order("priority DESC, name").
		Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

// ListReferencingSource retrieves active channels whose primary or fallback is
// the given source.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - sourceID: source to match.
// Returns:
//   - []domain.Channel: matching channel records.
//   - error: non-nil if the query fails.
func (r *ChannelRepository) ListReferencingSource(ctx context.Context, sourceID string) ([]domain.Channel, error) {
	var channels []domain.Channel
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND (source_id = ? OR fallback_source_id = ?)", true, sourceID, sourceID).
		Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

// UpdateStatus transitions a channel to a new status, conditional on the
// expected current status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: channel ID.
//   - from: expected current status.
//   - to: target status.
// Returns:
//   - bool: true if the row was updated.
//   - error: non-nil if the update fails.
func (r *ChannelRepository) UpdateStatus(ctx context.Context, id string, from, to domain.ChannelStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Channel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetActiveSource records which source the channel is currently playing from.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: channel ID.
//   - sourceID: new active source.
// Returns:
//   - error: non-nil if the update fails.
func (r *ChannelRepository) SetActiveSource(ctx context.Context, id, sourceID string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Channel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"active_source_id": sourceID, "updated_at": time.Now()}).Error
}

// ReassignSource validates and updates a channel's source wiring.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: channel ID.
//   - sourceID: new primary source.
//   - fallbackID: new fallback source; empty clears it.
// Returns:
//   - error: non-nil if validation or the update fails.
func (r *ChannelRepository) ReassignSource(ctx context.Context, id, sourceID, fallbackID string) error {
	if fallbackID != "" && fallbackID == sourceID {
		return ErrFallbackEqualsSource
	}
	return r.db.WithContext(ctx).
		Model(&domain.Channel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"source_id":          sourceID,
			"fallback_source_id": fallbackID,
			"updated_at":         time.Now(),
		}).Error
}

// Deactivate soft-deletes a channel.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: channel ID.
// Returns:
//   - error: non-nil if the update fails.
func (r *ChannelRepository) Deactivate(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Channel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("channel %s not found", id)
	}
	return nil
}
