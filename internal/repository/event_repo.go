package repository

import (
	"context"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventRepository handles the append-only channel event log. Events are never
// updated or deleted; the dedup key makes inserts idempotent under
// at-least-once delivery.
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new EventRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *EventRepository: repository instance bound to db.
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append inserts one immutable channel event. A duplicate dedup key is a
// no-op, so replaying a transition records it exactly once.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - event: event row to persist; DedupKey must be set.
// Returns:
//   - bool: true if a new row was inserted, false if deduplicated.
//   - error: non-nil if the insert fails.
func (r *EventRepository) Append(ctx context.Context, event *domain.ChannelEvent) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoNothing: true,
	}).Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListByChannel retrieves events for a channel, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - channelID: channel to query.
//   - limit: maximum number of events to return.
// Returns:
//   - []domain.ChannelEvent: matching events.
//   - error: non-nil if the query fails.
func (r *EventRepository) ListByChannel(ctx context.Context, channelID string, limit int) ([]domain.ChannelEvent, error) {
	var events []domain.ChannelEvent
	if err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// CountByType counts events of one type for a channel.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - channelID: channel to query.
//   - eventType: event type to count.
// Returns:
//   - int64: number of matching events.
//   - error: non-nil if the query fails.
func (r *EventRepository) CountByType(ctx context.Context, channelID string, eventType domain.EventType) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.ChannelEvent{}).
		Where("channel_id = ? AND event_type = ?", channelID, eventType).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// AuditRepository handles the append-only audit log.
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one immutable audit record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - entry: audit row to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *AuditRepository) Append(ctx context.Context, entry *domain.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByEntity retrieves audit records for one entity, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - entityType: entity kind (channel, source, ...).
//   - entityID: entity ID.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.AuditLog: matching records.
//   - error: non-nil if the query fails.
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]domain.AuditLog, error) {
	var entries []domain.AuditLog
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
