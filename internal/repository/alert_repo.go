package repository

import (
	"context"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"gorm.io/gorm"
)

// AlertRepository handles operational alerts. Alerts are mutable only through
// the acknowledgment fields.
type AlertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new AlertRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *AlertRepository: repository instance bound to db.
func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts a new alert.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - alert: alert row to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

// List retrieves alerts with optional acknowledged filter, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - acknowledged: filter on acknowledgment state; nil means all.
//   - limit: maximum number of alerts to return.
//   - offset: number of alerts to skip.
// Returns:
//   - []domain.Alert: matching alerts.
//   - error: non-nil if the query fails.
func (r *AlertRepository) List(ctx context.Context, acknowledged *bool, limit, offset int) ([]domain.Alert, error) {
	var alerts []domain.Alert
	query := r.db.WithContext(ctx)
	if acknowledged != nil {
		query = query.Where("acknowledged = ?", *acknowledged)
	}
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// Acknowledge records who acknowledged an alert and when.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: alert ID.
//   - userID: acknowledging user.
// Returns:
//   - error: non-nil if the update fails.
func (r *AlertRepository) Acknowledge(ctx context.Context, id, userID string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Alert{}).
		Where("id = ? AND acknowledged = ?", id, false).
		Updates(map[string]interface{}{
			"acknowledged":    true,
			"acknowledged_by": userID,
			"acknowledged_at": time.Now(),
		}).Error
}
