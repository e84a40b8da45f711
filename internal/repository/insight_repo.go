package repository

import (
	"context"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"gorm.io/gorm"
)

// InsightRepository handles operator-facing AI insights. Insights are
// flag-only mutable: only is_read and action_taken change after creation.
type InsightRepository struct {
	db *gorm.DB
}

// NewInsightRepository creates a new InsightRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *InsightRepository: repository instance bound to db.
func NewInsightRepository(db *gorm.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

// Create inserts a new insight.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - insight: insight row to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *InsightRepository) Create(ctx context.Context, insight *domain.AIInsight) error {
	return r.db.WithContext(ctx).Create(insight).Error
}

// GetByID retrieves an insight by its ID.
func (r *InsightRepository) GetByID(ctx context.Context, id string) (*domain.AIInsight, error) {
	var insight domain.AIInsight
	if err := r.db.WithContext(ctx).First(&insight, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &insight, nil
}

// ListByChannel retrieves unexpired insights for a channel, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - channelID: channel to query.
//   - limit: maximum number of insights to return.
//   - offset: number of insights to skip.
// Returns:
//   - []domain.AIInsight: matching insights.
//   - error: non-nil if the query fails.
func (r *InsightRepository) ListByChannel(ctx context.Context, channelID string, limit, offset int) ([]domain.AIInsight, error) {
	var insights []domain.AIInsight
	if err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&insights).Error; err != nil {
		return nil, err
	}
	return insights, nil
}

// MarkRead sets the is_read flag on an insight.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: insight ID.
// Returns:
//   - error: non-nil if the update fails.
func (r *InsightRepository) MarkRead(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&domain.AIInsight{}).
		Where("id = ?", id).
		Update("is_read", true).Error
}

// MarkActionTaken sets the action_taken flag on an actionable insight.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: insight ID.
// Returns:
//   - error: non-nil if the update fails.
func (r *InsightRepository) MarkActionTaken(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&domain.AIInsight{}).
		Where("id = ? AND is_actionable = ?", id, true).
		Update("action_taken", true).Error
}
