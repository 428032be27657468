package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/udyogsetu/messaging-core/models"
	"github.com/udyogsetu/messaging-core/utils"
	"gorm.io/gorm"
)

// WebhookEventRepositoryImpl implements WebhookEventRepository
type WebhookEventRepositoryImpl struct {
	*BaseRepository[models.WebhookEvent, models.WebhookEventFilter]
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &WebhookEventRepositoryImpl{BaseRepository: NewBaseRepository[models.WebhookEvent, models.WebhookEventFilter](db)}
}

// MarkStatus records the processing outcome on an existing audit row
func (r *WebhookEventRepositoryImpl) MarkStatus(ctx context.Context, eventID uuid.UUID, status models.WebhookEventStatus, eventType, errorMessage string) error {
	db := r.getDB(ctx)
	return db.Model(&models.WebhookEvent{}).
		Where("event_id = ?", eventID).
		UpdateColumns(map[string]any{
			"status":        status,
			"event_type":    eventType,
			"error_message": errorMessage,
			"updated_at":    utils.UTCNow(),
		}).Error
}

func (r *WebhookEventRepositoryImpl) applyFilter(db *gorm.DB, f models.WebhookEventFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Provider != nil {
		db = db.Where("provider = ?", *f.Provider)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	return db
}

func (r *WebhookEventRepositoryImpl) ByFilter(ctx context.Context, filter models.WebhookEventFilter, orderBy string, limit, offset int) ([]*models.WebhookEvent, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.WebhookEvent{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.WebhookEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *WebhookEventRepositoryImpl) Count(ctx context.Context, filter models.WebhookEventFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.WebhookEvent{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
