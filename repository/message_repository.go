package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/udyogsetu/messaging-core/models"
	"gorm.io/gorm"
)

// MessageRepositoryImpl implements MessageRepository
type MessageRepositoryImpl struct {
	*BaseRepository[models.Message, models.MessageFilter]
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &MessageRepositoryImpl{BaseRepository: NewBaseRepository[models.Message, models.MessageFilter](db)}
}

func (r *MessageRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	db := r.getDB(ctx)
	var row models.Message
	if err := db.Where("uuid = ?", id).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ByProviderMessageID resolves the message a vendor callback refers to.
// Returns nil without error when no row matches: the callback may belong
// to a different environment's dataset.
func (r *MessageRepositoryImpl) ByProviderMessageID(ctx context.Context, provider models.ProviderType, providerMessageID string) (*models.Message, error) {
	db := r.getDB(ctx)
	var row models.Message
	err := db.Where("provider = ? AND provider_message_id = ?", provider, providerMessageID).Last(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *MessageRepositoryImpl) applyFilter(db *gorm.DB, f models.MessageFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.TenantID != nil {
		db = db.Where("tenant_id = ?", *f.TenantID)
	}
	if f.Provider != nil {
		db = db.Where("provider = ?", *f.Provider)
	}
	if f.ProviderMessageID != nil {
		db = db.Where("provider_message_id = ?", *f.ProviderMessageID)
	}
	if f.ToPhoneNumber != nil {
		db = db.Where("to_phone_number = ?", *f.ToPhoneNumber)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *MessageRepositoryImpl) ByFilter(ctx context.Context, filter models.MessageFilter, orderBy string, limit, offset int) ([]*models.Message, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Message{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Message
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MessageRepositoryImpl) Count(ctx context.Context, filter models.MessageFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Message{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
