package repository

import (
	"context"
	"errors"

	"github.com/udyogsetu/messaging-core/models"
	"gorm.io/gorm"
)

// MessageTemplateRepositoryImpl implements MessageTemplateRepository
type MessageTemplateRepositoryImpl struct {
	*BaseRepository[models.MessageTemplate, models.MessageTemplateFilter]
}

func NewMessageTemplateRepository(db *gorm.DB) MessageTemplateRepository {
	return &MessageTemplateRepositoryImpl{BaseRepository: NewBaseRepository[models.MessageTemplate, models.MessageTemplateFilter](db)}
}

// ByTenantAndName returns the most recent template with the given name.
// Re-submissions create new rows, so Last picks the freshest attempt.
func (r *MessageTemplateRepositoryImpl) ByTenantAndName(ctx context.Context, tenantID uint, name string) (*models.MessageTemplate, error) {
	db := r.getDB(ctx)
	var row models.MessageTemplate
	err := db.Where("tenant_id = ? AND name = ?", tenantID, name).Last(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *MessageTemplateRepositoryImpl) ByProviderTemplateID(ctx context.Context, provider models.ProviderType, providerTemplateID string) (*models.MessageTemplate, error) {
	db := r.getDB(ctx)
	var row models.MessageTemplate
	err := db.Where("provider = ? AND provider_template_id = ?", provider, providerTemplateID).Last(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListPending returns templates still awaiting vendor review, oldest first,
// for the status-sync scheduler
func (r *MessageTemplateRepositoryImpl) ListPending(ctx context.Context, limit int) ([]*models.MessageTemplate, error) {
	filter := models.MessageTemplateFilter{Status: (*models.TemplateStatus)(strPtr(string(models.TemplateStatusPending)))}
	return r.ByFilter(ctx, filter, "id ASC", limit, 0)
}

func strPtr(s string) *string { return &s }

func (r *MessageTemplateRepositoryImpl) applyFilter(db *gorm.DB, f models.MessageTemplateFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.TenantID != nil {
		db = db.Where("tenant_id = ?", *f.TenantID)
	}
	if f.Name != nil {
		db = db.Where("name = ?", *f.Name)
	}
	if f.Provider != nil {
		db = db.Where("provider = ?", *f.Provider)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	return db
}

func (r *MessageTemplateRepositoryImpl) ByFilter(ctx context.Context, filter models.MessageTemplateFilter, orderBy string, limit, offset int) ([]*models.MessageTemplate, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.MessageTemplate{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.MessageTemplate
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MessageTemplateRepositoryImpl) Count(ctx context.Context, filter models.MessageTemplateFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.MessageTemplate{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
