package repository

import (
	"context"
	"errors"
	"time"

	"github.com/udyogsetu/messaging-core/models"
	"gorm.io/gorm"
)

// OptInRepositoryImpl implements OptInRepository
type OptInRepositoryImpl struct {
	*BaseRepository[models.OptIn, models.OptInFilter]
}

func NewOptInRepository(db *gorm.DB) OptInRepository {
	return &OptInRepositoryImpl{BaseRepository: NewBaseRepository[models.OptIn, models.OptInFilter](db)}
}

func (r *OptInRepositoryImpl) ByTenantAndPhone(ctx context.Context, tenantID uint, phoneNumber string) (*models.OptIn, error) {
	db := r.getDB(ctx)
	var row models.OptIn
	err := db.Where("tenant_id = ? AND phone_number = ?", tenantID, phoneNumber).Last(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// RecordMessageSent bumps message_count and last_message_at atomically;
// the dispatch path calls this once per successful send
func (r *OptInRepositoryImpl) RecordMessageSent(ctx context.Context, optInID uint, at time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.OptIn{}).
		Where("id = ?", optInID).
		UpdateColumns(map[string]any{
			"message_count":   gorm.Expr("message_count + 1"),
			"last_message_at": at,
			"updated_at":      at,
		}).Error
}

// Deactivate marks the (tenant, phone) consent inactive without deleting
// the row, so a later opt-in reactivates the same record
func (r *OptInRepositoryImpl) Deactivate(ctx context.Context, tenantID uint, phoneNumber string, at time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.OptIn{}).
		Where("tenant_id = ? AND phone_number = ?", tenantID, phoneNumber).
		UpdateColumns(map[string]any{
			"is_active":  false,
			"opt_out_at": at,
			"updated_at": at,
		}).Error
}

func (r *OptInRepositoryImpl) applyFilter(db *gorm.DB, f models.OptInFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.TenantID != nil {
		db = db.Where("tenant_id = ?", *f.TenantID)
	}
	if f.PhoneNumber != nil {
		db = db.Where("phone_number = ?", *f.PhoneNumber)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	return db
}

func (r *OptInRepositoryImpl) ByFilter(ctx context.Context, filter models.OptInFilter, orderBy string, limit, offset int) ([]*models.OptIn, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.OptIn{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.OptIn
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *OptInRepositoryImpl) Count(ctx context.Context, filter models.OptInFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.OptIn{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
