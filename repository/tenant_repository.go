package repository

import (
	"context"
	"errors"

	"github.com/udyogsetu/messaging-core/models"
	"gorm.io/gorm"
)

// TenantRepositoryImpl implements TenantRepository
type TenantRepositoryImpl struct {
	*BaseRepository[models.Tenant, models.TenantFilter]
}

func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &TenantRepositoryImpl{BaseRepository: NewBaseRepository[models.Tenant, models.TenantFilter](db)}
}

func (r *TenantRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Tenant, error) {
	db := r.getDB(ctx)
	var row models.Tenant
	if err := db.Where("uuid = ?", uuid).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *TenantRepositoryImpl) applyFilter(db *gorm.DB, f models.TenantFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Country != nil {
		db = db.Where("country = ?", *f.Country)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	return db
}

func (r *TenantRepositoryImpl) ByFilter(ctx context.Context, filter models.TenantFilter, orderBy string, limit, offset int) ([]*models.Tenant, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Tenant{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Tenant
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *TenantRepositoryImpl) Count(ctx context.Context, filter models.TenantFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Tenant{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
