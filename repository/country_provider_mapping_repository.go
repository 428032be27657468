package repository

import (
	"context"

	"github.com/udyogsetu/messaging-core/models"
	"github.com/udyogsetu/messaging-core/utils"
	"gorm.io/gorm"
)

// CountryProviderMappingRepositoryImpl implements CountryProviderMappingRepository
type CountryProviderMappingRepositoryImpl struct {
	*BaseRepository[models.CountryProviderMapping, models.CountryProviderMappingFilter]
}

func NewCountryProviderMappingRepository(db *gorm.DB) CountryProviderMappingRepository {
	return &CountryProviderMappingRepositoryImpl{BaseRepository: NewBaseRepository[models.CountryProviderMapping, models.CountryProviderMappingFilter](db)}
}

// ListActive returns the live routing table rows, one per country
func (r *CountryProviderMappingRepositoryImpl) ListActive(ctx context.Context) ([]*models.CountryProviderMapping, error) {
	filter := models.CountryProviderMappingFilter{IsActive: utils.ToPtr(true)}
	return r.ByFilter(ctx, filter, "country ASC", 0, 0)
}

func (r *CountryProviderMappingRepositoryImpl) applyFilter(db *gorm.DB, f models.CountryProviderMappingFilter) *gorm.DB {
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

func (r *CountryProviderMappingRepositoryImpl) ByFilter(ctx context.Context, filter models.CountryProviderMappingFilter, orderBy string, limit, offset int) ([]*models.CountryProviderMapping, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CountryProviderMapping{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.CountryProviderMapping
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CountryProviderMappingRepositoryImpl) Count(ctx context.Context, filter models.CountryProviderMappingFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CountryProviderMapping{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
