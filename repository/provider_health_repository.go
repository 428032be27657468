package repository

import (
	"context"
	"errors"

	"github.com/udyogsetu/messaging-core/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProviderHealthRepositoryImpl implements ProviderHealthRepository
type ProviderHealthRepositoryImpl struct {
	*BaseRepository[models.ProviderHealth, models.ProviderHealthFilter]
}

func NewProviderHealthRepository(db *gorm.DB) ProviderHealthRepository {
	return &ProviderHealthRepositoryImpl{BaseRepository: NewBaseRepository[models.ProviderHealth, models.ProviderHealthFilter](db)}
}

func (r *ProviderHealthRepositoryImpl) ByProvider(ctx context.Context, provider models.ProviderType) (*models.ProviderHealth, error) {
	db := r.getDB(ctx)
	var row models.ProviderHealth
	err := db.Where("provider = ?", provider).Last(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Upsert writes the latest probe outcome, one row per provider
func (r *ProviderHealthRepositoryImpl) Upsert(ctx context.Context, health *models.ProviderHealth) error {
	db := r.getDB(ctx)
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "last_check_at", "consecutive_failures",
			"average_latency_ms", "error_message", "updated_at",
		}),
	}).Create(health).Error
}

func (r *ProviderHealthRepositoryImpl) ListAll(ctx context.Context) ([]*models.ProviderHealth, error) {
	return r.ByFilter(ctx, models.ProviderHealthFilter{}, "provider ASC", 0, 0)
}

func (r *ProviderHealthRepositoryImpl) applyFilter(db *gorm.DB, f models.ProviderHealthFilter) *gorm.DB {
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

func (r *ProviderHealthRepositoryImpl) ByFilter(ctx context.Context, filter models.ProviderHealthFilter, orderBy string, limit, offset int) ([]*models.ProviderHealth, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ProviderHealth{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ProviderHealth
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ProviderHealthRepositoryImpl) Count(ctx context.Context, filter models.ProviderHealthFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ProviderHealth{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
