package repository

import (
	"context"
	"errors"

	"github.com/udyogsetu/messaging-core/models"
	"github.com/udyogsetu/messaging-core/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageRecordRepositoryImpl implements UsageRecordRepository
type UsageRecordRepositoryImpl struct {
	*BaseRepository[models.UsageRecord, models.UsageRecordFilter]
}

func NewUsageRecordRepository(db *gorm.DB) UsageRecordRepository {
	return &UsageRecordRepositoryImpl{BaseRepository: NewBaseRepository[models.UsageRecord, models.UsageRecordFilter](db)}
}

func (r *UsageRecordRepositoryImpl) ByTenantAndMonth(ctx context.Context, tenantID uint, yearMonth string) (*models.UsageRecord, error) {
	db := r.getDB(ctx)
	var row models.UsageRecord
	err := db.Where("tenant_id = ? AND year_month = ?", tenantID, yearMonth).Last(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetOrCreate returns this month's record, inserting a zeroed one if absent.
// The unique (tenant_id, year_month) index plus DoNothing keeps concurrent
// first-sends of the month from racing into duplicates.
func (r *UsageRecordRepositoryImpl) GetOrCreate(ctx context.Context, tenantID uint, yearMonth, country string, provider models.ProviderType, quotaLimit int64) (*models.UsageRecord, error) {
	existing, err := r.ByTenantAndMonth(ctx, tenantID, yearMonth)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	db := r.getDB(ctx)
	record := &models.UsageRecord{
		TenantID:   tenantID,
		YearMonth:  yearMonth,
		Country:    country,
		Provider:   provider,
		QuotaLimit: quotaLimit,
		CreatedAt:  utils.UTCNow(),
		UpdatedAt:  utils.UTCNow(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "year_month"}},
		DoNothing: true,
	}).Create(record).Error; err != nil {
		return nil, err
	}
	// Re-read: either our insert or the concurrent winner
	return r.ByTenantAndMonth(ctx, tenantID, yearMonth)
}

func (r *UsageRecordRepositoryImpl) increment(ctx context.Context, recordID uint, columns map[string]any) error {
	db := r.getDB(ctx)
	columns["updated_at"] = utils.UTCNow()
	return db.Model(&models.UsageRecord{}).Where("id = ?", recordID).UpdateColumns(columns).Error
}

// IncrementSent bumps sent/quota/cost counters in one atomic update
func (r *UsageRecordRepositoryImpl) IncrementSent(ctx context.Context, recordID uint, isTemplate bool, costPaise int64) error {
	columns := map[string]any{
		"messages_sent":    gorm.Expr("messages_sent + 1"),
		"quota_used":       gorm.Expr("quota_used + 1"),
		"total_cost_paise": gorm.Expr("total_cost_paise + ?", costPaise),
	}
	if isTemplate {
		columns["template_messages"] = gorm.Expr("template_messages + 1")
	} else {
		columns["session_messages"] = gorm.Expr("session_messages + 1")
	}
	return r.increment(ctx, recordID, columns)
}

func (r *UsageRecordRepositoryImpl) IncrementDelivered(ctx context.Context, recordID uint) error {
	return r.increment(ctx, recordID, map[string]any{
		"messages_delivered": gorm.Expr("messages_delivered + 1"),
	})
}

func (r *UsageRecordRepositoryImpl) IncrementRead(ctx context.Context, recordID uint) error {
	return r.increment(ctx, recordID, map[string]any{
		"messages_read": gorm.Expr("messages_read + 1"),
	})
}

func (r *UsageRecordRepositoryImpl) IncrementFailed(ctx context.Context, recordID uint) error {
	return r.increment(ctx, recordID, map[string]any{
		"messages_failed": gorm.Expr("messages_failed + 1"),
	})
}

func (r *UsageRecordRepositoryImpl) applyFilter(db *gorm.DB, f models.UsageRecordFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.TenantID != nil {
		db = db.Where("tenant_id = ?", *f.TenantID)
	}
	if f.YearMonth != nil {
		db = db.Where("year_month = ?", *f.YearMonth)
	}
	if f.Provider != nil {
		db = db.Where("provider = ?", *f.Provider)
	}
	return db
}

func (r *UsageRecordRepositoryImpl) ByFilter(ctx context.Context, filter models.UsageRecordFilter, orderBy string, limit, offset int) ([]*models.UsageRecord, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.UsageRecord{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.UsageRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *UsageRecordRepositoryImpl) Count(ctx context.Context, filter models.UsageRecordFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.UsageRecord{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
