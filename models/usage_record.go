package models

import (
	"time"
)

// UsageRecord aggregates per-tenant messaging usage for one calendar month.
// One row per (tenant, year_month); counters are bumped with atomic
// column-level increments, never read-modify-write in application code.
type UsageRecord struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	TenantID  uint         `gorm:"not null;uniqueIndex:idx_usage_tenant_month" json:"tenant_id"`
	YearMonth string       `gorm:"type:varchar(7);not null;uniqueIndex:idx_usage_tenant_month" json:"year_month"`
	Country   string       `gorm:"type:varchar(50)" json:"country"`
	Provider  ProviderType `gorm:"type:varchar(20)" json:"provider"`

	MessagesSent      int64 `gorm:"not null;default:0" json:"messages_sent"`
	MessagesDelivered int64 `gorm:"not null;default:0" json:"messages_delivered"`
	MessagesRead      int64 `gorm:"not null;default:0" json:"messages_read"`
	MessagesFailed    int64 `gorm:"not null;default:0" json:"messages_failed"`
	TemplateMessages  int64 `gorm:"not null;default:0" json:"template_messages"`
	SessionMessages   int64 `gorm:"not null;default:0" json:"session_messages"`

	QuotaUsed  int64 `gorm:"not null;default:0" json:"quota_used"`
	QuotaLimit int64 `gorm:"not null;default:0" json:"quota_limit"`

	TotalCostPaise int64 `gorm:"not null;default:0" json:"total_cost_paise"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (UsageRecord) TableName() string { return "usage_records" }

// QuotaExhausted reports whether this month's allowance is spent
func (u *UsageRecord) QuotaExhausted() bool {
	return u.QuotaLimit > 0 && u.QuotaUsed >= u.QuotaLimit
}

// UsageRecordFilter provides filter fields for repository queries
type UsageRecordFilter struct {
	ID        *uint
	TenantID  *uint
	YearMonth *string
	Provider  *ProviderType
}
