package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the minimal slice of the platform's tenant table the messaging
// core needs: identity, country for routing, and an optional quota override.
type Tenant struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`

	Name    string `gorm:"type:varchar(255);not null" json:"name"`
	Country string `gorm:"type:varchar(50)" json:"country"`

	// Overrides the country mapping quota when positive
	MonthlyQuotaOverride int64 `gorm:"not null;default:0" json:"monthly_quota_override"`

	IsActive bool `gorm:"not null;default:true;index:idx_tenants_is_active" json:"is_active"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Tenant) TableName() string { return "tenants" }

// TenantFilter provides filter fields for repository queries
type TenantFilter struct {
	ID       *uint
	Country  *string
	IsActive *bool
}
