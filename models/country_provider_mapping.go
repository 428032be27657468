package models

import (
	"time"
)

// CountryProviderMapping routes sends for one country to a primary vendor
// with an optional fallback. Loaded at startup and on explicit reload;
// every supported country has exactly one mapping.
type CountryProviderMapping struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	Country          string        `gorm:"type:varchar(50);not null;uniqueIndex" json:"country"`
	PrimaryProvider  ProviderType  `gorm:"type:varchar(20);not null" json:"primary_provider"`
	FallbackProvider *ProviderType `gorm:"type:varchar(20)" json:"fallback_provider,omitempty"`

	MonthlyQuota int64  `gorm:"not null;default:0" json:"monthly_quota"`
	SenderNumber string `gorm:"type:varchar(20)" json:"sender_number,omitempty"`

	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (CountryProviderMapping) TableName() string { return "country_provider_mappings" }

// CountryProviderMappingFilter provides filter fields for repository queries
type CountryProviderMappingFilter struct {
	ID       *uint
	Country  *string
	IsActive *bool
}
