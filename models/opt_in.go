package models

import (
	"time"
)

// OptIn records consent from a phone number to receive messages from a
// tenant. One logical record per (tenant, phone); re-opting-in after an
// opt-out reactivates the same row rather than creating a duplicate.
type OptIn struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	TenantID    uint   `gorm:"not null;uniqueIndex:idx_opt_ins_tenant_phone" json:"tenant_id"`
	PhoneNumber string `gorm:"type:varchar(20);not null;uniqueIndex:idx_opt_ins_tenant_phone" json:"phone_number"`
	CountryCode string `gorm:"type:varchar(10)" json:"country_code"`

	IsActive bool       `gorm:"not null;default:true;index:idx_opt_ins_is_active" json:"is_active"`
	OptInAt  time.Time  `gorm:"not null" json:"opt_in_at"`
	OptOutAt *time.Time `json:"opt_out_at,omitempty"`

	MessageCount  int64      `gorm:"not null;default:0" json:"message_count"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (OptIn) TableName() string { return "opt_ins" }

// OptInFilter provides filter fields for repository queries
type OptInFilter struct {
	ID          *uint
	TenantID    *uint
	PhoneNumber *string
	IsActive    *bool
}
