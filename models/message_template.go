package models

import (
	"encoding/json"
	"time"
)

// TemplateStatus tracks a template through vendor approval.
// pending -> approved and pending -> rejected are the only transitions;
// both end states are terminal and re-submission creates a new row.
type TemplateStatus string

const (
	TemplateStatusPending  TemplateStatus = "pending"
	TemplateStatusApproved TemplateStatus = "approved"
	TemplateStatusRejected TemplateStatus = "rejected"
)

// TemplateCategory classifies the business intent of a template
type TemplateCategory string

const (
	TemplateCategoryUtility        TemplateCategory = "utility"
	TemplateCategoryMarketing      TemplateCategory = "marketing"
	TemplateCategoryAuthentication TemplateCategory = "authentication"
)

const (
	ButtonTypeQuickReply  = "quick_reply"
	ButtonTypeURL         = "url"
	ButtonTypePhoneNumber = "phone_number"
)

// TemplateButton is one quick-reply, URL or call button on a template
type TemplateButton struct {
	Type        string `json:"type"` // quick_reply, url, phone_number
	Text        string `json:"text"`
	URL         string `json:"url,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// MessageTemplate is a vendor-approved, parameterized message body.
// Body text carries numbered placeholders ({{1}}, {{2}}, ...).
type MessageTemplate struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	TenantID uint             `gorm:"not null;index:idx_templates_tenant_id" json:"tenant_id"`
	Name     string           `gorm:"type:varchar(255);not null;index:idx_templates_name" json:"name"`
	Category TemplateCategory `gorm:"type:varchar(30);not null;default:'utility'" json:"category"`
	Language string           `gorm:"type:varchar(10);not null;default:'en'" json:"language"`

	Provider           ProviderType `gorm:"type:varchar(20);not null" json:"provider"`
	ProviderTemplateID *string      `gorm:"type:varchar(255);index" json:"provider_template_id,omitempty"`

	HeaderText       string          `gorm:"type:text" json:"header_text,omitempty"`
	BodyText         string          `gorm:"type:text;not null" json:"body_text"`
	FooterText       string          `gorm:"type:text" json:"footer_text,omitempty"`
	Buttons          json.RawMessage `gorm:"type:jsonb" json:"buttons,omitempty"`
	PlaceholderCount int             `gorm:"not null;default:0" json:"placeholder_count"`

	Status          TemplateStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_templates_status" json:"status"`
	RejectionReason string         `gorm:"type:text" json:"rejection_reason,omitempty"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (MessageTemplate) TableName() string { return "message_templates" }

// ButtonList decodes the stored button JSON; nil when the template has none
func (t *MessageTemplate) ButtonList() ([]TemplateButton, error) {
	if len(t.Buttons) == 0 {
		return nil, nil
	}
	var buttons []TemplateButton
	if err := json.Unmarshal(t.Buttons, &buttons); err != nil {
		return nil, err
	}
	return buttons, nil
}

// MessageTemplateFilter provides filter fields for repository queries
type MessageTemplateFilter struct {
	ID       *uint
	TenantID *uint
	Name     *string
	Provider *ProviderType
	Status   *TemplateStatus
}
