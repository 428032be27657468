package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookEventStatus tracks processing of an inbound vendor callback
type WebhookEventStatus string

const (
	WebhookEventStatusPending   WebhookEventStatus = "pending"
	WebhookEventStatusProcessed WebhookEventStatus = "processed"
	WebhookEventStatusIgnored   WebhookEventStatus = "ignored"
	WebhookEventStatusFailed    WebhookEventStatus = "failed"
)

// WebhookEvent is the audit row persisted for every accepted vendor
// callback before any processing happens, so the trail exists even when
// downstream normalization fails.
type WebhookEvent struct {
	ID      uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"event_id"`

	Provider   ProviderType       `gorm:"type:varchar(20);not null;index:idx_webhook_events_provider" json:"provider"`
	RawPayload json.RawMessage    `gorm:"type:jsonb;not null" json:"raw_payload"`
	Status     WebhookEventStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_webhook_events_status" json:"status"`

	EventType    string `gorm:"type:varchar(50)" json:"event_type,omitempty"`
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_webhook_events_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

// WebhookEventFilter provides filter fields for repository queries
type WebhookEventFilter struct {
	ID       *uint
	Provider *ProviderType
	Status   *WebhookEventStatus
}
