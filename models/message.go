package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageStatus represents the delivery state of an outbound message
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// Rank orders delivery states so webhook transitions only ever move
// forward; a late "sent" callback can never regress a "read" message.
// Failed ranks highest so nothing overwrites it once recorded; entry
// into failed is allowed only from states before delivery.
func (s MessageStatus) Rank() int {
	switch s {
	case MessageStatusPending:
		return 0
	case MessageStatusSent:
		return 1
	case MessageStatusDelivered:
		return 2
	case MessageStatusRead:
		return 3
	case MessageStatusFailed:
		return 4
	default:
		return -1
	}
}

// MessageType represents the kind of outbound message
type MessageType string

const (
	MessageTypeTemplate    MessageType = "template"
	MessageTypeText        MessageType = "text"
	MessageTypeMedia       MessageType = "media"
	MessageTypeInteractive MessageType = "interactive"
)

// IsValidMessageType reports whether s names a supported message type
func IsValidMessageType(s string) bool {
	switch MessageType(s) {
	case MessageTypeTemplate, MessageTypeText, MessageTypeMedia, MessageTypeInteractive:
		return true
	}
	return false
}

// Message records a single outbound send attempt and its delivery lifecycle.
// The dispatch flow creates the row; webhook events mutate status forward.
type Message struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`

	TenantID uint         `gorm:"not null;index:idx_messages_tenant_id" json:"tenant_id"`
	Provider ProviderType `gorm:"type:varchar(20);not null;index:idx_messages_provider" json:"provider"`

	// Vendor-assigned id, set once the vendor accepts the send; webhook
	// callbacks are matched against this column
	ProviderMessageID *string `gorm:"type:varchar(255);index:idx_messages_provider_message_id" json:"provider_message_id,omitempty"`

	TemplateID *uint `gorm:"index" json:"template_id,omitempty"`

	ToPhoneNumber  string          `gorm:"type:varchar(20);not null;index:idx_messages_to_phone" json:"to_phone_number"`
	Type           MessageType     `gorm:"type:varchar(20);not null" json:"type"`
	Content        string          `gorm:"type:text" json:"content"`
	TemplateParams json.RawMessage `gorm:"type:jsonb" json:"template_params,omitempty"`
	MediaURL       string          `gorm:"type:text" json:"media_url,omitempty"`
	Country        string          `gorm:"type:varchar(50);not null" json:"country"`

	Status      MessageStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_messages_status" json:"status"`
	SentAt      *time.Time    `json:"sent_at,omitempty"`
	DeliveredAt *time.Time    `json:"delivered_at,omitempty"`
	ReadAt      *time.Time    `json:"read_at,omitempty"`
	FailedAt    *time.Time    `json:"failed_at,omitempty"`

	ErrorCode    string `gorm:"type:varchar(50)" json:"error_code,omitempty"`
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	CostPaise int64 `gorm:"not null;default:0" json:"cost_paise"`

	Metadata json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_messages_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Message) TableName() string { return "messages" }

// MessageFilter provides filter fields for repository queries
type MessageFilter struct {
	ID                *uint
	TenantID          *uint
	Provider          *ProviderType
	ProviderMessageID *string
	ToPhoneNumber     *string
	Status            *MessageStatus
	CreatedAfter      *time.Time
	CreatedBefore     *time.Time
}
