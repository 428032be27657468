package models

import (
	"time"
)

// HealthStatus summarizes a provider's recent probe history
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
)

// ProviderHealth is the latest probe outcome per vendor. Advisory state:
// operators read it when tuning the routing table; the router does not
// consult it mid-selection.
type ProviderHealth struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	Provider ProviderType `gorm:"type:varchar(20);not null;uniqueIndex" json:"provider"`
	Status   HealthStatus `gorm:"type:varchar(20);not null;default:'healthy'" json:"status"`

	LastCheckAt         time.Time `gorm:"not null" json:"last_check_at"`
	ConsecutiveFailures int       `gorm:"not null;default:0" json:"consecutive_failures"`
	AverageLatencyMs    int64     `gorm:"not null;default:0" json:"average_latency_ms"`
	ErrorMessage        string    `gorm:"type:text" json:"error_message,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (ProviderHealth) TableName() string { return "provider_health" }

// ProviderHealthFilter provides filter fields for repository queries
type ProviderHealthFilter struct {
	ID       *uint
	Provider *ProviderType
	Status   *HealthStatus
}
