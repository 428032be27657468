// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/udyogsetu/messaging-core/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// TenantRepository defines operations on the tenant table slice the
// messaging core reads (country resolution, quota override)
type TenantRepository interface {
	Repository[models.Tenant, models.TenantFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Tenant, error)
}

// MessageRepository defines operations for outbound messages
type MessageRepository interface {
	Repository[models.Message, models.MessageFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Message, error)
	ByProviderMessageID(ctx context.Context, provider models.ProviderType, providerMessageID string) (*models.Message, error)
}

// MessageTemplateRepository defines operations for message templates
type MessageTemplateRepository interface {
	Repository[models.MessageTemplate, models.MessageTemplateFilter]
	ByTenantAndName(ctx context.Context, tenantID uint, name string) (*models.MessageTemplate, error)
	ListPending(ctx context.Context, limit int) ([]*models.MessageTemplate, error)
	ByProviderTemplateID(ctx context.Context, provider models.ProviderType, providerTemplateID string) (*models.MessageTemplate, error)
}

// OptInRepository defines operations for consent records
type OptInRepository interface {
	Repository[models.OptIn, models.OptInFilter]
	ByTenantAndPhone(ctx context.Context, tenantID uint, phoneNumber string) (*models.OptIn, error)
	RecordMessageSent(ctx context.Context, optInID uint, at time.Time) error
	Deactivate(ctx context.Context, tenantID uint, phoneNumber string, at time.Time) error
}

// UsageRecordRepository defines operations for monthly usage aggregates.
// All increments are atomic column-level updates so concurrent sends for
// the same tenant/month never lose counts.
type UsageRecordRepository interface {
	Repository[models.UsageRecord, models.UsageRecordFilter]
	ByTenantAndMonth(ctx context.Context, tenantID uint, yearMonth string) (*models.UsageRecord, error)
	GetOrCreate(ctx context.Context, tenantID uint, yearMonth, country string, provider models.ProviderType, quotaLimit int64) (*models.UsageRecord, error)
	IncrementSent(ctx context.Context, recordID uint, isTemplate bool, costPaise int64) error
	IncrementDelivered(ctx context.Context, recordID uint) error
	IncrementRead(ctx context.Context, recordID uint) error
	IncrementFailed(ctx context.Context, recordID uint) error
}

// ProviderHealthRepository defines operations for provider health snapshots
type ProviderHealthRepository interface {
	Repository[models.ProviderHealth, models.ProviderHealthFilter]
	ByProvider(ctx context.Context, provider models.ProviderType) (*models.ProviderHealth, error)
	Upsert(ctx context.Context, health *models.ProviderHealth) error
	ListAll(ctx context.Context) ([]*models.ProviderHealth, error)
}

// WebhookEventRepository defines operations for webhook audit rows
type WebhookEventRepository interface {
	Repository[models.WebhookEvent, models.WebhookEventFilter]
	MarkStatus(ctx context.Context, eventID uuid.UUID, status models.WebhookEventStatus, eventType, errorMessage string) error
}

// CountryProviderMappingRepository defines operations for the routing table
type CountryProviderMappingRepository interface {
	Repository[models.CountryProviderMapping, models.CountryProviderMappingFilter]
	ListActive(ctx context.Context) ([]*models.CountryProviderMapping, error)
}
