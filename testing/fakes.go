package testing

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/udyogsetu/messaging-core/models"
)

// In-memory repository fakes for flow-level unit tests. They mirror the
// gorm repositories' semantics: lookups that match nothing return
// (nil, nil), Save assigns the next ID, Update replaces by ID.

// FakeTenantRepo is an in-memory TenantRepository
type FakeTenantRepo struct {
	Tenants []*models.Tenant
}

func (r *FakeTenantRepo) ByID(_ context.Context, id uint) (*models.Tenant, error) {
	for _, t := range r.Tenants {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (r *FakeTenantRepo) ByUUID(_ context.Context, id string) (*models.Tenant, error) {
	for _, t := range r.Tenants {
		if t.UUID.String() == id {
			return t, nil
		}
	}
	return nil, nil
}

func (r *FakeTenantRepo) ByFilter(_ context.Context, filter models.TenantFilter, _ string, _, _ int) ([]*models.Tenant, error) {
	var out []*models.Tenant
	for _, t := range r.Tenants {
		if filter.ID != nil && t.ID != *filter.ID {
			continue
		}
		if filter.Country != nil && t.Country != *filter.Country {
			continue
		}
		if filter.IsActive != nil && t.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *FakeTenantRepo) Save(_ context.Context, t *models.Tenant) error {
	t.ID = uint(len(r.Tenants) + 1)
	r.Tenants = append(r.Tenants, t)
	return nil
}

func (r *FakeTenantRepo) Update(_ context.Context, t *models.Tenant) error {
	for i, existing := range r.Tenants {
		if existing.ID == t.ID {
			r.Tenants[i] = t
			return nil
		}
	}
	return nil
}

func (r *FakeTenantRepo) Count(ctx context.Context, filter models.TenantFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

// FakeMessageRepo is an in-memory MessageRepository
type FakeMessageRepo struct {
	Messages []*models.Message
}

func (r *FakeMessageRepo) ByID(_ context.Context, id uint) (*models.Message, error) {
	for _, m := range r.Messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (r *FakeMessageRepo) ByUUID(_ context.Context, id uuid.UUID) (*models.Message, error) {
	for _, m := range r.Messages {
		if m.UUID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (r *FakeMessageRepo) ByProviderMessageID(_ context.Context, provider models.ProviderType, providerMessageID string) (*models.Message, error) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		m := r.Messages[i]
		if m.Provider == provider && m.ProviderMessageID != nil && *m.ProviderMessageID == providerMessageID {
			return m, nil
		}
	}
	return nil, nil
}

func (r *FakeMessageRepo) ByFilter(_ context.Context, filter models.MessageFilter, _ string, limit, offset int) ([]*models.Message, error) {
	var out []*models.Message
	for _, m := range r.Messages {
		if filter.ID != nil && m.ID != *filter.ID {
			continue
		}
		if filter.TenantID != nil && m.TenantID != *filter.TenantID {
			continue
		}
		if filter.Provider != nil && m.Provider != *filter.Provider {
			continue
		}
		if filter.ToPhoneNumber != nil && m.ToPhoneNumber != *filter.ToPhoneNumber {
			continue
		}
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		out = append(out, m)
	}
	return paginate(out, limit, offset), nil
}

func (r *FakeMessageRepo) Save(_ context.Context, m *models.Message) error {
	m.ID = uint(len(r.Messages) + 1)
	r.Messages = append(r.Messages, m)
	return nil
}

func (r *FakeMessageRepo) Update(_ context.Context, m *models.Message) error {
	for i, existing := range r.Messages {
		if existing.ID == m.ID {
			r.Messages[i] = m
			return nil
		}
	}
	return nil
}

func (r *FakeMessageRepo) Count(ctx context.Context, filter models.MessageFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

// FakeTemplateRepo is an in-memory MessageTemplateRepository
type FakeTemplateRepo struct {
	Templates []*models.MessageTemplate
}

func (r *FakeTemplateRepo) ByID(_ context.Context, id uint) (*models.MessageTemplate, error) {
	for _, t := range r.Templates {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (r *FakeTemplateRepo) ByTenantAndName(_ context.Context, tenantID uint, name string) (*models.MessageTemplate, error) {
	for i := len(r.Templates) - 1; i >= 0; i-- {
		t := r.Templates[i]
		if t.TenantID == tenantID && t.Name == name {
			return t, nil
		}
	}
	return nil, nil
}

func (r *FakeTemplateRepo) ByProviderTemplateID(_ context.Context, provider models.ProviderType, providerTemplateID string) (*models.MessageTemplate, error) {
	for i := len(r.Templates) - 1; i >= 0; i-- {
		t := r.Templates[i]
		if t.Provider == provider && t.ProviderTemplateID != nil && *t.ProviderTemplateID == providerTemplateID {
			return t, nil
		}
	}
	return nil, nil
}

func (r *FakeTemplateRepo) ListPending(_ context.Context, limit int) ([]*models.MessageTemplate, error) {
	var out []*models.MessageTemplate
	for _, t := range r.Templates {
		if t.Status == models.TemplateStatusPending && t.ProviderTemplateID != nil {
			out = append(out, t)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *FakeTemplateRepo) ByFilter(_ context.Context, filter models.MessageTemplateFilter, orderBy string, limit, offset int) ([]*models.MessageTemplate, error) {
	var out []*models.MessageTemplate
	for _, t := range r.Templates {
		if filter.ID != nil && t.ID != *filter.ID {
			continue
		}
		if filter.TenantID != nil && t.TenantID != *filter.TenantID {
			continue
		}
		if filter.Name != nil && t.Name != *filter.Name {
			continue
		}
		if filter.Provider != nil && t.Provider != *filter.Provider {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		out = append(out, t)
	}
	if orderBy == "id DESC" {
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	}
	return paginate(out, limit, offset), nil
}

func (r *FakeTemplateRepo) Save(_ context.Context, t *models.MessageTemplate) error {
	t.ID = uint(len(r.Templates) + 1)
	r.Templates = append(r.Templates, t)
	return nil
}

func (r *FakeTemplateRepo) Update(_ context.Context, t *models.MessageTemplate) error {
	for i, existing := range r.Templates {
		if existing.ID == t.ID {
			r.Templates[i] = t
			return nil
		}
	}
	return nil
}

func (r *FakeTemplateRepo) Count(ctx context.Context, filter models.MessageTemplateFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

// FakeOptInRepo is an in-memory OptInRepository
type FakeOptInRepo struct {
	OptIns []*models.OptIn
}

func (r *FakeOptInRepo) ByID(_ context.Context, id uint) (*models.OptIn, error) {
	for _, o := range r.OptIns {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, nil
}

func (r *FakeOptInRepo) ByTenantAndPhone(_ context.Context, tenantID uint, phoneNumber string) (*models.OptIn, error) {
	for _, o := range r.OptIns {
		if o.TenantID == tenantID && o.PhoneNumber == phoneNumber {
			return o, nil
		}
	}
	return nil, nil
}

func (r *FakeOptInRepo) RecordMessageSent(ctx context.Context, optInID uint, at time.Time) error {
	o, _ := r.ByID(ctx, optInID)
	if o != nil {
		o.MessageCount++
		o.LastMessageAt = &at
	}
	return nil
}

func (r *FakeOptInRepo) Deactivate(ctx context.Context, tenantID uint, phoneNumber string, at time.Time) error {
	o, _ := r.ByTenantAndPhone(ctx, tenantID, phoneNumber)
	if o != nil {
		o.IsActive = false
		o.OptOutAt = &at
	}
	return nil
}

func (r *FakeOptInRepo) ByFilter(_ context.Context, filter models.OptInFilter, _ string, limit, offset int) ([]*models.OptIn, error) {
	var out []*models.OptIn
	for _, o := range r.OptIns {
		if filter.ID != nil && o.ID != *filter.ID {
			continue
		}
		if filter.TenantID != nil && o.TenantID != *filter.TenantID {
			continue
		}
		if filter.PhoneNumber != nil && o.PhoneNumber != *filter.PhoneNumber {
			continue
		}
		if filter.IsActive != nil && o.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, o)
	}
	return paginate(out, limit, offset), nil
}

func (r *FakeOptInRepo) Save(_ context.Context, o *models.OptIn) error {
	o.ID = uint(len(r.OptIns) + 1)
	r.OptIns = append(r.OptIns, o)
	return nil
}

func (r *FakeOptInRepo) Update(_ context.Context, o *models.OptIn) error {
	for i, existing := range r.OptIns {
		if existing.ID == o.ID {
			r.OptIns[i] = o
			return nil
		}
	}
	return nil
}

func (r *FakeOptInRepo) Count(ctx context.Context, filter models.OptInFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

// FakeUsageRepo is an in-memory UsageRecordRepository
type FakeUsageRepo struct {
	Records []*models.UsageRecord
}

func (r *FakeUsageRepo) ByID(_ context.Context, id uint) (*models.UsageRecord, error) {
	for _, u := range r.Records {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (r *FakeUsageRepo) ByTenantAndMonth(_ context.Context, tenantID uint, yearMonth string) (*models.UsageRecord, error) {
	for _, u := range r.Records {
		if u.TenantID == tenantID && u.YearMonth == yearMonth {
			return u, nil
		}
	}
	return nil, nil
}

func (r *FakeUsageRepo) GetOrCreate(ctx context.Context, tenantID uint, yearMonth, country string, provider models.ProviderType, quotaLimit int64) (*models.UsageRecord, error) {
	if existing, _ := r.ByTenantAndMonth(ctx, tenantID, yearMonth); existing != nil {
		return existing, nil
	}
	record := &models.UsageRecord{
		TenantID:   tenantID,
		YearMonth:  yearMonth,
		Country:    country,
		Provider:   provider,
		QuotaLimit: quotaLimit,
	}
	return record, r.Save(ctx, record)
}

func (r *FakeUsageRepo) IncrementSent(ctx context.Context, recordID uint, isTemplate bool, costPaise int64) error {
	u, _ := r.ByID(ctx, recordID)
	if u != nil {
		u.MessagesSent++
		u.QuotaUsed++
		u.TotalCostPaise += costPaise
		if isTemplate {
			u.TemplateMessages++
		} else {
			u.SessionMessages++
		}
	}
	return nil
}

func (r *FakeUsageRepo) IncrementDelivered(ctx context.Context, recordID uint) error {
	if u, _ := r.ByID(ctx, recordID); u != nil {
		u.MessagesDelivered++
	}
	return nil
}

func (r *FakeUsageRepo) IncrementRead(ctx context.Context, recordID uint) error {
	if u, _ := r.ByID(ctx, recordID); u != nil {
		u.MessagesRead++
	}
	return nil
}

func (r *FakeUsageRepo) IncrementFailed(ctx context.Context, recordID uint) error {
	if u, _ := r.ByID(ctx, recordID); u != nil {
		u.MessagesFailed++
	}
	return nil
}

func (r *FakeUsageRepo) ByFilter(_ context.Context, filter models.UsageRecordFilter, _ string, limit, offset int) ([]*models.UsageRecord, error) {
	var out []*models.UsageRecord
	for _, u := range r.Records {
		if filter.ID != nil && u.ID != *filter.ID {
			continue
		}
		if filter.TenantID != nil && u.TenantID != *filter.TenantID {
			continue
		}
		if filter.YearMonth != nil && u.YearMonth != *filter.YearMonth {
			continue
		}
		if filter.Provider != nil && u.Provider != *filter.Provider {
			continue
		}
		out = append(out, u)
	}
	return paginate(out, limit, offset), nil
}

func (r *FakeUsageRepo) Save(_ context.Context, u *models.UsageRecord) error {
	u.ID = uint(len(r.Records) + 1)
	r.Records = append(r.Records, u)
	return nil
}

func (r *FakeUsageRepo) Update(_ context.Context, u *models.UsageRecord) error {
	for i, existing := range r.Records {
		if existing.ID == u.ID {
			r.Records[i] = u
			return nil
		}
	}
	return nil
}

func (r *FakeUsageRepo) Count(ctx context.Context, filter models.UsageRecordFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

// FakeWebhookEventRepo is an in-memory WebhookEventRepository
type FakeWebhookEventRepo struct {
	Events []*models.WebhookEvent
}

func (r *FakeWebhookEventRepo) ByID(_ context.Context, id uint) (*models.WebhookEvent, error) {
	for _, e := range r.Events {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (r *FakeWebhookEventRepo) MarkStatus(_ context.Context, eventID uuid.UUID, status models.WebhookEventStatus, eventType, errorMessage string) error {
	for _, e := range r.Events {
		if e.EventID == eventID {
			e.Status = status
			e.EventType = eventType
			e.ErrorMessage = errorMessage
			return nil
		}
	}
	return nil
}

func (r *FakeWebhookEventRepo) ByFilter(_ context.Context, filter models.WebhookEventFilter, _ string, limit, offset int) ([]*models.WebhookEvent, error) {
	var out []*models.WebhookEvent
	for _, e := range r.Events {
		if filter.ID != nil && e.ID != *filter.ID {
			continue
		}
		if filter.Provider != nil && e.Provider != *filter.Provider {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		out = append(out, e)
	}
	return paginate(out, limit, offset), nil
}

func (r *FakeWebhookEventRepo) Save(_ context.Context, e *models.WebhookEvent) error {
	e.ID = uint(len(r.Events) + 1)
	r.Events = append(r.Events, e)
	return nil
}

func (r *FakeWebhookEventRepo) Update(_ context.Context, e *models.WebhookEvent) error {
	for i, existing := range r.Events {
		if existing.ID == e.ID {
			r.Events[i] = e
			return nil
		}
	}
	return nil
}

func (r *FakeWebhookEventRepo) Count(ctx context.Context, filter models.WebhookEventFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

// FakeMappingRepo is an in-memory CountryProviderMappingRepository
type FakeMappingRepo struct {
	Mappings []*models.CountryProviderMapping
	ListErr  error
}

func (r *FakeMappingRepo) ByID(_ context.Context, id uint) (*models.CountryProviderMapping, error) {
	for _, m := range r.Mappings {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (r *FakeMappingRepo) ListActive(_ context.Context) ([]*models.CountryProviderMapping, error) {
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	var out []*models.CountryProviderMapping
	for _, m := range r.Mappings {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *FakeMappingRepo) ByFilter(_ context.Context, filter models.CountryProviderMappingFilter, _ string, limit, offset int) ([]*models.CountryProviderMapping, error) {
	var out []*models.CountryProviderMapping
	for _, m := range r.Mappings {
		if filter.ID != nil && m.ID != *filter.ID {
			continue
		}
		if filter.Country != nil && m.Country != *filter.Country {
			continue
		}
		if filter.IsActive != nil && m.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, m)
	}
	return paginate(out, limit, offset), nil
}

func (r *FakeMappingRepo) Save(_ context.Context, m *models.CountryProviderMapping) error {
	m.ID = uint(len(r.Mappings) + 1)
	r.Mappings = append(r.Mappings, m)
	return nil
}

func (r *FakeMappingRepo) Update(_ context.Context, m *models.CountryProviderMapping) error {
	for i, existing := range r.Mappings {
		if existing.ID == m.ID {
			r.Mappings[i] = m
			return nil
		}
	}
	return nil
}

func (r *FakeMappingRepo) Count(ctx context.Context, filter models.CountryProviderMappingFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

// FakeHealthRepo is an in-memory ProviderHealthRepository
type FakeHealthRepo struct {
	Rows []*models.ProviderHealth
}

func (r *FakeHealthRepo) ByID(_ context.Context, id uint) (*models.ProviderHealth, error) {
	for _, h := range r.Rows {
		if h.ID == id {
			return h, nil
		}
	}
	return nil, nil
}

func (r *FakeHealthRepo) ByProvider(_ context.Context, provider models.ProviderType) (*models.ProviderHealth, error) {
	for _, h := range r.Rows {
		if h.Provider == provider {
			return h, nil
		}
	}
	return nil, nil
}

func (r *FakeHealthRepo) Upsert(ctx context.Context, health *models.ProviderHealth) error {
	for i, existing := range r.Rows {
		if existing.Provider == health.Provider {
			health.ID = existing.ID
			r.Rows[i] = health
			return nil
		}
	}
	return r.Save(ctx, health)
}

func (r *FakeHealthRepo) ListAll(_ context.Context) ([]*models.ProviderHealth, error) {
	return append([]*models.ProviderHealth(nil), r.Rows...), nil
}

func (r *FakeHealthRepo) ByFilter(_ context.Context, filter models.ProviderHealthFilter, _ string, limit, offset int) ([]*models.ProviderHealth, error) {
	var out []*models.ProviderHealth
	for _, h := range r.Rows {
		if filter.ID != nil && h.ID != *filter.ID {
			continue
		}
		if filter.Provider != nil && h.Provider != *filter.Provider {
			continue
		}
		if filter.Status != nil && h.Status != *filter.Status {
			continue
		}
		out = append(out, h)
	}
	return paginate(out, limit, offset), nil
}

func (r *FakeHealthRepo) Save(_ context.Context, h *models.ProviderHealth) error {
	h.ID = uint(len(r.Rows) + 1)
	r.Rows = append(r.Rows, h)
	return nil
}

func (r *FakeHealthRepo) Update(_ context.Context, h *models.ProviderHealth) error {
	for i, existing := range r.Rows {
		if existing.ID == h.ID {
			r.Rows[i] = h
			return nil
		}
	}
	return nil
}

func (r *FakeHealthRepo) Count(ctx context.Context, filter models.ProviderHealthFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func paginate[T any](rows []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
