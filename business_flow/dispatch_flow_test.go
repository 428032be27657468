package businessflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udyogsetu/messaging-core/app/dto"
	"github.com/udyogsetu/messaging-core/app/services"
	"github.com/udyogsetu/messaging-core/models"
	apptesting "github.com/udyogsetu/messaging-core/testing"
	"github.com/udyogsetu/messaging-core/utils"
)

// dispatchEnv wires the dispatch flow over in-memory fakes and a scriptable
// provider so tests exercise the full decision sequence without a database.
type dispatchEnv struct {
	tenants   *apptesting.FakeTenantRepo
	messages  *apptesting.FakeMessageRepo
	templates *apptesting.FakeTemplateRepo
	optIns    *apptesting.FakeOptInRepo
	usage     *apptesting.FakeUsageRepo
	provider  *services.MockMessagingProvider
	registry  *services.ProviderRegistry
	flow      MessageDispatchFlow

	tenant *models.Tenant
}

func newDispatchEnv(t *testing.T) *dispatchEnv {
	t.Helper()

	env := &dispatchEnv{
		tenants:   &apptesting.FakeTenantRepo{},
		messages:  &apptesting.FakeMessageRepo{},
		templates: &apptesting.FakeTemplateRepo{},
		optIns:    &apptesting.FakeOptInRepo{},
		usage:     &apptesting.FakeUsageRepo{},
		provider:  services.NewMockMessagingProvider(models.ProviderGupshup),
	}

	mappingRepo := &apptesting.FakeMappingRepo{Mappings: []*models.CountryProviderMapping{
		{Country: "india", PrimaryProvider: models.ProviderGupshup, MonthlyQuota: 100, IsActive: true},
	}}
	env.registry = services.NewProviderRegistryWithAdapters(
		map[models.ProviderType]services.MessagingProvider{models.ProviderGupshup: env.provider},
		models.ProviderGupshup,
		mappingRepo,
	)
	require.NoError(t, env.registry.Initialize(context.Background()))

	env.flow = NewMessageDispatchFlow(
		env.tenants, env.messages, env.templates, env.optIns, env.usage,
		env.registry, nil, "", nil,
	)

	env.tenant = &models.Tenant{UUID: uuid.New(), Name: "Acme Tours", Country: "india", IsActive: true}
	require.NoError(t, env.tenants.Save(context.Background(), env.tenant))
	return env
}

func (env *dispatchEnv) addApprovedTemplate(t *testing.T, name string, placeholders int) *models.MessageTemplate {
	t.Helper()
	body := "Hello"
	for i := 1; i <= placeholders; i++ {
		body += fmt.Sprintf(" {{%d}}", i)
	}
	template := &models.MessageTemplate{
		TenantID:           env.tenant.ID,
		Name:               name,
		Category:           models.TemplateCategoryUtility,
		Language:           "en",
		Provider:           models.ProviderGupshup,
		ProviderTemplateID: utils.ToPtr("vendor-" + name),
		BodyText:           body,
		PlaceholderCount:   placeholders,
		Status:             models.TemplateStatusApproved,
		ApprovedAt:         utils.UTCNowPtr(),
	}
	require.NoError(t, env.templates.Save(context.Background(), template))
	return template
}

func (env *dispatchEnv) addOptIn(t *testing.T, phone string) *models.OptIn {
	t.Helper()
	optIn := &models.OptIn{TenantID: env.tenant.ID, PhoneNumber: phone, IsActive: true, OptInAt: utils.UTCNow()}
	require.NoError(t, env.optIns.Save(context.Background(), optIn))
	return optIn
}

func templateSendRequest(env *dispatchEnv, name string, params []string) *dto.SendMessageRequest {
	return &dto.SendMessageRequest{
		TenantUUID:     env.tenant.UUID.String(),
		To:             "+919812345678",
		Type:           "template",
		TemplateName:   name,
		TemplateParams: params,
	}
}

func TestSendTemplateMessageSuccess(t *testing.T) {
	env := newDispatchEnv(t)
	env.addApprovedTemplate(t, "order_update", 2)
	optIn := env.addOptIn(t, "+919812345678")

	resp, err := env.flow.SendMessage(context.Background(), templateSendRequest(env, "order_update", []string{"Asha", "ORD-1"}), nil)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "gupshup", resp.Provider)
	assert.Equal(t, "sent", resp.Status)
	assert.NotEmpty(t, resp.ProviderMessageID)
	assert.Equal(t, 1, resp.QuotaUsed)
	assert.Equal(t, 100, resp.QuotaLimit)

	// One message row persisted with cost and timestamps
	require.Len(t, env.messages.Messages, 1)
	message := env.messages.Messages[0]
	assert.Equal(t, models.MessageStatusSent, message.Status)
	assert.NotNil(t, message.SentAt)
	assert.Equal(t, utils.UnitCostPaise("india"), message.CostPaise)
	assert.JSONEq(t, `["Asha","ORD-1"]`, string(message.TemplateParams))

	// Usage and consent counters advanced exactly once
	require.Len(t, env.usage.Records, 1)
	usage := env.usage.Records[0]
	assert.Equal(t, int64(1), usage.QuotaUsed)
	assert.Equal(t, int64(1), usage.MessagesSent)
	assert.Equal(t, int64(1), usage.TemplateMessages)
	assert.Equal(t, utils.UnitCostPaise("india"), usage.TotalCostPaise)

	assert.Equal(t, int64(1), optIn.MessageCount)
	assert.NotNil(t, optIn.LastMessageAt)
	assert.Equal(t, 1, env.provider.SendCount())
}

func TestSendTextMessageSuccess(t *testing.T) {
	env := newDispatchEnv(t)
	env.addOptIn(t, "+919812345678")

	resp, err := env.flow.SendMessage(context.Background(), &dto.SendMessageRequest{
		TenantUUID: env.tenant.UUID.String(),
		To:         "+91 98123-45678", // normalized before lookup and send
		Type:       "text",
		Text:       "hello there",
	}, nil)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Len(t, env.provider.SentTexts, 1)
	assert.Equal(t, "+919812345678", env.provider.SentTexts[0].To)
	assert.Equal(t, "hello there", env.provider.SentTexts[0].Text)

	require.Len(t, env.usage.Records, 1)
	assert.Equal(t, int64(1), env.usage.Records[0].SessionMessages)
}

func TestSendMessageNoOptIn(t *testing.T) {
	env := newDispatchEnv(t)
	env.addApprovedTemplate(t, "order_update", 2)

	resp, err := env.flow.SendMessage(context.Background(), templateSendRequest(env, "order_update", []string{"a", "b"}), nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, CodeNoOptIn, resp.ErrorCode)
	assert.Equal(t, 0, env.provider.SendCount())
	assert.Empty(t, env.messages.Messages)
}

func TestSendMessageOptedOutRecipient(t *testing.T) {
	env := newDispatchEnv(t)
	env.addApprovedTemplate(t, "order_update", 2)
	optIn := env.addOptIn(t, "+919812345678")
	require.NoError(t, env.optIns.Deactivate(context.Background(), env.tenant.ID, optIn.PhoneNumber, utils.UTCNow()))

	resp, err := env.flow.SendMessage(context.Background(), templateSendRequest(env, "order_update", []string{"a", "b"}), nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, CodeNoOptIn, resp.ErrorCode)
}

func TestSendMessageQuotaExceeded(t *testing.T) {
	env := newDispatchEnv(t)
	env.addApprovedTemplate(t, "order_update", 2)
	env.addOptIn(t, "+919812345678")
	require.NoError(t, env.usage.Save(context.Background(), &models.UsageRecord{
		TenantID:  env.tenant.ID,
		YearMonth: utils.CurrentYearMonth(),
		Country:   "india",
		QuotaUsed: 100, QuotaLimit: 100,
	}))

	resp, err := env.flow.SendMessage(context.Background(), templateSendRequest(env, "order_update", []string{"a", "b"}), nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, CodeQuotaExceeded, resp.ErrorCode)
	assert.Equal(t, 100, resp.QuotaUsed)
	assert.Equal(t, 100, resp.QuotaLimit)
	assert.Equal(t, 0, env.provider.SendCount())
}

func TestSendMessageTenantQuotaOverride(t *testing.T) {
	env := newDispatchEnv(t)
	env.tenant.MonthlyQuotaOverride = 1
	env.addApprovedTemplate(t, "order_update", 2)
	env.addOptIn(t, "+919812345678")

	first, err := env.flow.SendMessage(context.Background(), templateSendRequest(env, "order_update", []string{"a", "b"}), nil)
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, 1, first.QuotaLimit)

	second, err := env.flow.SendMessage(context.Background(), templateSendRequest(env, "order_update", []string{"a", "b"}), nil)
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, CodeQuotaExceeded, second.ErrorCode)
	assert.Equal(t, 1, env.provider.SendCount())
}

func TestSendMessageTemplateNotFound(t *testing.T) {
	env := newDispatchEnv(t)
	env.addOptIn(t, "+919812345678")

	resp, err := env.flow.SendMessage(context.Background(), templateSendRequest(env, "no_such_template", []string{"a"}), nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, CodeTemplateNotFound, resp.ErrorCode)
	assert.Equal(t, 0, env.provider.SendCount())
}

func TestSendMessageTemplateNotApproved(t *testing.T) {
	env := newDispatchEnv(t)
	env.addOptIn(t, "+919812345678")
	pending := env.addApprovedTemplate(t, "order_update", 2)
	pending.Status = models.TemplateStatusPending
	pending.ApprovedAt = nil

	resp, err := env.flow.SendMessage(context.Background(), templateSendRequest(env, "order_update", []string{"a", "b"}), nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, CodeTemplateNotApproved, resp.ErrorCode)
	assert.Contains(t, resp.ErrorMessage, "pending")
	assert.Equal(t, 0, env.provider.SendCount())
}

func TestSendMessageParamCountMismatch(t *testing.T) {
	env := newDispatchEnv(t)
	env.addOptIn(t, "+919812345678")
	env.addApprovedTemplate(t, "order_update", 2)

	resp, err := env.flow.SendMessage(context.Background(), templateSendRequest(env, "order_update", []string{"only-one"}), nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, CodeTemplateNotApproved, resp.ErrorCode)
	assert.Contains(t, resp.ErrorMessage, "expects 2 parameters, got 1")
	assert.Equal(t, 0, env.provider.SendCount())
}

func TestSendMessageInactiveTenant(t *testing.T) {
	env := newDispatchEnv(t)
	env.tenant.IsActive = false

	resp, err := env.flow.SendMessage(context.Background(), templateSendRequest(env, "order_update", nil), nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, CodeTenantNotFound, resp.ErrorCode)
}

func TestSendMessageUnknownTenant(t *testing.T) {
	env := newDispatchEnv(t)

	resp, err := env.flow.SendMessage(context.Background(), &dto.SendMessageRequest{
		TenantUUID: uuid.New().String(),
		To:         "+919812345678",
		Type:       "text",
		Text:       "hi",
	}, nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, CodeTenantNotFound, resp.ErrorCode)
}

func TestSendMessageInvalidDestination(t *testing.T) {
	env := newDispatchEnv(t)

	resp, err := env.flow.SendMessage(context.Background(), &dto.SendMessageRequest{
		TenantUUID: env.tenant.UUID.String(),
		To:         "not-a-number",
		Type:       "text",
		Text:       "hi",
	}, nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, CodeInvalidMessageType, resp.ErrorCode)
}

func TestSendMessageUnsupportedType(t *testing.T) {
	env := newDispatchEnv(t)

	resp, err := env.flow.SendMessage(context.Background(), &dto.SendMessageRequest{
		TenantUUID: env.tenant.UUID.String(),
		To:         "+919812345678",
		Type:       "carrier-pigeon",
	}, nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, CodeInvalidMessageType, resp.ErrorCode)
}

func TestSendMessageInteractiveRejected(t *testing.T) {
	env := newDispatchEnv(t)
	env.addOptIn(t, "+919812345678")

	// Interactive rows exist in the data model but no adapter exposes an
	// interactive send method; dispatch rejects before any vendor call
	resp, err := env.flow.SendMessage(context.Background(), &dto.SendMessageRequest{
		TenantUUID: env.tenant.UUID.String(),
		To:         "+919812345678",
		Type:       "interactive",
		Text:       "pick an option",
	}, nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, CodeInvalidMessageType, resp.ErrorCode)
	assert.Equal(t, 0, env.provider.SendCount())
	assert.Empty(t, env.messages.Messages)
}

func TestSendMessageProviderFailurePersistsFailedRow(t *testing.T) {
	env := newDispatchEnv(t)
	env.addApprovedTemplate(t, "order_update", 2)
	optIn := env.addOptIn(t, "+919812345678")
	env.provider.NextSendResult = &services.SendResult{
		Success:      false,
		Status:       models.MessageStatusFailed,
		ErrorCode:    "1002",
		ErrorMessage: "number not on whatsapp",
	}

	resp, err := env.flow.SendMessage(context.Background(), templateSendRequest(env, "order_update", []string{"a", "b"}), nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, CodeSendFailed, resp.ErrorCode)
	assert.Equal(t, "1002: number not on whatsapp", resp.ErrorMessage)
	assert.Equal(t, string(models.MessageStatusFailed), resp.Status)
	assert.NotEmpty(t, resp.MessageUUID)

	// Failed row kept for audit; no cost, no counters
	require.Len(t, env.messages.Messages, 1)
	message := env.messages.Messages[0]
	assert.Equal(t, models.MessageStatusFailed, message.Status)
	assert.NotNil(t, message.FailedAt)
	assert.Equal(t, "1002", message.ErrorCode)
	assert.Equal(t, int64(0), message.CostPaise)

	require.Len(t, env.usage.Records, 1)
	assert.Equal(t, int64(0), env.usage.Records[0].QuotaUsed)
	assert.Equal(t, int64(0), optIn.MessageCount)
}

func TestGetUsageWithoutRecordResolvesLimit(t *testing.T) {
	env := newDispatchEnv(t)

	summary, err := env.flow.GetUsage(context.Background(), env.tenant.UUID.String(), "")
	require.NoError(t, err)

	assert.Equal(t, utils.CurrentYearMonth(), summary.YearMonth)
	assert.Equal(t, 0, summary.QuotaUsed)
	// Limit comes from the india mapping even before any send
	assert.Equal(t, 100, summary.QuotaLimit)
}

func TestGetUsageReflectsCounters(t *testing.T) {
	env := newDispatchEnv(t)
	require.NoError(t, env.usage.Save(context.Background(), &models.UsageRecord{
		TenantID:          env.tenant.ID,
		YearMonth:         "2026-07",
		MessagesSent:      5,
		MessagesDelivered: 4,
		MessagesRead:      2,
		MessagesFailed:    1,
		QuotaUsed:         5,
		QuotaLimit:        100,
		TotalCostPaise:    375,
	}))

	summary, err := env.flow.GetUsage(context.Background(), env.tenant.UUID.String(), "2026-07")
	require.NoError(t, err)

	assert.Equal(t, 5, summary.MessagesSent)
	assert.Equal(t, 4, summary.MessagesDelivered)
	assert.Equal(t, 2, summary.MessagesRead)
	assert.Equal(t, 1, summary.MessagesFailed)
	assert.Equal(t, int64(375), summary.TotalCostPaise)
}

func TestListMessagesPaging(t *testing.T) {
	env := newDispatchEnv(t)
	env.addOptIn(t, "+919812345678")
	for i := 0; i < 3; i++ {
		resp, err := env.flow.SendMessage(context.Background(), &dto.SendMessageRequest{
			TenantUUID: env.tenant.UUID.String(),
			To:         "+919812345678",
			Type:       "text",
			Text:       "hi",
		}, nil)
		require.NoError(t, err)
		require.True(t, resp.Success)
	}

	page, err := env.flow.ListMessages(context.Background(), &dto.ListMessagesRequest{
		TenantUUID: env.tenant.UUID.String(),
		Page:       1,
		PageSize:   2,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.PageSize)

	// Defaults apply when paging fields are zero
	page, err = env.flow.ListMessages(context.Background(), &dto.ListMessagesRequest{TenantUUID: env.tenant.UUID.String()})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Len(t, page.Items, 3)
}
