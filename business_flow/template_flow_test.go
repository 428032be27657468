package businessflow

import (
	"context"
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

type templateEnv struct {
	tenants   *apptesting.FakeTenantRepo
	templates *apptesting.FakeTemplateRepo
	provider  *services.MockMessagingProvider
	flow      TemplateFlow

	tenant *models.Tenant
}

func newTemplateEnv(t *testing.T) *templateEnv {
	t.Helper()

	env := &templateEnv{
		tenants:   &apptesting.FakeTenantRepo{},
		templates: &apptesting.FakeTemplateRepo{},
		provider:  services.NewMockMessagingProvider(models.ProviderGupshup),
	}

	registry := services.NewProviderRegistryWithAdapters(
		map[models.ProviderType]services.MessagingProvider{models.ProviderGupshup: env.provider},
		models.ProviderGupshup,
		&apptesting.FakeMappingRepo{},
	)
	env.flow = NewTemplateFlow(env.tenants, env.templates, registry, nil)

	env.tenant = &models.Tenant{UUID: uuid.New(), Name: "Acme Tours", Country: "india", IsActive: true}
	require.NoError(t, env.tenants.Save(context.Background(), env.tenant))
	return env
}

func submitRequest(env *templateEnv) *dto.SubmitTemplateRequest {
	return &dto.SubmitTemplateRequest{
		TenantUUID:   env.tenant.UUID.String(),
		Name:         "order_update",
		Category:     "utility",
		Provider:     "gupshup",
		BodyText:     "Hi {{1}}, order {{2}} shipped.",
		SampleParams: []string{"Asha", "ORD-1"},
	}
}

func TestSubmitTemplateCreatesPendingRow(t *testing.T) {
	env := newTemplateEnv(t)

	resp, err := env.flow.SubmitTemplate(context.Background(), submitRequest(env), nil)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "pending", resp.Template.Status)
	assert.Equal(t, "mock-template-1", resp.Template.ProviderTemplateID)
	assert.Equal(t, 2, resp.Template.PlaceholderCount)
	assert.Equal(t, "en", resp.Template.Language)

	require.Len(t, env.templates.Templates, 1)
	row := env.templates.Templates[0]
	assert.Equal(t, models.TemplateStatusPending, row.Status)
	assert.Nil(t, row.ApprovedAt)
	require.NotNil(t, row.ProviderTemplateID)
	assert.Equal(t, "mock-template-1", *row.ProviderTemplateID)
}

func TestSubmitTemplateVendorRejectionIsAudited(t *testing.T) {
	env := newTemplateEnv(t)
	env.provider.SubmitResult = &services.TemplateSubmitResult{
		Success:      false,
		ErrorCode:    "2001",
		ErrorMessage: "template name already exists",
	}

	resp, err := env.flow.SubmitTemplate(context.Background(), submitRequest(env), nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, "2001", resp.ErrorCode)
	assert.Equal(t, "template name already exists", resp.ErrorMessage)

	// The rejected row is persisted so the rejection is auditable
	require.Len(t, env.templates.Templates, 1)
	row := env.templates.Templates[0]
	assert.Equal(t, models.TemplateStatusRejected, row.Status)
	assert.Equal(t, "2001: template name already exists", row.RejectionReason)
}

func TestSubmitTemplateUnknownTenant(t *testing.T) {
	env := newTemplateEnv(t)
	req := submitRequest(env)
	req.TenantUUID = uuid.New().String()

	_, err := env.flow.SubmitTemplate(context.Background(), req, nil)
	require.Error(t, err)
	assert.True(t, IsTenantNotFound(err))
}

func TestSubmitTemplateUnconfiguredProvider(t *testing.T) {
	env := newTemplateEnv(t)
	env.provider.Configured = false

	resp, err := env.flow.SubmitTemplate(context.Background(), submitRequest(env), nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, CodeNoProviderAvailable, resp.ErrorCode)
	assert.Empty(t, env.templates.Templates)
}

func (env *templateEnv) addPendingTemplate(t *testing.T, name, providerTemplateID string) *models.MessageTemplate {
	t.Helper()
	template := &models.MessageTemplate{
		TenantID:           env.tenant.ID,
		Name:               name,
		Category:           models.TemplateCategoryUtility,
		Language:           "en",
		Provider:           models.ProviderGupshup,
		ProviderTemplateID: utils.ToPtr(providerTemplateID),
		BodyText:           "Hi {{1}}",
		PlaceholderCount:   1,
		Status:             models.TemplateStatusPending,
	}
	require.NoError(t, env.templates.Save(context.Background(), template))
	return template
}

func TestSyncTemplateStatusApproves(t *testing.T) {
	env := newTemplateEnv(t)
	template := env.addPendingTemplate(t, "order_update", "tpl-9")
	env.provider.StatusResult = &services.TemplateStatusResult{Success: true, Status: models.TemplateStatusApproved}

	updated, err := env.flow.SyncTemplateStatus(context.Background(), template.ID)
	require.NoError(t, err)

	assert.Equal(t, models.TemplateStatusApproved, updated.Status)
	assert.NotNil(t, updated.ApprovedAt)
	assert.Empty(t, updated.RejectionReason)
}

func TestSyncTemplateStatusRejects(t *testing.T) {
	env := newTemplateEnv(t)
	template := env.addPendingTemplate(t, "order_update", "tpl-9")
	env.provider.StatusResult = &services.TemplateStatusResult{
		Success:         true,
		Status:          models.TemplateStatusRejected,
		RejectionReason: "promotional content in utility template",
	}

	updated, err := env.flow.SyncTemplateStatus(context.Background(), template.ID)
	require.NoError(t, err)

	assert.Equal(t, models.TemplateStatusRejected, updated.Status)
	assert.Equal(t, "promotional content in utility template", updated.RejectionReason)
	assert.Nil(t, updated.ApprovedAt)
}

func TestSyncTemplateStatusLeavesTerminalRows(t *testing.T) {
	env := newTemplateEnv(t)
	template := env.addPendingTemplate(t, "order_update", "tpl-9")
	template.Status = models.TemplateStatusApproved
	env.provider.StatusResult = &services.TemplateStatusResult{Success: true, Status: models.TemplateStatusRejected}

	updated, err := env.flow.SyncTemplateStatus(context.Background(), template.ID)
	require.NoError(t, err)

	// Approved is terminal; no vendor poll result can flip it
	assert.Equal(t, models.TemplateStatusApproved, updated.Status)
}

func TestSyncPendingTemplatesCountsTransitions(t *testing.T) {
	env := newTemplateEnv(t)
	env.addPendingTemplate(t, "one", "tpl-1")
	env.addPendingTemplate(t, "two", "tpl-2")
	env.provider.StatusResult = &services.TemplateStatusResult{Success: true, Status: models.TemplateStatusApproved}

	transitioned, err := env.flow.SyncPendingTemplates(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, transitioned)

	// A second pass has nothing pending left
	transitioned, err = env.flow.SyncPendingTemplates(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, transitioned)
}

func TestSyncPendingTemplatesStillPending(t *testing.T) {
	env := newTemplateEnv(t)
	env.addPendingTemplate(t, "one", "tpl-1")
	env.provider.StatusResult = &services.TemplateStatusResult{Success: true, Status: models.TemplateStatusPending}

	transitioned, err := env.flow.SyncPendingTemplates(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, transitioned)
	assert.Equal(t, models.TemplateStatusPending, env.templates.Templates[0].Status)
}

func TestApplyTemplateEventByVendorID(t *testing.T) {
	env := newTemplateEnv(t)
	template := env.addPendingTemplate(t, "order_update", "tpl-9")

	err := env.flow.ApplyTemplateEvent(context.Background(), models.ProviderGupshup, services.NormalizedEvent{
		Type:               services.EventTemplateRejected,
		ProviderTemplateID: "tpl-9",
		RejectionReason:    "policy violation",
	})
	require.NoError(t, err)

	assert.Equal(t, models.TemplateStatusRejected, template.Status)
	assert.Equal(t, "policy violation", template.RejectionReason)
}

func TestApplyTemplateEventByNameFallback(t *testing.T) {
	env := newTemplateEnv(t)
	template := env.addPendingTemplate(t, "order_update", "tpl-9")

	// Meta's review callback carries the template name, not the stored id
	err := env.flow.ApplyTemplateEvent(context.Background(), models.ProviderGupshup, services.NormalizedEvent{
		Type:         services.EventTemplateApproved,
		TemplateName: "order_update",
	})
	require.NoError(t, err)

	assert.Equal(t, models.TemplateStatusApproved, template.Status)
	assert.NotNil(t, template.ApprovedAt)
}

func TestApplyTemplateEventIgnoresUnknownAndTerminal(t *testing.T) {
	env := newTemplateEnv(t)
	template := env.addPendingTemplate(t, "order_update", "tpl-9")
	template.Status = models.TemplateStatusRejected

	// Terminal row stays put
	err := env.flow.ApplyTemplateEvent(context.Background(), models.ProviderGupshup, services.NormalizedEvent{
		Type:               services.EventTemplateApproved,
		ProviderTemplateID: "tpl-9",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TemplateStatusRejected, template.Status)

	// Unknown vendor id is a no-op
	err = env.flow.ApplyTemplateEvent(context.Background(), models.ProviderGupshup, services.NormalizedEvent{
		Type:               services.EventTemplateApproved,
		ProviderTemplateID: "tpl-unknown",
	})
	require.NoError(t, err)
}

func TestListTemplatesFiltersByStatus(t *testing.T) {
	env := newTemplateEnv(t)
	env.addPendingTemplate(t, "one", "tpl-1")
	approved := env.addPendingTemplate(t, "two", "tpl-2")
	approved.Status = models.TemplateStatusApproved

	page, err := env.flow.ListTemplates(context.Background(), &dto.ListTemplatesRequest{
		TenantUUID: env.tenant.UUID.String(),
		Status:     "approved",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "two", page.Items[0].Name)
	assert.Equal(t, 20, page.PageSize)
}
