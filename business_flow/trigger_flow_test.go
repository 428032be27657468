package businessflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udyogsetu/messaging-core/app/dto"
	"github.com/udyogsetu/messaging-core/models"
)

func TestHandleBusinessEventDispatchesCatalogTemplate(t *testing.T) {
	env := newDispatchEnv(t)
	env.addApprovedTemplate(t, "tour_booking_confirmed", 5)
	env.addOptIn(t, "+919812345678")
	flow := NewTriggerFlow(env.flow)

	resp, err := flow.HandleBusinessEvent(context.Background(), &dto.BusinessEventRequest{
		TenantUUID: env.tenant.UUID.String(),
		Vertical:   "Tourism", // lookup is case-insensitive
		Event:      "BOOKING_CONFIRMED",
		To:         "+919812345678",
		Params:     []string{"Ravi", "Kerala Backwaters", "2", "12 Sep", "TRV-88412"},
	}, nil)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Len(t, env.provider.SentTemplates, 1)
	assert.Equal(t, "tour_booking_confirmed", env.provider.SentTemplates[0].TemplateName)
	assert.Equal(t, []string{"Ravi", "Kerala Backwaters", "2", "12 Sep", "TRV-88412"}, env.provider.SentTemplates[0].Params)
}

func TestHandleBusinessEventUnknownTrigger(t *testing.T) {
	env := newDispatchEnv(t)
	flow := NewTriggerFlow(env.flow)

	resp, err := flow.HandleBusinessEvent(context.Background(), &dto.BusinessEventRequest{
		TenantUUID: env.tenant.UUID.String(),
		Vertical:   "tourism",
		Event:      "spaceship_launched",
		To:         "+919812345678",
	}, nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, CodeTemplateNotFound, resp.ErrorCode)
	assert.Equal(t, 0, env.provider.SendCount())
}

func TestHandleBusinessEventRequiresRegisteredTemplate(t *testing.T) {
	// Catalog entry exists but the tenant never registered the template
	env := newDispatchEnv(t)
	env.addOptIn(t, "+919812345678")
	flow := NewTriggerFlow(env.flow)

	resp, err := flow.HandleBusinessEvent(context.Background(), &dto.BusinessEventRequest{
		TenantUUID: env.tenant.UUID.String(),
		Vertical:   "tourism",
		Event:      "booking_confirmed",
		To:         "+919812345678",
		Params:     []string{"Ravi", "Kerala Backwaters", "2", "12 Sep", "TRV-88412"},
	}, nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, CodeTemplateNotFound, resp.ErrorCode)
}

func TestGetTemplateByTrigger(t *testing.T) {
	entry, ok := GetTemplateByTrigger("tourism", "booking_confirmed")
	require.True(t, ok)
	assert.Equal(t, "tour_booking_confirmed", entry.TemplateName)

	// Lookup normalizes case and whitespace
	entry, ok = GetTemplateByTrigger("  Real-Estate ", "SITE_VISIT_SCHEDULED")
	require.True(t, ok)
	assert.Equal(t, "re_site_visit_scheduled", entry.TemplateName)

	_, ok = GetTemplateByTrigger("tourism", "no_such_event")
	assert.False(t, ok)
}

func TestCatalogEntriesAreSubmittable(t *testing.T) {
	entries := CatalogEntries()
	require.NotEmpty(t, entries)

	for _, entry := range entries {
		params := entry.ToSubmitParams("")
		assert.Equal(t, "en", params.Language, entry.TemplateName)
		assert.NotEmpty(t, params.BodyText, entry.TemplateName)
		// Review samples must cover every placeholder
		assert.Len(t, params.SampleParams, params.PlaceholderCount, entry.TemplateName)
		assert.NotEqual(t, models.TemplateCategory(""), params.Category, entry.TemplateName)
	}
}
