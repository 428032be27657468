package businessflow

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udyogsetu/messaging-core/app/dto"
	"github.com/udyogsetu/messaging-core/models"
	apptesting "github.com/udyogsetu/messaging-core/testing"
	"github.com/udyogsetu/messaging-core/utils"
)

type consentEnv struct {
	optIns *apptesting.FakeOptInRepo
	flow   ConsentFlow
	tenant *models.Tenant
}

func newConsentEnv(t *testing.T) *consentEnv {
	t.Helper()

	tenants := &apptesting.FakeTenantRepo{}
	env := &consentEnv{optIns: &apptesting.FakeOptInRepo{}}
	env.flow = NewConsentFlow(tenants, env.optIns, nil)

	env.tenant = &models.Tenant{UUID: uuid.New(), Name: "Acme Tours", Country: "india", IsActive: true}
	require.NoError(t, tenants.Save(context.Background(), env.tenant))
	return env
}

func TestOptInCreatesRecord(t *testing.T) {
	env := newConsentEnv(t)

	out, err := env.flow.OptIn(context.Background(), &dto.OptInRequest{
		TenantUUID:  env.tenant.UUID.String(),
		PhoneNumber: "+91 98123-45678",
	}, nil)
	require.NoError(t, err)

	assert.True(t, out.IsActive)
	// Stored under the normalized number
	assert.Equal(t, "+919812345678", out.PhoneNumber)
	assert.NotEmpty(t, out.OptInAt)
	require.Len(t, env.optIns.OptIns, 1)
}

func TestOptInIsIdempotentWhileActive(t *testing.T) {
	env := newConsentEnv(t)
	req := &dto.OptInRequest{TenantUUID: env.tenant.UUID.String(), PhoneNumber: "+919812345678"}

	_, err := env.flow.OptIn(context.Background(), req, nil)
	require.NoError(t, err)
	_, err = env.flow.OptIn(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Len(t, env.optIns.OptIns, 1)
}

func TestOptInRejectsInvalidPhone(t *testing.T) {
	env := newConsentEnv(t)

	_, err := env.flow.OptIn(context.Background(), &dto.OptInRequest{
		TenantUUID:  env.tenant.UUID.String(),
		PhoneNumber: "12",
	}, nil)
	require.Error(t, err)
	assert.True(t, IsInvalidPhoneNumber(err))
}

func TestOptOutDeactivates(t *testing.T) {
	env := newConsentEnv(t)
	_, err := env.flow.OptIn(context.Background(), &dto.OptInRequest{
		TenantUUID:  env.tenant.UUID.String(),
		PhoneNumber: "+919812345678",
	}, nil)
	require.NoError(t, err)

	out, err := env.flow.OptOut(context.Background(), &dto.OptOutRequest{
		TenantUUID:  env.tenant.UUID.String(),
		PhoneNumber: "+919812345678",
	}, nil)
	require.NoError(t, err)

	assert.False(t, out.IsActive)
	assert.NotEmpty(t, out.OptOutAt)
	assert.False(t, env.optIns.OptIns[0].IsActive)
}

func TestOptOutUnknownRecord(t *testing.T) {
	env := newConsentEnv(t)

	_, err := env.flow.OptOut(context.Background(), &dto.OptOutRequest{
		TenantUUID:  env.tenant.UUID.String(),
		PhoneNumber: "+919812345678",
	}, nil)
	require.Error(t, err)
	assert.True(t, IsOptInNotFound(err))
}

func TestReOptInReactivatesAndKeepsHistory(t *testing.T) {
	env := newConsentEnv(t)
	tenantUUID := env.tenant.UUID.String()

	_, err := env.flow.OptIn(context.Background(), &dto.OptInRequest{TenantUUID: tenantUUID, PhoneNumber: "+919812345678"}, nil)
	require.NoError(t, err)

	// Simulate past traffic, then an opt-out
	record := env.optIns.OptIns[0]
	require.NoError(t, env.optIns.RecordMessageSent(context.Background(), record.ID, utils.UTCNow()))
	_, err = env.flow.OptOut(context.Background(), &dto.OptOutRequest{TenantUUID: tenantUUID, PhoneNumber: "+919812345678"}, nil)
	require.NoError(t, err)

	out, err := env.flow.OptIn(context.Background(), &dto.OptInRequest{TenantUUID: tenantUUID, PhoneNumber: "+919812345678"}, nil)
	require.NoError(t, err)

	// Same row reactivated; the historical message count survives
	assert.True(t, out.IsActive)
	assert.Empty(t, out.OptOutAt)
	assert.Equal(t, 1, out.MessageCount)
	assert.Len(t, env.optIns.OptIns, 1)
}

func TestGetOptIn(t *testing.T) {
	env := newConsentEnv(t)
	tenantUUID := env.tenant.UUID.String()

	_, err := env.flow.GetOptIn(context.Background(), tenantUUID, "+919812345678")
	require.Error(t, err)
	assert.True(t, IsOptInNotFound(err))

	_, err = env.flow.OptIn(context.Background(), &dto.OptInRequest{TenantUUID: tenantUUID, PhoneNumber: "+919812345678"}, nil)
	require.NoError(t, err)

	out, err := env.flow.GetOptIn(context.Background(), tenantUUID, "+919812345678")
	require.NoError(t, err)
	assert.True(t, out.IsActive)
}

func TestConsentUnknownTenant(t *testing.T) {
	env := newConsentEnv(t)

	_, err := env.flow.OptIn(context.Background(), &dto.OptInRequest{
		TenantUUID:  uuid.New().String(),
		PhoneNumber: "+919812345678",
	}, nil)
	require.Error(t, err)
	assert.True(t, IsTenantNotFound(err))
}
