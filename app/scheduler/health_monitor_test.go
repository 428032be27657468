package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udyogsetu/messaging-core/app/services"
	"github.com/udyogsetu/messaging-core/models"
	apptesting "github.com/udyogsetu/messaging-core/testing"
)

type monitorEnv struct {
	provider   *services.MockMessagingProvider
	healthRepo *apptesting.FakeHealthRepo
	monitor    *HealthMonitor
}

func newMonitorEnv(t *testing.T) *monitorEnv {
	t.Helper()

	env := &monitorEnv{
		provider:   services.NewMockMessagingProvider(models.ProviderMeta),
		healthRepo: &apptesting.FakeHealthRepo{},
	}
	registry := services.NewProviderRegistryWithAdapters(
		map[models.ProviderType]services.MessagingProvider{models.ProviderMeta: env.provider},
		models.ProviderMeta,
		&apptesting.FakeMappingRepo{},
	)
	require.NoError(t, registry.Initialize(context.Background()))
	env.monitor = NewHealthMonitor(registry, env.healthRepo, time.Minute)
	return env
}

func TestHealthMonitorRecordsHealthyProbe(t *testing.T) {
	env := newMonitorEnv(t)
	env.provider.HealthResult = &services.HealthCheckResult{Healthy: true, LatencyMs: 120}

	env.monitor.runOnce(context.Background())

	require.Len(t, env.healthRepo.Rows, 1)
	snapshot := env.healthRepo.Rows[0]
	assert.Equal(t, models.ProviderMeta, snapshot.Provider)
	assert.Equal(t, models.HealthStatusHealthy, snapshot.Status)
	assert.Equal(t, 0, snapshot.ConsecutiveFailures)
	assert.Equal(t, int64(120), snapshot.AverageLatencyMs)
	assert.False(t, snapshot.LastCheckAt.IsZero())
}

func TestHealthMonitorDegradesAfterConsecutiveFailures(t *testing.T) {
	env := newMonitorEnv(t)
	env.provider.HealthResult = &services.HealthCheckResult{Healthy: false, LatencyMs: 0, Error: "status 500"}

	env.monitor.runOnce(context.Background())
	require.Len(t, env.healthRepo.Rows, 1)
	assert.Equal(t, models.HealthStatusHealthy, env.healthRepo.Rows[0].Status)
	assert.Equal(t, 1, env.healthRepo.Rows[0].ConsecutiveFailures)

	env.monitor.runOnce(context.Background())
	assert.Equal(t, models.HealthStatusDegraded, env.healthRepo.Rows[0].Status)
	assert.Equal(t, "status 500", env.healthRepo.Rows[0].ErrorMessage)

	for i := 0; i < 3; i++ {
		env.monitor.runOnce(context.Background())
	}
	assert.Equal(t, models.HealthStatusDown, env.healthRepo.Rows[0].Status)
	assert.Equal(t, 5, env.healthRepo.Rows[0].ConsecutiveFailures)
}

func TestHealthMonitorRecoveryResetsFailures(t *testing.T) {
	env := newMonitorEnv(t)
	env.provider.HealthResult = &services.HealthCheckResult{Healthy: false, Error: "timeout"}
	for i := 0; i < 3; i++ {
		env.monitor.runOnce(context.Background())
	}
	require.Equal(t, models.HealthStatusDegraded, env.healthRepo.Rows[0].Status)

	env.provider.HealthResult = &services.HealthCheckResult{Healthy: true, LatencyMs: 80}
	env.monitor.runOnce(context.Background())

	snapshot := env.healthRepo.Rows[0]
	assert.Equal(t, models.HealthStatusHealthy, snapshot.Status)
	assert.Equal(t, 0, snapshot.ConsecutiveFailures)
	assert.Empty(t, snapshot.ErrorMessage)
}

func TestHealthMonitorSkipsUnconfiguredProviders(t *testing.T) {
	env := newMonitorEnv(t)
	env.provider.Configured = false

	env.monitor.runOnce(context.Background())
	assert.Empty(t, env.healthRepo.Rows)
}

func TestHealthMonitorSmoothsLatency(t *testing.T) {
	// First sample seeds the average
	assert.Equal(t, int64(100), smooth(0, 100))
	// Subsequent samples move it by the EWMA weight, not all the way
	smoothed := smooth(100, 200)
	assert.Greater(t, smoothed, int64(100))
	assert.Less(t, smoothed, int64(200))
	assert.Equal(t, int64(130), smoothed)
}

func TestHealthStatusThresholds(t *testing.T) {
	assert.Equal(t, models.HealthStatusHealthy, statusFor(0))
	assert.Equal(t, models.HealthStatusHealthy, statusFor(1))
	assert.Equal(t, models.HealthStatusDegraded, statusFor(2))
	assert.Equal(t, models.HealthStatusDegraded, statusFor(4))
	assert.Equal(t, models.HealthStatusDown, statusFor(5))
	assert.Equal(t, models.HealthStatusDown, statusFor(12))
}
