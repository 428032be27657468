// Package scheduler contains the background loops: provider health probing,
// template status sync and routing table refresh.
package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/udyogsetu/messaging-core/app/services"
	"github.com/udyogsetu/messaging-core/models"
	"github.com/udyogsetu/messaging-core/repository"
	"github.com/udyogsetu/messaging-core/utils"
)

// Consecutive probe failures before a provider is reported degraded/down
const (
	degradedThreshold = 2
	downThreshold     = 5
)

// ewmaAlpha weights the latest probe latency in the rolling average
const ewmaAlpha = 0.3

// HealthMonitor probes every configured provider on a fixed interval and
// persists the snapshot. The snapshot is advisory: operators and the
// health endpoint read it, the router does not.
type HealthMonitor struct {
	registry   *services.ProviderRegistry
	healthRepo repository.ProviderHealthRepository
	logger     *log.Logger
	interval   time.Duration
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(
	registry *services.ProviderRegistry,
	healthRepo repository.ProviderHealthRepository,
	interval time.Duration,
) *HealthMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HealthMonitor{
		registry:   registry,
		healthRepo: healthRepo,
		logger:     newSchedulerLogger("health-monitor"),
		interval:   interval,
	}
}

// newSchedulerLogger writes to stdout and a rotating file under data/
func newSchedulerLogger(name string) *log.Logger {
	rotating := &lumberjack.Logger{
		Filename:   filepath.Join("data", name+".log"),
		MaxSize:    50, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	mw := io.MultiWriter(os.Stdout, rotating)
	return log.New(mw, name+" ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start launches the monitor loop in a background goroutine and returns a stop function
func (m *HealthMonitor) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (m *HealthMonitor) runOnce(ctx context.Context) {
	for providerType, adapter := range m.registry.Providers() {
		if !adapter.IsConfigured() {
			continue
		}
		m.probe(ctx, providerType, adapter)
	}
}

func (m *HealthMonitor) probe(ctx context.Context, providerType models.ProviderType, adapter services.MessagingProvider) {
	result := adapter.HealthCheck(ctx)
	services.RecordProviderProbe(providerType, result.Healthy, float64(result.LatencyMs))

	previous, err := m.healthRepo.ByProvider(ctx, providerType)
	if err != nil {
		m.logger.Printf("probe %s: failed to load previous snapshot: %v", providerType, err)
		return
	}

	snapshot := &models.ProviderHealth{
		Provider:    providerType,
		LastCheckAt: utils.UTCNow(),
	}
	if previous != nil {
		snapshot.ConsecutiveFailures = previous.ConsecutiveFailures
		snapshot.AverageLatencyMs = previous.AverageLatencyMs
	}

	if result.Healthy {
		snapshot.ConsecutiveFailures = 0
		snapshot.ErrorMessage = ""
	} else {
		snapshot.ConsecutiveFailures++
		snapshot.ErrorMessage = result.Error
	}
	snapshot.AverageLatencyMs = smooth(snapshot.AverageLatencyMs, result.LatencyMs)
	snapshot.Status = statusFor(snapshot.ConsecutiveFailures)

	if err := m.healthRepo.Upsert(ctx, snapshot); err != nil {
		m.logger.Printf("probe %s: failed to persist snapshot: %v", providerType, err)
		return
	}

	if !result.Healthy {
		m.logger.Printf("probe %s: unhealthy (%d consecutive, status %s): %s",
			providerType, snapshot.ConsecutiveFailures, snapshot.Status, result.Error)
	}
}

// smooth applies an exponentially weighted moving average so a single slow
// probe does not swing the reported latency
func smooth(previousMs, latestMs int64) int64 {
	if previousMs == 0 {
		return latestMs
	}
	return int64(ewmaAlpha*float64(latestMs) + (1-ewmaAlpha)*float64(previousMs))
}

func statusFor(consecutiveFailures int) models.HealthStatus {
	switch {
	case consecutiveFailures >= downThreshold:
		return models.HealthStatusDown
	case consecutiveFailures >= degradedThreshold:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusHealthy
	}
}
