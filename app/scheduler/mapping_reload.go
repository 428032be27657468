package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/udyogsetu/messaging-core/app/services"
)

// MappingReloadScheduler periodically refreshes the in-memory country
// routing table from the database so mapping edits land without a restart.
type MappingReloadScheduler struct {
	registry *services.ProviderRegistry
	logger   *log.Logger
	interval time.Duration
}

// NewMappingReloadScheduler creates a new mapping reload scheduler
func NewMappingReloadScheduler(registry *services.ProviderRegistry, interval time.Duration) *MappingReloadScheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &MappingReloadScheduler{
		registry: registry,
		logger:   newSchedulerLogger("mapping-reload"),
		interval: interval,
	}
}

// Start launches the reload loop in a background goroutine and returns a stop function
func (s *MappingReloadScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.registry.Reload(ctx); err != nil {
					s.logger.Printf("mapping reload failed, default table installed: %v", err)
				}
			}
		}
	}()

	return cancel
}
