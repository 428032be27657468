package scheduler

import (
	"context"
	"log"
	"time"

	businessflow "github.com/udyogsetu/messaging-core/business_flow"
)

// syncBatchSize caps how many pending templates one tick polls
const syncBatchSize = 100

// TemplateSyncScheduler polls the vendors for verdicts on templates still
// pending review. Meta and Gupshup also push verdicts over webhooks; the
// poll covers dropped callbacks and Twilio, which has no template webhook.
type TemplateSyncScheduler struct {
	templateFlow businessflow.TemplateFlow
	logger       *log.Logger
	interval     time.Duration
}

// NewTemplateSyncScheduler creates a new template sync scheduler
func NewTemplateSyncScheduler(templateFlow businessflow.TemplateFlow, interval time.Duration) *TemplateSyncScheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &TemplateSyncScheduler{
		templateFlow: templateFlow,
		logger:       newSchedulerLogger("template-sync"),
		interval:     interval,
	}
}

// Start launches the sync loop in a background goroutine and returns a stop function
func (s *TemplateSyncScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *TemplateSyncScheduler) runOnce(ctx context.Context) {
	transitioned, err := s.templateFlow.SyncPendingTemplates(ctx, syncBatchSize)
	if err != nil {
		s.logger.Printf("template sync failed: %v", err)
		return
	}
	if transitioned > 0 {
		s.logger.Printf("template sync: %d template(s) reached a verdict", transitioned)
	}
}
