package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/udyogsetu/messaging-core/app/services"
	"github.com/udyogsetu/messaging-core/models"
	"github.com/udyogsetu/messaging-core/repository"
	"github.com/udyogsetu/messaging-core/utils"
)

// WebhookFlow ingests vendor callbacks: authenticate, audit, normalize,
// then apply monotonic status transitions. The HTTP layer always acks;
// processing outcomes live on the audit row.
type WebhookFlow interface {
	HandleWebhook(ctx context.Context, provider models.ProviderType, req services.WebhookRequest) error
}

// WebhookFlowImpl implements the webhook ingest business flow
type WebhookFlowImpl struct {
	messageRepo  repository.MessageRepository
	webhookRepo  repository.WebhookEventRepository
	usageRepo    repository.UsageRecordRepository
	templateFlow TemplateFlow
	registry     *services.ProviderRegistry
	db           *gorm.DB
}

// NewWebhookFlow creates a new webhook flow instance
func NewWebhookFlow(
	messageRepo repository.MessageRepository,
	webhookRepo repository.WebhookEventRepository,
	usageRepo repository.UsageRecordRepository,
	templateFlow TemplateFlow,
	registry *services.ProviderRegistry,
	db *gorm.DB,
) WebhookFlow {
	return &WebhookFlowImpl{
		messageRepo:  messageRepo,
		webhookRepo:  webhookRepo,
		usageRepo:    usageRepo,
		templateFlow: templateFlow,
		registry:     registry,
		db:           db,
	}
}

// HandleWebhook processes one vendor callback. A failed signature check
// drops the payload before any state mutation; everything after the audit
// row is best-effort per event so one malformed event cannot block others.
func (s *WebhookFlowImpl) HandleWebhook(ctx context.Context, provider models.ProviderType, req services.WebhookRequest) error {
	adapter, ok := s.registry.Provider(provider)
	if !ok {
		services.RecordWebhookRejection(string(provider), "unknown_provider")
		return NewBusinessErrorf("UNKNOWN_PROVIDER", "unknown webhook provider %q", ErrUnknownProvider, provider)
	}

	if req.Signature != "" && !adapter.VerifyWebhookSignature(req) {
		services.RecordWebhookRejection(string(provider), "bad_signature")
		log.Printf("webhook: signature verification failed for %s, dropping payload", provider)
		return NewBusinessError("INVALID_SIGNATURE", "webhook signature verification failed", ErrInvalidSignature)
	}

	// Audit row first, so the trail exists even if normalization panics
	event := &models.WebhookEvent{
		EventID:    uuid.New(),
		Provider:   provider,
		RawPayload: auditPayload(req),
		Status:     models.WebhookEventStatusPending,
	}
	if err := s.webhookRepo.Save(ctx, event); err != nil {
		return NewBusinessError(CodeInternalError, "Failed to persist webhook audit row", err)
	}

	events := adapter.NormalizeWebhookEvents(req.RawBody)

	processed := 0
	ignored := 0
	var firstErr error
	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, string(ev.Type))
		services.RecordWebhookEvent(provider, ev.Type)

		outcome, err := s.applyEvent(ctx, provider, ev)
		if err != nil {
			log.Printf("webhook: apply %s event failed for %s: %v", ev.Type, provider, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if outcome {
			processed++
		} else {
			ignored++
		}
	}

	status := models.WebhookEventStatusProcessed
	errMsg := ""
	switch {
	case firstErr != nil:
		status = models.WebhookEventStatusFailed
		errMsg = firstErr.Error()
	case processed == 0:
		status = models.WebhookEventStatusIgnored
	}
	if err := s.webhookRepo.MarkStatus(ctx, event.EventID, status, strings.Join(types, ","), errMsg); err != nil {
		log.Printf("webhook: failed to mark audit row %s: %v", event.EventID, err)
	}

	if firstErr != nil {
		return NewBusinessError(CodeInternalError, "Webhook event processing failed", firstErr)
	}
	return nil
}

// auditPayload stores the raw body for JSON callbacks and a JSON-encoded
// form for Twilio's url-encoded ones, keeping the jsonb column valid.
func auditPayload(req services.WebhookRequest) json.RawMessage {
	if json.Valid(req.RawBody) {
		return json.RawMessage(req.RawBody)
	}
	if len(req.Form) > 0 {
		if encoded, err := json.Marshal(req.Form); err == nil {
			return encoded
		}
	}
	if encoded, err := json.Marshal(string(req.RawBody)); err == nil {
		return encoded
	}
	return json.RawMessage(`{}`)
}

// applyEvent routes one normalized event. Returns true when the event
// mutated state, false when it was ignored.
func (s *WebhookFlowImpl) applyEvent(ctx context.Context, provider models.ProviderType, ev services.NormalizedEvent) (bool, error) {
	switch ev.Type {
	case services.EventMessageSent, services.EventMessageDelivered, services.EventMessageRead, services.EventMessageFailed:
		return s.applyMessageEvent(ctx, provider, ev)
	case services.EventTemplateApproved, services.EventTemplateRejected:
		if err := s.templateFlow.ApplyTemplateEvent(ctx, provider, ev); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, nil
	}
}

// applyMessageEvent advances a message's delivery state. Transitions are
// monotonic by rank: replays and out-of-order callbacks are ignored, which
// also makes the usage counter increments idempotent.
func (s *WebhookFlowImpl) applyMessageEvent(ctx context.Context, provider models.ProviderType, ev services.NormalizedEvent) (bool, error) {
	if ev.ProviderMessageID == "" {
		return false, nil
	}
	message, err := s.messageRepo.ByProviderMessageID(ctx, provider, ev.ProviderMessageID)
	if err != nil {
		return false, err
	}
	if message == nil {
		// Vendor id we never issued (or a race with dispatch persistence);
		// drop rather than guess
		return false, nil
	}

	newStatus := statusForEvent(ev.Type)
	if newStatus.Rank() <= message.Status.Rank() {
		return false, nil
	}
	// Failure is terminal only before delivery; a failure callback for a
	// message the vendor already delivered is noise
	if newStatus == models.MessageStatusFailed && message.Status.Rank() >= models.MessageStatusDelivered.Rank() {
		return false, nil
	}

	now := utils.UTCNow()
	at := now
	if ev.Timestamp != nil {
		at = ev.Timestamp.UTC()
	}

	message.Status = newStatus
	switch newStatus {
	case models.MessageStatusSent:
		message.SentAt = &at
	case models.MessageStatusDelivered:
		message.DeliveredAt = &at
	case models.MessageStatusRead:
		message.ReadAt = &at
		if message.DeliveredAt == nil {
			// Some vendors skip the delivered callback when read follows fast
			message.DeliveredAt = &at
		}
	case models.MessageStatusFailed:
		message.FailedAt = &at
		message.ErrorCode = ev.ErrorCode
		message.ErrorMessage = ev.ErrorMessage
	}

	if err := s.messageRepo.Update(ctx, message); err != nil {
		return false, err
	}

	if err := s.bumpUsage(ctx, message, newStatus); err != nil {
		// Counter drift is tolerable; the message row is the source of truth
		log.Printf("webhook: usage increment failed for message %s: %v", message.UUID, err)
	}
	return true, nil
}

func statusForEvent(t services.NormalizedEventType) models.MessageStatus {
	switch t {
	case services.EventMessageSent:
		return models.MessageStatusSent
	case services.EventMessageDelivered:
		return models.MessageStatusDelivered
	case services.EventMessageRead:
		return models.MessageStatusRead
	case services.EventMessageFailed:
		return models.MessageStatusFailed
	default:
		return models.MessageStatusPending
	}
}

// bumpUsage increments the aggregate for the month the message was sent in,
// not the month the callback arrived.
func (s *WebhookFlowImpl) bumpUsage(ctx context.Context, message *models.Message, status models.MessageStatus) error {
	yearMonth := utils.YearMonthOf(message.CreatedAt)
	usage, err := s.usageRepo.ByTenantAndMonth(ctx, message.TenantID, yearMonth)
	if err != nil {
		return err
	}
	if usage == nil {
		return fmt.Errorf("no usage record for tenant %d month %s", message.TenantID, yearMonth)
	}

	switch status {
	case models.MessageStatusDelivered:
		return s.usageRepo.IncrementDelivered(ctx, usage.ID)
	case models.MessageStatusRead:
		return s.usageRepo.IncrementRead(ctx, usage.ID)
	case models.MessageStatusFailed:
		return s.usageRepo.IncrementFailed(ctx, usage.ID)
	}
	return nil
}
