package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/udyogsetu/messaging-core/app/dto"
	"github.com/udyogsetu/messaging-core/app/services"
	"github.com/udyogsetu/messaging-core/models"
	"github.com/udyogsetu/messaging-core/repository"
	"github.com/udyogsetu/messaging-core/utils"
)

// MessageDispatchFlow is the single write path for outbound messages
type MessageDispatchFlow interface {
	SendMessage(ctx context.Context, req *dto.SendMessageRequest, metadata *ClientMetadata) (*dto.SendMessageResponse, error)
	GetUsage(ctx context.Context, tenantUUID, yearMonth string) (*dto.UsageSummaryDTO, error)
	ListMessages(ctx context.Context, req *dto.ListMessagesRequest) (*dto.ListMessagesResponse, error)
}

// MessageDispatchFlowImpl implements the dispatch business flow
type MessageDispatchFlowImpl struct {
	tenantRepo   repository.TenantRepository
	messageRepo  repository.MessageRepository
	templateRepo repository.MessageTemplateRepository
	optInRepo    repository.OptInRepository
	usageRepo    repository.UsageRecordRepository
	registry     *services.ProviderRegistry
	cache        *redis.Client // optional quota counter mirror
	cachePrefix  string
	db           *gorm.DB
}

// NewMessageDispatchFlow creates a new dispatch flow instance
func NewMessageDispatchFlow(
	tenantRepo repository.TenantRepository,
	messageRepo repository.MessageRepository,
	templateRepo repository.MessageTemplateRepository,
	optInRepo repository.OptInRepository,
	usageRepo repository.UsageRecordRepository,
	registry *services.ProviderRegistry,
	cache *redis.Client,
	cachePrefix string,
	db *gorm.DB,
) MessageDispatchFlow {
	return &MessageDispatchFlowImpl{
		tenantRepo:   tenantRepo,
		messageRepo:  messageRepo,
		templateRepo: templateRepo,
		optInRepo:    optInRepo,
		usageRepo:    usageRepo,
		registry:     registry,
		cache:        cache,
		cachePrefix:  cachePrefix,
		db:           db,
	}
}

// failResult builds the typed failure response dispatch returns on any
// business short-circuit. These are outcomes, not errors: the caller gets
// Success=false and a code, never a Go error.
func failResult(code, message string) *dto.SendMessageResponse {
	return &dto.SendMessageResponse{
		Success:      false,
		ErrorCode:    code,
		ErrorMessage: message,
	}
}

// SendMessage runs the dispatch sequence. Each step short-circuits with a
// typed result; Go errors are reserved for infrastructure faults (DB down).
func (s *MessageDispatchFlowImpl) SendMessage(ctx context.Context, req *dto.SendMessageRequest, metadata *ClientMetadata) (*dto.SendMessageResponse, error) {
	// 1. Resolve tenant and destination country
	tenant, err := s.tenantRepo.ByUUID(ctx, req.TenantUUID)
	if err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to lookup tenant", err)
	}
	if tenant == nil {
		return failResult(CodeTenantNotFound, "tenant not found"), nil
	}
	if !tenant.IsActive {
		return failResult(CodeTenantNotFound, "tenant is inactive"), nil
	}
	country := utils.NormalizeCountry(tenant.Country)

	phone := utils.NormalizePhoneNumber(req.To)
	if !utils.IsValidPhoneNumber(phone) {
		return failResult(CodeInvalidMessageType, fmt.Sprintf("invalid destination phone number %q", req.To)), nil
	}

	if !models.IsValidMessageType(req.Type) {
		return failResult(CodeInvalidMessageType, fmt.Sprintf("unsupported message type %q", req.Type)), nil
	}
	msgType := models.MessageType(req.Type)
	// Interactive is a stored type the adapters expose no send method for
	if msgType == models.MessageTypeInteractive {
		return failResult(CodeInvalidMessageType, "interactive messages cannot be dispatched"), nil
	}

	// 2. Quota check before anything touches the network
	quotaLimit := s.resolveQuotaLimit(tenant, country)
	usage, err := s.usageRepo.GetOrCreate(ctx, tenant.ID, utils.CurrentYearMonth(), country, "", quotaLimit)
	if err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to load usage record", err)
	}
	if usage.QuotaExhausted() {
		services.RecordDispatch("", country, msgType, CodeQuotaExceeded)
		resp := failResult(CodeQuotaExceeded, "monthly message quota exhausted")
		resp.QuotaUsed = int(usage.QuotaUsed)
		resp.QuotaLimit = int(usage.QuotaLimit)
		return resp, nil
	}

	// 3. Consent check
	optIn, err := s.optInRepo.ByTenantAndPhone(ctx, tenant.ID, phone)
	if err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to lookup opt-in", err)
	}
	if optIn == nil || !optIn.IsActive {
		services.RecordDispatch("", country, msgType, CodeNoOptIn)
		return failResult(CodeNoOptIn, "recipient has not opted in to receive messages"), nil
	}

	// 4. Provider selection
	provider, mapping, err := s.registry.GetProviderForCountry(country)
	if err != nil {
		services.RecordDispatch("", country, msgType, CodeNoProviderAvailable)
		return failResult(CodeNoProviderAvailable, err.Error()), nil
	}
	senderNumber := ""
	if mapping != nil {
		senderNumber = mapping.SenderNumber
	}

	// 5. Template resolution for template sends; no vendor call is made
	// for unknown or unapproved templates
	var template *models.MessageTemplate
	if msgType == models.MessageTypeTemplate {
		template, err = s.resolveTemplate(ctx, tenant.ID, req, provider.Name())
		if err != nil {
			return nil, NewBusinessError(CodeInternalError, "Failed to lookup template", err)
		}
		if template == nil {
			services.RecordDispatch(provider.Name(), country, msgType, CodeTemplateNotFound)
			return failResult(CodeTemplateNotFound, "template not found for this tenant and provider"), nil
		}
		if template.Status != models.TemplateStatusApproved {
			services.RecordDispatch(provider.Name(), country, msgType, CodeTemplateNotApproved)
			return failResult(CodeTemplateNotApproved, fmt.Sprintf("template %q is %s, not approved", template.Name, template.Status)), nil
		}
		if len(req.TemplateParams) != template.PlaceholderCount {
			return failResult(CodeTemplateNotApproved, fmt.Sprintf("template %q expects %d parameters, got %d",
				template.Name, template.PlaceholderCount, len(req.TemplateParams))), nil
		}
	}

	// 6. Dispatch via the adapter method matching the message type
	result := s.dispatch(ctx, provider, req, phone, senderNumber, template)

	// 7. Persist the message row win or lose
	costPaise := int64(0)
	if result.Success {
		costPaise = utils.UnitCostPaise(country)
	}
	message, err := s.persistMessage(ctx, tenant.ID, provider.Name(), req, phone, country, msgType, template, result, costPaise)
	if err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to persist message", err)
	}

	if !result.Success {
		services.RecordDispatch(provider.Name(), country, msgType, CodeSendFailed)
		resp := failResult(CodeSendFailed, result.ErrorMessage)
		resp.MessageUUID = message.UUID.String()
		resp.Provider = string(provider.Name())
		resp.Status = string(models.MessageStatusFailed)
		if result.ErrorCode != "" {
			resp.ErrorMessage = fmt.Sprintf("%s: %s", result.ErrorCode, result.ErrorMessage)
		}
		return resp, nil
	}

	// 8. Success only: atomic usage and consent counter increments
	if err := s.usageRepo.IncrementSent(ctx, usage.ID, msgType == models.MessageTypeTemplate, costPaise); err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to increment usage", err)
	}
	if err := s.optInRepo.RecordMessageSent(ctx, optIn.ID, utils.UTCNow()); err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to record opt-in activity", err)
	}
	s.mirrorQuotaCounter(ctx, tenant.ID)
	services.RecordDispatch(provider.Name(), country, msgType, "sent")

	return &dto.SendMessageResponse{
		Success:           true,
		MessageUUID:       message.UUID.String(),
		Provider:          string(provider.Name()),
		ProviderMessageID: result.ProviderMessageID,
		Status:            string(message.Status),
		QuotaUsed:         int(usage.QuotaUsed) + 1,
		QuotaLimit:        int(usage.QuotaLimit),
	}, nil
}

// resolveQuotaLimit picks the tenant override, then the country mapping
// quota, then the compiled-in default.
func (s *MessageDispatchFlowImpl) resolveQuotaLimit(tenant *models.Tenant, country string) int64 {
	if tenant.MonthlyQuotaOverride > 0 {
		return tenant.MonthlyQuotaOverride
	}
	if mapping, ok := s.registry.MappingForCountry(country); ok && mapping.MonthlyQuota > 0 {
		return mapping.MonthlyQuota
	}
	return utils.DefaultMonthlyQuota
}

// resolveTemplate finds the template by ID or name, preferring the row
// registered with the routed provider when the tenant has per-vendor copies.
func (s *MessageDispatchFlowImpl) resolveTemplate(ctx context.Context, tenantID uint, req *dto.SendMessageRequest, provider models.ProviderType) (*models.MessageTemplate, error) {
	if req.TemplateID != nil {
		template, err := s.templateRepo.ByID(ctx, *req.TemplateID)
		if err != nil {
			return nil, err
		}
		if template == nil || template.TenantID != tenantID {
			return nil, nil
		}
		return template, nil
	}
	if req.TemplateName == "" {
		return nil, nil
	}

	rows, err := s.templateRepo.ByFilter(ctx, models.MessageTemplateFilter{
		TenantID: &tenantID,
		Name:     &req.TemplateName,
		Provider: &provider,
	}, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows[0], nil
	}

	// No copy for the routed provider; fall back to any provider's row so
	// the caller gets a precise not-approved/not-found outcome
	return s.templateRepo.ByTenantAndName(ctx, tenantID, req.TemplateName)
}

func (s *MessageDispatchFlowImpl) dispatch(ctx context.Context, provider services.MessagingProvider, req *dto.SendMessageRequest, phone, senderNumber string, template *models.MessageTemplate) *services.SendResult {
	switch models.MessageType(req.Type) {
	case models.MessageTypeTemplate:
		providerTemplateID := ""
		if template.ProviderTemplateID != nil {
			providerTemplateID = *template.ProviderTemplateID
		}
		return provider.SendTemplateMessage(ctx, services.SendTemplateInput{
			To:                 phone,
			TemplateName:       template.Name,
			ProviderTemplateID: providerTemplateID,
			Params:             req.TemplateParams,
			Language:           template.Language,
			SenderNumber:       senderNumber,
		})
	case models.MessageTypeText:
		return provider.SendTextMessage(ctx, services.SendTextInput{
			To:           phone,
			Text:         req.Text,
			SenderNumber: senderNumber,
		})
	case models.MessageTypeMedia:
		return provider.SendMediaMessage(ctx, services.SendMediaInput{
			To:           phone,
			MediaURL:     req.MediaURL,
			MediaKind:    req.MediaKind,
			Caption:      req.Caption,
			SenderNumber: senderNumber,
		})
	default:
		return &services.SendResult{
			Success:      false,
			Status:       models.MessageStatusFailed,
			ErrorCode:    CodeInvalidMessageType,
			ErrorMessage: fmt.Sprintf("unsupported message type %q", req.Type),
		}
	}
}

func (s *MessageDispatchFlowImpl) persistMessage(ctx context.Context, tenantID uint, provider models.ProviderType, req *dto.SendMessageRequest, phone, country string, msgType models.MessageType, template *models.MessageTemplate, result *services.SendResult, costPaise int64) (*models.Message, error) {
	now := utils.UTCNow()

	message := &models.Message{
		TenantID:      tenantID,
		Provider:      provider,
		ToPhoneNumber: phone,
		Type:          msgType,
		Country:       country,
		Status:        result.Status,
		CostPaise:     costPaise,
	}
	if result.ProviderMessageID != "" {
		message.ProviderMessageID = utils.ToPtr(result.ProviderMessageID)
	}
	if template != nil {
		message.TemplateID = &template.ID
		message.Content = template.BodyText
		if len(req.TemplateParams) > 0 {
			if params, err := json.Marshal(req.TemplateParams); err == nil {
				message.TemplateParams = params
			}
		}
	} else {
		message.Content = req.Text
		message.MediaURL = req.MediaURL
	}

	switch result.Status {
	case models.MessageStatusSent:
		message.SentAt = &now
	case models.MessageStatusFailed:
		message.FailedAt = &now
		message.ErrorCode = result.ErrorCode
		message.ErrorMessage = result.ErrorMessage
	}

	if err := s.messageRepo.Save(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}

// mirrorQuotaCounter keeps a best-effort copy of the monthly counter in
// Redis so multiple instances can consult it without a DB round trip.
// Failures are logged, never surfaced: the DB row stays authoritative.
func (s *MessageDispatchFlowImpl) mirrorQuotaCounter(ctx context.Context, tenantID uint) {
	if s.cache == nil {
		return
	}
	key := fmt.Sprintf("%squota:%d:%s", s.cachePrefix, tenantID, utils.CurrentYearMonth())
	pipe := s.cache.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, utils.QuotaCounterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("dispatch: quota counter mirror failed for tenant %d: %v", tenantID, err)
	}
}

// GetUsage returns the monthly usage summary for a tenant
func (s *MessageDispatchFlowImpl) GetUsage(ctx context.Context, tenantUUID, yearMonth string) (*dto.UsageSummaryDTO, error) {
	tenant, err := s.tenantRepo.ByUUID(ctx, tenantUUID)
	if err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to lookup tenant", err)
	}
	if tenant == nil {
		return nil, NewBusinessError(CodeTenantNotFound, "Tenant not found", ErrTenantNotFound)
	}
	if yearMonth == "" {
		yearMonth = utils.CurrentYearMonth()
	}

	usage, err := s.usageRepo.ByTenantAndMonth(ctx, tenant.ID, yearMonth)
	if err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to load usage record", err)
	}
	if usage == nil {
		return &dto.UsageSummaryDTO{YearMonth: yearMonth, QuotaLimit: int(s.resolveQuotaLimit(tenant, utils.NormalizeCountry(tenant.Country)))}, nil
	}

	return &dto.UsageSummaryDTO{
		YearMonth:         usage.YearMonth,
		MessagesSent:      int(usage.MessagesSent),
		MessagesDelivered: int(usage.MessagesDelivered),
		MessagesRead:      int(usage.MessagesRead),
		MessagesFailed:    int(usage.MessagesFailed),
		QuotaUsed:         int(usage.QuotaUsed),
		QuotaLimit:        int(usage.QuotaLimit),
		TotalCostPaise:    usage.TotalCostPaise,
	}, nil
}

// ListMessages returns a page of a tenant's messages, newest first
func (s *MessageDispatchFlowImpl) ListMessages(ctx context.Context, req *dto.ListMessagesRequest) (*dto.ListMessagesResponse, error) {
	tenant, err := s.tenantRepo.ByUUID(ctx, req.TenantUUID)
	if err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to lookup tenant", err)
	}
	if tenant == nil {
		return nil, NewBusinessError(CodeTenantNotFound, "Tenant not found", ErrTenantNotFound)
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filter := models.MessageFilter{TenantID: &tenant.ID}
	if req.Status != "" {
		status := models.MessageStatus(req.Status)
		filter.Status = &status
	}

	rows, err := s.messageRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to list messages", err)
	}
	total, err := s.messageRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to count messages", err)
	}

	items := make([]dto.MessageDTO, 0, len(rows))
	for _, m := range rows {
		items = append(items, toMessageDTO(m))
	}
	return &dto.ListMessagesResponse{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func toMessageDTO(m *models.Message) dto.MessageDTO {
	out := dto.MessageDTO{
		UUID:         m.UUID.String(),
		Provider:     string(m.Provider),
		To:           m.ToPhoneNumber,
		Type:         string(m.Type),
		Country:      m.Country,
		Status:       string(m.Status),
		ErrorCode:    m.ErrorCode,
		ErrorMessage: m.ErrorMessage,
		CostPaise:    m.CostPaise,
		CreatedAt:    m.CreatedAt.Format(time.RFC3339),
	}
	if m.ProviderMessageID != nil {
		out.ProviderMessageID = *m.ProviderMessageID
	}
	if m.SentAt != nil {
		out.SentAt = m.SentAt.Format(time.RFC3339)
	}
	if m.DeliveredAt != nil {
		out.DeliveredAt = m.DeliveredAt.Format(time.RFC3339)
	}
	if m.ReadAt != nil {
		out.ReadAt = m.ReadAt.Format(time.RFC3339)
	}
	return out
}

