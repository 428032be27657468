package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/udyogsetu/messaging-core/app/dto"
	"github.com/udyogsetu/messaging-core/app/services"
	"github.com/udyogsetu/messaging-core/models"
	"github.com/udyogsetu/messaging-core/repository"
	"github.com/udyogsetu/messaging-core/utils"
)

// TemplateFlow handles the template approval lifecycle:
// pending -> approved / rejected, both terminal. Re-submission always
// creates a new row.
type TemplateFlow interface {
	SubmitTemplate(ctx context.Context, req *dto.SubmitTemplateRequest, metadata *ClientMetadata) (*dto.SubmitTemplateResponse, error)
	SyncTemplateStatus(ctx context.Context, templateID uint) (*models.MessageTemplate, error)
	SyncPendingTemplates(ctx context.Context, limit int) (int, error)
	ApplyTemplateEvent(ctx context.Context, provider models.ProviderType, ev services.NormalizedEvent) error
	ListTemplates(ctx context.Context, req *dto.ListTemplatesRequest) (*dto.ListTemplatesResponse, error)
}

// TemplateFlowImpl implements the template business flow
type TemplateFlowImpl struct {
	tenantRepo   repository.TenantRepository
	templateRepo repository.MessageTemplateRepository
	registry     *services.ProviderRegistry
	db           *gorm.DB
}

// NewTemplateFlow creates a new template flow instance
func NewTemplateFlow(
	tenantRepo repository.TenantRepository,
	templateRepo repository.MessageTemplateRepository,
	registry *services.ProviderRegistry,
	db *gorm.DB,
) TemplateFlow {
	return &TemplateFlowImpl{
		tenantRepo:   tenantRepo,
		templateRepo: templateRepo,
		registry:     registry,
		db:           db,
	}
}

// SubmitTemplate creates the pending row and submits it for vendor review.
// The row is persisted even when the vendor rejects the submission outright
// so the rejection is auditable.
func (s *TemplateFlowImpl) SubmitTemplate(ctx context.Context, req *dto.SubmitTemplateRequest, metadata *ClientMetadata) (*dto.SubmitTemplateResponse, error) {
	tenant, err := s.tenantRepo.ByUUID(ctx, req.TenantUUID)
	if err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to lookup tenant", err)
	}
	if tenant == nil {
		return nil, NewBusinessError(CodeTenantNotFound, "Tenant not found", ErrTenantNotFound)
	}

	providerType, provider, err := s.resolveProvider(tenant, req.Provider)
	if err != nil {
		return &dto.SubmitTemplateResponse{
			Success:      false,
			ErrorCode:    CodeNoProviderAvailable,
			ErrorMessage: err.Error(),
		}, nil
	}

	language := req.Language
	if language == "" {
		language = "en"
	}

	buttons := make([]models.TemplateButton, 0, len(req.Buttons))
	for _, b := range req.Buttons {
		buttons = append(buttons, models.TemplateButton{
			Type:        b.Type,
			Text:        b.Text,
			URL:         b.URL,
			PhoneNumber: b.PhoneNumber,
		})
	}

	params := services.TemplateSubmitParams{
		Name:             req.Name,
		Category:         models.TemplateCategory(req.Category),
		Language:         language,
		HeaderText:       req.HeaderText,
		BodyText:         req.BodyText,
		FooterText:       req.FooterText,
		Buttons:          buttons,
		PlaceholderCount: services.CountPlaceholders(req.BodyText),
		SampleParams:     req.SampleParams,
	}

	result := provider.SubmitTemplate(ctx, params)

	template := &models.MessageTemplate{
		TenantID:         tenant.ID,
		Name:             req.Name,
		Category:         params.Category,
		Language:         language,
		Provider:         providerType,
		HeaderText:       req.HeaderText,
		BodyText:         req.BodyText,
		FooterText:       req.FooterText,
		PlaceholderCount: params.PlaceholderCount,
		Status:           models.TemplateStatusPending,
	}
	if len(buttons) > 0 {
		if raw, err := json.Marshal(buttons); err == nil {
			template.Buttons = raw
		}
	}
	if result.Success {
		template.ProviderTemplateID = utils.ToPtr(result.ProviderTemplateID)
		if result.Status != "" {
			template.Status = result.Status
		}
		if template.Status == models.TemplateStatusApproved {
			template.ApprovedAt = utils.UTCNowPtr()
		}
	} else {
		template.Status = models.TemplateStatusRejected
		template.RejectionReason = fmt.Sprintf("%s: %s", result.ErrorCode, result.ErrorMessage)
	}

	if err := s.templateRepo.Save(ctx, template); err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to persist template", err)
	}

	if !result.Success {
		return &dto.SubmitTemplateResponse{
			Success:      false,
			Template:     toTemplateDTO(template),
			ErrorCode:    result.ErrorCode,
			ErrorMessage: result.ErrorMessage,
		}, nil
	}

	return &dto.SubmitTemplateResponse{Success: true, Template: toTemplateDTO(template)}, nil
}

func (s *TemplateFlowImpl) resolveProvider(tenant *models.Tenant, requested string) (models.ProviderType, services.MessagingProvider, error) {
	if requested != "" {
		providerType := models.ProviderType(requested)
		adapter, ok := s.registry.Provider(providerType)
		if !ok || !adapter.IsConfigured() {
			return "", nil, fmt.Errorf("provider %s is not configured", requested)
		}
		return providerType, adapter, nil
	}

	adapter, _, err := s.registry.GetProviderForCountry(utils.NormalizeCountry(tenant.Country))
	if err != nil {
		return "", nil, err
	}
	return adapter.Name(), adapter, nil
}

// SyncTemplateStatus polls the owning vendor and applies the transition.
// Terminal rows are returned unchanged; approvedAt is set only on the
// transition into approved.
func (s *TemplateFlowImpl) SyncTemplateStatus(ctx context.Context, templateID uint) (*models.MessageTemplate, error) {
	template, err := s.templateRepo.ByID(ctx, templateID)
	if err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to lookup template", err)
	}
	if template == nil {
		return nil, NewBusinessError(CodeTemplateNotFound, "Template not found", ErrTemplateNotFound)
	}
	if template.Status != models.TemplateStatusPending {
		return template, nil
	}
	if template.ProviderTemplateID == nil {
		return template, nil
	}

	adapter, ok := s.registry.Provider(template.Provider)
	if !ok {
		return nil, NewBusinessError(CodeNoProviderAvailable, "Template provider is not registered", ErrNoProviderAvailable)
	}

	result := adapter.GetTemplateStatus(ctx, *template.ProviderTemplateID)
	if !result.Success {
		return nil, NewBusinessErrorf(CodeInternalError, "Vendor status poll failed: %s", nil, result.ErrorMessage)
	}
	if result.Status == models.TemplateStatusPending {
		return template, nil
	}

	s.applyTransition(template, result.Status, result.RejectionReason)
	if err := s.templateRepo.Update(ctx, template); err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to update template", err)
	}
	return template, nil
}

func (s *TemplateFlowImpl) applyTransition(template *models.MessageTemplate, status models.TemplateStatus, reason string) {
	template.Status = status
	switch status {
	case models.TemplateStatusApproved:
		template.ApprovedAt = utils.UTCNowPtr()
		template.RejectionReason = ""
	case models.TemplateStatusRejected:
		template.RejectionReason = reason
	}
}

// SyncPendingTemplates polls every pending template once; used by the sync
// scheduler. Returns how many rows reached a terminal state.
func (s *TemplateFlowImpl) SyncPendingTemplates(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	pending, err := s.templateRepo.ListPending(ctx, limit)
	if err != nil {
		return 0, NewBusinessError(CodeInternalError, "Failed to list pending templates", err)
	}

	transitioned := 0
	for _, template := range pending {
		updated, err := s.SyncTemplateStatus(ctx, template.ID)
		if err != nil {
			log.Printf("template sync: poll failed for template %d (%s): %v", template.ID, template.Name, err)
			continue
		}
		if updated.Status != models.TemplateStatusPending {
			transitioned++
		}
	}
	return transitioned, nil
}

// ApplyTemplateEvent handles a template.approved/rejected webhook event by
// resolving the row by vendor template id and applying the transition.
// Events for unknown or already-terminal templates are ignored.
func (s *TemplateFlowImpl) ApplyTemplateEvent(ctx context.Context, provider models.ProviderType, ev services.NormalizedEvent) error {
	var template *models.MessageTemplate
	var err error

	if ev.ProviderTemplateID != "" {
		template, err = s.templateRepo.ByProviderTemplateID(ctx, provider, ev.ProviderTemplateID)
		if err != nil {
			return err
		}
	}
	if template == nil && ev.TemplateName != "" {
		// Meta's review callback carries the template name, not our id
		name := ev.TemplateName
		p := provider
		rows, err := s.templateRepo.ByFilter(ctx, models.MessageTemplateFilter{Name: &name, Provider: &p}, "id DESC", 1, 0)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			template = rows[0]
		}
	}
	if template == nil || template.Status != models.TemplateStatusPending {
		return nil
	}

	switch ev.Type {
	case services.EventTemplateApproved:
		s.applyTransition(template, models.TemplateStatusApproved, "")
	case services.EventTemplateRejected:
		s.applyTransition(template, models.TemplateStatusRejected, ev.RejectionReason)
	default:
		return nil
	}
	return s.templateRepo.Update(ctx, template)
}

// ListTemplates returns a page of a tenant's templates, newest first
func (s *TemplateFlowImpl) ListTemplates(ctx context.Context, req *dto.ListTemplatesRequest) (*dto.ListTemplatesResponse, error) {
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

	filter := models.MessageTemplateFilter{TenantID: &tenant.ID}
	if req.Status != "" {
		status := models.TemplateStatus(req.Status)
		filter.Status = &status
	}

	rows, err := s.templateRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to list templates", err)
	}
	total, err := s.templateRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError(CodeInternalError, "Failed to count templates", err)
	}

	items := make([]dto.TemplateDTO, 0, len(rows))
	for _, t := range rows {
		items = append(items, toTemplateDTO(t))
	}
	return &dto.ListTemplatesResponse{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func toTemplateDTO(t *models.MessageTemplate) dto.TemplateDTO {
	out := dto.TemplateDTO{
		ID:               t.ID,
		Name:             t.Name,
		Category:         string(t.Category),
		Language:         t.Language,
		Provider:         string(t.Provider),
		BodyText:         t.BodyText,
		PlaceholderCount: t.PlaceholderCount,
		Status:           string(t.Status),
		RejectionReason:  t.RejectionReason,
		CreatedAt:        t.CreatedAt.Format(time.RFC3339),
	}
	if t.ProviderTemplateID != nil {
		out.ProviderTemplateID = *t.ProviderTemplateID
	}
	if t.ApprovedAt != nil {
		out.ApprovedAt = t.ApprovedAt.Format(time.RFC3339)
	}
	return out
}
