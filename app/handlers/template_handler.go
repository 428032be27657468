package handlers

import (
	"log"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/udyogsetu/messaging-core/app/dto"
	businessflow "github.com/udyogsetu/messaging-core/business_flow"
)

// TemplateHandlerInterface defines the contract for template handlers
type TemplateHandlerInterface interface {
	SubmitTemplate(c fiber.Ctx) error
	ListTemplates(c fiber.Ctx) error
	SyncTemplate(c fiber.Ctx) error
}

// TemplateHandler handles template lifecycle HTTP requests
type TemplateHandler struct {
	templateFlow businessflow.TemplateFlow
	validator    *validator.Validate
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(templateFlow businessflow.TemplateFlow) *TemplateHandler {
	return &TemplateHandler{
		templateFlow: templateFlow,
		validator:    validator.New(),
	}
}

// SubmitTemplate creates a pending template and submits it for vendor review
func (h *TemplateHandler) SubmitTemplate(c fiber.Ctx) error {
	var req dto.SubmitTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.templateFlow.SubmitTemplate(requestContext(c, "/api/v1/templates"), &req, metadata)
	if err != nil {
		if businessflow.IsTenantNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Tenant not found", businessflow.CodeTenantNotFound, nil)
		}
		log.Println("Template submission failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Template submission failed", businessflow.CodeInternalError, nil)
	}

	if !result.Success {
		return successResponse(c, fiber.StatusOK, "Template submission rejected", result)
	}
	return successResponse(c, fiber.StatusCreated, "Template submitted for review", result)
}

// ListTemplates returns a page of the tenant's templates
func (h *TemplateHandler) ListTemplates(c fiber.Ctx) error {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.Query("page_size", "20"))
	if err != nil || pageSize < 1 {
		pageSize = 20
	}
	req := dto.ListTemplatesRequest{
		TenantUUID: c.Query("tenant_uuid"),
		Status:     c.Query("status"),
		Page:       page,
		PageSize:   pageSize,
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	result, err := h.templateFlow.ListTemplates(requestContext(c, "/api/v1/templates"), &req)
	if err != nil {
		if businessflow.IsTenantNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Tenant not found", businessflow.CodeTenantNotFound, nil)
		}
		log.Println("Template listing failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Template listing failed", businessflow.CodeInternalError, nil)
	}

	return successResponse(c, fiber.StatusOK, "Templates retrieved", result)
}

// SyncTemplate forces a vendor status poll for one template
func (h *TemplateHandler) SyncTemplate(c fiber.Ctx) error {
	templateID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || templateID == 0 {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid template id", "VALIDATION_ERROR", nil)
	}

	template, err := h.templateFlow.SyncTemplateStatus(requestContext(c, "/api/v1/templates/:id/sync"), uint(templateID))
	if err != nil {
		if businessflow.IsTemplateNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Template not found", businessflow.CodeTemplateNotFound, nil)
		}
		log.Println("Template sync failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Template sync failed", businessflow.CodeInternalError, nil)
	}

	return successResponse(c, fiber.StatusOK, "Template status synced", fiber.Map{
		"id":     template.ID,
		"name":   template.Name,
		"status": string(template.Status),
	})
}
