package handlers

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/udyogsetu/messaging-core/app/dto"
	businessflow "github.com/udyogsetu/messaging-core/business_flow"
)

// ConsentHandlerInterface defines the contract for consent handlers
type ConsentHandlerInterface interface {
	OptIn(c fiber.Ctx) error
	OptOut(c fiber.Ctx) error
	GetOptIn(c fiber.Ctx) error
}

// ConsentHandler handles opt-in and opt-out HTTP requests
type ConsentHandler struct {
	consentFlow businessflow.ConsentFlow
	validator   *validator.Validate
}

// NewConsentHandler creates a new consent handler
func NewConsentHandler(consentFlow businessflow.ConsentFlow) *ConsentHandler {
	return &ConsentHandler{
		consentFlow: consentFlow,
		validator:   validator.New(),
	}
}

// OptIn records consent for a (tenant, phone) pair
func (h *ConsentHandler) OptIn(c fiber.Ctx) error {
	var req dto.OptInRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.consentFlow.OptIn(requestContext(c, "/api/v1/opt-ins"), &req, metadata)
	if err != nil {
		if businessflow.IsTenantNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Tenant not found", businessflow.CodeTenantNotFound, nil)
		}
		if businessflow.IsInvalidPhoneNumber(err) {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid phone number", "INVALID_PHONE_NUMBER", nil)
		}
		log.Println("Opt-in failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Opt-in failed", businessflow.CodeInternalError, nil)
	}

	return successResponse(c, fiber.StatusOK, "Opt-in recorded", result)
}

// OptOut deactivates consent for a (tenant, phone) pair
func (h *ConsentHandler) OptOut(c fiber.Ctx) error {
	var req dto.OptOutRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.consentFlow.OptOut(requestContext(c, "/api/v1/opt-ins/opt-out"), &req, metadata)
	if err != nil {
		if businessflow.IsTenantNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Tenant not found", businessflow.CodeTenantNotFound, nil)
		}
		if businessflow.IsOptInNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Opt-in record not found", "OPTIN_NOT_FOUND", nil)
		}
		log.Println("Opt-out failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Opt-out failed", businessflow.CodeInternalError, nil)
	}

	return successResponse(c, fiber.StatusOK, "Opt-out recorded", result)
}

// GetOptIn returns the consent record for a (tenant, phone) pair
func (h *ConsentHandler) GetOptIn(c fiber.Ctx) error {
	tenantUUID := c.Query("tenant_uuid")
	phone := c.Query("phone_number")
	if tenantUUID == "" || phone == "" {
		return errorResponse(c, fiber.StatusBadRequest, "tenant_uuid and phone_number are required", "VALIDATION_ERROR", nil)
	}

	result, err := h.consentFlow.GetOptIn(requestContext(c, "/api/v1/opt-ins"), tenantUUID, phone)
	if err != nil {
		if businessflow.IsTenantNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Tenant not found", businessflow.CodeTenantNotFound, nil)
		}
		if businessflow.IsOptInNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Opt-in record not found", "OPTIN_NOT_FOUND", nil)
		}
		log.Println("Opt-in lookup failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Opt-in lookup failed", businessflow.CodeInternalError, nil)
	}

	return successResponse(c, fiber.StatusOK, "Opt-in retrieved", result)
}
