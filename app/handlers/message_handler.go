package handlers

import (
	"log"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/udyogsetu/messaging-core/app/dto"
	businessflow "github.com/udyogsetu/messaging-core/business_flow"
)

// MessageHandlerInterface defines the contract for message handlers
type MessageHandlerInterface interface {
	SendMessage(c fiber.Ctx) error
	HandleBusinessEvent(c fiber.Ctx) error
	ListMessages(c fiber.Ctx) error
	GetUsage(c fiber.Ctx) error
}

// MessageHandler handles outbound message HTTP requests
type MessageHandler struct {
	dispatchFlow businessflow.MessageDispatchFlow
	triggerFlow  businessflow.TriggerFlow
	validator    *validator.Validate
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(dispatchFlow businessflow.MessageDispatchFlow, triggerFlow businessflow.TriggerFlow) *MessageHandler {
	return &MessageHandler{
		dispatchFlow: dispatchFlow,
		triggerFlow:  triggerFlow,
		validator:    validator.New(),
	}
}

// SendMessage dispatches one outbound message. Business short-circuits
// (quota, consent, template state) come back as 200 with Success=false and
// an error code; only infrastructure faults are 5xx.
func (h *MessageHandler) SendMessage(c fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.dispatchFlow.SendMessage(requestContext(c, "/api/v1/messages/send"), &req, metadata)
	if err != nil {
		if businessflow.IsTenantNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Tenant not found", businessflow.CodeTenantNotFound, nil)
		}
		log.Println("Message dispatch failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Message dispatch failed", businessflow.CodeInternalError, nil)
	}

	if !result.Success {
		return successResponse(c, fiber.StatusOK, "Message not dispatched", result)
	}
	return successResponse(c, fiber.StatusOK, "Message dispatched", result)
}

// HandleBusinessEvent accepts a platform business event and dispatches the
// catalog template mapped to it
func (h *MessageHandler) HandleBusinessEvent(c fiber.Ctx) error {
	var req dto.BusinessEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.triggerFlow.HandleBusinessEvent(requestContext(c, "/api/v1/triggers/event"), &req, metadata)
	if err != nil {
		if businessflow.IsTenantNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Tenant not found", businessflow.CodeTenantNotFound, nil)
		}
		log.Println("Business event handling failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Business event handling failed", businessflow.CodeInternalError, nil)
	}

	return successResponse(c, fiber.StatusOK, "Business event processed", result)
}

// ListMessages returns a page of the tenant's messages
func (h *MessageHandler) ListMessages(c fiber.Ctx) error {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.Query("page_size", "20"))
	if err != nil || pageSize < 1 {
		pageSize = 20
	}
	req := dto.ListMessagesRequest{
		TenantUUID: c.Query("tenant_uuid"),
		Status:     c.Query("status"),
		Page:       page,
		PageSize:   pageSize,
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	result, err := h.dispatchFlow.ListMessages(requestContext(c, "/api/v1/messages"), &req)
	if err != nil {
		if businessflow.IsTenantNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Tenant not found", businessflow.CodeTenantNotFound, nil)
		}
		log.Println("Message listing failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Message listing failed", businessflow.CodeInternalError, nil)
	}

	return successResponse(c, fiber.StatusOK, "Messages retrieved", result)
}

// GetUsage returns the tenant's monthly usage summary
func (h *MessageHandler) GetUsage(c fiber.Ctx) error {
	tenantUUID := c.Query("tenant_uuid")
	if tenantUUID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "tenant_uuid is required", "VALIDATION_ERROR", nil)
	}

	result, err := h.dispatchFlow.GetUsage(requestContext(c, "/api/v1/usage"), tenantUUID, c.Query("year_month"))
	if err != nil {
		if businessflow.IsTenantNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Tenant not found", businessflow.CodeTenantNotFound, nil)
		}
		log.Println("Usage lookup failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Usage lookup failed", businessflow.CodeInternalError, nil)
	}

	return successResponse(c, fiber.StatusOK, "Usage retrieved", result)
}
