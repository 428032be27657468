package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/udyogsetu/messaging-core/app/dto"
	"github.com/udyogsetu/messaging-core/app/services"
	businessflow "github.com/udyogsetu/messaging-core/business_flow"
	"github.com/udyogsetu/messaging-core/models"
	"github.com/udyogsetu/messaging-core/repository"
)

// HealthHandlerInterface defines the contract for health handlers
type HealthHandlerInterface interface {
	Liveness(c fiber.Ctx) error
	ProviderHealth(c fiber.Ctx) error
	ReloadMappings(c fiber.Ctx) error
}

// HealthHandler serves liveness and provider health snapshots
type HealthHandler struct {
	healthRepo repository.ProviderHealthRepository
	registry   *services.ProviderRegistry
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(healthRepo repository.ProviderHealthRepository, registry *services.ProviderRegistry) *HealthHandler {
	return &HealthHandler{healthRepo: healthRepo, registry: registry}
}

// Liveness is the plain process liveness probe
func (h *HealthHandler) Liveness(c fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ProviderHealth returns the latest persisted probe snapshot per vendor,
// merged with whether the adapter currently has credentials
func (h *HealthHandler) ProviderHealth(c fiber.Ctx) error {
	rows, err := h.healthRepo.ListAll(requestContext(c, "/api/v1/providers/health"))
	if err != nil {
		log.Println("Provider health listing failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Provider health listing failed", businessflow.CodeInternalError, nil)
	}

	byProvider := make(map[models.ProviderType]*models.ProviderHealth, len(rows))
	for _, row := range rows {
		byProvider[row.Provider] = row
	}

	out := make([]dto.ProviderHealthDTO, 0, len(models.AllProviderTypes))
	for _, providerType := range models.AllProviderTypes {
		adapter, ok := h.registry.Provider(providerType)
		item := dto.ProviderHealthDTO{
			Provider:   string(providerType),
			Status:     string(models.HealthStatusDown),
			Configured: ok && adapter.IsConfigured(),
		}
		if row, ok := byProvider[providerType]; ok {
			item.Status = string(row.Status)
			item.LastCheckAt = row.LastCheckAt.Format(time.RFC3339)
			item.ConsecutiveFailures = row.ConsecutiveFailures
			item.AverageLatencyMs = row.AverageLatencyMs
			item.ErrorMessage = row.ErrorMessage
		}
		out = append(out, item)
	}

	return successResponse(c, fiber.StatusOK, "Provider health retrieved", out)
}

// ReloadMappings refreshes the country routing table from the database
func (h *HealthHandler) ReloadMappings(c fiber.Ctx) error {
	if err := h.registry.Reload(requestContext(c, "/api/v1/providers/mappings/reload")); err != nil {
		log.Println("Mapping reload fell back to defaults", err)
		return successResponse(c, fiber.StatusOK, "Mapping reload failed, default table installed", nil)
	}
	return successResponse(c, fiber.StatusOK, "Mappings reloaded", nil)
}
