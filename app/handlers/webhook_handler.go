package handlers

import (
	"log"
	"net/url"

	"github.com/gofiber/fiber/v3"

	"github.com/udyogsetu/messaging-core/app/services"
	businessflow "github.com/udyogsetu/messaging-core/business_flow"
	"github.com/udyogsetu/messaging-core/models"
)

// WebhookHandlerInterface defines the contract for webhook handlers
type WebhookHandlerInterface interface {
	ReceiveWebhook(c fiber.Ctx) error
	VerifyMetaChallenge(c fiber.Ctx) error
}

// WebhookHandler receives vendor callbacks. It always acknowledges accepted
// payloads with 200 so vendors do not retry storms at us; processing
// outcomes are recorded on the audit row, not the HTTP status.
type WebhookHandler struct {
	webhookFlow businessflow.WebhookFlow
	metaClient  *services.MetaClient
	publicBase  string
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookFlow businessflow.WebhookFlow, metaClient *services.MetaClient, publicBase string) *WebhookHandler {
	return &WebhookHandler{
		webhookFlow: webhookFlow,
		metaClient:  metaClient,
		publicBase:  publicBase,
	}
}

// ReceiveWebhook handles POST /webhooks/:provider for all three vendors.
// Signature material differs per vendor: Meta and Gupshup sign the raw
// body via a header, Twilio signs the public URL plus sorted form fields.
func (h *WebhookHandler) ReceiveWebhook(c fiber.Ctx) error {
	providerName := c.Params("provider")
	provider := models.ProviderType(providerName)
	if !models.IsValidProviderType(providerName) {
		return errorResponse(c, fiber.StatusNotFound, "Unknown provider", "UNKNOWN_PROVIDER", nil)
	}

	raw := make([]byte, len(c.Body()))
	copy(raw, c.Body())

	req := services.WebhookRequest{
		RawBody:    raw,
		Signature:  signatureHeader(c, provider),
		RequestURL: h.requestURL(c),
	}
	if provider == models.ProviderTwilio {
		if form, err := url.ParseQuery(string(raw)); err == nil {
			req.Form = form
		}
	}

	// Every accepted payload is acked, including signature failures: the
	// flow already dropped those before any state mutation, and a non-2xx
	// would only make the vendor replay the same payload
	if err := h.webhookFlow.HandleWebhook(requestContext(c, "/api/v1/webhooks/:provider"), provider, req); err != nil {
		log.Println("Webhook processing failed", err)
	}

	return c.Status(fiber.StatusOK).SendString("ok")
}

func signatureHeader(c fiber.Ctx, provider models.ProviderType) string {
	switch provider {
	case models.ProviderMeta:
		return c.Get("X-Hub-Signature-256")
	case models.ProviderTwilio:
		return c.Get("X-Twilio-Signature")
	case models.ProviderGupshup:
		return c.Get("X-Gupshup-Signature")
	}
	return ""
}

// requestURL rebuilds the exact public URL Twilio signed. Behind a proxy
// the scheme/host come from the configured public base, not the socket.
func (h *WebhookHandler) requestURL(c fiber.Ctx) string {
	if h.publicBase != "" {
		return h.publicBase + c.OriginalURL()
	}
	scheme := "https"
	if c.Protocol() != "" {
		scheme = c.Protocol()
	}
	return scheme + "://" + c.Hostname() + c.OriginalURL()
}

// VerifyMetaChallenge handles Meta's GET subscription handshake:
// echo hub.challenge when hub.verify_token matches.
func (h *WebhookHandler) VerifyMetaChallenge(c fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && h.metaClient != nil && h.metaClient.VerifyChallengeToken(token) {
		return c.Status(fiber.StatusOK).SendString(challenge)
	}
	return errorResponse(c, fiber.StatusForbidden, "Verification failed", "INVALID_VERIFY_TOKEN", nil)
}
