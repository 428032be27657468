package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/udyogsetu/messaging-core/config"
	"github.com/udyogsetu/messaging-core/models"
	"github.com/udyogsetu/messaging-core/utils"
)

// GupshupClient integrates the Gupshup WhatsApp API. Template submission
// is flat key/value form fields; webhooks are signed with HMAC-SHA256
// over the raw body when a webhook secret is configured.
type GupshupClient struct {
	cfg        config.GupshupConfig
	httpClient *http.Client
}

func NewGupshupClient(cfg config.GupshupConfig) *GupshupClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.gupshup.io"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = utils.DefaultVendorTimeout
	}
	return &GupshupClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *GupshupClient) Name() models.ProviderType { return models.ProviderGupshup }

func (c *GupshupClient) IsConfigured() bool {
	return c.cfg.APIKey != "" && c.cfg.AppID != "" && c.cfg.SourceNumber != ""
}

type gupshupSendResponse struct {
	Status    string `json:"status"` // "submitted" on success
	MessageID string `json:"messageId"`
	Message   string `json:"message,omitempty"` // error text
}

func (c *GupshupClient) SendTemplateMessage(ctx context.Context, in SendTemplateInput) *SendResult {
	template := map[string]any{
		"id":     in.ProviderTemplateID,
		"params": in.Params,
	}
	templateJSON, err := json.Marshal(template)
	if err != nil {
		return failedSend("MARSHAL_ERROR", err.Error())
	}

	form := url.Values{}
	form.Set("channel", "whatsapp")
	form.Set("source", c.sourceNumber(in.SenderNumber))
	form.Set("destination", strings.TrimPrefix(in.To, "+"))
	form.Set("src.name", c.cfg.AppName)
	form.Set("template", string(templateJSON))
	return c.doSend(ctx, "/wa/api/v1/template/msg", form)
}

func (c *GupshupClient) SendTextMessage(ctx context.Context, in SendTextInput) *SendResult {
	message := map[string]any{"type": "text", "text": in.Text}
	messageJSON, err := json.Marshal(message)
	if err != nil {
		return failedSend("MARSHAL_ERROR", err.Error())
	}

	form := url.Values{}
	form.Set("channel", "whatsapp")
	form.Set("source", c.sourceNumber(in.SenderNumber))
	form.Set("destination", strings.TrimPrefix(in.To, "+"))
	form.Set("src.name", c.cfg.AppName)
	form.Set("message", string(messageJSON))
	return c.doSend(ctx, "/wa/api/v1/msg", form)
}

func (c *GupshupClient) SendMediaMessage(ctx context.Context, in SendMediaInput) *SendResult {
	message := map[string]any{
		"type":    gupshupMediaType(in.MediaKind),
		"url":     in.MediaURL,
		"caption": in.Caption,
	}
	messageJSON, err := json.Marshal(message)
	if err != nil {
		return failedSend("MARSHAL_ERROR", err.Error())
	}

	form := url.Values{}
	form.Set("channel", "whatsapp")
	form.Set("source", c.sourceNumber(in.SenderNumber))
	form.Set("destination", strings.TrimPrefix(in.To, "+"))
	form.Set("src.name", c.cfg.AppName)
	form.Set("message", string(messageJSON))
	return c.doSend(ctx, "/wa/api/v1/msg", form)
}

func gupshupMediaType(kind string) string {
	switch kind {
	case "image", "video", "audio":
		return kind
	default:
		return "file"
	}
}

func (c *GupshupClient) sourceNumber(senderNumber string) string {
	if senderNumber != "" {
		return strings.TrimPrefix(senderNumber, "+")
	}
	return strings.TrimPrefix(c.cfg.SourceNumber, "+")
}

func (c *GupshupClient) doSend(ctx context.Context, path string, form url.Values) *SendResult {
	if !c.IsConfigured() {
		return failedSend("PROVIDER_NOT_CONFIGURED", "gupshup: api key, app id or source number missing")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return failedSend("REQUEST_ERROR", err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failedSend("TRANSPORT_ERROR", err.Error())
	}
	defer resp.Body.Close()

	var out gupshupSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return failedSend("DECODE_ERROR", err.Error())
	}
	if resp.StatusCode >= 400 || !strings.EqualFold(out.Status, "submitted") {
		msg := out.Message
		if msg == "" {
			msg = "gupshup: send not accepted"
		}
		return failedSend(fmt.Sprintf("HTTP_%d", resp.StatusCode), msg)
	}

	// Gupshup acknowledges with "submitted"; the sent event arrives on
	// the webhook, so the message stays pending until then
	return &SendResult{
		Success:           true,
		ProviderMessageID: out.MessageID,
		Status:            models.MessageStatusPending,
	}
}

type gupshupTemplateResponse struct {
	Status   string `json:"status"`
	Template *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Reason string `json:"reason,omitempty"`
	} `json:"template,omitempty"`
	Message string `json:"message,omitempty"`
}

// SubmitTemplate posts the template as flat form fields; buttons are a
// JSON string field rather than nested objects
func (c *GupshupClient) SubmitTemplate(ctx context.Context, in TemplateSubmitParams) *TemplateSubmitResult {
	if !c.IsConfigured() {
		return &TemplateSubmitResult{Success: false, ErrorCode: "PROVIDER_NOT_CONFIGURED", ErrorMessage: "gupshup: not configured"}
	}

	form := url.Values{}
	form.Set("elementName", in.Name)
	form.Set("languageCode", in.Language)
	form.Set("category", strings.ToUpper(string(in.Category)))
	form.Set("templateType", "TEXT")
	form.Set("content", in.BodyText)
	if in.HeaderText != "" {
		form.Set("header", in.HeaderText)
	}
	if in.FooterText != "" {
		form.Set("footer", in.FooterText)
	}
	if len(in.Buttons) > 0 {
		buttonsJSON, err := json.Marshal(in.Buttons)
		if err != nil {
			return &TemplateSubmitResult{Success: false, ErrorCode: "MARSHAL_ERROR", ErrorMessage: err.Error()}
		}
		form.Set("buttons", string(buttonsJSON))
	}
	if len(in.SampleParams) > 0 {
		example := in.BodyText
		for i, sample := range in.SampleParams {
			example = strings.ReplaceAll(example, fmt.Sprintf("{{%d}}", i+1), "["+sample+"]")
		}
		form.Set("example", example)
	}

	endpoint := fmt.Sprintf("%s/wa/app/%s/template", c.cfg.BaseURL, c.cfg.AppID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &TemplateSubmitResult{Success: false, ErrorCode: "REQUEST_ERROR", ErrorMessage: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TemplateSubmitResult{Success: false, ErrorCode: "TRANSPORT_ERROR", ErrorMessage: err.Error()}
	}
	defer resp.Body.Close()

	var out gupshupTemplateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &TemplateSubmitResult{Success: false, ErrorCode: "DECODE_ERROR", ErrorMessage: err.Error()}
	}
	if resp.StatusCode >= 400 || out.Template == nil {
		msg := out.Message
		if msg == "" {
			msg = "gupshup: template submission rejected"
		}
		return &TemplateSubmitResult{Success: false, ErrorCode: fmt.Sprintf("HTTP_%d", resp.StatusCode), ErrorMessage: msg}
	}

	return &TemplateSubmitResult{
		Success:            true,
		ProviderTemplateID: out.Template.ID,
		Status:             mapGupshupTemplateStatus(out.Template.Status),
	}
}

func (c *GupshupClient) GetTemplateStatus(ctx context.Context, providerTemplateID string) *TemplateStatusResult {
	if !c.IsConfigured() {
		return &TemplateStatusResult{Success: false, ErrorMessage: "gupshup: not configured"}
	}

	endpoint := fmt.Sprintf("%s/wa/app/%s/template/%s", c.cfg.BaseURL, c.cfg.AppID, providerTemplateID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &TemplateStatusResult{Success: false, ErrorMessage: err.Error()}
	}
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TemplateStatusResult{Success: false, ErrorMessage: err.Error()}
	}
	defer resp.Body.Close()

	var out gupshupTemplateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &TemplateStatusResult{Success: false, ErrorMessage: err.Error()}
	}
	if out.Template == nil {
		msg := out.Message
		if msg == "" {
			msg = "gupshup: template not found"
		}
		return &TemplateStatusResult{Success: false, ErrorMessage: msg}
	}

	return &TemplateStatusResult{
		Success:         true,
		Status:          mapGupshupTemplateStatus(out.Template.Status),
		RejectionReason: out.Template.Reason,
	}
}

func mapGupshupTemplateStatus(s string) models.TemplateStatus {
	switch strings.ToUpper(s) {
	case "APPROVED", "ENABLED":
		return models.TemplateStatusApproved
	case "REJECTED", "FAILED":
		return models.TemplateStatusRejected
	default:
		return models.TemplateStatusPending
	}
}

// VerifyWebhookSignature checks hex(HMAC-SHA256(webhook_secret, raw_body)).
// Gupshup apps without a configured secret send unsigned callbacks; the
// ingest flow only verifies when a signature header is present.
func (c *GupshupClient) VerifyWebhookSignature(req WebhookRequest) bool {
	if c.cfg.WebhookSecret == "" || req.Signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.cfg.WebhookSecret))
	mac.Write(req.RawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(req.Signature)))
}

// Webhook payload shapes

type gupshupWebhookPayload struct {
	Type    string `json:"type"` // message-event, template-event
	Payload struct {
		ID          string `json:"id"`
		GsID        string `json:"gsId,omitempty"`
		Type        string `json:"type"` // enqueued, sent, delivered, read, failed
		Status      string `json:"status,omitempty"`
		Reason      string `json:"reason,omitempty"`
		Destination string `json:"destination,omitempty"`
		TS          int64  `json:"ts,omitempty"`
		Payload     *struct {
			Code   string `json:"code,omitempty"`
			Reason string `json:"reason,omitempty"`
		} `json:"payload,omitempty"`
	} `json:"payload"`
}

// NormalizeWebhookEvents maps Gupshup's event envelope onto the canonical
// set. Unrecognized shapes degrade to EventUnknown.
func (c *GupshupClient) NormalizeWebhookEvents(payload []byte) []NormalizedEvent {
	var body gupshupWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return []NormalizedEvent{{Type: EventUnknown}}
	}

	switch body.Type {
	case "message-event":
		ev := NormalizedEvent{ProviderMessageID: body.Payload.ID}
		if body.Payload.GsID != "" {
			ev.ProviderMessageID = body.Payload.GsID
		}
		if body.Payload.TS > 0 {
			t := time.Unix(body.Payload.TS/1000, 0).UTC()
			ev.Timestamp = &t
		}
		switch strings.ToLower(body.Payload.Type) {
		case "sent", "enqueued":
			ev.Type = EventMessageSent
		case "delivered":
			ev.Type = EventMessageDelivered
		case "read":
			ev.Type = EventMessageRead
		case "failed":
			ev.Type = EventMessageFailed
			if body.Payload.Payload != nil {
				ev.ErrorCode = body.Payload.Payload.Code
				ev.ErrorMessage = body.Payload.Payload.Reason
			}
		default:
			ev.Type = EventUnknown
		}
		return []NormalizedEvent{ev}

	case "template-event":
		ev := NormalizedEvent{
			ProviderTemplateID: body.Payload.ID,
			RejectionReason:    body.Payload.Reason,
		}
		switch strings.ToUpper(body.Payload.Status) {
		case "APPROVED", "ENABLED":
			ev.Type = EventTemplateApproved
		case "REJECTED", "FAILED":
			ev.Type = EventTemplateRejected
		default:
			ev.Type = EventUnknown
		}
		return []NormalizedEvent{ev}

	default:
		return []NormalizedEvent{{Type: EventUnknown}}
	}
}

// HealthCheck probes the app's wallet balance endpoint with a bounded timeout
func (c *GupshupClient) HealthCheck(ctx context.Context) *HealthCheckResult {
	if !c.IsConfigured() {
		return &HealthCheckResult{Healthy: false, Error: "not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, utils.DefaultHealthCheckTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/wa/app/%s/business/profile", c.cfg.BaseURL, c.cfg.AppID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &HealthCheckResult{Healthy: false, Error: err.Error()}
	}
	req.Header.Set("apikey", c.cfg.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return &HealthCheckResult{Healthy: false, LatencyMs: latency, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &HealthCheckResult{Healthy: false, LatencyMs: latency, Error: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return &HealthCheckResult{Healthy: true, LatencyMs: latency}
}
