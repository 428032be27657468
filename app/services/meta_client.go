package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/udyogsetu/messaging-core/config"
	"github.com/udyogsetu/messaging-core/models"
	"github.com/udyogsetu/messaging-core/utils"
)

// MetaClient integrates the WhatsApp Cloud API (Graph API). Template
// components are nested typed objects; webhooks are signed with
// HMAC-SHA256 over the raw body in the X-Hub-Signature-256 header.
type MetaClient struct {
	cfg        config.MetaConfig
	httpClient *http.Client
}

func NewMetaClient(cfg config.MetaConfig) *MetaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com/v19.0"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = utils.DefaultVendorTimeout
	}
	return &MetaClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *MetaClient) Name() models.ProviderType { return models.ProviderMeta }

func (c *MetaClient) IsConfigured() bool {
	return c.cfg.AccessToken != "" && c.cfg.PhoneNumberID != ""
}

// Graph API request/response shapes

type metaTemplateLanguage struct {
	Code string `json:"code"`
}

type metaParameter struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type metaComponent struct {
	Type       string          `json:"type"`
	Parameters []metaParameter `json:"parameters,omitempty"`
}

type metaSendRequest struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Template         *struct {
		Name       string               `json:"name"`
		Language   metaTemplateLanguage `json:"language"`
		Components []metaComponent      `json:"components,omitempty"`
	} `json:"template,omitempty"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Image    *metaMediaObject `json:"image,omitempty"`
	Video    *metaMediaObject `json:"video,omitempty"`
	Document *metaMediaObject `json:"document,omitempty"`
	Audio    *metaMediaObject `json:"audio,omitempty"`
}

type metaMediaObject struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type metaSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *metaError `json:"error,omitempty"`
}

type metaError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Subcode int    `json:"error_subcode,omitempty"`
}

func (c *MetaClient) SendTemplateMessage(ctx context.Context, in SendTemplateInput) *SendResult {
	req := metaSendRequest{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(in.To, "+"),
		Type:             "template",
	}
	req.Template = &struct {
		Name       string               `json:"name"`
		Language   metaTemplateLanguage `json:"language"`
		Components []metaComponent      `json:"components,omitempty"`
	}{
		Name:     in.TemplateName,
		Language: metaTemplateLanguage{Code: in.Language},
	}
	if len(in.Params) > 0 {
		params := make([]metaParameter, 0, len(in.Params))
		for _, p := range in.Params {
			params = append(params, metaParameter{Type: "text", Text: p})
		}
		req.Template.Components = []metaComponent{{Type: "body", Parameters: params}}
	}
	return c.doSend(ctx, req)
}

func (c *MetaClient) SendTextMessage(ctx context.Context, in SendTextInput) *SendResult {
	req := metaSendRequest{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(in.To, "+"),
		Type:             "text",
	}
	req.Text = &struct {
		Body string `json:"body"`
	}{Body: in.Text}
	return c.doSend(ctx, req)
}

func (c *MetaClient) SendMediaMessage(ctx context.Context, in SendMediaInput) *SendResult {
	req := metaSendRequest{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(in.To, "+"),
	}
	media := &metaMediaObject{Link: in.MediaURL, Caption: in.Caption}
	switch in.MediaKind {
	case "image":
		req.Type, req.Image = "image", media
	case "video":
		req.Type, req.Video = "video", media
	case "audio":
		req.Type, req.Audio = "audio", &metaMediaObject{Link: in.MediaURL}
	default:
		req.Type, req.Document = "document", media
	}
	return c.doSend(ctx, req)
}

func (c *MetaClient) doSend(ctx context.Context, payload metaSendRequest) *SendResult {
	if !c.IsConfigured() {
		return failedSend("PROVIDER_NOT_CONFIGURED", "meta: access token or phone number id missing")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failedSend("MARSHAL_ERROR", err.Error())
	}

	url := fmt.Sprintf("%s/%s/messages", c.cfg.BaseURL, c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return failedSend("REQUEST_ERROR", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failedSend("TRANSPORT_ERROR", err.Error())
	}
	defer resp.Body.Close()

	var out metaSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return failedSend("DECODE_ERROR", err.Error())
	}
	if out.Error != nil {
		return failedSend(fmt.Sprintf("%d", out.Error.Code), out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK || len(out.Messages) == 0 {
		return failedSend(fmt.Sprintf("HTTP_%d", resp.StatusCode), "meta: send not accepted")
	}

	return &SendResult{
		Success:           true,
		ProviderMessageID: out.Messages[0].ID,
		Status:            models.MessageStatusSent,
	}
}

// Template management: components are nested typed objects under a
// message_templates collection on the WhatsApp Business Account

type metaTemplateComponent struct {
	Type    string           `json:"type"`
	Format  string           `json:"format,omitempty"`
	Text    string           `json:"text,omitempty"`
	Buttons []metaButtonSpec `json:"buttons,omitempty"`
	Example *metaExample     `json:"example,omitempty"`
}

type metaButtonSpec struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	URL         string `json:"url,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

type metaExample struct {
	BodyText [][]string `json:"body_text,omitempty"`
}

type metaTemplateSubmitRequest struct {
	Name       string                  `json:"name"`
	Category   string                  `json:"category"`
	Language   string                  `json:"language"`
	Components []metaTemplateComponent `json:"components"`
}

type metaTemplateSubmitResponse struct {
	ID     string     `json:"id"`
	Status string     `json:"status"`
	Error  *metaError `json:"error,omitempty"`
}

func (c *MetaClient) SubmitTemplate(ctx context.Context, in TemplateSubmitParams) *TemplateSubmitResult {
	if !c.IsConfigured() || c.cfg.BusinessAccountID == "" {
		return &TemplateSubmitResult{Success: false, ErrorCode: "PROVIDER_NOT_CONFIGURED", ErrorMessage: "meta: business account id missing"}
	}

	components := make([]metaTemplateComponent, 0, 4)
	if in.HeaderText != "" {
		components = append(components, metaTemplateComponent{Type: "HEADER", Format: "TEXT", Text: in.HeaderText})
	}
	body := metaTemplateComponent{Type: "BODY", Text: in.BodyText}
	if len(in.SampleParams) > 0 {
		body.Example = &metaExample{BodyText: [][]string{in.SampleParams}}
	}
	components = append(components, body)
	if in.FooterText != "" {
		components = append(components, metaTemplateComponent{Type: "FOOTER", Text: in.FooterText})
	}
	if len(in.Buttons) > 0 {
		buttons := make([]metaButtonSpec, 0, len(in.Buttons))
		for _, b := range in.Buttons {
			buttons = append(buttons, metaButtonSpec{
				Type:        strings.ToUpper(b.Type),
				Text:        b.Text,
				URL:         b.URL,
				PhoneNumber: b.PhoneNumber,
			})
		}
		components = append(components, metaTemplateComponent{Type: "BUTTONS", Buttons: buttons})
	}

	payload := metaTemplateSubmitRequest{
		Name:       in.Name,
		Category:   strings.ToUpper(string(in.Category)),
		Language:   in.Language,
		Components: components,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return &TemplateSubmitResult{Success: false, ErrorCode: "MARSHAL_ERROR", ErrorMessage: err.Error()}
	}

	url := fmt.Sprintf("%s/%s/message_templates", c.cfg.BaseURL, c.cfg.BusinessAccountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return &TemplateSubmitResult{Success: false, ErrorCode: "REQUEST_ERROR", ErrorMessage: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TemplateSubmitResult{Success: false, ErrorCode: "TRANSPORT_ERROR", ErrorMessage: err.Error()}
	}
	defer resp.Body.Close()

	var out metaTemplateSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &TemplateSubmitResult{Success: false, ErrorCode: "DECODE_ERROR", ErrorMessage: err.Error()}
	}
	if out.Error != nil || out.ID == "" {
		msg := "meta: template submission rejected"
		code := fmt.Sprintf("HTTP_%d", resp.StatusCode)
		if out.Error != nil {
			msg = out.Error.Message
			code = fmt.Sprintf("%d", out.Error.Code)
		}
		return &TemplateSubmitResult{Success: false, ErrorCode: code, ErrorMessage: msg}
	}

	return &TemplateSubmitResult{
		Success:            true,
		ProviderTemplateID: out.ID,
		Status:             mapMetaTemplateStatus(out.Status),
	}
}

type metaTemplateStatusResponse struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	RejectedReason string     `json:"rejected_reason,omitempty"`
	Error          *metaError `json:"error,omitempty"`
}

func (c *MetaClient) GetTemplateStatus(ctx context.Context, providerTemplateID string) *TemplateStatusResult {
	if !c.IsConfigured() {
		return &TemplateStatusResult{Success: false, ErrorMessage: "meta: not configured"}
	}

	url := fmt.Sprintf("%s/%s?fields=status,rejected_reason", c.cfg.BaseURL, providerTemplateID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &TemplateStatusResult{Success: false, ErrorMessage: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TemplateStatusResult{Success: false, ErrorMessage: err.Error()}
	}
	defer resp.Body.Close()

	var out metaTemplateStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &TemplateStatusResult{Success: false, ErrorMessage: err.Error()}
	}
	if out.Error != nil {
		return &TemplateStatusResult{Success: false, ErrorMessage: out.Error.Message}
	}

	return &TemplateStatusResult{
		Success:         true,
		Status:          mapMetaTemplateStatus(out.Status),
		RejectionReason: out.RejectedReason,
	}
}

func mapMetaTemplateStatus(s string) models.TemplateStatus {
	switch strings.ToUpper(s) {
	case "APPROVED":
		return models.TemplateStatusApproved
	case "REJECTED":
		return models.TemplateStatusRejected
	default:
		return models.TemplateStatusPending
	}
}

// VerifyWebhookSignature checks the X-Hub-Signature-256 header:
// "sha256=" + hex(HMAC-SHA256(app_secret, raw_body))
func (c *MetaClient) VerifyWebhookSignature(req WebhookRequest) bool {
	if c.cfg.AppSecret == "" || req.Signature == "" {
		return false
	}
	provided := strings.TrimPrefix(req.Signature, "sha256=")
	mac := hmac.New(sha256.New, []byte(c.cfg.AppSecret))
	mac.Write(req.RawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}

// VerifyChallengeToken implements the Graph API webhook subscription
// handshake (hub.verify_token)
func (c *MetaClient) VerifyChallengeToken(token string) bool {
	return c.cfg.VerifyToken != "" && token == c.cfg.VerifyToken
}

// Webhook payload shapes

type metaWebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string          `json:"field"`
			Value json.RawMessage `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type metaStatusValue struct {
	Statuses []struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
		Errors    []struct {
			Code    int    `json:"code"`
			Title   string `json:"title"`
			Message string `json:"message"`
		} `json:"errors,omitempty"`
	} `json:"statuses"`
}

type metaTemplateStatusValue struct {
	Event             string `json:"event"`
	MessageTemplateID int64  `json:"message_template_id"`
	Name              string `json:"message_template_name"`
	Reason            string `json:"reason,omitempty"`
}

// NormalizeWebhookEvents maps Graph API callback payloads onto the
// canonical event set. Unrecognized shapes degrade to EventUnknown.
func (c *MetaClient) NormalizeWebhookEvents(payload []byte) []NormalizedEvent {
	var body metaWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil || len(body.Entry) == 0 {
		return []NormalizedEvent{{Type: EventUnknown}}
	}

	var events []NormalizedEvent
	for _, entry := range body.Entry {
		for _, change := range entry.Changes {
			switch change.Field {
			case "messages":
				var value metaStatusValue
				if err := json.Unmarshal(change.Value, &value); err != nil {
					events = append(events, NormalizedEvent{Type: EventUnknown})
					continue
				}
				for _, st := range value.Statuses {
					ev := NormalizedEvent{
						Type:              mapMetaMessageStatus(st.Status),
						ProviderMessageID: st.ID,
						Timestamp:         parseUnixSeconds(st.Timestamp),
					}
					if len(st.Errors) > 0 {
						ev.ErrorCode = fmt.Sprintf("%d", st.Errors[0].Code)
						ev.ErrorMessage = st.Errors[0].Message
						if ev.ErrorMessage == "" {
							ev.ErrorMessage = st.Errors[0].Title
						}
					}
					events = append(events, ev)
				}
			case "message_template_status_update":
				var value metaTemplateStatusValue
				if err := json.Unmarshal(change.Value, &value); err != nil {
					events = append(events, NormalizedEvent{Type: EventUnknown})
					continue
				}
				ev := NormalizedEvent{
					ProviderTemplateID: fmt.Sprintf("%d", value.MessageTemplateID),
					TemplateName:       value.Name,
					RejectionReason:    value.Reason,
				}
				switch strings.ToUpper(value.Event) {
				case "APPROVED":
					ev.Type = EventTemplateApproved
				case "REJECTED":
					ev.Type = EventTemplateRejected
				default:
					ev.Type = EventUnknown
				}
				events = append(events, ev)
			default:
				events = append(events, NormalizedEvent{Type: EventUnknown})
			}
		}
	}
	if len(events) == 0 {
		return []NormalizedEvent{{Type: EventUnknown}}
	}
	return events
}

func mapMetaMessageStatus(s string) NormalizedEventType {
	switch strings.ToLower(s) {
	case "sent":
		return EventMessageSent
	case "delivered":
		return EventMessageDelivered
	case "read":
		return EventMessageRead
	case "failed":
		return EventMessageFailed
	default:
		return EventUnknown
	}
}

func parseUnixSeconds(s string) *time.Time {
	if s == "" {
		return nil
	}
	var secs int64
	if _, err := fmt.Sscanf(s, "%d", &secs); err != nil || secs <= 0 {
		return nil
	}
	t := time.Unix(secs, 0).UTC()
	return &t
}

// HealthCheck probes the phone number resource with a bounded timeout
func (c *MetaClient) HealthCheck(ctx context.Context) *HealthCheckResult {
	if !c.IsConfigured() {
		return &HealthCheckResult{Healthy: false, Error: "not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, utils.DefaultHealthCheckTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s", c.cfg.BaseURL, c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &HealthCheckResult{Healthy: false, Error: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

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
