package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/udyogsetu/messaging-core/config"
	"github.com/udyogsetu/messaging-core/models"
	"github.com/udyogsetu/messaging-core/utils"
)

// TwilioClient integrates Twilio's Messaging and Content APIs. Templates
// are "content types" (a typed body under a content resource); webhook
// signatures are HMAC-SHA1 over the request URL plus sorted form fields.
type TwilioClient struct {
	cfg        config.TwilioConfig
	httpClient *http.Client
}

func NewTwilioClient(cfg config.TwilioConfig) *TwilioClient {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.twilio.com/2010-04-01"
	}
	if cfg.ContentBaseURL == "" {
		cfg.ContentBaseURL = "https://content.twilio.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = utils.DefaultVendorTimeout
	}
	return &TwilioClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *TwilioClient) Name() models.ProviderType { return models.ProviderTwilio }

func (c *TwilioClient) IsConfigured() bool {
	return c.cfg.AccountSID != "" && c.cfg.AuthToken != "" && c.cfg.FromNumber != ""
}

type twilioMessageResponse struct {
	SID          string  `json:"sid"`
	Status       string  `json:"status"`
	ErrorCode    *int    `json:"error_code"`
	ErrorMessage *string `json:"error_message"`
	Message      string  `json:"message,omitempty"` // error envelope
	Code         int     `json:"code,omitempty"`
}

func (c *TwilioClient) SendTemplateMessage(ctx context.Context, in SendTemplateInput) *SendResult {
	// ContentVariables is a JSON object keyed by placeholder index
	variables := make(map[string]string, len(in.Params))
	for i, p := range in.Params {
		variables[strconv.Itoa(i+1)] = p
	}
	varsJSON, err := json.Marshal(variables)
	if err != nil {
		return failedSend("MARSHAL_ERROR", err.Error())
	}

	form := url.Values{}
	form.Set("To", "whatsapp:"+in.To)
	form.Set("From", "whatsapp:"+c.fromNumber(in.SenderNumber))
	form.Set("ContentSid", in.ProviderTemplateID)
	form.Set("ContentVariables", string(varsJSON))
	return c.doSend(ctx, form)
}

func (c *TwilioClient) SendTextMessage(ctx context.Context, in SendTextInput) *SendResult {
	form := url.Values{}
	form.Set("To", "whatsapp:"+in.To)
	form.Set("From", "whatsapp:"+c.fromNumber(in.SenderNumber))
	form.Set("Body", in.Text)
	return c.doSend(ctx, form)
}

func (c *TwilioClient) SendMediaMessage(ctx context.Context, in SendMediaInput) *SendResult {
	form := url.Values{}
	form.Set("To", "whatsapp:"+in.To)
	form.Set("From", "whatsapp:"+c.fromNumber(in.SenderNumber))
	form.Set("MediaUrl", in.MediaURL)
	if in.Caption != "" {
		form.Set("Body", in.Caption)
	}
	return c.doSend(ctx, form)
}

func (c *TwilioClient) fromNumber(senderNumber string) string {
	if senderNumber != "" {
		return senderNumber
	}
	return c.cfg.FromNumber
}

func (c *TwilioClient) doSend(ctx context.Context, form url.Values) *SendResult {
	if !c.IsConfigured() {
		return failedSend("PROVIDER_NOT_CONFIGURED", "twilio: account sid, auth token or from number missing")
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.cfg.APIBaseURL, c.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return failedSend("REQUEST_ERROR", err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failedSend("TRANSPORT_ERROR", err.Error())
	}
	defer resp.Body.Close()

	var out twilioMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return failedSend("DECODE_ERROR", err.Error())
	}
	if resp.StatusCode >= 400 || out.SID == "" {
		code := fmt.Sprintf("HTTP_%d", resp.StatusCode)
		if out.Code != 0 {
			code = strconv.Itoa(out.Code)
		}
		msg := out.Message
		if msg == "" {
			msg = "twilio: send not accepted"
		}
		return failedSend(code, msg)
	}

	result := &SendResult{
		Success:           true,
		ProviderMessageID: out.SID,
		Status:            mapTwilioSendStatus(out.Status),
	}
	if out.Status == "failed" || out.Status == "undelivered" {
		result.Success = false
		if out.ErrorCode != nil {
			result.ErrorCode = strconv.Itoa(*out.ErrorCode)
		}
		if out.ErrorMessage != nil {
			result.ErrorMessage = *out.ErrorMessage
		}
	}
	return result
}

func mapTwilioSendStatus(s string) models.MessageStatus {
	switch strings.ToLower(s) {
	case "queued", "accepted", "scheduled":
		return models.MessageStatusPending
	case "sending", "sent":
		return models.MessageStatusSent
	case "failed", "undelivered":
		return models.MessageStatusFailed
	default:
		return models.MessageStatusPending
	}
}

// Content API: a template is one content resource whose body lives under a
// "types" map ("twilio/text", "twilio/quick-reply", "twilio/call-to-action")

type twilioContentRequest struct {
	FriendlyName string            `json:"friendly_name"`
	Language     string            `json:"language"`
	Variables    map[string]string `json:"variables,omitempty"`
	Types        map[string]any    `json:"types"`
}

type twilioContentResponse struct {
	SID     string `json:"sid"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func (c *TwilioClient) SubmitTemplate(ctx context.Context, in TemplateSubmitParams) *TemplateSubmitResult {
	if !c.IsConfigured() {
		return &TemplateSubmitResult{Success: false, ErrorCode: "PROVIDER_NOT_CONFIGURED", ErrorMessage: "twilio: not configured"}
	}

	variables := make(map[string]string, in.PlaceholderCount)
	for i := 0; i < in.PlaceholderCount; i++ {
		sample := ""
		if i < len(in.SampleParams) {
			sample = in.SampleParams[i]
		}
		variables[strconv.Itoa(i+1)] = sample
	}

	body := in.BodyText
	if in.HeaderText != "" {
		body = in.HeaderText + "\n\n" + body
	}
	if in.FooterText != "" {
		body = body + "\n\n" + in.FooterText
	}

	types := map[string]any{}
	if len(in.Buttons) > 0 && in.Buttons[0].Type == "quick_reply" {
		actions := make([]map[string]string, 0, len(in.Buttons))
		for _, b := range in.Buttons {
			actions = append(actions, map[string]string{"title": b.Text, "id": b.Text})
		}
		types["twilio/quick-reply"] = map[string]any{"body": body, "actions": actions}
	} else if len(in.Buttons) > 0 {
		actions := make([]map[string]string, 0, len(in.Buttons))
		for _, b := range in.Buttons {
			action := map[string]string{"title": b.Text}
			switch b.Type {
			case "url":
				action["type"] = "URL"
				action["url"] = b.URL
			case "phone_number":
				action["type"] = "PHONE_NUMBER"
				action["phone"] = b.PhoneNumber
			}
			actions = append(actions, action)
		}
		types["twilio/call-to-action"] = map[string]any{"body": body, "actions": actions}
	} else {
		types["twilio/text"] = map[string]any{"body": body}
	}

	payload := twilioContentRequest{
		FriendlyName: in.Name,
		Language:     in.Language,
		Variables:    variables,
		Types:        types,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return &TemplateSubmitResult{Success: false, ErrorCode: "MARSHAL_ERROR", ErrorMessage: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ContentBaseURL+"/Content", bytes.NewReader(raw))
	if err != nil {
		return &TemplateSubmitResult{Success: false, ErrorCode: "REQUEST_ERROR", ErrorMessage: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TemplateSubmitResult{Success: false, ErrorCode: "TRANSPORT_ERROR", ErrorMessage: err.Error()}
	}
	defer resp.Body.Close()

	var out twilioContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &TemplateSubmitResult{Success: false, ErrorCode: "DECODE_ERROR", ErrorMessage: err.Error()}
	}
	if resp.StatusCode >= 400 || out.SID == "" {
		code := fmt.Sprintf("HTTP_%d", resp.StatusCode)
		if out.Code != 0 {
			code = strconv.Itoa(out.Code)
		}
		return &TemplateSubmitResult{Success: false, ErrorCode: code, ErrorMessage: out.Message}
	}

	// WhatsApp review starts only after an approval request is filed
	c.requestWhatsAppApproval(ctx, out.SID, in)

	return &TemplateSubmitResult{
		Success:            true,
		ProviderTemplateID: out.SID,
		Status:             models.TemplateStatusPending,
	}
}

func (c *TwilioClient) requestWhatsAppApproval(ctx context.Context, contentSID string, in TemplateSubmitParams) {
	payload := map[string]string{
		"name":     in.Name,
		"category": strings.ToUpper(string(in.Category)),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	endpoint := fmt.Sprintf("%s/Content/%s/ApprovalRequests/whatsapp", c.cfg.ContentBaseURL, contentSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

type twilioApprovalResponse struct {
	WhatsApp *struct {
		Status          string `json:"status"`
		RejectionReason string `json:"rejection_reason,omitempty"`
	} `json:"whatsapp"`
	Message string `json:"message,omitempty"`
}

func (c *TwilioClient) GetTemplateStatus(ctx context.Context, providerTemplateID string) *TemplateStatusResult {
	if !c.IsConfigured() {
		return &TemplateStatusResult{Success: false, ErrorMessage: "twilio: not configured"}
	}

	endpoint := fmt.Sprintf("%s/Content/%s/ApprovalRequests", c.cfg.ContentBaseURL, providerTemplateID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &TemplateStatusResult{Success: false, ErrorMessage: err.Error()}
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TemplateStatusResult{Success: false, ErrorMessage: err.Error()}
	}
	defer resp.Body.Close()

	var out twilioApprovalResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &TemplateStatusResult{Success: false, ErrorMessage: err.Error()}
	}
	if out.WhatsApp == nil {
		msg := out.Message
		if msg == "" {
			msg = "twilio: no whatsapp approval request found"
		}
		return &TemplateStatusResult{Success: false, ErrorMessage: msg}
	}

	result := &TemplateStatusResult{Success: true, RejectionReason: out.WhatsApp.RejectionReason}
	switch strings.ToLower(out.WhatsApp.Status) {
	case "approved":
		result.Status = models.TemplateStatusApproved
	case "rejected":
		result.Status = models.TemplateStatusRejected
	default:
		result.Status = models.TemplateStatusPending
	}
	return result
}

// VerifyWebhookSignature checks the X-Twilio-Signature header:
// base64(HMAC-SHA1(auth_token, request_url + sorted form key/value concat))
func (c *TwilioClient) VerifyWebhookSignature(req WebhookRequest) bool {
	if c.cfg.AuthToken == "" || req.Signature == "" || req.RequestURL == "" {
		return false
	}

	keys := make([]string, 0, len(req.Form))
	for k := range req.Form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(req.RequestURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(req.Form.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(c.cfg.AuthToken))
	mac.Write([]byte(b.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(req.Signature))
}

// NormalizeWebhookEvents parses Twilio's form-encoded status callback
// (MessageSid, MessageStatus, ErrorCode). Unparseable payloads degrade
// to a single unknown event.
func (c *TwilioClient) NormalizeWebhookEvents(payload []byte) []NormalizedEvent {
	form, err := url.ParseQuery(string(payload))
	if err != nil || form.Get("MessageSid") == "" {
		return []NormalizedEvent{{Type: EventUnknown}}
	}

	ev := NormalizedEvent{
		ProviderMessageID: form.Get("MessageSid"),
		ErrorCode:         form.Get("ErrorCode"),
		ErrorMessage:      form.Get("ErrorMessage"),
	}
	switch strings.ToLower(form.Get("MessageStatus")) {
	case "sent", "sending":
		ev.Type = EventMessageSent
	case "delivered":
		ev.Type = EventMessageDelivered
	case "read":
		ev.Type = EventMessageRead
	case "failed", "undelivered":
		ev.Type = EventMessageFailed
	default:
		ev.Type = EventUnknown
	}
	return []NormalizedEvent{ev}
}

// HealthCheck probes the account resource with a bounded timeout
func (c *TwilioClient) HealthCheck(ctx context.Context) *HealthCheckResult {
	if !c.IsConfigured() {
		return &HealthCheckResult{Healthy: false, Error: "not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, utils.DefaultHealthCheckTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/Accounts/%s.json", c.cfg.APIBaseURL, c.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &HealthCheckResult{Healthy: false, Error: err.Error()}
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

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
