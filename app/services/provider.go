// Package services provides external service integrations and technical concerns for the messaging core
package services

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/udyogsetu/messaging-core/models"
)

// SendTemplateInput carries one template send through an adapter
type SendTemplateInput struct {
	To                 string
	TemplateName       string
	ProviderTemplateID string
	Params             []string // positional, matching {{1}}..{{n}}
	Language           string
	SenderNumber       string
}

// SendTextInput carries one free-form text send through an adapter
type SendTextInput struct {
	To           string
	Text         string
	SenderNumber string
}

// SendMediaInput carries one media send through an adapter
type SendMediaInput struct {
	To           string
	MediaURL     string
	MediaKind    string // image, video, document, audio
	Caption      string
	SenderNumber string
}

// SendResult is the uniform outcome of any adapter send. Adapters convert
// every transport fault, timeout or vendor error into a failed result;
// the dispatch flow relies on this to decide persistence and failover.
type SendResult struct {
	Success           bool
	ProviderMessageID string
	Status            models.MessageStatus // pending, sent or failed
	ErrorCode         string
	ErrorMessage      string
}

// TemplateSubmitParams is the vendor-agnostic template submission shape.
// Body text carries numbered placeholders; adapters map header/body/footer/
// buttons onto their vendor's component schema preserving placeholder order.
type TemplateSubmitParams struct {
	Name             string
	Category         models.TemplateCategory
	Language         string
	HeaderText       string
	BodyText         string
	FooterText       string
	Buttons          []models.TemplateButton
	PlaceholderCount int
	SampleParams     []string // example values some vendors require for review
}

// TemplateSubmitResult is the uniform outcome of a template submission
type TemplateSubmitResult struct {
	Success            bool
	ProviderTemplateID string
	Status             models.TemplateStatus
	ErrorCode          string
	ErrorMessage       string
}

// TemplateStatusResult is the uniform outcome of a template status poll
type TemplateStatusResult struct {
	Success         bool
	Status          models.TemplateStatus
	RejectionReason string
	ErrorMessage    string
}

// NormalizedEventType is the canonical vocabulary all vendor callbacks
// are mapped onto
type NormalizedEventType string

const (
	EventMessageSent      NormalizedEventType = "message.sent"
	EventMessageDelivered NormalizedEventType = "message.delivered"
	EventMessageRead      NormalizedEventType = "message.read"
	EventMessageFailed    NormalizedEventType = "message.failed"
	EventTemplateApproved NormalizedEventType = "template.approved"
	EventTemplateRejected NormalizedEventType = "template.rejected"
	EventUnknown          NormalizedEventType = "unknown"
)

// NormalizedEvent is the vendor-agnostic form of one delivery-status or
// template-review callback
type NormalizedEvent struct {
	Type               NormalizedEventType
	ProviderMessageID  string
	ProviderTemplateID string
	TemplateName       string
	ErrorCode          string
	ErrorMessage       string
	RejectionReason    string
	Timestamp          *time.Time
}

// WebhookRequest carries everything an adapter may need to authenticate a
// callback: Meta and Gupshup sign the raw body, Twilio signs the request
// URL plus sorted form fields
type WebhookRequest struct {
	RawBody    []byte
	Signature  string
	RequestURL string
	Form       url.Values
}

// HealthCheckResult is the outcome of one provider probe
type HealthCheckResult struct {
	Healthy   bool
	LatencyMs int64
	Error     string
}

// MessagingProvider is the uniform contract over the three vendor APIs.
// Send, submit and status methods never return Go errors: internal faults
// surface as typed failed results so no vendor fault escapes the adapter.
type MessagingProvider interface {
	Name() models.ProviderType

	SendTemplateMessage(ctx context.Context, in SendTemplateInput) *SendResult
	SendTextMessage(ctx context.Context, in SendTextInput) *SendResult
	SendMediaMessage(ctx context.Context, in SendMediaInput) *SendResult

	SubmitTemplate(ctx context.Context, in TemplateSubmitParams) *TemplateSubmitResult
	GetTemplateStatus(ctx context.Context, providerTemplateID string) *TemplateStatusResult

	VerifyWebhookSignature(req WebhookRequest) bool
	NormalizeWebhookEvents(payload []byte) []NormalizedEvent

	IsConfigured() bool
	HealthCheck(ctx context.Context) *HealthCheckResult
}

// failedSend builds the uniform failure result adapters return on any fault
func failedSend(code, message string) *SendResult {
	return &SendResult{
		Success:      false,
		Status:       models.MessageStatusFailed,
		ErrorCode:    code,
		ErrorMessage: message,
	}
}

// CountPlaceholders reports the highest {{n}} index present in body text.
// Placeholders are numbered consecutively from {{1}}.
func CountPlaceholders(body string) int {
	count := 0
	for i := 1; ; i++ {
		if !strings.Contains(body, "{{"+strconv.Itoa(i)+"}}") {
			break
		}
		count = i
	}
	return count
}
