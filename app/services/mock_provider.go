package services

import (
	"context"
	"strconv"
	"sync"

	"github.com/udyogsetu/messaging-core/models"
)

// MockMessagingProvider is a scriptable in-memory adapter used in tests and
// local development. Every send is recorded; results default to success
// unless overridden.
type MockMessagingProvider struct {
	ProviderName models.ProviderType
	Configured   bool

	mu             sync.Mutex
	SentTemplates  []SendTemplateInput
	SentTexts      []SendTextInput
	SentMedia      []SendMediaInput
	NextSendResult *SendResult
	SubmitResult   *TemplateSubmitResult
	StatusResult   *TemplateStatusResult
	SignatureValid bool
	Events         []NormalizedEvent
	HealthResult   *HealthCheckResult

	sendCounter int
}

func NewMockMessagingProvider(name models.ProviderType) *MockMessagingProvider {
	return &MockMessagingProvider{
		ProviderName:   name,
		Configured:     true,
		SignatureValid: true,
	}
}

func (m *MockMessagingProvider) Name() models.ProviderType { return m.ProviderName }

func (m *MockMessagingProvider) IsConfigured() bool { return m.Configured }

func (m *MockMessagingProvider) nextResult() *SendResult {
	m.sendCounter++
	if m.NextSendResult != nil {
		return m.NextSendResult
	}
	return &SendResult{
		Success:           true,
		ProviderMessageID: "mock-" + string(m.ProviderName) + "-" + strconv.Itoa(m.sendCounter),
		Status:            models.MessageStatusSent,
	}
}

func (m *MockMessagingProvider) SendTemplateMessage(_ context.Context, in SendTemplateInput) *SendResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentTemplates = append(m.SentTemplates, in)
	return m.nextResult()
}

func (m *MockMessagingProvider) SendTextMessage(_ context.Context, in SendTextInput) *SendResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentTexts = append(m.SentTexts, in)
	return m.nextResult()
}

func (m *MockMessagingProvider) SendMediaMessage(_ context.Context, in SendMediaInput) *SendResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMedia = append(m.SentMedia, in)
	return m.nextResult()
}

func (m *MockMessagingProvider) SubmitTemplate(_ context.Context, _ TemplateSubmitParams) *TemplateSubmitResult {
	if m.SubmitResult != nil {
		return m.SubmitResult
	}
	return &TemplateSubmitResult{
		Success:            true,
		ProviderTemplateID: "mock-template-1",
		Status:             models.TemplateStatusPending,
	}
}

func (m *MockMessagingProvider) GetTemplateStatus(_ context.Context, _ string) *TemplateStatusResult {
	if m.StatusResult != nil {
		return m.StatusResult
	}
	return &TemplateStatusResult{Success: true, Status: models.TemplateStatusPending}
}

func (m *MockMessagingProvider) VerifyWebhookSignature(_ WebhookRequest) bool {
	return m.SignatureValid
}

func (m *MockMessagingProvider) NormalizeWebhookEvents(_ []byte) []NormalizedEvent {
	if m.Events != nil {
		return m.Events
	}
	return []NormalizedEvent{{Type: EventUnknown}}
}

func (m *MockMessagingProvider) HealthCheck(_ context.Context) *HealthCheckResult {
	if m.HealthResult != nil {
		return m.HealthResult
	}
	return &HealthCheckResult{Healthy: true, LatencyMs: 1}
}

// SendCount reports how many sends of any type the mock has accepted.
func (m *MockMessagingProvider) SendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendCounter
}
