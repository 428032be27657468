package testing

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/udyogsetu/messaging-core/models"
	"github.com/udyogsetu/messaging-core/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestTenant creates an active tenant in the given country
func (tf *TestFixtures) CreateTestTenant(country string) (*models.Tenant, error) {
	tenant := &models.Tenant{
		UUID:     uuid.New(),
		Name:     fmt.Sprintf("Test Tenant %d", rand.Intn(100000)),
		Country:  country,
		IsActive: true,
	}
	if err := tf.DB.DB.Create(tenant).Error; err != nil {
		return nil, fmt.Errorf("failed to create test tenant: %w", err)
	}
	return tenant, nil
}

// CreateTestTemplate creates an approved template for the tenant
func (tf *TestFixtures) CreateTestTemplate(tenantID uint, provider models.ProviderType, placeholders int) (*models.MessageTemplate, error) {
	body := "Hello"
	for i := 1; i <= placeholders; i++ {
		body += fmt.Sprintf(" {{%d}}", i)
	}

	template := &models.MessageTemplate{
		TenantID:           tenantID,
		Name:               fmt.Sprintf("test_template_%d", rand.Intn(100000)),
		Category:           models.TemplateCategoryUtility,
		Language:           "en",
		Provider:           provider,
		ProviderTemplateID: utils.ToPtr(fmt.Sprintf("vendor-tpl-%d", rand.Intn(100000))),
		BodyText:           body,
		PlaceholderCount:   placeholders,
		Status:             models.TemplateStatusApproved,
		ApprovedAt:         utils.UTCNowPtr(),
	}
	if err := tf.DB.DB.Create(template).Error; err != nil {
		return nil, fmt.Errorf("failed to create test template: %w", err)
	}
	return template, nil
}

// CreateTestOptIn records active consent for a (tenant, phone) pair
func (tf *TestFixtures) CreateTestOptIn(tenantID uint, phoneNumber string) (*models.OptIn, error) {
	optIn := &models.OptIn{
		TenantID:    tenantID,
		PhoneNumber: phoneNumber,
		IsActive:    true,
		OptInAt:     utils.UTCNow(),
	}
	if err := tf.DB.DB.Create(optIn).Error; err != nil {
		return nil, fmt.Errorf("failed to create test opt-in: %w", err)
	}
	return optIn, nil
}

// CreateTestMapping installs a routing row for a country
func (tf *TestFixtures) CreateTestMapping(country string, primary models.ProviderType, fallback *models.ProviderType, quota int64) (*models.CountryProviderMapping, error) {
	mapping := &models.CountryProviderMapping{
		Country:          country,
		PrimaryProvider:  primary,
		FallbackProvider: fallback,
		MonthlyQuota:     quota,
		IsActive:         true,
	}
	if err := tf.DB.DB.Create(mapping).Error; err != nil {
		return nil, fmt.Errorf("failed to create test mapping: %w", err)
	}
	return mapping, nil
}

// CreateTestMessage creates an outbound message row in the given status
func (tf *TestFixtures) CreateTestMessage(tenantID uint, provider models.ProviderType, status models.MessageStatus) (*models.Message, error) {
	providerMessageID := fmt.Sprintf("vendor-msg-%d", rand.Intn(1000000))
	message := &models.Message{
		UUID:              uuid.New(),
		TenantID:          tenantID,
		Provider:          provider,
		ProviderMessageID: &providerMessageID,
		ToPhoneNumber:     RandomPhoneNumber(),
		Type:              models.MessageTypeTemplate,
		Content:           "Hello {{1}}",
		TemplateParams:    json.RawMessage(`["world"]`),
		Country:           "india",
		Status:            status,
	}
	if status != models.MessageStatusPending {
		message.SentAt = utils.UTCNowPtr()
	}
	if err := tf.DB.DB.Create(message).Error; err != nil {
		return nil, fmt.Errorf("failed to create test message: %w", err)
	}
	return message, nil
}

// CreateTestUsageRecord creates a usage row for the current month
func (tf *TestFixtures) CreateTestUsageRecord(tenantID uint, quotaUsed, quotaLimit int64) (*models.UsageRecord, error) {
	record := &models.UsageRecord{
		TenantID:   tenantID,
		YearMonth:  utils.CurrentYearMonth(),
		Country:    "india",
		QuotaUsed:  quotaUsed,
		QuotaLimit: quotaLimit,
	}
	if err := tf.DB.DB.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to create test usage record: %w", err)
	}
	return record, nil
}

// RandomPhoneNumber returns a random E.164 Indian mobile number
func RandomPhoneNumber() string {
	return fmt.Sprintf("+9198%08d", rand.Intn(100000000))
}

// WaitFor polls the condition until it holds or the timeout elapses
func WaitFor(timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
