package dto

// TemplateButtonDTO mirrors one template button in API payloads
type TemplateButtonDTO struct {
	Type        string `json:"type" validate:"required,oneof=quick_reply url phone_number"`
	Text        string `json:"text" validate:"required,max=25"`
	URL         string `json:"url,omitempty" validate:"omitempty,url,max=2048"`
	PhoneNumber string `json:"phone_number,omitempty" validate:"omitempty,max=20"`
}

// SubmitTemplateRequest creates a template and submits it for vendor review
type SubmitTemplateRequest struct {
	TenantUUID string              `json:"tenant_uuid" validate:"required,uuid4"`
	Name       string              `json:"name" validate:"required,max=255"`
	Category   string              `json:"category" validate:"required,oneof=utility marketing authentication"`
	Language   string              `json:"language,omitempty" validate:"omitempty,max=10"`
	Provider   string              `json:"provider,omitempty" validate:"omitempty,oneof=meta twilio gupshup"`
	HeaderText string              `json:"header_text,omitempty" validate:"omitempty,max=60"`
	BodyText   string              `json:"body_text" validate:"required,max=1024"`
	FooterText string              `json:"footer_text,omitempty" validate:"omitempty,max=60"`
	Buttons    []TemplateButtonDTO `json:"buttons,omitempty" validate:"omitempty,max=3,dive"`
	// Example values some vendors require for review
	SampleParams []string `json:"sample_params,omitempty" validate:"omitempty,max=20,dive,max=1024"`
}

// TemplateDTO is the read shape for templates
type TemplateDTO struct {
	ID                 uint   `json:"id"`
	Name               string `json:"name"`
	Category           string `json:"category"`
	Language           string `json:"language"`
	Provider           string `json:"provider"`
	ProviderTemplateID string `json:"provider_template_id,omitempty"`
	BodyText           string `json:"body_text"`
	PlaceholderCount   int    `json:"placeholder_count"`
	Status             string `json:"status"`
	RejectionReason    string `json:"rejection_reason,omitempty"`
	ApprovedAt         string `json:"approved_at,omitempty"`
	CreatedAt          string `json:"created_at"`
}

// SubmitTemplateResponse reports the outcome of a template submission
type SubmitTemplateResponse struct {
	Success      bool        `json:"success"`
	Template     TemplateDTO `json:"template,omitempty"`
	ErrorCode    string      `json:"error_code,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// ListTemplatesRequest filters template listings per tenant
type ListTemplatesRequest struct {
	TenantUUID string `json:"tenant_uuid" validate:"required,uuid4"`
	Status     string `json:"status,omitempty" validate:"omitempty,oneof=pending approved rejected"`
	Page       int    `json:"page" validate:"omitempty,min=1"`
	PageSize   int    `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListTemplatesResponse wraps a page of templates
type ListTemplatesResponse struct {
	Items    []TemplateDTO `json:"items"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// SyncTemplateRequest forces a vendor status poll for one template
type SyncTemplateRequest struct {
	TenantUUID string `json:"tenant_uuid" validate:"required,uuid4"`
	TemplateID uint   `json:"template_id" validate:"required,min=1"`
}
