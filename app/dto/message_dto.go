package dto

// SendMessageRequest is the single outbound dispatch request shape.
// Template sends resolve the template by ID or name; text and media sends
// carry their content inline.
type SendMessageRequest struct {
	TenantUUID   string `json:"tenant_uuid" validate:"required,uuid4"`
	To           string `json:"to" validate:"required"`
	Type         string `json:"type" validate:"required,oneof=template text media"`
	TemplateID   *uint  `json:"template_id,omitempty" validate:"omitempty,min=1"`
	TemplateName string `json:"template_name,omitempty" validate:"omitempty,max=255"`
	// Positional values for {{1}}..{{n}}
	TemplateParams []string `json:"template_params,omitempty" validate:"omitempty,max=20,dive,max=1024"`
	Text           string   `json:"text,omitempty" validate:"omitempty,max=4096"`
	MediaURL       string   `json:"media_url,omitempty" validate:"omitempty,url,max=2048"`
	MediaKind      string   `json:"media_kind,omitempty" validate:"omitempty,oneof=image video document audio"`
	Caption        string   `json:"caption,omitempty" validate:"omitempty,max=1024"`
}

// SendMessageResponse reports the dispatch outcome. Failed dispatches are
// still 200-level results with Success=false and an error code; transport
// errors never leak to the caller as exceptions.
type SendMessageResponse struct {
	Success           bool   `json:"success"`
	MessageUUID       string `json:"message_uuid,omitempty"`
	Provider          string `json:"provider,omitempty"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Status            string `json:"status,omitempty"`
	ErrorCode         string `json:"error_code,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
	QuotaUsed         int    `json:"quota_used,omitempty"`
	QuotaLimit        int    `json:"quota_limit,omitempty"`
}

// BusinessEventRequest is the trigger facade input: a business event that
// maps to a catalog template.
type BusinessEventRequest struct {
	TenantUUID string            `json:"tenant_uuid" validate:"required,uuid4"`
	Vertical   string            `json:"vertical" validate:"required,max=50"`
	Event      string            `json:"event" validate:"required,max=100"`
	To         string            `json:"to" validate:"required"`
	Params     []string          `json:"params,omitempty" validate:"omitempty,max=20,dive,max=1024"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// MessageDTO is the read shape for message listings
type MessageDTO struct {
	UUID              string `json:"uuid"`
	Provider          string `json:"provider"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	To                string `json:"to"`
	Type              string `json:"type"`
	Country           string `json:"country"`
	Status            string `json:"status"`
	ErrorCode         string `json:"error_code,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
	CostPaise         int64  `json:"cost_paise"`
	CreatedAt         string `json:"created_at"`
	SentAt            string `json:"sent_at,omitempty"`
	DeliveredAt       string `json:"delivered_at,omitempty"`
	ReadAt            string `json:"read_at,omitempty"`
}

// ListMessagesRequest filters message listings per tenant
type ListMessagesRequest struct {
	TenantUUID string `json:"tenant_uuid" validate:"required,uuid4"`
	Status     string `json:"status,omitempty" validate:"omitempty,oneof=pending sent delivered read failed"`
	Page       int    `json:"page" validate:"omitempty,min=1"`
	PageSize   int    `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListMessagesResponse wraps a page of messages
type ListMessagesResponse struct {
	Items    []MessageDTO `json:"items"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// UsageSummaryDTO is the per-month usage read shape
type UsageSummaryDTO struct {
	YearMonth         string `json:"year_month"`
	MessagesSent      int    `json:"messages_sent"`
	MessagesDelivered int    `json:"messages_delivered"`
	MessagesRead      int    `json:"messages_read"`
	MessagesFailed    int    `json:"messages_failed"`
	QuotaUsed         int    `json:"quota_used"`
	QuotaLimit        int    `json:"quota_limit"`
	TotalCostPaise    int64  `json:"total_cost_paise"`
}
