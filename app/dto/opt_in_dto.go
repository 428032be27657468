package dto

// OptInRequest records consent for a (tenant, phone) pair
type OptInRequest struct {
	TenantUUID  string `json:"tenant_uuid" validate:"required,uuid4"`
	PhoneNumber string `json:"phone_number" validate:"required,max=20"`
	Source      string `json:"source,omitempty" validate:"omitempty,max=100"`
}

// OptOutRequest deactivates consent for a (tenant, phone) pair
type OptOutRequest struct {
	TenantUUID  string `json:"tenant_uuid" validate:"required,uuid4"`
	PhoneNumber string `json:"phone_number" validate:"required,max=20"`
}

// OptInDTO is the read shape for consent records
type OptInDTO struct {
	PhoneNumber   string `json:"phone_number"`
	IsActive      bool   `json:"is_active"`
	OptInAt       string `json:"opt_in_at,omitempty"`
	OptOutAt      string `json:"opt_out_at,omitempty"`
	MessageCount  int    `json:"message_count"`
	LastMessageAt string `json:"last_message_at,omitempty"`
}

// ProviderHealthDTO is the read shape for the provider health endpoint
type ProviderHealthDTO struct {
	Provider            string `json:"provider"`
	Status              string `json:"status"`
	Configured          bool   `json:"configured"`
	LastCheckAt         string `json:"last_check_at,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	AverageLatencyMs    int64  `json:"average_latency_ms"`
	ErrorMessage        string `json:"error_message,omitempty"`
}
