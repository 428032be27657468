// Package businessflow contains the core business logic and use cases for message dispatch workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Dispatch error codes carried in typed results and API responses
const (
	CodeQuotaExceeded       = "QUOTA_EXCEEDED"
	CodeNoOptIn             = "NO_OPTIN"
	CodeNoProviderAvailable = "NO_PROVIDER_AVAILABLE"
	CodeTemplateNotFound    = "TEMPLATE_NOT_FOUND"
	CodeTemplateNotApproved = "TEMPLATE_NOT_APPROVED"
	CodeInvalidMessageType  = "INVALID_MESSAGE_TYPE"
	CodeSendFailed          = "SEND_FAILED"
	CodeTenantNotFound      = "TENANT_NOT_FOUND"
	CodeInternalError       = "INTERNAL_ERROR"
)

// Business flow error constants
var (
	// Tenant-related errors
	ErrTenantNotFound = errors.New("tenant not found")
	ErrTenantInactive = errors.New("tenant is inactive")

	// Dispatch errors
	ErrQuotaExceeded       = errors.New("monthly message quota exceeded")
	ErrNoOptIn             = errors.New("recipient has not opted in")
	ErrNoProviderAvailable = errors.New("no messaging provider available")
	ErrInvalidMessageType  = errors.New("invalid message type")
	ErrInvalidPhoneNumber  = errors.New("invalid phone number")
	ErrSendFailed          = errors.New("provider rejected the send")

	// Template errors
	ErrTemplateNotFound       = errors.New("template not found")
	ErrTemplateNotApproved    = errors.New("template is not approved")
	ErrTemplateNameRequired   = errors.New("template name is required")
	ErrTemplateBodyRequired   = errors.New("template body is required")
	ErrTemplateTerminalState  = errors.New("template is in a terminal state")
	ErrTemplateParamMismatch  = errors.New("template parameter count mismatch")
	ErrTemplateSubmitRejected = errors.New("vendor rejected template submission")

	// Trigger errors
	ErrNoTemplateForTrigger = errors.New("no catalog template for this vertical and event")

	// Webhook errors
	ErrUnknownProvider  = errors.New("unknown webhook provider")
	ErrInvalidSignature = errors.New("webhook signature verification failed")

	// Opt-in errors
	ErrOptInNotFound = errors.New("opt-in record not found")

	// Filter errors
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsTenantNotFound(err error) bool {
	return errors.Is(err, ErrTenantNotFound)
}

func IsTenantInactive(err error) bool {
	return errors.Is(err, ErrTenantInactive)
}

func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

func IsNoOptIn(err error) bool {
	return errors.Is(err, ErrNoOptIn)
}

func IsNoProviderAvailable(err error) bool {
	return errors.Is(err, ErrNoProviderAvailable)
}

func IsInvalidMessageType(err error) bool {
	return errors.Is(err, ErrInvalidMessageType)
}

func IsInvalidPhoneNumber(err error) bool {
	return errors.Is(err, ErrInvalidPhoneNumber)
}

func IsSendFailed(err error) bool {
	return errors.Is(err, ErrSendFailed)
}

func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

func IsTemplateNotApproved(err error) bool {
	return errors.Is(err, ErrTemplateNotApproved)
}

func IsTemplateTerminalState(err error) bool {
	return errors.Is(err, ErrTemplateTerminalState)
}

func IsTemplateParamMismatch(err error) bool {
	return errors.Is(err, ErrTemplateParamMismatch)
}

func IsNoTemplateForTrigger(err error) bool {
	return errors.Is(err, ErrNoTemplateForTrigger)
}

func IsUnknownProvider(err error) bool {
	return errors.Is(err, ErrUnknownProvider)
}

func IsInvalidSignature(err error) bool {
	return errors.Is(err, ErrInvalidSignature)
}

func IsOptInNotFound(err error) bool {
	return errors.Is(err, ErrOptInNotFound)
}
