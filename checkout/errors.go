package checkout

import (
	"errors"
	"fmt"
)

// PaymentError represents a checkout failure.
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes
const (
	ErrCodeZeroTotal           = "zero_total"
	ErrCodeProviderUnavailable = "provider_unavailable"
	ErrCodeOrderCreateFailed   = "order_create_failed"
	ErrCodeCaptureFailed       = "capture_failed"
	ErrCodeFundingIneligible   = "funding_ineligible"
	ErrCodeRenderFailed        = "render_failed"
)

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, details map[string]interface{}) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// ErrorCode returns the PaymentError code in err's chain, or "".
func ErrorCode(err error) string {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
