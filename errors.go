package paymcp

import (
	"errors"
	"fmt"
)

// PaymentError represents a payment-specific error
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeInvalidInput            = "invalid_input"
	ErrCodeProviderError           = "provider_error"
	ErrCodeElicitationNotSupported = "elicitation_not_supported"
	ErrCodeUnknownPayment          = "unknown_payment"
	ErrCodePaymentNotCompleted     = "payment_not_completed"
)

// ErrElicitationUnsupported is wrapped by Elicitor implementations when the client
// answers an elicitation request with "method not found".
var ErrElicitationUnsupported = errors.New("elicitation method not supported by client")

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, details map[string]interface{}) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewValidationError reports an invalid input field before any network call is made
func NewValidationError(field, message string) *PaymentError {
	return &PaymentError{
		Code:    ErrCodeInvalidInput,
		Message: fmt.Sprintf("%s %s", field, message),
		Details: map[string]interface{}{"field": field},
	}
}

// NewProviderError wraps a provider communication failure, naming the failing step
func NewProviderError(provider, step string, err error) *PaymentError {
	return &PaymentError{
		Code:    ErrCodeProviderError,
		Message: fmt.Sprintf("%s %s failed", provider, step),
		Details: map[string]interface{}{"provider": provider, "step": step},
		Err:     err,
	}
}

// IsErrorCode reports whether err is a PaymentError with the given code
func IsErrorCode(err error, code string) bool {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}
