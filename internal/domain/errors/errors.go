package errors

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrConfiguration = errors.New("invalid configuration")

	// Webhook errors
	ErrSignatureVerification = errors.New("webhook signature verification failed")
	ErrFulfillmentHandler    = errors.New("fulfillment handler failed")

	// Provider errors
	ErrProviderRequest     = errors.New("payment provider request failed")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrProviderNotFound    = errors.New("payment provider not found")

	// App errors
	ErrAppNotFound = errors.New("app not found")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// ConfigurationError reports a malformed adapter configuration. The adapter is
// never constructed when one is returned.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for field %s: %s", e.Field, e.Message)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}

// SignatureVerificationError is returned when an inbound webhook payload does
// not carry a valid signature for the configured signing secret.
type SignatureVerificationError struct {
	Err error
}

func (e *SignatureVerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", ErrSignatureVerification, e.Err)
	}
	return ErrSignatureVerification.Error()
}

func (e *SignatureVerificationError) Unwrap() error {
	return e.Err
}

func (e *SignatureVerificationError) Is(target error) bool {
	return target == ErrSignatureVerification
}

// ProviderRequestError wraps a failed call to the payment provider. Unwrap
// returns the provider's own error untouched.
type ProviderRequestError struct {
	Op  string
	Err error
}

func (e *ProviderRequestError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrProviderRequest, e.Op, e.Err)
}

func (e *ProviderRequestError) Unwrap() error {
	return e.Err
}

func (e *ProviderRequestError) Is(target error) bool {
	return target == ErrProviderRequest
}

// NewProviderRequestError creates a new provider request error
func NewProviderRequestError(op string, err error) *ProviderRequestError {
	return &ProviderRequestError{Op: op, Err: err}
}

// FulfillmentHandlerError wraps an error returned by a caller-supplied
// fulfillment handler.
type FulfillmentHandlerError struct {
	UserID    string
	SessionID string
	Err       error
}

func (e *FulfillmentHandlerError) Error() string {
	return fmt.Sprintf("%s for user %s (session %s): %v", ErrFulfillmentHandler, e.UserID, e.SessionID, e.Err)
}

func (e *FulfillmentHandlerError) Unwrap() error {
	return e.Err
}

func (e *FulfillmentHandlerError) Is(target error) bool {
	return target == ErrFulfillmentHandler
}
