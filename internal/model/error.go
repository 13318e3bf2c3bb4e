package model

import (
	"errors"
	"fmt"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Reference string `json:"reference,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON             = "INVALID_JSON"
	ErrCodeValidation              = "VALIDATION_FAILED"
	ErrCodeGatewayUnavailable      = "GATEWAY_UNAVAILABLE"
	ErrCodeVerificationFailed      = "PAYMENT_NOT_VERIFIED"
	ErrCodeVerificationUnreachable = "VERIFICATION_UNREACHABLE"
	ErrCodeOrderNotRecorded        = "ORDER_NOT_RECORDED"
	ErrCodeNotFound                = "NOT_FOUND"
	ErrCodeInvalidTransition       = "INVALID_TRANSITION"
	ErrCodeUnauthorised            = "UNAUTHORIZED"
	ErrCodeForbidden               = "FORBIDDEN"
	ErrCodeInternalError           = "INTERNAL_ERROR"
)

// DomainError carries a stable API code next to a human message.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Store-level sentinels.
var (
	ErrDuplicateOrderNumber      = errors.New("order number already exists")
	ErrDuplicatePaymentReference = errors.New("payment reference already used by another order")
	ErrCorruptOrder              = errors.New("stored order failed validation")
)

const supportContact = "Please contact support with your payment reference"

// ValidationError reports malformed checkout or admin input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// GatewayUnavailableError means the payment gateway could not start a checkout.
type GatewayUnavailableError struct {
	Err error
}

func (e *GatewayUnavailableError) Error() string {
	return fmt.Sprintf("payment gateway unavailable: %v", e.Err)
}

func (e *GatewayUnavailableError) Unwrap() error { return e.Err }

// VerificationFailedError means the gateway says the transaction did not succeed.
type VerificationFailedError struct {
	Reference string
	Status    string
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("payment %s was not verified (status %s). %s", e.Reference, e.Status, supportContact)
}

// VerificationUnreachableError means the verification call itself failed.
// Money may have been captured without an order being recorded.
type VerificationUnreachableError struct {
	Reference string
	Err       error
}

func (e *VerificationUnreachableError) Error() string {
	return fmt.Sprintf("could not verify payment %s. %s", e.Reference, supportContact)
}

func (e *VerificationUnreachableError) Unwrap() error { return e.Err }

// OrderPersistenceError is the captured-but-not-recorded case after a verified payment.
type OrderPersistenceError struct {
	Reference string
	Err       error
}

func (e *OrderPersistenceError) Error() string {
	return fmt.Sprintf("payment %s succeeded but the order could not be recorded. %s", e.Reference, supportContact)
}

func (e *OrderPersistenceError) Unwrap() error { return e.Err }

// AuthorizationError rejects a mutation the actor may not perform.
type AuthorizationError struct {
	Action string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not allowed to %s", e.Action)
}

// InvalidTransitionError rejects a fulfillment transition.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	if e.From.Terminal() {
		return fmt.Sprintf("order is %s and can no longer change", e.From)
	}
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

// NotFoundError is an expected absence, not a hard failure.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

// Common domain errors
var (
	ErrUnauthenticated = NewDomainError(ErrCodeUnauthorised, "authentication required")
)
