package domain

import "fmt"

// Error types for consistent error handling across the reconciler.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConfiguration indicates the Wise integration is misconfigured, e.g.
// several business profiles and no explicit profile id.
type ErrConfiguration struct {
	Message string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("wise configuration error: %s", e.Message)
}

// ============================================================
// Webhook rejections
// ============================================================

// ErrMalformedWebhook indicates the request could not be parsed: missing or
// non-base64 X-Signature header, or a body that is not JSON.
type ErrMalformedWebhook struct {
	Reason string
	Err    error
}

func (e *ErrMalformedWebhook) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed webhook: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed webhook: %s", e.Reason)
}

func (e *ErrMalformedWebhook) Unwrap() error {
	return e.Err
}

// ErrInvalidSignature indicates the body signature did not verify.
type ErrInvalidSignature struct {
	Err error
}

func (e *ErrInvalidSignature) Error() string {
	return fmt.Sprintf("invalid webhook signature: %v", e.Err)
}

func (e *ErrInvalidSignature) Unwrap() error {
	return e.Err
}

// ErrUnsupportedSchema indicates a schema_version other than SupportedSchemaVersion.
type ErrUnsupportedSchema struct {
	Version string
}

func (e *ErrUnsupportedSchema) Error() string {
	return fmt.Sprintf("unsupported webhook schema version %q", e.Version)
}

// ErrUnhandledEvent indicates no handler is registered for the event type.
type ErrUnhandledEvent struct {
	EventType EventType
}

func (e *ErrUnhandledEvent) Error() string {
	return fmt.Sprintf("unhandled webhook event type %q", e.EventType)
}

// ErrHandlerFailed wraps an unexpected failure inside an event handler.
type ErrHandlerFailed struct {
	EventType EventType
	Err       error
}

func (e *ErrHandlerFailed) Error() string {
	return fmt.Sprintf("webhook handler %q failed: %v", e.EventType, e.Err)
}

func (e *ErrHandlerFailed) Unwrap() error {
	return e.Err
}
