package domain

import "errors"

var (
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicateEntry indicates a unique constraint violation.
	ErrDuplicateEntry = errors.New("duplicate entry")
	// ErrSettingsUnavailable indicates the payment_settings row is missing.
	ErrSettingsUnavailable = errors.New("payment settings are not configured")

	// ErrMissingSignature is returned when a webhook arrives without a signature header.
	ErrMissingSignature = errors.New("missing webhook signature")
	// ErrInvalidSignature is returned when the signature does not match the payload.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrInvalidPayload is returned when the webhook body cannot be parsed.
	ErrInvalidPayload = errors.New("invalid webhook payload")
)

// ValidationError is a user-correctable input problem tied to a JSON path of the action input.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrAmountOutOfRange builds the validation failure for an amount outside the configured limits.
func ErrAmountOutOfRange() *ValidationError {
	return &ValidationError{Path: "$.amount", Message: "Payment amount outside allowed range"}
}
