package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrValidationFailed    = errors.New("validation failed")
	ErrServerMisconfigured = errors.New("server misconfigured")

	// Verification token errors.
	ErrMalformed        = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrExpired          = errors.New("token expired")
	ErrTokenConsumed    = errors.New("token already used")

	ErrProviderCallFailed    = errors.New("provider call failed")
	ErrAccountCreateFailed   = errors.New("account create failed")
	ErrCredentialIssueFailed = errors.New("credential issue failed")
	ErrEmailSendFailed       = errors.New("email send failed")
	ErrUnexpected            = errors.New("unexpected error")
)

// ProviderError carries the raw upstream status and body of a failed
// outbound call. The body is for server-side diagnostics only.
type ProviderError struct {
	Op     string
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: upstream status %d", e.Op, e.Status)
}

// Unwrap lets errors.Is(err, ErrProviderCallFailed) match any ProviderError.
func (e *ProviderError) Unwrap() error { return ErrProviderCallFailed }

// ProviderDetails extracts the upstream body from err, if any.
func ProviderDetails(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Body
	}
	return ""
}
