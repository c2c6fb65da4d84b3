package whatsapp

import "errors"

var (
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrMissingWabaID     = errors.New("wabaId is required")
	ErrInvalidPIN        = errors.New("pin must be exactly 6 digits")
	ErrIncorrectPIN      = errors.New("incorrect pin")
	ErrNoPendingLink     = errors.New("no link is waiting for a pin")
	ErrIgnoredMessage    = errors.New("message ignored")
	ErrSignupReported    = errors.New("embedded signup reported an error")
	ErrTestModeConfig    = errors.New("test mode configuration is invalid")
	ErrNothingDetected   = errors.New("no shared whatsapp business account found")
	ErrStatusUnavailable = errors.New("status procedure returned no status")
)

// SignupError carries the message the signup popup reported.
type SignupError struct {
	Message string
}

func (e *SignupError) Error() string {
	if e.Message == "" {
		return ErrSignupReported.Error()
	}
	return ErrSignupReported.Error() + ": " + e.Message
}

func (e *SignupError) Unwrap() error { return ErrSignupReported }
