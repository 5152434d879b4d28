package core

import (
	"errors"
	"fmt"
)

// InvalidCredentialMessage is reported to clients whose bearer token cannot be used
const InvalidCredentialMessage = "Access token is invalid or expired. Please re-authenticate to obtain a new access token."

var (
	// ErrInvalidCredential is returned when the bearer token is missing or expired
	ErrInvalidCredential = errors.New("access token is invalid or expired")
)

// MailError is a mail provider failure carrying the message reported to clients
type MailError struct {
	Message string
	Err     error
}

func (e *MailError) Error() string {
	return e.Message
}

func (e *MailError) Unwrap() error {
	return e.Err
}

// NewMailError wraps err with a client-facing message
func NewMailError(err error, format string, args ...interface{}) *MailError {
	return &MailError{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
