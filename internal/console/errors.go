package console

import (
	"errors"

	apperrors "github.com/spec-kit/fieldops-console/pkg/util/errorutil"
)

// TransportMessage is shown for any failure that carries no structured payload.
const TransportMessage = "Unable to reach the server. Please try again."

var (
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrStaffNotFound     = errors.New("staff not found")
	ErrInvalidPIN        = errors.New("invalid PIN")
	ErrLocked            = errors.New("account locked")
	ErrThrottled         = errors.New("too many attempts")
	ErrSessionTerminated = errors.New("session terminated")
	ErrNoSession         = errors.New("no active session")
	ErrStaleProfile      = errors.New("profile load superseded")
	ErrAbandoned         = errors.New("submission abandoned")
	ErrInvalidLink       = errors.New("invalid login link")
)

// ValidationError is a form-level rejection raised before anything is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// TransportError wraps a remote call that failed without a structured reply.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return TransportMessage }

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError is a structured error reported by the verification service. It
// matches the sentinel for its code under errors.Is.
type RemoteError struct {
	Status  int
	Code    string
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case apperrors.CodeTenantNotFound:
		return ErrTenantNotFound
	case apperrors.CodeStaffNotFound:
		return ErrStaffNotFound
	case apperrors.CodeInvalidPIN:
		return ErrInvalidPIN
	case apperrors.CodePINLocked:
		return ErrLocked
	case apperrors.CodeTooManyAttempts:
		return ErrThrottled
	case apperrors.CodeSessionTerminate, apperrors.CodeUnauthorized:
		return ErrSessionTerminated
	}
	return nil
}

// PINError is a rejected verification. Locked rejections match ErrLocked, all
// others ErrInvalidPIN.
type PINError struct {
	Locked            bool
	Message           string
	AttemptsRemaining *int
}

func (e *PINError) Error() string { return e.Message }

func (e *PINError) Is(target error) bool {
	if e.Locked {
		return target == ErrLocked
	}
	return target == ErrInvalidPIN
}

// Reason returns the user-facing message for err.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return TransportMessage
	}
	return err.Error()
}
