package goAccount

import "errors"

// ErrorKind is the coarse classification attached to a failed [Outcome].
// The set is closed: every sentinel error the engine returns maps onto
// exactly one kind.
type ErrorKind string

const (
	// KindValidation is an exported constant or variable used by the account security engine.
	KindValidation ErrorKind = "validation_error"
	// KindNotFound is an exported constant or variable used by the account security engine.
	KindNotFound ErrorKind = "not_found_error"
	// KindAuthentication is an exported constant or variable used by the account security engine.
	KindAuthentication ErrorKind = "authentication_error"
	// KindInvalidCode is an exported constant or variable used by the account security engine.
	KindInvalidCode ErrorKind = "invalid_code_error"
	// KindConflict is an exported constant or variable used by the account security engine.
	KindConflict ErrorKind = "conflict_error"
	// KindForbidden is an exported constant or variable used by the account security engine.
	KindForbidden ErrorKind = "forbidden_operation_error"
	// KindStorage is an exported constant or variable used by the account security engine.
	KindStorage ErrorKind = "storage_error"
)

// Outcome is the typed boundary envelope for engine operations. A transport
// layer returns Outcome values instead of raw errors so failures cross the
// boundary as data.
type Outcome[T any] struct {
	OK        bool      `json:"ok"`
	Data      T         `json:"data,omitempty"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Classify maps an engine error onto its [ErrorKind]. Unknown errors
// classify as [KindStorage]: anything the taxonomy does not name is treated
// as a dependency failure rather than leaked to callers verbatim.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrPasswordMismatch),
		errors.Is(err, ErrPasswordReuse),
		errors.Is(err, ErrPasswordWeak),
		errors.Is(err, ErrMfaMethodInvalid):
		return KindValidation
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrEnrollmentNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return KindAuthentication
	case errors.Is(err, ErrCodeInvalid),
		errors.Is(err, ErrEnrollmentAttemptsExceeded):
		return KindInvalidCode
	case errors.Is(err, ErrEnrollmentActive),
		errors.Is(err, ErrEnrollmentStateInvalid),
		errors.Is(err, ErrMfaAlreadyEnabled),
		errors.Is(err, ErrMfaNotEnabled),
		errors.Is(err, ErrBackupCodesNotConfigured):
		return KindConflict
	case errors.Is(err, ErrSelfTermination),
		errors.Is(err, ErrTooManyAttempts):
		return KindForbidden
	default:
		return KindStorage
	}
}

// outcomeMessage renders the message carried across the boundary. Storage
// failures always read as the bare [ErrStorageUnavailable] text: backend
// addresses and driver errors stay inside the engine.
func outcomeMessage(kind ErrorKind, err error) string {
	if kind == KindStorage {
		return ErrStorageUnavailable.Error()
	}
	return err.Error()
}

// Capture converts an error from a value-less operation into an [Outcome].
func Capture(err error) Outcome[struct{}] {
	if err != nil {
		kind := Classify(err)
		return Outcome[struct{}]{OK: false, ErrorKind: kind, Message: outcomeMessage(kind, err)}
	}
	return Outcome[struct{}]{OK: true}
}

// CaptureValue converts a (value, error) pair into an [Outcome].
func CaptureValue[T any](data T, err error) Outcome[T] {
	if err != nil {
		kind := Classify(err)
		return Outcome[T]{OK: false, ErrorKind: kind, Message: outcomeMessage(kind, err)}
	}
	return Outcome[T]{OK: true, Data: data}
}
