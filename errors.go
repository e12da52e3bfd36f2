package goAccount

import "errors"

var (
	// ErrEngineNotReady is an exported constant or variable used by the account security engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidInput is an exported constant or variable used by the account security engine.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAccountNotFound is an exported constant or variable used by the account security engine.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredentials is an exported constant or variable used by the account security engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPasswordPolicy is an exported constant or variable used by the account security engine.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordMismatch is an exported constant or variable used by the account security engine.
	ErrPasswordMismatch = errors.New("new password and confirmation do not match")
	// ErrPasswordReuse is an exported constant or variable used by the account security engine.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrPasswordWeak is an exported constant or variable used by the account security engine.
	ErrPasswordWeak = errors.New("new password below required strength score")
	// ErrSessionNotFound is an exported constant or variable used by the account security engine.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSelfTermination is an exported constant or variable used by the account security engine.
	ErrSelfTermination = errors.New("requesting session cannot terminate itself")
	// ErrSessionInvalidationFailed is an exported constant or variable used by the account security engine.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrMfaAlreadyEnabled is an exported constant or variable used by the account security engine.
	ErrMfaAlreadyEnabled = errors.New("mfa already enabled")
	// ErrMfaNotEnabled is an exported constant or variable used by the account security engine.
	ErrMfaNotEnabled = errors.New("mfa not enabled")
	// ErrMfaMethodInvalid is an exported constant or variable used by the account security engine.
	ErrMfaMethodInvalid = errors.New("invalid mfa method")
	// ErrEnrollmentActive is an exported constant or variable used by the account security engine.
	ErrEnrollmentActive = errors.New("enrollment attempt already active")
	// ErrEnrollmentNotFound is an exported constant or variable used by the account security engine.
	ErrEnrollmentNotFound = errors.New("no active enrollment attempt")
	// ErrEnrollmentStateInvalid is an exported constant or variable used by the account security engine.
	ErrEnrollmentStateInvalid = errors.New("enrollment attempt not in required state")
	// ErrEnrollmentAttemptsExceeded is an exported constant or variable used by the account security engine.
	ErrEnrollmentAttemptsExceeded = errors.New("enrollment verification attempts exceeded")
	// ErrCodeInvalid is an exported constant or variable used by the account security engine.
	ErrCodeInvalid = errors.New("invalid verification code")
	// ErrTooManyAttempts is an exported constant or variable used by the account security engine.
	ErrTooManyAttempts = errors.New("second factor attempts rate limited")
	// ErrBackupCodesNotConfigured is an exported constant or variable used by the account security engine.
	ErrBackupCodesNotConfigured = errors.New("backup codes not configured")
	// ErrStorageUnavailable is an exported constant or variable used by the account security engine.
	ErrStorageUnavailable = errors.New("credential storage unavailable")
)
