package goAccount

import (
	"context"
	"time"
)

// MfaStatus represents the multi-factor lifecycle state of an account.
//
//	Docs: docs/enrollment.md
type MfaStatus uint8

const (
	// MfaDisabled is an exported constant or variable used by the account security engine.
	MfaDisabled MfaStatus = iota
	// MfaPending is an exported constant or variable used by the account security engine.
	MfaPending
	// MfaEnabled is an exported constant or variable used by the account security engine.
	MfaEnabled
)

// MfaMethod identifies the configured second-factor delivery mechanism.
type MfaMethod uint8

const (
	// MethodNone is an exported constant or variable used by the account security engine.
	MethodNone MfaMethod = iota
	// MethodAuthenticatorApp is an exported constant or variable used by the account security engine.
	MethodAuthenticatorApp
	// MethodSMS is an exported constant or variable used by the account security engine.
	MethodSMS
)

// SecondFactorMethod names the mechanism that satisfied a second-factor
// challenge, returned by [Engine.VerifySecondFactor].
type SecondFactorMethod string

const (
	// SecondFactorTOTP is an exported constant or variable used by the account security engine.
	SecondFactorTOTP SecondFactorMethod = "totp"
	// SecondFactorBackupCode is an exported constant or variable used by the account security engine.
	SecondFactorBackupCode SecondFactorMethod = "backup_code"
)

// EnrollmentState is the position of an in-flight enrollment attempt within
// the enrollment state machine. Terminal outcomes (enrolled, cancelled) are
// not states: a finished attempt is discarded and reads as absent.
//
//	Docs: docs/enrollment.md
type EnrollmentState uint8

const (
	// EnrollmentNone is an exported constant or variable used by the account security engine.
	EnrollmentNone EnrollmentState = iota
	// EnrollmentMethodSelection is an exported constant or variable used by the account security engine.
	EnrollmentMethodSelection
	// EnrollmentSecretIssued is an exported constant or variable used by the account security engine.
	EnrollmentSecretIssued
	// EnrollmentPendingVerification is an exported constant or variable used by the account security engine.
	EnrollmentPendingVerification
)

// Account is the credential record returned by [CredentialStore.FindAccount].
// MfaSecret is non-empty only when MfaStatus is not [MfaDisabled];
// BackupCodeCount is non-zero only when MfaStatus is [MfaEnabled].
type Account struct {
	AccountID       string
	Identifier      string
	TenantID        string
	PasswordHash    string
	MfaStatus       MfaStatus
	MfaMethod       MfaMethod
	MfaSecret       []byte
	BackupCodeCount int
}

// BackupCodeRecord stores the SHA-256 hash of a single backup code.
// The plaintext is never persisted.
type BackupCodeRecord struct {
	Hash [32]byte
}

// CredentialStore is the interface that callers must implement to integrate
// the engine with their account database. Implementations return
// [ErrAccountNotFound] for missing accounts; any other error is surfaced to
// callers wrapped in [ErrStorageUnavailable].
//
//	Docs: docs/engine.md, docs/usage.md
type CredentialStore interface {
	FindAccount(ctx context.Context, accountID string) (Account, error)
	UpdatePasswordHash(ctx context.Context, accountID string, newHash string) error
	UpdateMfaFields(ctx context.Context, accountID string, status MfaStatus, method MfaMethod, secret []byte, codes []BackupCodeRecord) error
	ConsumeBackupCode(ctx context.Context, accountID string, codeHash [32]byte) (bool, error)
}

// SessionMeta carries the client attributes captured when a session is
// registered. All fields are optional display metadata.
type SessionMeta struct {
	DeviceLabel         string
	BrowserLabel        string
	SourceIP            string
	ApproximateLocation string
}

// SessionInfo is a read model of one live session, returned by
// [Engine.ListSessions] ordered by most recent activity.
//
//	Docs: docs/session.md
type SessionInfo struct {
	SessionID           string
	DeviceLabel         string
	BrowserLabel        string
	SourceIP            string
	ApproximateLocation string
	CreatedAt           time.Time
	LastActiveAt        time.Time
	IsCurrent           bool
}

// EnrollmentView is a read model of the active enrollment attempt. When no
// attempt is active, State is [EnrollmentNone] and MfaStatus reports whether
// the account already has a second factor enabled.
type EnrollmentView struct {
	State             EnrollmentState
	Method            MfaMethod
	MfaStatus         MfaStatus
	AttemptsRemaining int
	StartedAt         time.Time
	ExpiresAt         time.Time
}

// Provisioning is returned by [Engine.ConfirmMethod]. For
// [MethodAuthenticatorApp] it carries the base32 secret and an otpauth://
// URI suitable for QR rendering. For [MethodSMS] it carries a masked
// delivery target plus the numeric code for the current time step;
// transporting SmsCode to the target is the embedding system's concern, and
// the code stays verifiable only within the configured TOTP skew window.
type Provisioning struct {
	Method       MfaMethod
	SecretBase32 string
	OtpauthURI   string
	SmsTarget    string
	SmsCode      string
}

// EnrollmentResult is returned by [Engine.SubmitEnrollmentCode] on success.
// BackupCodes holds the plaintext codes exactly once; they are never
// retrievable again.
type EnrollmentResult struct {
	BackupCodes []string
}

// RotatePasswordInput is the validated input for [Engine.RotatePassword].
// RequestingSessionID identifies the session performing the rotation; it is
// the only session preserved when other sessions are revoked.
type RotatePasswordInput struct {
	AccountID           string `validate:"required"`
	CurrentPassword     string `validate:"required"`
	NewPassword         string `validate:"required"`
	ConfirmPassword     string `validate:"required"`
	RequestingSessionID string
}
