package goAccount

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goAccount/internal/codes"
	"github.com/MrEthical07/goAccount/internal/stores"
)

func enrollmentStateFromStore(state uint8) EnrollmentState {
	switch state {
	case stores.EnrollmentStateMethodSelection:
		return EnrollmentMethodSelection
	case stores.EnrollmentStateSecretIssued:
		return EnrollmentSecretIssued
	case stores.EnrollmentStatePendingVerification:
		return EnrollmentPendingVerification
	default:
		return EnrollmentNone
	}
}

func enrollmentViewFromAttempt(attempt *stores.EnrollmentAttempt, status MfaStatus) EnrollmentView {
	return EnrollmentView{
		State:             enrollmentStateFromStore(attempt.State),
		Method:            MfaMethod(attempt.Method),
		MfaStatus:         status,
		AttemptsRemaining: int(attempt.AttemptsRemaining),
		StartedAt:         time.Unix(attempt.StartedAt, 0),
		ExpiresAt:         time.Unix(attempt.ExpiresAt, 0),
	}
}

// mapEnrollmentStoreErr collapses the store's absent and expired outcomes:
// an expired attempt reads exactly like a missing one, but still counts
// toward [MetricEnrollmentExpired].
func (e *Engine) mapEnrollmentStoreErr(err error) error {
	switch {
	case errors.Is(err, stores.ErrEnrollmentExpired):
		e.metricInc(MetricEnrollmentExpired)
		return ErrEnrollmentNotFound
	case errors.Is(err, stores.ErrEnrollmentNotFound):
		return ErrEnrollmentNotFound
	case errors.Is(err, stores.ErrEnrollmentExists):
		return ErrEnrollmentActive
	case errors.Is(err, stores.ErrEnrollmentBackend):
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	default:
		return err
	}
}

func (e *Engine) lookupAccount(ctx context.Context, accountID string) (Account, error) {
	account, err := e.credentials.FindAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return account, nil
}

// StartEnrollment describes the startenrollment operation and its observable behavior.
//
// StartEnrollment may return an error when input validation, dependency calls, or security checks fail.
// StartEnrollment does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) StartEnrollment(ctx context.Context, accountID string, method MfaMethod) (EnrollmentView, error) {
	if e == nil || e.credentials == nil || e.enrollments == nil {
		return EnrollmentView{}, ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	if accountID == "" {
		return EnrollmentView{}, ErrInvalidInput
	}
	if method != MethodAuthenticatorApp && method != MethodSMS {
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", ErrMfaMethodInvalid, nil)
		return EnrollmentView{}, ErrMfaMethodInvalid
	}

	account, err := e.lookupAccount(ctx, accountID)
	if err != nil {
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", err, nil)
		return EnrollmentView{}, err
	}
	if account.TenantID != "" {
		tenantID = account.TenantID
	}
	if account.MfaStatus == MfaEnabled {
		e.metricInc(MetricEnrollmentConflict)
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", ErrMfaAlreadyEnabled, nil)
		return EnrollmentView{}, ErrMfaAlreadyEnabled
	}

	now := time.Now()
	attempt := &stores.EnrollmentAttempt{
		State:             stores.EnrollmentStateMethodSelection,
		Method:            uint8(method),
		AttemptsRemaining: uint16(e.config.Enrollment.MaxVerificationAttempts),
		StartedAt:         now.Unix(),
		ExpiresAt:         now.Add(e.config.Enrollment.AttemptTTL).Unix(),
	}

	if err := e.enrollments.Create(ctx, tenantID, accountID, attempt, e.config.Enrollment.AttemptTTL); err != nil {
		mapped := e.mapEnrollmentStoreErr(err)
		if errors.Is(mapped, ErrEnrollmentActive) {
			e.metricInc(MetricEnrollmentConflict)
		}
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", mapped, nil)
		return EnrollmentView{}, mapped
	}

	e.metricInc(MetricEnrollmentStarted)
	e.emitAudit(ctx, auditEventEnrollmentStarted, true, accountID, tenantID, "", nil, func() map[string]string {
		return map[string]string{
			"method": mfaMethodLabel(method),
		}
	})

	return enrollmentViewFromAttempt(attempt, account.MfaStatus), nil
}

// ConfirmMethod describes the confirmmethod operation and its observable behavior.
//
// ConfirmMethod may return an error when input validation, dependency calls, or security checks fail.
// ConfirmMethod does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ConfirmMethod(ctx context.Context, accountID string) (Provisioning, error) {
	if e == nil || e.credentials == nil || e.enrollments == nil || e.totp == nil {
		return Provisioning{}, ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	if accountID == "" {
		return Provisioning{}, ErrInvalidInput
	}

	account, err := e.lookupAccount(ctx, accountID)
	if err != nil {
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", err, nil)
		return Provisioning{}, err
	}
	if account.TenantID != "" {
		tenantID = account.TenantID
	}

	var secretBase32 string
	attempt, err := e.enrollments.Transition(ctx, tenantID, accountID, func(a *stores.EnrollmentAttempt) error {
		if a.State != stores.EnrollmentStateMethodSelection {
			return ErrEnrollmentStateInvalid
		}
		raw, b32, genErr := e.totp.GenerateSecret()
		if genErr != nil {
			return genErr
		}
		a.Secret = raw
		a.State = stores.EnrollmentStateSecretIssued
		secretBase32 = b32
		return nil
	})
	if err != nil {
		mapped := e.mapEnrollmentStoreErr(err)
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", mapped, nil)
		return Provisioning{}, mapped
	}

	method := MfaMethod(attempt.Method)
	prov := Provisioning{Method: method}
	switch method {
	case MethodAuthenticatorApp:
		prov.SecretBase32 = secretBase32
		prov.OtpauthURI = e.totp.ProvisionURI(secretBase32, account.Identifier)
	case MethodSMS:
		smsCode, codeErr := e.totp.CurrentCode(attempt.Secret, time.Now())
		if codeErr != nil {
			e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", codeErr, nil)
			return Provisioning{}, codeErr
		}
		prov.SmsTarget = maskDeliveryTarget(account.Identifier)
		prov.SmsCode = smsCode
	}

	e.metricInc(MetricEnrollmentSecretIssued)
	e.emitAudit(ctx, auditEventEnrollmentMethodConfirmed, true, accountID, tenantID, "", nil, func() map[string]string {
		return map[string]string{
			"method": mfaMethodLabel(method),
		}
	})

	return prov, nil
}

// RequestVerification describes the requestverification operation and its observable behavior.
//
// RequestVerification may return an error when input validation, dependency calls, or security checks fail.
// RequestVerification does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RequestVerification(ctx context.Context, accountID string) (EnrollmentView, error) {
	if e == nil || e.enrollments == nil {
		return EnrollmentView{}, ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	if accountID == "" {
		return EnrollmentView{}, ErrInvalidInput
	}

	attempt, err := e.enrollments.Transition(ctx, tenantID, accountID, func(a *stores.EnrollmentAttempt) error {
		if a.State != stores.EnrollmentStateSecretIssued {
			return ErrEnrollmentStateInvalid
		}
		a.State = stores.EnrollmentStatePendingVerification
		return nil
	})
	if err != nil {
		mapped := e.mapEnrollmentStoreErr(err)
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", mapped, nil)
		return EnrollmentView{}, mapped
	}

	e.emitAudit(ctx, auditEventEnrollmentVerifyRequested, true, accountID, tenantID, "", nil, nil)

	return enrollmentViewFromAttempt(attempt, MfaPending), nil
}

// SubmitEnrollmentCode describes the submitenrollmentcode operation and its observable behavior.
//
// SubmitEnrollmentCode may return an error when input validation, dependency calls, or security checks fail.
// SubmitEnrollmentCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SubmitEnrollmentCode(ctx context.Context, accountID, code string) (EnrollmentResult, error) {
	if e == nil || e.credentials == nil || e.enrollments == nil || e.totp == nil {
		return EnrollmentResult{}, ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	if accountID == "" || strings.TrimSpace(code) == "" {
		return EnrollmentResult{}, ErrInvalidInput
	}

	account, err := e.lookupAccount(ctx, accountID)
	if err != nil {
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", err, nil)
		return EnrollmentResult{}, err
	}
	if account.TenantID != "" {
		tenantID = account.TenantID
	}

	attempt, err := e.enrollments.Get(ctx, tenantID, accountID)
	if err != nil {
		mapped := e.mapEnrollmentStoreErr(err)
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", mapped, nil)
		return EnrollmentResult{}, mapped
	}
	if attempt.State != stores.EnrollmentStatePendingVerification {
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", ErrEnrollmentStateInvalid, nil)
		return EnrollmentResult{}, ErrEnrollmentStateInvalid
	}

	ok, _, err := e.totp.VerifyCode(attempt.Secret, code, time.Now())
	if err != nil {
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", ErrCodeInvalid, nil)
		return EnrollmentResult{}, ErrCodeInvalid
	}

	if !ok {
		remaining, cancelled, recErr := e.enrollments.RecordFailure(ctx, tenantID, accountID)
		if recErr != nil {
			mapped := e.mapEnrollmentStoreErr(recErr)
			e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", mapped, nil)
			return EnrollmentResult{}, mapped
		}
		if cancelled {
			e.metricInc(MetricEnrollmentAttemptsExceeded)
			e.metricInc(MetricEnrollmentCancelled)
			e.emitAudit(ctx, auditEventEnrollmentCodeRejected, false, accountID, tenantID, "", ErrEnrollmentAttemptsExceeded, func() map[string]string {
				return map[string]string{
					"attempts_remaining": "0",
					"cancelled":          "true",
				}
			})
			return EnrollmentResult{}, ErrEnrollmentAttemptsExceeded
		}
		e.metricInc(MetricEnrollmentCodeRejected)
		e.emitAudit(ctx, auditEventEnrollmentCodeRejected, false, accountID, tenantID, "", ErrCodeInvalid, func() map[string]string {
			return map[string]string{
				"attempts_remaining": fmt.Sprintf("%d", remaining),
			}
		})
		return EnrollmentResult{}, ErrCodeInvalid
	}

	records, plain, err := codes.GenerateSet(accountID, e.config.Enrollment.BackupCodeCount, e.config.Enrollment.BackupCodeLength)
	if err != nil {
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", err, func() map[string]string {
			return map[string]string{
				"reason": "backup_code_generation",
			}
		})
		return EnrollmentResult{}, err
	}

	backupRecords := make([]BackupCodeRecord, len(records))
	for i, r := range records {
		backupRecords[i] = BackupCodeRecord{Hash: r.Hash}
	}

	method := MfaMethod(attempt.Method)
	if err := e.credentials.UpdateMfaFields(ctx, accountID, MfaEnabled, method, attempt.Secret, backupRecords); err != nil {
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", err, func() map[string]string {
			return map[string]string{
				"reason": "mfa_field_update_failed",
			}
		})
		return EnrollmentResult{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	// The attempt is single-use; a second submit after completion reads as absent.
	if _, err := e.enrollments.Delete(ctx, tenantID, accountID); err != nil {
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", e.mapEnrollmentStoreErr(err), func() map[string]string {
			return map[string]string{
				"reason": "attempt_cleanup_failed",
			}
		})
	}

	e.metricInc(MetricEnrollmentCompleted)
	e.metricInc(MetricBackupCodesGenerated)
	e.emitAudit(ctx, auditEventEnrollmentCompleted, true, accountID, tenantID, "", nil, func() map[string]string {
		return map[string]string{
			"method": mfaMethodLabel(method),
		}
	})
	e.emitAudit(ctx, auditEventBackupCodesGenerated, true, accountID, tenantID, "", nil, func() map[string]string {
		return map[string]string{
			"count": fmt.Sprintf("%d", len(plain)),
		}
	})

	return EnrollmentResult{BackupCodes: plain}, nil
}

// CancelEnrollment describes the cancelenrollment operation and its observable behavior.
//
// CancelEnrollment may return an error when input validation, dependency calls, or security checks fail.
// CancelEnrollment does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CancelEnrollment(ctx context.Context, accountID string) error {
	if e == nil || e.enrollments == nil {
		return ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	if accountID == "" {
		return ErrInvalidInput
	}

	existed, err := e.enrollments.Delete(ctx, tenantID, accountID)
	if err != nil {
		mapped := e.mapEnrollmentStoreErr(err)
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", mapped, nil)
		return mapped
	}
	if !existed {
		e.emitAudit(ctx, auditEventEnrollmentFailure, false, accountID, tenantID, "", ErrEnrollmentNotFound, nil)
		return ErrEnrollmentNotFound
	}

	e.metricInc(MetricEnrollmentCancelled)
	e.emitAudit(ctx, auditEventEnrollmentCancelled, true, accountID, tenantID, "", nil, nil)

	return nil
}

// EnrollmentStatus describes the enrollmentstatus operation and its observable behavior.
//
// EnrollmentStatus may return an error when input validation, dependency calls, or security checks fail.
// EnrollmentStatus does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) EnrollmentStatus(ctx context.Context, accountID string) (EnrollmentView, error) {
	if e == nil || e.credentials == nil || e.enrollments == nil {
		return EnrollmentView{}, ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	if accountID == "" {
		return EnrollmentView{}, ErrInvalidInput
	}

	account, err := e.lookupAccount(ctx, accountID)
	if err != nil {
		return EnrollmentView{}, err
	}
	if account.TenantID != "" {
		tenantID = account.TenantID
	}

	attempt, err := e.enrollments.Get(ctx, tenantID, accountID)
	if err != nil {
		mapped := e.mapEnrollmentStoreErr(err)
		if errors.Is(mapped, ErrEnrollmentNotFound) {
			return EnrollmentView{
				State:     EnrollmentNone,
				Method:    account.MfaMethod,
				MfaStatus: account.MfaStatus,
			}, nil
		}
		return EnrollmentView{}, mapped
	}

	return enrollmentViewFromAttempt(attempt, MfaPending), nil
}

// DisableMfa describes the disablemfa operation and its observable behavior.
//
// DisableMfa may return an error when input validation, dependency calls, or security checks fail.
// DisableMfa does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) DisableMfa(ctx context.Context, accountID, currentPassword string) error {
	if e == nil || e.credentials == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	if accountID == "" || currentPassword == "" {
		return ErrInvalidInput
	}

	account, err := e.lookupAccount(ctx, accountID)
	if err != nil {
		e.emitAudit(ctx, auditEventMfaDisabled, false, accountID, tenantID, "", err, nil)
		return err
	}
	if account.TenantID != "" {
		tenantID = account.TenantID
	}
	if account.MfaStatus != MfaEnabled {
		e.emitAudit(ctx, auditEventMfaDisabled, false, accountID, tenantID, "", ErrMfaNotEnabled, nil)
		return ErrMfaNotEnabled
	}

	ok, err := e.passwordHash.Verify(currentPassword, account.PasswordHash)
	if err != nil || !ok {
		e.emitAudit(ctx, auditEventMfaDisabled, false, accountID, tenantID, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if err := e.credentials.UpdateMfaFields(ctx, accountID, MfaDisabled, MethodNone, nil, nil); err != nil {
		e.emitAudit(ctx, auditEventMfaDisabled, false, accountID, tenantID, "", err, nil)
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	// Any in-flight enrollment attempt is meaningless once MFA is off.
	if e.enrollments != nil {
		_, _ = e.enrollments.Delete(ctx, tenantID, accountID)
	}

	e.metricInc(MetricMfaDisabled)
	e.emitAudit(ctx, auditEventMfaDisabled, true, accountID, tenantID, "", nil, nil)

	return nil
}

// RegenerateBackupCodes describes the regeneratebackupcodes operation and its observable behavior.
//
// RegenerateBackupCodes may return an error when input validation, dependency calls, or security checks fail.
// RegenerateBackupCodes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, accountID, currentPassword string) ([]string, error) {
	if e == nil || e.credentials == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	if accountID == "" || currentPassword == "" {
		return nil, ErrInvalidInput
	}

	account, err := e.lookupAccount(ctx, accountID)
	if err != nil {
		e.emitAudit(ctx, auditEventBackupCodesGenerated, false, accountID, tenantID, "", err, nil)
		return nil, err
	}
	if account.TenantID != "" {
		tenantID = account.TenantID
	}
	if account.MfaStatus != MfaEnabled {
		e.emitAudit(ctx, auditEventBackupCodesGenerated, false, accountID, tenantID, "", ErrMfaNotEnabled, nil)
		return nil, ErrMfaNotEnabled
	}

	ok, err := e.passwordHash.Verify(currentPassword, account.PasswordHash)
	if err != nil || !ok {
		e.emitAudit(ctx, auditEventBackupCodesGenerated, false, accountID, tenantID, "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	records, plain, err := codes.GenerateSet(accountID, e.config.Enrollment.BackupCodeCount, e.config.Enrollment.BackupCodeLength)
	if err != nil {
		e.emitAudit(ctx, auditEventBackupCodesGenerated, false, accountID, tenantID, "", err, nil)
		return nil, err
	}

	backupRecords := make([]BackupCodeRecord, len(records))
	for i, r := range records {
		backupRecords[i] = BackupCodeRecord{Hash: r.Hash}
	}

	if err := e.credentials.UpdateMfaFields(ctx, accountID, account.MfaStatus, account.MfaMethod, account.MfaSecret, backupRecords); err != nil {
		e.emitAudit(ctx, auditEventBackupCodesGenerated, false, accountID, tenantID, "", err, nil)
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	e.metricInc(MetricBackupCodesGenerated)
	e.emitAudit(ctx, auditEventBackupCodesGenerated, true, accountID, tenantID, "", nil, func() map[string]string {
		return map[string]string{
			"count": fmt.Sprintf("%d", len(plain)),
		}
	})

	return plain, nil
}

func mfaMethodLabel(method MfaMethod) string {
	switch method {
	case MethodAuthenticatorApp:
		return "authenticator_app"
	case MethodSMS:
		return "sms"
	default:
		return "none"
	}
}

// maskDeliveryTarget keeps only the first character and the trailing two so
// provisioning responses never echo a full delivery address.
func maskDeliveryTarget(target string) string {
	if len(target) <= 3 {
		return strings.Repeat("*", len(target))
	}
	return target[:1] + strings.Repeat("*", len(target)-3) + target[len(target)-2:]
}
