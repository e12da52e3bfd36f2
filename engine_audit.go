package goAccount

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	auditEventPasswordRotateSuccess        = "password_rotate_success"
	auditEventPasswordRotateInvalidCurrent = "password_rotate_invalid_current"
	auditEventPasswordRotateReuse          = "password_rotate_reuse_attempt"
	auditEventPasswordRotateFailure        = "password_rotate_failure"
	auditEventEnrollmentStarted            = "mfa_enrollment_started"
	auditEventEnrollmentMethodConfirmed    = "mfa_enrollment_method_confirmed"
	auditEventEnrollmentVerifyRequested    = "mfa_enrollment_verification_requested"
	auditEventEnrollmentCompleted          = "mfa_enrollment_completed"
	auditEventEnrollmentCodeRejected       = "mfa_enrollment_code_rejected"
	auditEventEnrollmentCancelled          = "mfa_enrollment_cancelled"
	auditEventEnrollmentFailure            = "mfa_enrollment_failure"
	auditEventMfaDisabled                  = "mfa_disabled"
	auditEventBackupCodesGenerated         = "backup_codes_generated"
	auditEventSecondFactorSuccess          = "second_factor_success"
	auditEventSecondFactorFailure          = "second_factor_failure"
	auditEventSessionRegistered            = "session_registered"
	auditEventSessionTerminated            = "session_terminated"
	auditEventSessionTerminateOthers       = "session_terminate_others"
	auditEventRateLimitTriggered           = "rate_limit_triggered"
)

// AuditErrorCode defines a public type used by goAccount APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidInput        AuditErrorCode = "invalid_input"
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrAccountNotFound     AuditErrorCode = "account_not_found"
	auditErrPasswordPolicy      AuditErrorCode = "password_policy"
	auditErrPasswordReuse       AuditErrorCode = "password_reuse"
	auditErrPasswordWeak        AuditErrorCode = "password_weak"
	auditErrSessionNotFound     AuditErrorCode = "session_not_found"
	auditErrSelfTermination     AuditErrorCode = "self_termination"
	auditErrSessionInvalidation AuditErrorCode = "session_invalidation_failed"
	auditErrEnrollmentActive    AuditErrorCode = "enrollment_active"
	auditErrEnrollmentNotFound  AuditErrorCode = "enrollment_not_found"
	auditErrEnrollmentState     AuditErrorCode = "enrollment_state_invalid"
	auditErrAttemptsExceeded    AuditErrorCode = "attempts_exceeded"
	auditErrCodeInvalid         AuditErrorCode = "code_invalid"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrMfaState            AuditErrorCode = "mfa_state_invalid"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	tenantID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}
	if tenantID == "" {
		tenantID = tenantIDFromContext(ctx)
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		TenantID:  tenantID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(
	ctx context.Context,
	scope string,
	accountID string,
	metadataBuilder func() map[string]string,
) {
	e.metricInc(MetricSecondFactorRateLimited)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, accountID, "", "", nil, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrPasswordMismatch):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrPasswordWeak):
		return auditErrPasswordWeak
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrSelfTermination):
		return auditErrSelfTermination
	case errors.Is(err, ErrSessionInvalidationFailed):
		return auditErrSessionInvalidation
	case errors.Is(err, ErrEnrollmentActive):
		return auditErrEnrollmentActive
	case errors.Is(err, ErrEnrollmentNotFound):
		return auditErrEnrollmentNotFound
	case errors.Is(err, ErrEnrollmentStateInvalid):
		return auditErrEnrollmentState
	case errors.Is(err, ErrEnrollmentAttemptsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrCodeInvalid):
		return auditErrCodeInvalid
	case errors.Is(err, ErrTooManyAttempts):
		return auditErrRateLimited
	case errors.Is(err, ErrMfaAlreadyEnabled),
		errors.Is(err, ErrMfaNotEnabled),
		errors.Is(err, ErrMfaMethodInvalid),
		errors.Is(err, ErrBackupCodesNotConfigured):
		return auditErrMfaState
	case errors.Is(err, ErrStorageUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
