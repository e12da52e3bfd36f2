package goAccount

import (
	"context"
	"errors"
	"fmt"

	"github.com/nbutton23/zxcvbn-go"
)

// RotatePassword describes the rotatepassword operation and its observable behavior.
//
// RotatePassword may return an error when input validation, dependency calls, or security checks fail.
// RotatePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RotatePassword(ctx context.Context, input RotatePasswordInput) error {
	if e == nil || e.passwordHash == nil || e.credentials == nil {
		return ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	if err := e.validate.Struct(input); err != nil {
		e.emitAudit(ctx, auditEventPasswordRotateFailure, false, input.AccountID, tenantID, input.RequestingSessionID, ErrInvalidInput, func() map[string]string {
			return map[string]string{
				"reason": "missing_fields",
			}
		})
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if input.NewPassword != input.ConfirmPassword {
		e.metricInc(MetricPasswordRotatePolicyRejected)
		e.emitAudit(ctx, auditEventPasswordRotateFailure, false, input.AccountID, tenantID, input.RequestingSessionID, ErrPasswordMismatch, nil)
		return ErrPasswordMismatch
	}
	if len(input.NewPassword) < e.config.Password.MinLength {
		e.metricInc(MetricPasswordRotatePolicyRejected)
		e.emitAudit(ctx, auditEventPasswordRotateFailure, false, input.AccountID, tenantID, input.RequestingSessionID, ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "below_min_length",
			}
		})
		return ErrPasswordPolicy
	}
	if min := e.config.Password.MinStrengthScore; min > 0 {
		strength := zxcvbn.PasswordStrength(input.NewPassword, nil)
		if strength.Score < min {
			e.metricInc(MetricPasswordRotatePolicyRejected)
			e.emitAudit(ctx, auditEventPasswordRotateFailure, false, input.AccountID, tenantID, input.RequestingSessionID, ErrPasswordWeak, func() map[string]string {
				return map[string]string{
					"reason": "strength_score",
				}
			})
			return ErrPasswordWeak
		}
	}

	account, err := e.credentials.FindAccount(ctx, input.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// A missing account burns the same verify cost as a wrong password.
			_, _ = e.passwordHash.Verify(input.CurrentPassword, e.timingPad)
			e.emitAudit(ctx, auditEventPasswordRotateFailure, false, input.AccountID, tenantID, input.RequestingSessionID, ErrAccountNotFound, nil)
			return ErrAccountNotFound
		}
		e.emitAudit(ctx, auditEventPasswordRotateFailure, false, input.AccountID, tenantID, input.RequestingSessionID, err, func() map[string]string {
			return map[string]string{
				"reason": "account_lookup_failed",
			}
		})
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if account.TenantID != "" {
		tenantID = account.TenantID
	}

	currentOK, err := e.passwordHash.Verify(input.CurrentPassword, account.PasswordHash)
	if err != nil || !currentOK {
		e.metricInc(MetricPasswordRotateInvalidCurrent)
		e.emitAudit(ctx, auditEventPasswordRotateInvalidCurrent, false, input.AccountID, tenantID, input.RequestingSessionID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	samePassword, err := e.passwordHash.Verify(input.NewPassword, account.PasswordHash)
	if err == nil && samePassword {
		e.metricInc(MetricPasswordRotateReuseRejected)
		e.emitAudit(ctx, auditEventPasswordRotateReuse, false, input.AccountID, tenantID, input.RequestingSessionID, ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	newHash, err := e.passwordHash.Hash(input.NewPassword)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordRotateFailure, false, input.AccountID, tenantID, input.RequestingSessionID, ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "hash_policy",
			}
		})
		return ErrPasswordPolicy
	}

	if err := e.credentials.UpdatePasswordHash(ctx, input.AccountID, newHash); err != nil {
		e.emitAudit(ctx, auditEventPasswordRotateFailure, false, input.AccountID, tenantID, input.RequestingSessionID, err, func() map[string]string {
			return map[string]string{
				"reason": "update_hash_failed",
			}
		})
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if e.config.Password.InvalidateOtherSessions && e.sessionStore != nil {
		removed, err := e.sessionStore.DeleteAllExcept(ctx, tenantID, input.AccountID, input.RequestingSessionID)
		if err != nil {
			e.emitAudit(ctx, auditEventPasswordRotateFailure, false, input.AccountID, tenantID, input.RequestingSessionID, ErrSessionInvalidationFailed, func() map[string]string {
				return map[string]string{
					"reason": "session_invalidation_failed",
				}
			})
			return errors.Join(ErrSessionInvalidationFailed, err)
		}
		if removed > 0 {
			e.metricInc(MetricSessionTerminated)
		}
	}

	e.metricInc(MetricPasswordRotateSuccess)
	e.emitAudit(ctx, auditEventPasswordRotateSuccess, true, input.AccountID, tenantID, input.RequestingSessionID, nil, nil)

	return nil
}

// RotatePasswordWithResult describes the rotatepasswordwithresult operation and its observable behavior.
//
// RotatePasswordWithResult may return an error when input validation, dependency calls, or security checks fail.
// RotatePasswordWithResult does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RotatePasswordWithResult(ctx context.Context, input RotatePasswordInput) Outcome[struct{}] {
	return Capture(e.RotatePassword(ctx, input))
}
