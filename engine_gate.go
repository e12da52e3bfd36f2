package goAccount

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goAccount/internal/codes"
	"github.com/MrEthical07/goAccount/internal/rate"
)

// RequiresSecondFactor describes the requiressecondfactor operation and its observable behavior.
//
// RequiresSecondFactor may return an error when input validation, dependency calls, or security checks fail.
// RequiresSecondFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RequiresSecondFactor(account Account) bool {
	return account.MfaStatus == MfaEnabled
}

// VerifySecondFactor describes the verifysecondfactor operation and its observable behavior.
//
// VerifySecondFactor may return an error when input validation, dependency calls, or security checks fail.
// VerifySecondFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) VerifySecondFactor(ctx context.Context, accountID, code string) (SecondFactorMethod, error) {
	if e == nil || e.credentials == nil || e.totp == nil {
		return "", ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer e.metrics.Observe(MetricSecondFactorLatency, time.Since(start))
	}

	tenantID := tenantIDFromContext(ctx)

	trimmed := strings.TrimSpace(code)
	if accountID == "" || trimmed == "" {
		return "", ErrInvalidInput
	}

	account, err := e.lookupAccount(ctx, accountID)
	if err != nil {
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, accountID, tenantID, "", err, nil)
		return "", err
	}
	if account.TenantID != "" {
		tenantID = account.TenantID
	}
	if account.MfaStatus != MfaEnabled {
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, accountID, tenantID, "", ErrMfaNotEnabled, nil)
		return "", ErrMfaNotEnabled
	}

	if e.gateLimiter != nil {
		if err := e.gateLimiter.Check(ctx, tenantID, accountID); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.emitRateLimit(ctx, "second_factor", accountID, nil)
				e.emitAudit(ctx, auditEventSecondFactorFailure, false, accountID, tenantID, "", ErrTooManyAttempts, nil)
				return "", ErrTooManyAttempts
			}
			e.emitAudit(ctx, auditEventSecondFactorFailure, false, accountID, tenantID, "", err, nil)
			return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	// Numeric input of TOTP length goes to the authenticator path; anything
	// else is treated as a backup code.
	if len(trimmed) == e.config.TOTP.Digits && isNumericString(trimmed) {
		ok, _, verifyErr := e.totp.VerifyCode(account.MfaSecret, trimmed, time.Now())
		if verifyErr == nil && ok {
			return e.secondFactorAccepted(ctx, tenantID, accountID, SecondFactorTOTP)
		}
		return "", e.secondFactorRejected(ctx, tenantID, accountID, SecondFactorTOTP)
	}

	if account.BackupCodeCount == 0 {
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, accountID, tenantID, "", ErrBackupCodesNotConfigured, nil)
		return "", ErrBackupCodesNotConfigured
	}

	canonical := codes.Canonicalize(trimmed)
	consumed, err := e.credentials.ConsumeBackupCode(ctx, accountID, codes.Hash(accountID, canonical))
	if err != nil {
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, accountID, tenantID, "", err, func() map[string]string {
			return map[string]string{
				"reason": "backup_code_consume_failed",
			}
		})
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if consumed {
		e.metricInc(MetricBackupCodeUsed)
		return e.secondFactorAccepted(ctx, tenantID, accountID, SecondFactorBackupCode)
	}

	e.metricInc(MetricBackupCodeFailed)
	return "", e.secondFactorRejected(ctx, tenantID, accountID, SecondFactorBackupCode)
}

func (e *Engine) secondFactorAccepted(ctx context.Context, tenantID, accountID string, method SecondFactorMethod) (SecondFactorMethod, error) {
	if e.gateLimiter != nil {
		// Counter reset is best-effort; a stale counter only tightens the gate.
		_ = e.gateLimiter.Reset(ctx, tenantID, accountID)
	}

	e.metricInc(MetricSecondFactorSuccess)
	e.emitAudit(ctx, auditEventSecondFactorSuccess, true, accountID, tenantID, "", nil, func() map[string]string {
		return map[string]string{
			"method": string(method),
		}
	})

	return method, nil
}

func (e *Engine) secondFactorRejected(ctx context.Context, tenantID, accountID string, method SecondFactorMethod) error {
	if e.gateLimiter != nil {
		if err := e.gateLimiter.RecordFailure(ctx, tenantID, accountID); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricSecondFactorFailure)
				e.emitRateLimit(ctx, "second_factor", accountID, nil)
				e.emitAudit(ctx, auditEventSecondFactorFailure, false, accountID, tenantID, "", ErrTooManyAttempts, nil)
				return ErrTooManyAttempts
			}
			e.emitAudit(ctx, auditEventSecondFactorFailure, false, accountID, tenantID, "", err, nil)
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	e.metricInc(MetricSecondFactorFailure)
	e.emitAudit(ctx, auditEventSecondFactorFailure, false, accountID, tenantID, "", ErrCodeInvalid, func() map[string]string {
		return map[string]string{
			"method": string(method),
		}
	})

	return ErrCodeInvalid
}
