package internaldefs

import (
	goAccount "github.com/MrEthical07/goAccount"
)

// CounterDef defines a public type used by goAccount APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goAccount.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goAccount APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goAccount.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the account security engine.
var CounterDefs = []CounterDef{
	{ID: goAccount.MetricPasswordRotateSuccess, Name: "goaccount_password_rotate_success_total", Help: "Successful password rotations."},
	{ID: goAccount.MetricPasswordRotateInvalidCurrent, Name: "goaccount_password_rotate_invalid_current_total", Help: "Password rotation attempts with an invalid current password."},
	{ID: goAccount.MetricPasswordRotateReuseRejected, Name: "goaccount_password_rotate_reuse_rejected_total", Help: "Password rotation attempts rejected for reuse."},
	{ID: goAccount.MetricPasswordRotatePolicyRejected, Name: "goaccount_password_rotate_policy_rejected_total", Help: "Password rotation attempts rejected by policy."},
	{ID: goAccount.MetricEnrollmentStarted, Name: "goaccount_enrollment_started_total", Help: "Started MFA enrollment attempts."},
	{ID: goAccount.MetricEnrollmentConflict, Name: "goaccount_enrollment_conflict_total", Help: "Enrollment starts rejected due to an active attempt or enabled MFA."},
	{ID: goAccount.MetricEnrollmentSecretIssued, Name: "goaccount_enrollment_secret_issued_total", Help: "Enrollment attempts that received provisioning material."},
	{ID: goAccount.MetricEnrollmentCompleted, Name: "goaccount_enrollment_completed_total", Help: "Completed MFA enrollments."},
	{ID: goAccount.MetricEnrollmentCodeRejected, Name: "goaccount_enrollment_code_rejected_total", Help: "Rejected enrollment verification codes."},
	{ID: goAccount.MetricEnrollmentAttemptsExceeded, Name: "goaccount_enrollment_attempts_exceeded_total", Help: "Enrollment attempts cancelled after exhausting verification attempts."},
	{ID: goAccount.MetricEnrollmentCancelled, Name: "goaccount_enrollment_cancelled_total", Help: "Cancelled enrollment attempts."},
	{ID: goAccount.MetricEnrollmentExpired, Name: "goaccount_enrollment_expired_total", Help: "Enrollment attempts that expired before completion."},
	{ID: goAccount.MetricMfaDisabled, Name: "goaccount_mfa_disabled_total", Help: "MFA disable operations."},
	{ID: goAccount.MetricBackupCodesGenerated, Name: "goaccount_backup_codes_generated_total", Help: "Backup-code set generations."},
	{ID: goAccount.MetricBackupCodeUsed, Name: "goaccount_backup_code_used_total", Help: "Successful backup-code verifications."},
	{ID: goAccount.MetricBackupCodeFailed, Name: "goaccount_backup_code_failed_total", Help: "Failed backup-code verifications."},
	{ID: goAccount.MetricSecondFactorSuccess, Name: "goaccount_second_factor_success_total", Help: "Successful second-factor verifications."},
	{ID: goAccount.MetricSecondFactorFailure, Name: "goaccount_second_factor_failure_total", Help: "Failed second-factor verifications."},
	{ID: goAccount.MetricSecondFactorRateLimited, Name: "goaccount_second_factor_rate_limited_total", Help: "Rate-limited second-factor verifications."},
	{ID: goAccount.MetricSessionRegistered, Name: "goaccount_session_registered_total", Help: "Registered sessions."},
	{ID: goAccount.MetricSessionTerminated, Name: "goaccount_session_terminated_total", Help: "Terminated sessions."},
	{ID: goAccount.MetricSessionTerminateOthers, Name: "goaccount_session_terminate_others_total", Help: "Terminate-all-other-sessions operations."},
	{ID: goAccount.MetricSessionEvicted, Name: "goaccount_session_evicted_total", Help: "Sessions evicted by the per-account cap."},
}

// HistogramDefs is an exported constant or variable used by the account security engine.
var HistogramDefs = []HistogramDef{
	{ID: goAccount.MetricSecondFactorLatency, Name: "goaccount_second_factor_latency_seconds", Help: "Second-factor verification latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the account security engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the account security engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
