package goAccount

import (
	"context"
	"errors"
	"testing"
	"time"
)

// newGateTestEngine returns an engine plus one account that completed
// enrollment, along with its plaintext backup codes.
func newGateTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *mockCredentialStore, []string, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	hasher := newTestHasher(t)
	hash, err := hasher.Hash("account-password-1")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	cs := &mockCredentialStore{
		accounts: map[string]Account{
			"acct-1": {
				AccountID:    "acct-1",
				Identifier:   "alice@example.com",
				PasswordHash: hash,
			},
		},
	}

	cfg := defaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	engine := newTestEngineWithConfig(t, rdb, cs, hasher, cfg)
	backupCodes := completeEnrollment(t, engine, "acct-1")
	return engine, cs, backupCodes, mr.Close
}

func TestRequiresSecondFactor(t *testing.T) {
	engine := &Engine{}

	if engine.RequiresSecondFactor(Account{MfaStatus: MfaDisabled}) {
		t.Fatal("disabled account must not require a second factor")
	}
	if engine.RequiresSecondFactor(Account{MfaStatus: MfaPending}) {
		t.Fatal("pending enrollment must not require a second factor")
	}
	if !engine.RequiresSecondFactor(Account{MfaStatus: MfaEnabled}) {
		t.Fatal("enabled account must require a second factor")
	}
}

func TestVerifySecondFactorTOTP(t *testing.T) {
	engine, cs, _, closeFn := newGateTestEngine(t, nil)
	defer closeFn()

	ctx := context.Background()
	secret := cs.accounts["acct-1"].MfaSecret

	method, err := engine.VerifySecondFactor(ctx, "acct-1", totpCodeAt(t, secret, time.Now(), engine.config.TOTP))
	if err != nil {
		t.Fatalf("VerifySecondFactor failed: %v", err)
	}
	if method != SecondFactorTOTP {
		t.Fatalf("expected totp method, got %q", method)
	}
}

func TestVerifySecondFactorRejectsWrongTOTP(t *testing.T) {
	engine, cs, _, closeFn := newGateTestEngine(t, nil)
	defer closeFn()

	secret := cs.accounts["acct-1"].MfaSecret
	wrong := wrongTOTPCode(t, secret, engine.config.TOTP)

	_, err := engine.VerifySecondFactor(context.Background(), "acct-1", wrong)
	if !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid, got %v", err)
	}
}

func TestVerifySecondFactorBackupCodeIsSingleUse(t *testing.T) {
	engine, _, backupCodes, closeFn := newGateTestEngine(t, nil)
	defer closeFn()

	ctx := context.Background()

	method, err := engine.VerifySecondFactor(ctx, "acct-1", backupCodes[0])
	if err != nil {
		t.Fatalf("VerifySecondFactor failed: %v", err)
	}
	if method != SecondFactorBackupCode {
		t.Fatalf("expected backup_code method, got %q", method)
	}

	// A consumed code never verifies again.
	if _, err := engine.VerifySecondFactor(ctx, "acct-1", backupCodes[0]); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid on reuse, got %v", err)
	}

	// The remaining codes stay valid.
	if _, err := engine.VerifySecondFactor(ctx, "acct-1", backupCodes[1]); err != nil {
		t.Fatalf("second backup code failed: %v", err)
	}
}

func TestVerifySecondFactorBackupCodeIgnoresFormatting(t *testing.T) {
	engine, _, backupCodes, closeFn := newGateTestEngine(t, nil)
	defer closeFn()

	// Codes are issued grouped; users retype them with or without separators.
	stripped := ""
	for _, r := range backupCodes[0] {
		if r != '-' && r != ' ' {
			stripped += string(r)
		}
	}

	method, err := engine.VerifySecondFactor(context.Background(), "acct-1", stripped)
	if err != nil {
		t.Fatalf("VerifySecondFactor failed for stripped code: %v", err)
	}
	if method != SecondFactorBackupCode {
		t.Fatalf("expected backup_code method, got %q", method)
	}
}

func TestVerifySecondFactorRequiresEnabledMfa(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cs := &mockCredentialStore{
		accounts: map[string]Account{
			"acct-1": {AccountID: "acct-1"},
		},
	}
	engine := newTestEngine(t, rdb, cs, newTestHasher(t))

	_, err := engine.VerifySecondFactor(context.Background(), "acct-1", "123456")
	if !errors.Is(err, ErrMfaNotEnabled) {
		t.Fatalf("expected ErrMfaNotEnabled, got %v", err)
	}
}

func TestVerifySecondFactorThrottles(t *testing.T) {
	engine, cs, _, closeFn := newGateTestEngine(t, func(cfg *Config) {
		cfg.Gate.MaxAttempts = 3
		cfg.Gate.Window = time.Minute
	})
	defer closeFn()

	ctx := context.Background()
	secret := cs.accounts["acct-1"].MfaSecret
	wrong := wrongTOTPCode(t, secret, engine.config.TOTP)

	for i := 0; i < 2; i++ {
		if _, err := engine.VerifySecondFactor(ctx, "acct-1", wrong); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("attempt %d: expected ErrCodeInvalid, got %v", i+1, err)
		}
	}

	// The third failure exhausts the budget.
	if _, err := engine.VerifySecondFactor(ctx, "acct-1", wrong); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts on budget exhaustion, got %v", err)
	}

	// Even a correct code is refused while throttled.
	valid := totpCodeAt(t, secret, time.Now(), engine.config.TOTP)
	if _, err := engine.VerifySecondFactor(ctx, "acct-1", valid); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts for valid code while throttled, got %v", err)
	}
}

func TestVerifySecondFactorSuccessResetsThrottle(t *testing.T) {
	engine, cs, _, closeFn := newGateTestEngine(t, func(cfg *Config) {
		cfg.Gate.MaxAttempts = 3
		cfg.Gate.Window = time.Minute
	})
	defer closeFn()

	ctx := context.Background()
	secret := cs.accounts["acct-1"].MfaSecret
	wrong := wrongTOTPCode(t, secret, engine.config.TOTP)

	for i := 0; i < 2; i++ {
		if _, err := engine.VerifySecondFactor(ctx, "acct-1", wrong); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("attempt %d: expected ErrCodeInvalid, got %v", i+1, err)
		}
	}

	valid := totpCodeAt(t, secret, time.Now(), engine.config.TOTP)
	if _, err := engine.VerifySecondFactor(ctx, "acct-1", valid); err != nil {
		t.Fatalf("expected success before budget exhaustion, got %v", err)
	}

	// The counter was reset; the full budget is available again.
	for i := 0; i < 2; i++ {
		if _, err := engine.VerifySecondFactor(ctx, "acct-1", wrong); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("post-reset attempt %d: expected ErrCodeInvalid, got %v", i+1, err)
		}
	}
}

func TestVerifySecondFactorBackupCodesExhausted(t *testing.T) {
	engine, cs, _, closeFn := newGateTestEngine(t, nil)
	defer closeFn()

	cs.mu.Lock()
	cs.codes["acct-1"] = nil
	cs.mu.Unlock()

	_, err := engine.VerifySecondFactor(context.Background(), "acct-1", "ABCDE-FGHIJ")
	if !errors.Is(err, ErrBackupCodesNotConfigured) {
		t.Fatalf("expected ErrBackupCodesNotConfigured, got %v", err)
	}
}

func TestVerifySecondFactorInvalidInput(t *testing.T) {
	engine, _, _, closeFn := newGateTestEngine(t, nil)
	defer closeFn()

	if _, err := engine.VerifySecondFactor(context.Background(), "acct-1", "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank code, got %v", err)
	}
	if _, err := engine.VerifySecondFactor(context.Background(), "", "123456"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank account, got %v", err)
	}
}
