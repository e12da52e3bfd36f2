package goAccount

import (
	"context"
	"crypto/subtle"
	"encoding/base32"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/MrEthical07/goAccount/internal/stores"
	"github.com/MrEthical07/goAccount/password"
	"github.com/MrEthical07/goAccount/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
)

type mockCredentialStore struct {
	accounts map[string]Account
	codes    map[string][]BackupCodeRecord
	mu       sync.Mutex

	findErr       error
	updateHashErr error
	updateMfaErr  error
	consumeErr    error

	findCalls       int
	updateHashCalls int
	updateMfaCalls  int
	consumeCalls    int
}

func (m *mockCredentialStore) FindAccount(_ context.Context, accountID string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++

	if m.findErr != nil {
		return Account{}, m.findErr
	}

	account, ok := m.accounts[accountID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}

	if len(account.MfaSecret) > 0 {
		account.MfaSecret = append([]byte(nil), account.MfaSecret...)
	}
	account.BackupCodeCount = len(m.codes[accountID])
	return account, nil
}

func (m *mockCredentialStore) UpdatePasswordHash(_ context.Context, accountID string, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateHashCalls++

	if m.updateHashErr != nil {
		return m.updateHashErr
	}

	account, ok := m.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.PasswordHash = newHash
	m.accounts[accountID] = account
	return nil
}

func (m *mockCredentialStore) UpdateMfaFields(
	_ context.Context,
	accountID string,
	status MfaStatus,
	method MfaMethod,
	secret []byte,
	codes []BackupCodeRecord,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateMfaCalls++

	if m.updateMfaErr != nil {
		return m.updateMfaErr
	}

	account, ok := m.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.MfaStatus = status
	account.MfaMethod = method
	if len(secret) > 0 {
		account.MfaSecret = append([]byte(nil), secret...)
	} else {
		account.MfaSecret = nil
	}
	m.accounts[accountID] = account

	if m.codes == nil {
		m.codes = make(map[string][]BackupCodeRecord)
	}
	next := make([]BackupCodeRecord, len(codes))
	copy(next, codes)
	m.codes[accountID] = next
	return nil
}

func (m *mockCredentialStore) ConsumeBackupCode(_ context.Context, accountID string, codeHash [32]byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumeCalls++

	if m.consumeErr != nil {
		return false, m.consumeErr
	}

	records := m.codes[accountID]
	matchIndex := -1
	for i := range records {
		if subtle.ConstantTimeCompare(records[i].Hash[:], codeHash[:]) == 1 && matchIndex == -1 {
			matchIndex = i
		}
	}
	if matchIndex < 0 {
		return false, nil
	}
	records = append(records[:matchIndex], records[matchIndex+1:]...)
	m.codes[accountID] = records
	return true, nil
}

func newTestHasher(t *testing.T) *password.Argon2 {
	t.Helper()

	h, err := password.NewArgon2(password.Config{
		Memory:      8192,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return h
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func newTestEngine(t *testing.T, rdb *redis.Client, cs CredentialStore, hasher *password.Argon2) *Engine {
	t.Helper()
	return newTestEngineWithConfig(t, rdb, cs, hasher, defaultConfig())
}

func newTestEngineWithConfig(t *testing.T, rdb *redis.Client, cs CredentialStore, hasher *password.Argon2, cfg Config) *Engine {
	t.Helper()

	pad, err := hasher.Hash("timing-pad")
	if err != nil {
		t.Fatalf("timing pad hash failed: %v", err)
	}

	return &Engine{
		config:       cfg,
		credentials:  cs,
		sessionStore: session.NewStore(rdb, cfg.Session.RedisPrefix),
		enrollments:  stores.NewEnrollmentStore(rdb, cfg.Enrollment.RedisPrefix),
		gateLimiter: rate.New(rdb, rate.Config{
			Enabled:     cfg.Gate.EnableThrottle,
			MaxAttempts: cfg.Gate.MaxAttempts,
			Window:      cfg.Gate.Window,
		}),
		metrics:      NewMetrics(cfg.Metrics),
		passwordHash: hasher,
		totp:         newTOTPManager(cfg.TOTP),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		timingPad:    pad,
	}
}

// totpCodeAt computes the code an authenticator app would show for the given
// secret at the given instant.
func totpCodeAt(t *testing.T, secret []byte, at time.Time, cfg TOTPConfig) string {
	t.Helper()

	code, err := hotpCode(secret, at.Unix()/int64(cfg.Period), cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	return code
}

// wrongTOTPCode returns a well-formed numeric code guaranteed not to verify
// against the secret in any accepted skew window.
func wrongTOTPCode(t *testing.T, secret []byte, cfg TOTPConfig) string {
	t.Helper()

	base := time.Now().Unix() / int64(cfg.Period)
	valid := make(map[string]struct{}, 2*cfg.Skew+1)
	for step := -cfg.Skew; step <= cfg.Skew; step++ {
		code, err := hotpCode(secret, base+int64(step), cfg.Digits, cfg.Algorithm)
		if err != nil {
			t.Fatalf("hotpCode failed: %v", err)
		}
		valid[code] = struct{}{}
	}

	candidates := []string{"000000", "111111", "222222", "333333", "444444"}
	for _, c := range candidates {
		if _, ok := valid[c]; !ok {
			return c
		}
	}
	t.Fatal("no invalid code candidate available")
	return ""
}

// decodeProvisioningSecret converts the base32 secret handed to the user back
// into the raw bytes the engine stores.
func decodeProvisioningSecret(t *testing.T, secretBase32 string) []byte {
	t.Helper()

	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secretBase32)
	if err != nil {
		t.Fatalf("base32 decode failed: %v", err)
	}
	return raw
}

// completeEnrollment drives one account through the full enrollment state
// machine and returns the plaintext backup codes.
func completeEnrollment(t *testing.T, engine *Engine, accountID string) []string {
	t.Helper()
	ctx := context.Background()

	if _, err := engine.StartEnrollment(ctx, accountID, MethodAuthenticatorApp); err != nil {
		t.Fatalf("StartEnrollment failed: %v", err)
	}
	prov, err := engine.ConfirmMethod(ctx, accountID)
	if err != nil {
		t.Fatalf("ConfirmMethod failed: %v", err)
	}
	if _, err := engine.RequestVerification(ctx, accountID); err != nil {
		t.Fatalf("RequestVerification failed: %v", err)
	}

	secret := decodeProvisioningSecret(t, prov.SecretBase32)
	result, err := engine.SubmitEnrollmentCode(ctx, accountID, totpCodeAt(t, secret, time.Now(), engine.config.TOTP))
	if err != nil {
		t.Fatalf("SubmitEnrollmentCode failed: %v", err)
	}
	return result.BackupCodes
}
