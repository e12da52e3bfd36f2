package goAccount

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// 160-bit secrets per RFC 4226 recommendation.
const totpSecretBytes = 20

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

// totpManager holds the immutable code parameters (digits, period, algorithm,
// skew) and performs generation and verification. It carries no per-account
// state; the pending or committed secret always comes from the caller.
type totpManager struct {
	config TOTPConfig
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	return &totpManager{config: cfg}
}

// GenerateSecret returns a fresh random secret in raw and base32 form. The
// base32 form is what provisioning UIs display; the raw form is what gets
// persisted and verified against.
func (m *totpManager) GenerateSecret() ([]byte, string, error) {
	if m == nil {
		return nil, "", ErrEngineNotReady
	}

	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", err
	}
	return raw, base32NoPad.EncodeToString(raw), nil
}

// ProvisionURI renders the otpauth:// URI authenticator apps import, labeled
// issuer:account with the manager's code parameters.
func (m *totpManager) ProvisionURI(secretBase32, account string) string {
	q := url.Values{
		"secret":    {secretBase32},
		"issuer":    {m.config.Issuer},
		"algorithm": {strings.ToUpper(m.config.Algorithm)},
		"digits":    {strconv.Itoa(m.config.Digits)},
		"period":    {strconv.Itoa(m.config.Period)},
	}
	return "otpauth://totp/" + url.PathEscape(m.config.Issuer+":"+account) + "?" + q.Encode()
}

// CurrentCode returns the code for the time step containing now. This is
// what gets handed to a delivery channel when the engine, not an
// authenticator app, is the code source.
func (m *totpManager) CurrentCode(secret []byte, now time.Time) (string, error) {
	if m == nil {
		return "", ErrEngineNotReady
	}
	if len(secret) == 0 {
		return "", errors.New("empty totp secret")
	}
	return hotpCode(secret, now.Unix()/int64(m.config.Period), m.config.Digits, m.config.Algorithm)
}

// VerifyCode checks code against the secret across the configured skew
// window and returns the matching counter. A malformed code (wrong length,
// non-numeric) is a clean rejection, not an error; errors are reserved for
// unusable secrets and unsupported algorithms.
func (m *totpManager) VerifyCode(secret []byte, code string, now time.Time) (bool, int64, error) {
	if m == nil {
		return false, 0, ErrEngineNotReady
	}
	if len(secret) == 0 {
		return false, 0, errors.New("empty totp secret")
	}

	candidate := strings.TrimSpace(code)
	if len(candidate) != m.config.Digits || !isNumericString(candidate) {
		return false, 0, nil
	}

	center := now.Unix() / int64(m.config.Period)
	matched := false
	var matchedCounter int64

	// Every window counter is evaluated so timing does not reveal which
	// step (if any) matched.
	for offset := -m.config.Skew; offset <= m.config.Skew; offset++ {
		counter := center + int64(offset)
		if counter < 0 {
			continue
		}
		expected, err := hotpCode(secret, counter, m.config.Digits, m.config.Algorithm)
		if err != nil {
			return false, 0, err
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(candidate)) == 1 && !matched {
			matched = true
			matchedCounter = counter
		}
	}

	if !matched {
		return false, 0, nil
	}
	return true, matchedCounter, nil
}

// hotpCode computes the RFC 4226 value for one counter: HMAC over the
// big-endian counter, dynamic truncation, then reduction to the requested
// digit count with zero padding.
func hotpCode(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	newHash, err := hashConstructor(algorithm)
	if err != nil {
		return "", err
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))
	mac := hmac.New(newHash, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	truncated := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint32(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	out := strconv.FormatUint(uint64(truncated%mod), 10)
	for len(out) < digits {
		out = "0" + out
	}
	return out, nil
}

func isNumericString(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hashConstructor(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported totp algorithm")
	}
}
