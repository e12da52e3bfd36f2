package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

// PHC salt and hash segments use unpadded standard base64.
var phcEncoding = base64.RawStdEncoding

// Config carries the argon2id cost parameters. Values below the enforced
// floors are rejected by [NewArgon2].
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Argon2 hashes and verifies passwords in PHC string format
// ($argon2id$v=..$m=..,t=..,p=..$salt$hash). Hashes carry their own
// parameters, so a Verify against an older hash uses the parameters the hash
// was created with, not the current config.
type Argon2 struct {
	config Config
}

// NewArgon2 validates the cost parameters and returns a ready hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("password memory must be >= 8192 KB")
	case cfg.Time < minTimeCost:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("password salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("password key length must be >= 16")
	}
	return &Argon2{config: cfg}, nil
}

// Hash derives a fresh-salted argon2id hash and returns it in PHC form.
// Password bytes are used exactly as provided (no Unicode normalization);
// length policy is enforced by the caller before hashing.
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		a.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		phcEncoding.EncodeToString(salt),
		phcEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the hash with the parameters embedded in encodedHash and
// compares in constant time. A malformed or unsupported hash is an error; a
// wrong password is (false, nil).
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	params, salt, want, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}

	got := argon2.IDKey(
		[]byte(password),
		salt,
		params.time,
		params.memory,
		params.parallelism,
		uint32(len(want)),
	)

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with parameters
// weaker than the current config, so callers can rehash after a successful
// verification.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	params, _, key, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}

	stale := a.config.Memory > params.memory ||
		a.config.Time > params.time ||
		a.config.Parallelism > params.parallelism ||
		a.config.KeyLength != uint32(len(key))
	return stale, nil
}

type phcParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func decodePHC(encodedHash string) (phcParams, []byte, []byte, error) {
	var params phcParams

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return params, nil, nil, errors.New("invalid PHC format")
	}
	if parts[1] != algorithmID {
		return params, nil, nil, errors.New("unsupported algorithm")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return params, nil, nil, errors.New("unsupported argon2 version")
	}

	var parallelism uint32
	n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &parallelism)
	if err != nil || n != 3 {
		return params, nil, nil, errors.New("invalid parameter format")
	}
	if params.memory < minMemoryKB || params.time < minTimeCost ||
		parallelism < uint32(minParallelism) || parallelism > 255 {
		return params, nil, nil, errors.New("parameters out of range")
	}
	params.parallelism = uint8(parallelism)

	salt, err := phcEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, errors.New("invalid salt encoding")
	}
	if len(salt) < int(minSaltLength) {
		return params, nil, nil, errors.New("invalid salt length")
	}

	key, err := phcEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, errors.New("invalid hash encoding")
	}
	if len(key) < int(minKeyLength) {
		return params, nil, nil, errors.New("invalid hash length")
	}

	return params, salt, key, nil
}
