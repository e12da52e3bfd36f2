package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	enrollmentRecordVersion1 = 1
)

// Enrollment attempt states as stored on the wire. The zero value is
// deliberately unused so a truncated record cannot decode as valid.
const (
	EnrollmentStateMethodSelection     uint8 = 1
	EnrollmentStateSecretIssued        uint8 = 2
	EnrollmentStatePendingVerification uint8 = 3
)

var (
	ErrEnrollmentNotFound = errors.New("enrollment attempt not found")
	ErrEnrollmentExists   = errors.New("enrollment attempt already exists")
	ErrEnrollmentExpired  = errors.New("enrollment attempt expired")
	ErrEnrollmentBackend  = errors.New("enrollment backend unavailable")
)

// EnrollmentAttempt is the single in-flight enrollment record for one
// account. It lives only in Redis under a TTL and is discarded on every
// terminal outcome.
type EnrollmentAttempt struct {
	State             uint8
	Method            uint8
	AttemptsRemaining uint16
	StartedAt         int64
	ExpiresAt         int64
	Secret            []byte
}

// EnrollmentStore keeps per-account enrollment attempts. All transitions go
// through WATCH-based CAS so concurrent submissions for the same account
// serialize instead of racing.
type EnrollmentStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewEnrollmentStore(redisClient redis.UniversalClient, prefix string) *EnrollmentStore {
	if prefix == "" {
		prefix = "ace"
	}
	return &EnrollmentStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *EnrollmentStore) key(tenantID, accountID string) string {
	if tenantID == "" {
		tenantID = "0"
	}
	return s.prefix + ":" + tenantID + ":" + accountID
}

// Create stores a fresh attempt only when none is active. An existing live
// record yields ErrEnrollmentExists.
func (s *EnrollmentStore) Create(
	ctx context.Context,
	tenantID string,
	accountID string,
	record *EnrollmentAttempt,
	ttl time.Duration,
) error {
	encoded, err := encodeEnrollmentAttempt(record)
	if err != nil {
		return err
	}

	set, err := s.redis.SetNX(ctx, s.key(tenantID, accountID), encoded, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEnrollmentBackend, err)
	}
	if !set {
		return ErrEnrollmentExists
	}
	return nil
}

// Get returns the active attempt. Expired records are reaped and reported
// as ErrEnrollmentExpired so callers treat them as absent.
func (s *EnrollmentStore) Get(ctx context.Context, tenantID, accountID string) (*EnrollmentAttempt, error) {
	data, err := s.redis.Get(ctx, s.key(tenantID, accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrEnrollmentBackend, err)
	}

	record, err := decodeEnrollmentAttempt(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(tenantID, accountID)).Result()
		return nil, ErrEnrollmentExpired
	}
	return record, nil
}

// Delete removes the attempt and reports whether one existed.
func (s *EnrollmentStore) Delete(ctx context.Context, tenantID, accountID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(tenantID, accountID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrEnrollmentBackend, err)
	}
	return n > 0, nil
}

// Transition applies mutate to the live attempt under CAS and persists the
// result with the remaining TTL. The returned record is the post-mutation
// state. Errors returned by mutate abort the transaction unchanged.
func (s *EnrollmentStore) Transition(
	ctx context.Context,
	tenantID string,
	accountID string,
	mutate func(*EnrollmentAttempt) error,
) (*EnrollmentAttempt, error) {
	const maxRetries = 4
	key := s.key(tenantID, accountID)

	for i := 0; i < maxRetries; i++ {
		var result *EnrollmentAttempt
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeEnrollmentAttempt(data)
			if err != nil {
				return err
			}
			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrEnrollmentExpired
			}

			if err := mutate(record); err != nil {
				return err
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrEnrollmentExpired
			}

			updated, err := encodeEnrollmentAttempt(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			if err != nil {
				return err
			}
			result = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrEnrollmentNotFound
			}
			return nil, err
		}
		return result, nil
	}

	return nil, ErrEnrollmentNotFound
}

// RecordFailure decrements the remaining verification attempts under CAS.
// When the counter reaches zero the attempt is deleted and cancelled=true
// is returned.
func (s *EnrollmentStore) RecordFailure(
	ctx context.Context,
	tenantID string,
	accountID string,
) (remaining int, cancelled bool, err error) {
	const maxRetries = 4
	key := s.key(tenantID, accountID)

	for i := 0; i < maxRetries; i++ {
		var (
			left      int
			exhausted bool
		)
		watchErr := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeEnrollmentAttempt(data)
			if err != nil {
				return err
			}
			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrEnrollmentExpired
			}

			if record.AttemptsRemaining > 0 {
				record.AttemptsRemaining--
			}
			left = int(record.AttemptsRemaining)

			if record.AttemptsRemaining == 0 {
				exhausted = true
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrEnrollmentExpired
			}

			updated, err := encodeEnrollmentAttempt(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if watchErr == redis.TxFailedErr {
			continue
		}
		if watchErr != nil {
			if errors.Is(watchErr, redis.Nil) {
				return 0, false, ErrEnrollmentNotFound
			}
			if errors.Is(watchErr, ErrEnrollmentExpired) {
				return 0, false, watchErr
			}
			return 0, false, fmt.Errorf("%w: %v", ErrEnrollmentBackend, watchErr)
		}
		return left, exhausted, nil
	}

	return 0, false, ErrEnrollmentNotFound
}

func encodeEnrollmentAttempt(record *EnrollmentAttempt) ([]byte, error) {
	switch record.State {
	case EnrollmentStateMethodSelection, EnrollmentStateSecretIssued, EnrollmentStatePendingVerification:
	default:
		return nil, errors.New("invalid enrollment state")
	}

	var buf bytes.Buffer
	buf.WriteByte(enrollmentRecordVersion1)
	buf.WriteByte(record.State)
	buf.WriteByte(record.Method)

	if err := binary.Write(&buf, binary.BigEndian, record.AttemptsRemaining); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.StartedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.Secret) > 65535 {
		return nil, errors.New("enrollment secret length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Secret))); err != nil {
		return nil, err
	}
	buf.Write(record.Secret)

	return buf.Bytes(), nil
}

func decodeEnrollmentAttempt(data []byte) (*EnrollmentAttempt, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != enrollmentRecordVersion1 {
		return nil, errors.New("invalid enrollment record version")
	}

	record := &EnrollmentAttempt{}
	if record.State, err = reader.ReadByte(); err != nil {
		return nil, err
	}
	switch record.State {
	case EnrollmentStateMethodSelection, EnrollmentStateSecretIssued, EnrollmentStatePendingVerification:
	default:
		return nil, errors.New("invalid enrollment state")
	}
	if record.Method, err = reader.ReadByte(); err != nil {
		return nil, err
	}

	if err := binary.Read(reader, binary.BigEndian, &record.AttemptsRemaining); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.StartedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var secretLen uint16
	if err := binary.Read(reader, binary.BigEndian, &secretLen); err != nil {
		return nil, err
	}
	if secretLen > 0 {
		secret := make([]byte, secretLen)
		if _, err := io.ReadFull(reader, secret); err != nil {
			return nil, err
		}
		record.Secret = secret
	}

	return record, nil
}
