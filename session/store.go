package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is an exported constant or variable used by the account security engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store is a Redis-backed registry of live sessions per account. It owns
// persistence, expiration, the per-account index set, and atomic removal.
//
//	Docs: docs/session.md
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
//
//	Docs: docs/session.md
func NewStore(redis redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "acs"
	}
	return &Store{
		redis:  redis,
		prefix: prefix,
	}
}

func (s *Store) key(tenantID, sessionID string) string {
	return s.prefix + ":" + normalizeTenantID(tenantID) + ":" + sessionID
}

// accountKey lives under the same configured prefix as session keys, so two
// stores with different prefixes never share an index namespace.
func (s *Store) accountKey(tenantID, accountID string) string {
	return s.prefix + ":aca:" + normalizeTenantID(tenantID) + ":" + accountID
}

func normalizeTenantID(tenantID string) string {
	if tenantID == "" {
		return "0"
	}
	return tenantID
}

// Save persists a [Session] and adds it to the account index.
//
//	Performance: 2 Redis commands (SET + SADD) in one transaction.
//	Docs: docs/session.md
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	sessionKey := s.key(sess.TenantID, sess.SessionID)
	accountKey := s.accountKey(sess.TenantID, sess.AccountID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey, data, ttl)
		pipe.SAdd(ctx, accountKey, sess.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves a session by tenant and session ID. Expired records are
// removed and reported as redis.Nil so callers treat them as absent.
//
//	Performance: 1 Redis GET.
//	Docs: docs/session.md
func (s *Store) Get(ctx context.Context, tenantID, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(tenantID, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID

	if time.Now().Unix() > sess.ExpiresAt {
		if _, err := s.Delete(ctx, sess.TenantID, sess.AccountID, sessionID); err != nil {
			return nil, err
		}
		return nil, redis.Nil
	}

	return sess, nil
}

// Touch advances LastActiveAt under CAS. Timestamps only move forward, so
// racing touches settle on the most recent activity.
func (s *Store) Touch(ctx context.Context, tenantID, accountID, sessionID string, at time.Time) error {
	const maxRetries = 4
	key := s.key(tenantID, sessionID)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			sess, err := Decode(data)
			if err != nil {
				return err
			}
			// A session owned by a different account reads as absent.
			if sess.AccountID != accountID {
				return redis.Nil
			}
			if time.Now().Unix() > sess.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					pipe.SRem(ctx, s.accountKey(tenantID, accountID), sessionID)
					return nil
				})
				if err != nil {
					return err
				}
				return redis.Nil
			}

			if at.Unix() <= sess.LastActiveAt {
				return nil
			}
			sess.LastActiveAt = at.Unix()

			ttl := time.Until(time.Unix(sess.ExpiresAt, 0))
			updated, err := Encode(sess)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return redis.Nil
			}
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	return fmt.Errorf("%w: touch contention not resolved", ErrRedisUnavailable)
}

// Delete removes one session and its index entry. The returned bool reports
// whether the session still existed, which makes repeated termination of the
// same ID observable to callers.
//
//	Performance: 1 Lua EVALSHA (atomic existence check + removal).
//	Docs: docs/session.md
func (s *Store) Delete(ctx context.Context, tenantID, accountID, sessionID string) (bool, error) {
	key := s.key(tenantID, sessionID)
	accountKey := s.accountKey(tenantID, accountID)

	existed, err := deleteSessionLua.Run(ctx, s.redis, []string{key, accountKey}, sessionID).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return existed == 1, nil
}

// ListForAccount returns all live sessions for an account. Dangling index
// entries (expired or deleted session keys) are pruned as a side effect.
func (s *Store) ListForAccount(ctx context.Context, tenantID, accountID string) ([]*Session, error) {
	accountKey := s.accountKey(tenantID, accountID)

	sessionIDs, err := s.redis.SMembers(ctx, accountKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Session{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(sessionIDs) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(sessionIDs))
	for i, sid := range sessionIDs {
		cmds[i] = pipe.Get(ctx, s.key(tenantID, sid))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessions := make([]*Session, 0, len(sessionIDs))
	var dangling []interface{}
	nowUnix := time.Now().Unix()
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				dangling = append(dangling, sessionIDs[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}

		sess, decErr := Decode(data)
		if decErr != nil {
			return nil, decErr
		}
		sess.SessionID = sessionIDs[i]
		if nowUnix > sess.ExpiresAt || sess.AccountID != accountID {
			dangling = append(dangling, sessionIDs[i])
			continue
		}

		sessions = append(sessions, sess)
	}

	if len(dangling) > 0 {
		_ = s.redis.SRem(ctx, accountKey, dangling...).Err()
	}

	return sessions, nil
}

// DeleteAllExcept removes every session of the account except keepSessionID
// and returns how many were removed.
//
// ATOMICITY NOTE: This operation is NOT fully atomic. It reads the account's
// session set (SMembers), checks which sessions still exist (pipeline
// EXISTS), then deletes them (TxPipelined DEL + SREM). A session registered
// between the read and delete phases will not be captured by this call. The
// kept session is never part of the delete set, so the caller's own session
// always survives regardless of interleaving.
func (s *Store) DeleteAllExcept(ctx context.Context, tenantID, accountID, keepSessionID string) (int, error) {
	accountKey := s.accountKey(tenantID, accountID)

	sessionIDs, err := s.redis.SMembers(ctx, accountKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	victims := make([]string, 0, len(sessionIDs))
	for _, sid := range sessionIDs {
		if sid != keepSessionID {
			victims = append(victims, sid)
		}
	}
	if len(victims) == 0 {
		return 0, nil
	}

	victimKeys := make([]string, len(victims))
	for i, sid := range victims {
		victimKeys[i] = s.key(tenantID, sid)
	}

	pipe := s.redis.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(victimKeys))
	for i, key := range victimKeys {
		existsCmds[i] = pipe.Exists(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var removed int
	for _, cmd := range existsCmds {
		v, cmdErr := cmd.Result()
		if cmdErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		removed += int(v)
	}

	members := make([]interface{}, len(victims))
	for i, sid := range victims {
		members[i] = sid
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, victimKeys...)
		pipe.SRem(ctx, accountKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return removed, nil
}

// ActiveSessionCount returns the number of tracked session IDs for an account.
func (s *Store) ActiveSessionCount(ctx context.Context, tenantID, accountID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.accountKey(tenantID, accountID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
