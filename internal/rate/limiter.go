package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
}

// Limiter enforces a per-account budget of failed second-factor attempts
// using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Check returns ErrRateLimited when the account has exhausted its attempt
// budget for the current window.
func (l *Limiter) Check(ctx context.Context, tenantID, accountID string) error {
	if !l.config.Enabled {
		return nil
	}

	count, err := l.redis.Get(ctx, gateKey(tenantID, accountID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

// RecordFailure counts one failed attempt. It returns ErrRateLimited when
// the failure exhausts the budget.
func (l *Limiter) RecordFailure(ctx context.Context, tenantID, accountID string) error {
	if !l.config.Enabled {
		return nil
	}

	count, err := l.redis.Incr(ctx, gateKey(tenantID, accountID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, gateKey(tenantID, accountID), l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

// Reset clears the failure counter. Called after a successful verification.
func (l *Limiter) Reset(ctx context.Context, tenantID, accountID string) error {
	if !l.config.Enabled {
		return nil
	}

	if err := l.redis.Del(ctx, gateKey(tenantID, accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Attempts returns the current failure counter. Missing keys return zero.
func (l *Limiter) Attempts(ctx context.Context, tenantID, accountID string) (int, error) {
	if !l.config.Enabled {
		return 0, nil
	}

	count, err := l.redis.Get(ctx, gateKey(tenantID, accountID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func gateKey(tenantID, accountID string) string {
	if tenantID == "" {
		tenantID = "0"
	}
	return "ag:" + tenantID + ":" + accountID
}
