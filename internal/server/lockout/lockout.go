// Package lockout counts failed logins per account and reports when an
// account has crossed the configured threshold.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrUnavailable = errors.New("lockout backend unavailable")

// Config controls the limiter. A zero Threshold disables lockout.
type Config struct {
	Threshold int
	// Duration is the rolling window of the failure counter. Zero keeps the
	// counter until Reset.
	Duration time.Duration
}

// RedisLimiter keeps counters under "alo:<account id>".
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
}

func NewRedisLimiter(client redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{redis: client, config: cfg}
}

func (l *RedisLimiter) enabled(accountID string) bool {
	return l.config.Threshold > 0 && accountID != ""
}

func (l *RedisLimiter) key(accountID string) string {
	return "alo:" + accountID
}

// IsLocked reports whether the failure count has reached the threshold.
func (l *RedisLimiter) IsLocked(ctx context.Context, accountID string) (bool, error) {
	if !l.enabled(accountID) {
		return false, nil
	}

	count, err := l.redis.Get(ctx, l.key(accountID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count >= int64(l.config.Threshold), nil
}

// RecordFailure increments the counter. The window starts at the first
// failure.
func (l *RedisLimiter) RecordFailure(ctx context.Context, accountID string) error {
	if !l.enabled(accountID) {
		return nil
	}

	count, err := l.redis.Incr(ctx, l.key(accountID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count == 1 && l.config.Duration > 0 {
		if err := l.redis.Expire(ctx, l.key(accountID), l.config.Duration).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

// Reset clears the counter after a successful login or a password reset.
func (l *RedisLimiter) Reset(ctx context.Context, accountID string) error {
	if !l.enabled(accountID) {
		return nil
	}

	if err := l.redis.Del(ctx, l.key(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Noop never locks anyone out.
type Noop struct{}

func (Noop) IsLocked(context.Context, string) (bool, error) { return false, nil }
func (Noop) RecordFailure(context.Context, string) error    { return nil }
func (Noop) Reset(context.Context, string) error            { return nil }
