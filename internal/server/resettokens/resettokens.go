// Package resettokens issues single-use password-reset tokens. Only the
// SHA-256 digest of a token is stored; issuing a new token for an account
// replaces the previous one.
package resettokens

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/redis/go-redis/v9"
)

// TokenBytes is the entropy of a reset token before base64 encoding.
const TokenBytes = 32

var ErrUnavailable = errors.New("reset token backend unavailable")

func newToken() (token, digest string, err error) {
	token, err = common.MakeRandBase64String(TokenBytes)
	if err != nil {
		return "", "", err
	}
	return token, common.SHA256Hex(token), nil
}

// RedisProvider keeps digests under "apr:<account id>" with a TTL.
type RedisProvider struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

func NewRedisProvider(client redis.UniversalClient, ttl time.Duration) *RedisProvider {
	return &RedisProvider{redis: client, ttl: ttl}
}

func (p *RedisProvider) key(accountID string) string {
	return "apr:" + accountID
}

func (p *RedisProvider) Issue(ctx context.Context, accountID string) (string, error) {
	token, digest, err := newToken()
	if err != nil {
		return "", err
	}
	if err := p.redis.Set(ctx, p.key(accountID), digest, p.ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return token, nil
}

// Consume reports whether token is the live token for accountID and, if so,
// deletes it. A mismatch leaves the stored token in place.
func (p *RedisProvider) Consume(ctx context.Context, accountID, token string) (bool, error) {
	const maxRetries = 4
	key := p.key(accountID)
	provided := common.SHA256Hex(token)

	for i := 0; i < maxRetries; i++ {
		matched := false

		err := p.redis.Watch(ctx, func(tx *redis.Tx) error {
			stored, err := tx.Get(ctx, key).Result()
			if err != nil {
				return err
			}
			if !common.EqualHash(stored, provided) {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}
			matched = true
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return matched, nil
	}

	return false, nil
}

// Restore puts a consumed token back with a fresh TTL. A token issued in the
// meantime wins and is left untouched.
func (p *RedisProvider) Restore(ctx context.Context, accountID, token string) error {
	if err := p.redis.SetNX(ctx, p.key(accountID), common.SHA256Hex(token), p.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

type entry struct {
	digest    string
	expiresAt time.Time
}

// MemoryProvider is the in-process provider used when Redis is not
// configured.
type MemoryProvider struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	tokens map[string]entry
}

func NewMemoryProvider(ttl time.Duration) *MemoryProvider {
	return &MemoryProvider{ttl: ttl, now: time.Now, tokens: make(map[string]entry)}
}

// WithClock replaces the time source.
func (p *MemoryProvider) WithClock(now func() time.Time) *MemoryProvider {
	p.now = now
	return p
}

func (p *MemoryProvider) Issue(ctx context.Context, accountID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	token, digest, err := newToken()
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[accountID] = entry{digest: digest, expiresAt: p.now().Add(p.ttl)}
	return token, nil
}

func (p *MemoryProvider) Consume(ctx context.Context, accountID, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.tokens[accountID]
	if !ok {
		return false, nil
	}
	if !p.now().Before(e.expiresAt) {
		delete(p.tokens, accountID)
		return false, nil
	}
	if !common.EqualHash(e.digest, common.SHA256Hex(token)) {
		return false, nil
	}
	delete(p.tokens, accountID)
	return true, nil
}

func (p *MemoryProvider) Restore(ctx context.Context, accountID, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.tokens[accountID]; ok {
		return nil
	}
	p.tokens[accountID] = entry{digest: common.SHA256Hex(token), expiresAt: p.now().Add(p.ttl)}
	return nil
}
