package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sqlearn/progress-hub/internal/domain/progress"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/pkg/circuitbreaker"
	"github.com/sqlearn/progress-hub/pkg/logger"
)

// unlockScript deletes the key only if it still holds our token, so an
// expired lock taken over by another instance is never released by us.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// LockClient is the part of *redis.Client the locker uses.
type LockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// LockerConfig configures Locker.
type LockerConfig struct {
	// TTL bounds how long a crashed holder blocks the user.
	TTL time.Duration

	// RetryInterval is the pause between acquisition attempts.
	RetryInterval time.Duration

	Breaker *circuitbreaker.CircuitBreaker
	Logger  *logger.Logger
}

// DefaultLockerConfig returns sensible defaults.
func DefaultLockerConfig() LockerConfig {
	return LockerConfig{
		TTL:           TTLDistributedLock,
		RetryInterval: 25 * time.Millisecond,
	}
}

// Locker is a progress.UserLocker backed by SET NX PX.
type Locker struct {
	client  LockClient
	ttl     time.Duration
	retry   time.Duration
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

var _ progress.UserLocker = (*Locker)(nil)

// NewLocker creates a distributed user lock.
func NewLocker(client LockClient, cfg LockerConfig) *Locker {
	if cfg.TTL <= 0 {
		cfg.TTL = TTLDistributedLock
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 25 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	log := cfg.Logger.With(logger.Component("redis_locker"))
	if cfg.Breaker == nil {
		cfg.Breaker = circuitbreaker.LockBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("lock breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
	}
	return &Locker{
		client:  client,
		ttl:     cfg.TTL,
		retry:   cfg.RetryInterval,
		breaker: cfg.Breaker,
		log:     log,
	}
}

// Lock blocks until the user lock is held or ctx is done.
func (l *Locker) Lock(ctx context.Context, userID string) (func(), error) {
	key := LockKey(userID)
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		acquired, err := l.tryAcquire(ctx, key, token)
		if err != nil {
			return nil, shared.WrapError("progress", "Lock", shared.ErrUnavailable, "user lock unavailable", err)
		}
		if acquired {
			return func() { l.release(key, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, shared.WrapError("progress", "Lock", shared.ErrUnavailable, "waiting for user lock", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) tryAcquire(ctx context.Context, key, token string) (bool, error) {
	var acquired bool
	err := l.breaker.Execute(ctx, func(ctx context.Context) error {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("setnx %s: %w", key, err)
		}
		acquired = ok
		return nil
	})
	return acquired, err
}

func (l *Locker) release(key, token string) {
	// The caller's ctx may already be cancelled; release must still run.
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := l.client.Eval(ctx, unlockScript, []string{key}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		l.log.Warn("failed to release user lock",
			logger.String("key", key),
			logger.Err(err),
		)
	}
}
