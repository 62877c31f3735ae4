package cache

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrLocked is returned by RunExclusive when another holder owns the lock
var ErrLocked = errors.New("lock held by another process")

// Locker serialises jobs across processes with Redis locks. A nil *Locker
// runs every job without locking.
type Locker struct {
	client *redislock.Client
}

// NewLocker creates a locker on client
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: redislock.New(client)}
}

// RunExclusive runs fn while holding key. If the lock is held elsewhere fn is
// not run and ErrLocked is returned.
func (l *Locker) RunExclusive(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	if l == nil {
		return fn(ctx)
	}

	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if err == redislock.ErrNotObtained {
		return ErrLocked
	} else if err != nil {
		return errors.Wrap(err, "failed to obtain lock")
	}
	defer func() {
		if releaseErr := lock.Release(context.Background()); releaseErr != nil && releaseErr != redislock.ErrLockNotHeld {
			log.Warn().Err(releaseErr).Str("key", key).Msg("failed to release lock")
		}
	}()

	return fn(ctx)
}
