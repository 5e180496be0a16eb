package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "failed to acquire lock")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

// unlockScript deletes the key only when it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker serialises work on a named resource across instances, e.g. the
// first persistence of a structure.
type Locker interface {
	// TryLock acquires name without waiting. The returned release function
	// is non-nil only when the lock was acquired.
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, err error)
	// Lock retries TryLock every retryDelay until ctx is done.
	Lock(ctx context.Context, name string, ttl, retryDelay time.Duration) (release func(context.Context) error, err error)
}

type redisLocker struct {
	client *Client
	prefix string
	logger logging.Logger
}

// NewLocker returns a Locker storing lock keys under "chemsight:lock:".
func NewLocker(client *Client, log logging.Logger) Locker {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &redisLocker{client: client, prefix: "chemsight:lock:", logger: log.Named("lock")}
}

func (l *redisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	key := l.prefix + name
	token := uuid.NewString()
	ok, err := l.client.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to acquire lock")
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return func(ctx context.Context) error {
		n, err := unlockScript.Run(ctx, l.client.rdb, []string{key}, token).Int64()
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeCacheError, "failed to release lock")
		}
		if n == 0 {
			l.logger.Warn("lock expired before release", logging.String("name", name))
			return ErrLockNotHeld
		}
		return nil
	}, nil
}

func (l *redisLocker) Lock(ctx context.Context, name string, ttl, retryDelay time.Duration) (func(context.Context) error, error) {
	if retryDelay <= 0 {
		retryDelay = 50 * time.Millisecond
	}
	for {
		release, err := l.TryLock(ctx, name, ttl)
		if err == nil {
			return release, nil
		}
		if err != ErrLockNotAcquired {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "gave up waiting for lock")
		case <-time.After(retryDelay):
		}
	}
}
