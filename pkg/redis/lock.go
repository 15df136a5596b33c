package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockPrefix = "lock:"
	lockPollInterval  = 25 * time.Millisecond
)

var (
	// ErrLockNotAcquired means another holder owns the key.
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld means the lock expired or was taken over before release.
	ErrLockNotHeld = errors.New("lock not held")
)

// Both scripts act only while the stored token is still ours.
var (
	unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then return 0 end
return redis.call("DEL", KEYS[1])`)

	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then return 0 end
return redis.call("PEXPIRE", KEYS[1], ARGV[2])`)
)

// Locker serializes work on a key across service instances, e.g. saving the
// matches of one tenant.
type Locker struct {
	client *Client
	prefix string
}

func NewLocker(client *Client, prefix string) *Locker {
	if prefix == "" {
		prefix = defaultLockPrefix
	}
	return &Locker{client: client, prefix: prefix}
}

// Lock is one held lease. The token distinguishes it from later holders of the same key.
type Lock struct {
	client *Client
	key    string
	token  string
}

// Acquire makes a single attempt.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{client: l.client, key: l.prefix + key, token: uuid.NewString()}
	ok, err := l.client.rdb.SetNX(ctx, lock.key, lock.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return lock, nil
}

// TryAcquire polls until the key frees up or wait runs out.
func (l *Locker) TryAcquire(ctx context.Context, key string, ttl, wait time.Duration) (*Lock, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		lock, err := l.Acquire(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		if ctx.Err() != nil {
			return nil, waitError(ctx)
		}
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, waitError(ctx)
		case <-ticker.C:
		}
	}
}

// waitError reports an exhausted wait as a busy lock and passes caller cancellation through.
func waitError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrLockNotAcquired
	}
	return ctx.Err()
}

// Extend renews the lease to ttl from now.
func (lock *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	return lock.run(ctx, extendScript, ttl.Milliseconds())
}

func (lock *Lock) Release(ctx context.Context) error {
	return lock.run(ctx, unlockScript)
}

func (lock *Lock) run(ctx context.Context, script *redis.Script, args ...any) error {
	n, err := script.Run(ctx, lock.client.rdb, []string{lock.key}, append([]any{lock.token}, args...)...).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// WithLock runs fn under key. The lock is released with a fresh context so a
// cancelled request does not leave the key held until ttl.
func (l *Locker) WithLock(ctx context.Context, key string, ttl, wait time.Duration, fn func(ctx context.Context) error) error {
	lock, err := l.TryAcquire(ctx, key, ttl, wait)
	if err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			l.client.logger.WithContext(ctx).WithError(err).WithField("key", lock.key).Warn("Failed to release lock")
		}
	}()
	return fn(ctx)
}
