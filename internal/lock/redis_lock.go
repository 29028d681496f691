// Package lock provides the per-booking mutual exclusion used by the
// deposit release engine when several runs overlap (scheduler tick and a
// manual trigger, or two replicas).
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lock:"

// unlockScript deletes the key only when it still holds our token, so an
// expired lock that was taken over by another run is left alone.
var unlockScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// RedisLocker implements release.Locker with SET NX PX.  A nil client turns
// it into a no-op locker that always grants the lock, matching how the rest
// of the service degrades when Redis is unavailable.
type RedisLocker struct {
	rdb *redis.Client
}

// NewRedisLocker wraps rdb, which may be nil.
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

// TryLock attempts to take key for ttl without waiting.  acquired is false
// when another holder owns the key.  The returned unlock func is always safe
// to call.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), acquired bool, err error) {
	if l == nil || l.rdb == nil {
		return func() {}, true, nil
	}
	token := uuid.NewString()
	full := keyPrefix + key
	ok, err := l.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return func() {}, false, err
	}
	if !ok {
		return func() {}, false, nil
	}
	return func() {
		// the caller's context may already be cancelled; release with a
		// short-lived one of our own
		c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = unlockScript.Run(c, l.rdb, []string{full}, token).Err()
	}, true, nil
}
