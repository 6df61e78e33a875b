package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps failure counters and blocks as expiring keys.
type Redis struct {
	rdb    redis.Cmdable
	policy Policy
}

// NewRedis constructs a Redis-backed limiter.
func NewRedis(rdb redis.Cmdable, p Policy) *Redis {
	return &Redis{rdb: rdb, policy: p}
}

func failKey(username string, ipHash []byte) string {
	return "login:fail:" + keySuffix(username, ipHash)
}

func blockKey(username string, ipHash []byte) string {
	return "login:block:" + keySuffix(username, ipHash)
}

// Allow reports false with the remaining block time while a block key exists.
func (l *Redis) Allow(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	ttl, err := l.rdb.PTTL(ctx, blockKey(username, ipHash)).Result()
	if err != nil {
		return false, 0, err
	}
	// -2 missing, -1 no expiry
	if ttl > 0 {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Success drops both counters.
func (l *Redis) Success(ctx context.Context, username string, ipHash []byte) error {
	return l.rdb.Del(ctx, failKey(username, ipHash), blockKey(username, ipHash)).Err()
}

// Failure increments the counter; the first failure starts the window.
func (l *Redis) Failure(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	fk := failKey(username, ipHash)
	fails, err := l.rdb.Incr(ctx, fk).Result()
	if err != nil {
		return false, 0, err
	}
	if fails == 1 {
		if err := l.rdb.PExpire(ctx, fk, l.policy.Window).Err(); err != nil {
			return false, 0, err
		}
	}
	if fails < int64(l.policy.MaxFails) {
		return false, 0, nil
	}
	_, err = l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, blockKey(username, ipHash), fails, l.policy.BlockFor)
		p.Del(ctx, fk)
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return true, l.policy.BlockFor, nil
}
