package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"crazeai/internal/domain"
)

// Locker guards work that only one server replica should run at a time.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type RedisLocker struct {
	cli *redis.Client
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli}
}

// TryLock takes key for ttl or fails fast with domain.ErrLockHeld. The returned
// token proves ownership to Unlock.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	won, err := l.cli.SetNX(ctx, key, token, ttl).Result()
	switch {
	case err != nil:
		return "", err
	case !won:
		return "", domain.ErrLockHeld
	}
	return token, nil
}

// deletes only while the token still matches
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
return redis.call("DEL", KEYS[1])`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, l.cli, []string{key}, token).Err()
}
