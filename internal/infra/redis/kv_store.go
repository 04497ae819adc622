package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"crazeai/internal/domain"
	"crazeai/internal/domain/ports/repository"
	"crazeai/internal/infra/metrics"
)

var _ repository.KeyValueStore = (*KVStore)(nil)

// KVStore backs the name store and the server-side name mirror. Keys get prefix and,
// when ttl > 0, expire after ttl of inactivity.
type KVStore struct {
	client *Client
	prefix string
	ttl    time.Duration
}

func NewKVStore(client *Client, prefix string, ttl time.Duration) *KVStore {
	return &KVStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *KVStore) key(k string) string { return s.prefix + k }

func (s *KVStore) Read(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.key(key))
	if errors.Is(err, redis.Nil) {
		metrics.IncKVRead("redis", "miss")
		return "", domain.ErrNotFound
	}
	if err != nil {
		metrics.IncKVRead("redis", "error")
		return "", err
	}
	metrics.IncKVRead("redis", "hit")
	if s.ttl > 0 {
		_ = s.client.Expire(ctx, s.key(key), s.ttl)
	}
	return v, nil
}

func (s *KVStore) Write(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.key(key), value, s.ttl)
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key))
}
