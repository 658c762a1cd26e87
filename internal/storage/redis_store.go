package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares remote modules between machines (CI runners, teammates) through Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to the server described by opts. A zero ttl keeps entries forever.
func NewRedisStore(opts *redis.Options, prefix string, ttl time.Duration) *RedisStore {
	return NewRedisStoreFromClient(redis.NewClient(opts), prefix, ttl)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "tails:remote:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, s.key(key), data, s.ttl).Err()
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	return n > 0, err
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
