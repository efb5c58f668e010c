package draft

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps drafts in Redis. A zero TTL stores drafts without expiry.
type RedisStore struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

// NewRedisStore connects to the Redis server described by url.
func NewRedisStore(url, prefix string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisStore{Client: redis.NewClient(opt), Prefix: prefix, TTL: ttl}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.Client.Get(ctx, s.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.Client.Set(ctx, s.Prefix+key, value, s.TTL).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.Client.Del(ctx, s.Prefix+key).Err()
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.Client.Close()
}
