package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBackend wraps every failure of the underlying key-value backend.
var ErrBackend = errors.New("ephemeral store backend unavailable")

// RedisEphemeral keeps TTL-bound string values in Redis. Expiry is left
// entirely to Redis.
type RedisEphemeral struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisEphemeral(client redis.UniversalClient, prefix string) *RedisEphemeral {
	return &RedisEphemeral{redis: client, prefix: prefix}
}

func (s *RedisEphemeral) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *RedisEphemeral) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ephemeral: ttl must be positive")
	}
	if err := s.redis.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

func (s *RedisEphemeral) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.redis.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return value, true, nil
}

func (s *RedisEphemeral) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}
