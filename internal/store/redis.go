package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scio-practice/session-service/internal/utils"
)

// Session state is abandoned after this long without activity, so entries
// expire a comfortable margin later.
const defaultTTL = 24 * time.Hour

// RedisStore is the production StringStore. Each store instance is scoped
// to one user namespace; keys are prefixed so two users never collide.
type RedisStore struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	logger    utils.Logger
}

func NewRedisStore(client *redis.Client, namespace string, logger utils.Logger) *RedisStore {
	return &RedisStore{
		client:    client,
		namespace: namespace,
		ttl:       defaultTTL,
		logger:    logger,
	}
}

func (s *RedisStore) key(key string) string {
	return "session:" + s.namespace + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("redis read failed", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

func (s *RedisStore) Set(ctx context.Context, key, value string) {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		s.logger.Warn("redis write dropped", "key", key, "error", err)
	}
}

func (s *RedisStore) Remove(ctx context.Context, key string) {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		s.logger.Warn("redis delete failed", "key", key, "error", err)
	}
}
