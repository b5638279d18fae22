package delivery

import (
	"context"
	"time"

	"mooai/internal/models"
	"mooai/internal/redis"
)

const redisKeyPrefix = "mooai:delivery:"

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Record(ctx context.Context, d models.Delivery) (int64, error) {
	return s.client.IncrWithTTL(ctx, redisKeyPrefix+d.EventID, s.ttl)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
