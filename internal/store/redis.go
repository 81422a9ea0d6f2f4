package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV implements KV on a Redis client.
type RedisKV struct {
	rdb *redis.Client
}

// NewRedisKV creates a new RedisKV.
func NewRedisKV(rdb *redis.Client) *RedisKV {
	return &RedisKV{rdb: rdb}
}

func (s *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

func (s *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisKV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// RedisQueue implements Queue on Redis lists (RPUSH / BLPOP).
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue creates a new RedisQueue.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

func (q *RedisQueue) Push(ctx context.Context, queue string, payloads ...[]byte) error {
	if len(payloads) == 0 {
		return nil
	}
	if len(payloads) == 1 {
		return q.rdb.RPush(ctx, queue, payloads[0]).Err()
	}

	pipe := q.rdb.Pipeline()
	for _, p := range payloads {
		pipe.RPush(ctx, queue, p)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	result, err := q.rdb.BLPop(ctx, timeout, queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BLPop returns [key, value].
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}

func (q *RedisQueue) Backlog(ctx context.Context, queue string) (int64, error) {
	return q.rdb.LLen(ctx, queue).Result()
}
