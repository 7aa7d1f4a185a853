package data

import (
	"context"
	"fmt"
	"time"

	"github.com/evobot/wa-rag-bridge/internal/biz/repo"
	"github.com/redis/go-redis/v9"
)

const (
	defaultBufferKeySuffix = ":buffer"
	defaultBufferTTL       = 300 * time.Second
)

// redisBufferRepo keeps each chat queue in a Redis list named chatID+suffix
type redisBufferRepo struct {
	client *redis.Client
	suffix string
	ttl    time.Duration
}

// NewRedisBufferRepo creates a Redis-backed buffer repository
func NewRedisBufferRepo(client *redis.Client, suffix string, ttl time.Duration) repo.BufferRepo {
	if suffix == "" {
		suffix = defaultBufferKeySuffix
	}
	if ttl <= 0 {
		ttl = defaultBufferTTL
	}
	return &redisBufferRepo{
		client: client,
		suffix: suffix,
		ttl:    ttl,
	}
}

func (r *redisBufferRepo) Append(ctx context.Context, chatID, text string) (int64, error) {
	key := r.key(chatID)

	var push *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		push = pipe.RPush(ctx, key, text)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append to %s: %w", key, err)
	}
	return push.Val(), nil
}

func (r *redisBufferRepo) Drain(ctx context.Context, chatID string) ([]string, error) {
	key := r.key(chatID)

	var items *redis.StringSliceCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		items = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to drain %s: %w", key, err)
	}
	return items.Val(), nil
}

func (r *redisBufferRepo) Peek(ctx context.Context, chatID string) ([]string, error) {
	key := r.key(chatID)
	items, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return items, nil
}

func (r *redisBufferRepo) Clear(ctx context.Context, chatID string) error {
	key := r.key(chatID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (r *redisBufferRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisBufferRepo) Close() error {
	return r.client.Close()
}

func (r *redisBufferRepo) key(chatID string) string {
	return chatID + r.suffix
}
