package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV はRedisを使用したKVストア。有効期限はRedisのTTLに任せる。
type RedisKV struct {
	rdb redis.Cmdable
}

// NewRedisKV はRedisKVを生成する。
func NewRedisKV(rdb redis.Cmdable) *RedisKV {
	return &RedisKV{rdb: rdb}
}

// Get は指定キーの値を取得する。存在しない場合はnilを返す。
func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session value: %w", err)
	}
	return value, nil
}

// Set は値をTTL付きで保存する。
func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session value: %w", err)
	}
	return nil
}

// Delete は指定キーをまとめて削除する。
func (r *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete session values: %w", err)
	}
	return nil
}

var _ KVStore = (*RedisKV)(nil)
