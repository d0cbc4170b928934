// Package repository はセッションデータの永続化インターフェースと実装を提供する。
//
// ストアは訪問者ごとに名前空間を切ったキーでバイト列を保持する。
// 実装はメモリ、PostgreSQL、Redisの3種類。
package repository

import (
	"context"
	"time"
)

// KVStore はTTL付きのキー・バリュー永続化インターフェース。
type KVStore interface {
	// Get は指定キーの値を取得する。存在しないか期限切れの場合はnilを返す。
	Get(ctx context.Context, key string) ([]byte, error)

	// Set は値を保存する。既存のキーは上書きし、有効期限をttl後に更新する。
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete は指定キーをすべて削除する。存在しないキーは無視する。
	Delete(ctx context.Context, keys ...string) error
}

// ExpiredPurger は期限切れエントリを明示的に削除できるストア。
// TTLをネイティブに扱うRedisは実装しない。
type ExpiredPurger interface {
	// DeleteExpired は期限切れのエントリを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
