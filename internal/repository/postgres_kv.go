package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresKV はPostgreSQLのsession_kvテーブルを使用したKVストア。
type PostgresKV struct {
	db *sql.DB
}

// NewPostgresKV はPostgresKVを生成する。
func NewPostgresKV(db *sql.DB) *PostgresKV {
	return &PostgresKV{db: db}
}

// Get は指定キーの値を取得する。期限切れの場合はnilを返す。
func (r *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value
		 FROM session_kv
		 WHERE key = $1 AND expires_at > now()`,
		key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session value: %w", err)
	}

	return value, nil
}

// Set は値をupsertする。
func (r *PostgresKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_kv (key, value, expires_at, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (key) DO UPDATE
		 SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`,
		key, value, time.Now().Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("failed to set session value: %w", err)
	}
	return nil
}

// Delete は指定キーをまとめて削除する。
func (r *PostgresKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM session_kv WHERE key = ANY($1)`,
		pq.Array(keys),
	)
	if err != nil {
		return fmt.Errorf("failed to delete session values: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れの行を削除する。
func (r *PostgresKV) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM session_kv WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired session values: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

// compile-time interface check
var (
	_ KVStore       = (*PostgresKV)(nil)
	_ ExpiredPurger = (*PostgresKV)(nil)
)
