package database

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-redis-url")
	if err == nil {
		t.Fatal("不正なURLでエラーが返されませんでした")
	}
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// 127.0.0.1:1 は接続拒否される想定
	_, err := NewRedisClient(ctx, "redis://127.0.0.1:1/0")
	if err == nil {
		t.Fatal("到達不能なRedisでエラーが返されませんでした")
	}
}

func TestNewRedisClient_Connects(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL が未設定のためスキップ")
	}

	client, err := NewRedisClient(context.Background(), url)
	if err != nil {
		t.Fatalf("Redisへの接続に失敗: %v", err)
	}
	defer client.Close()
}
