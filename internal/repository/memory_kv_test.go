package repository

import (
	"context"
	"testing"
	"time"
)

func newTestMemoryKV(now *time.Time) *MemoryKV {
	kv := NewMemoryKV()
	kv.now = func() time.Time { return *now }
	return kv
}

func TestMemoryKV_SetGet(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	kv := newTestMemoryKV(&now)
	ctx := context.Background()

	if err := kv.Set(ctx, "session:v1:token", []byte("tok"), time.Hour); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	got, err := kv.Get(ctx, "session:v1:token")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if string(got) != "tok" {
		t.Errorf("Get = %q, want %q", got, "tok")
	}
}

func TestMemoryKV_GetMissingReturnsNil(t *testing.T) {
	kv := NewMemoryKV()

	got, err := kv.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != nil {
		t.Errorf("存在しないキーでnil以外が返されました: %q", got)
	}
}

func TestMemoryKV_ExpiredEntryIsInvisible(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	kv := newTestMemoryKV(&now)
	ctx := context.Background()

	kv.Set(ctx, "k", []byte("v"), time.Minute)
	now = now.Add(time.Minute)

	got, _ := kv.Get(ctx, "k")
	if got != nil {
		t.Errorf("期限切れのエントリが返されました: %q", got)
	}
}

func TestMemoryKV_SetStoresCopy(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	buf := []byte("abc")
	kv.Set(ctx, "k", buf, time.Hour)
	buf[0] = 'x'

	got, _ := kv.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("保存後の呼び出し元の変更が反映されました: %q", got)
	}
}

func TestMemoryKV_DeleteMultipleKeys(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	kv.Set(ctx, "a", []byte("1"), time.Hour)
	kv.Set(ctx, "b", []byte("2"), time.Hour)
	kv.Set(ctx, "c", []byte("3"), time.Hour)

	if err := kv.Delete(ctx, "a", "b", "not-there"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	for _, k := range []string{"a", "b"} {
		if got, _ := kv.Get(ctx, k); got != nil {
			t.Errorf("キー %q が削除されていません", k)
		}
	}
	if got, _ := kv.Get(ctx, "c"); string(got) != "3" {
		t.Errorf("削除対象外のキーが影響を受けました: %q", got)
	}
}

func TestMemoryKV_DeleteExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	kv := newTestMemoryKV(&now)
	ctx := context.Background()

	kv.Set(ctx, "short", []byte("1"), time.Minute)
	kv.Set(ctx, "long", []byte("2"), time.Hour)
	now = now.Add(10 * time.Minute)

	n, err := kv.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired returned error: %v", err)
	}
	if n != 1 {
		t.Errorf("削除件数 = %d, want 1", n)
	}
	if _, ok := kv.entries["short"]; ok {
		t.Error("期限切れのエントリが残っています")
	}
	if _, ok := kv.entries["long"]; !ok {
		t.Error("有効なエントリが削除されました")
	}
}
