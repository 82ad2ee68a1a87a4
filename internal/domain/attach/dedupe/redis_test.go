package dedupe

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestRedisIndexLifecycle(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	idx, err := NewRedis(Config{
		TTL: time.Minute,
		Redis: &RedisConfig{
			Addr: mr.Addr(),
		},
	})
	if err != nil {
		t.Fatalf("NewRedis error: %v", err)
	}
	t.Cleanup(func() {
		_ = idx.Close(ctx)
	})

	entry := Entry{
		Hash:         "cafebabe",
		AttachmentID: "att-9",
		URL:          "http://cdn.local/attachments/att-9.png",
		Size:         2048,
	}

	if _, ok, err := idx.Lookup(ctx, entry.Hash); err != nil || ok {
		t.Fatalf("expected miss before Remember, got ok=%v err=%v", ok, err)
	}

	if err := idx.Remember(ctx, entry); err != nil {
		t.Fatalf("Remember error: %v", err)
	}

	got, ok, err := idx.Lookup(ctx, entry.Hash)
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if !ok {
		t.Fatalf("expected hit after Remember")
	}
	if got.AttachmentID != entry.AttachmentID || got.Size != entry.Size {
		t.Fatalf("unexpected entry: %+v", got)
	}

	if err := idx.Forget(ctx, entry.Hash); err != nil {
		t.Fatalf("Forget error: %v", err)
	}
	if _, ok, _ := idx.Lookup(ctx, entry.Hash); ok {
		t.Fatalf("expected miss after Forget")
	}
}

func TestRedisIndexHonoursTTL(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	idx, err := NewRedis(Config{
		TTL:   time.Second,
		Redis: &RedisConfig{Addr: mr.Addr()},
	})
	if err != nil {
		t.Fatalf("NewRedis error: %v", err)
	}
	t.Cleanup(func() {
		_ = idx.Close(ctx)
	})

	if err := idx.Remember(ctx, Entry{Hash: "ttl-bound"}); err != nil {
		t.Fatalf("Remember error: %v", err)
	}

	mr.FastForward(2 * time.Second)

	if _, ok, _ := idx.Lookup(ctx, "ttl-bound"); ok {
		t.Fatalf("expected entry to expire with the redis key")
	}
}

func TestRedisIndexRequiresAddr(t *testing.T) {
	if _, err := NewRedis(Config{Redis: &RedisConfig{}}); err == nil {
		t.Fatalf("expected error for missing address")
	}
	if _, err := NewRedis(Config{}); err == nil {
		t.Fatalf("expected error for missing redis config")
	}
}

func TestFactorySelectsDriver(t *testing.T) {
	idx, err := New(Config{})
	if err != nil {
		t.Fatalf("New memory index: %v", err)
	}
	defer idx.Close(context.Background())
	if _, ok := idx.(*memoryIndex); !ok {
		t.Fatalf("expected memory index, got %T", idx)
	}

	if _, err := New(Config{Driver: "memcache"}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
