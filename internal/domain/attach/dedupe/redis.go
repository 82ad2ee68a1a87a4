package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

type redisIndex struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis constructs a redis-backed dedupe index.
func NewRedis(cfg Config) (Index, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	opts := &redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "attach:hash:"
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisIndex{
		client: client,
		ttl:    ttl,
		prefix: prefix,
	}, nil
}

func (idx *redisIndex) key(hash string) string {
	return idx.prefix + hash
}

func (idx *redisIndex) Lookup(ctx context.Context, hash string) (Entry, bool, error) {
	raw, err := idx.client.Get(ctx, idx.key(hash)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	var entry Entry
	if err := sonic.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, err
	}
	if entry.ExpiresAt != nil && time.Now().After(*entry.ExpiresAt) {
		_ = idx.Forget(ctx, hash)
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (idx *redisIndex) Remember(ctx context.Context, entry Entry) error {
	if entry.Hash == "" {
		return fmt.Errorf("content hash required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	data, err := sonic.Marshal(entry)
	if err != nil {
		return err
	}
	expiry := idx.ttl
	if entry.ExpiresAt != nil {
		expiry = time.Until(*entry.ExpiresAt)
	}
	return idx.client.Set(ctx, idx.key(entry.Hash), data, expiry).Err()
}

func (idx *redisIndex) Forget(ctx context.Context, hash string) error {
	return idx.client.Del(ctx, idx.key(hash)).Err()
}

func (idx *redisIndex) Stats(ctx context.Context) (map[string]any, error) {
	size, err := idx.client.DBSize(ctx).Result()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":        "redis",
		"total":       size,
		"ttl_seconds": int(idx.ttl.Seconds()),
	}, nil
}

func (idx *redisIndex) Close(context.Context) error {
	return idx.client.Close()
}
