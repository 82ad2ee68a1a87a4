// Package dedupe short-circuits repeat uploads. Content hashes map to
// the attachment already stored for them, so pasting the same image
// twice returns the first URL instead of writing a second blob.
package dedupe

import (
	"context"
	"time"
)

// Driver identifiers supported by the attach domain.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Entry links a content hash to the attachment stored for it.
type Entry struct {
	Hash         string     `json:"hash"`
	AttachmentID string     `json:"attachmentId"`
	URL          string     `json:"url"`
	Size         int64      `json:"size"`
	CreatedAt    time.Time  `json:"createdAt"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// Index is the lookup contract used by the attachment service.
type Index interface {
	// Lookup returns the entry for a content hash, if one is known.
	Lookup(ctx context.Context, hash string) (Entry, bool, error)
	// Remember records an entry. Existing entries are overwritten.
	Remember(ctx context.Context, entry Entry) error
	// Forget drops the entry for a hash.
	Forget(ctx context.Context, hash string) error
	// Stats reports driver-level counters for the status endpoint.
	Stats(ctx context.Context) (map[string]any, error)
	// Close releases driver resources.
	Close(ctx context.Context) error
}

// Config describes the high level index selection parameters.
type Config struct {
	Driver string
	TTL    time.Duration
	Redis  *RedisConfig
	Memory *MemoryConfig
}

// MemoryConfig holds in-memory tuning knobs.
type MemoryConfig struct {
	GCInterval time.Duration
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}
