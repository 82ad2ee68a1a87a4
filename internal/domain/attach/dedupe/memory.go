package dedupe

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryIndex struct {
	entries     map[string]Entry
	mutex       sync.RWMutex
	ttl         time.Duration
	cleanupFreq time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewMemory builds an in-memory dedupe index.
func NewMemory(cfg Config) Index {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	cleanup := 10 * time.Minute
	if cfg.Memory != nil && cfg.Memory.GCInterval > 0 {
		cleanup = cfg.Memory.GCInterval
	}
	idx := &memoryIndex{
		entries:     make(map[string]Entry),
		ttl:         ttl,
		cleanupFreq: cleanup,
		stop:        make(chan struct{}),
	}
	go idx.gcLoop()
	return idx
}

func (idx *memoryIndex) gcLoop() {
	ticker := time.NewTicker(idx.cleanupFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			idx.cleanupExpired()
		case <-idx.stop:
			return
		}
	}
}

func (idx *memoryIndex) cleanupExpired() {
	now := time.Now()
	idx.mutex.Lock()
	for hash, entry := range idx.entries {
		if entry.ExpiresAt != nil && now.After(*entry.ExpiresAt) {
			delete(idx.entries, hash)
		}
	}
	idx.mutex.Unlock()
}

func (idx *memoryIndex) Lookup(_ context.Context, hash string) (Entry, bool, error) {
	idx.mutex.RLock()
	entry, ok := idx.entries[hash]
	idx.mutex.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}
	if entry.ExpiresAt != nil && time.Now().After(*entry.ExpiresAt) {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (idx *memoryIndex) Remember(_ context.Context, entry Entry) error {
	if entry.Hash == "" {
		return fmt.Errorf("content hash required")
	}
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.ExpiresAt == nil && idx.ttl > 0 {
		exp := now.Add(idx.ttl)
		entry.ExpiresAt = &exp
	}

	idx.mutex.Lock()
	idx.entries[entry.Hash] = entry
	idx.mutex.Unlock()
	return nil
}

func (idx *memoryIndex) Forget(_ context.Context, hash string) error {
	idx.mutex.Lock()
	delete(idx.entries, hash)
	idx.mutex.Unlock()
	return nil
}

func (idx *memoryIndex) Stats(_ context.Context) (map[string]any, error) {
	now := time.Now()
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	total := len(idx.entries)
	active := 0
	for _, entry := range idx.entries {
		if entry.ExpiresAt == nil || now.Before(*entry.ExpiresAt) {
			active++
		}
	}
	return map[string]any{
		"type":        "memory",
		"total":       total,
		"active":      active,
		"ttl_seconds": int(idx.ttl.Seconds()),
	}, nil
}

func (idx *memoryIndex) Close(_ context.Context) error {
	idx.stopOnce.Do(func() {
		close(idx.stop)
	})
	return nil
}
