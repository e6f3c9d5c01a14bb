package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gofiber/storage/memory/v2"
	"github.com/gofiber/storage/redis/v3"
	goredis "github.com/redis/go-redis/v9"
)

// Backend is the storage behind every named store. Get, Set, Delete and
// Close are the fiber.Storage subset; Get returns nil, nil for a missing key.
//
// The Index methods maintain ordered member lists. Each call is atomic with
// respect to every other writer of the backend, including other processes
// sharing it.
type Backend interface {
	Get(key string) ([]byte, error)
	Set(key string, val []byte, exp time.Duration) error
	Delete(key string) error
	Close() error

	// IndexAdd appends member to the index at key. Adding a member that is
	// already present keeps its original position.
	IndexAdd(ctx context.Context, key, member string) error
	// IndexMembers lists the members in insertion order.
	IndexMembers(ctx context.Context, key string) ([]string, error)
	// IndexRemove drops member from the index.
	IndexRemove(ctx context.Context, key, member string) error
}

// RedisBackend stores entries as plain keys and indexes as sorted sets
// scored by insertion time, so replicas can share one Redis.
type RedisBackend struct {
	*redis.Storage
}

// NewRedisBackend connects to Redis using a redis:// URL.
func NewRedisBackend(url string) *RedisBackend {
	return &RedisBackend{Storage: redis.New(redis.Config{
		URL:   url,
		Reset: false,
	})}
}

func (b *RedisBackend) IndexAdd(ctx context.Context, key, member string) error {
	return b.Conn().ZAddNX(ctx, key, goredis.Z{
		Score:  float64(time.Now().UnixMicro()),
		Member: member,
	}).Err()
}

func (b *RedisBackend) IndexMembers(ctx context.Context, key string) ([]string, error) {
	return b.Conn().ZRange(ctx, key, 0, -1).Result()
}

func (b *RedisBackend) IndexRemove(ctx context.Context, key, member string) error {
	return b.Conn().ZRem(ctx, key, member).Err()
}

// MemoryBackend keeps entries in process memory. Entries never expire.
type MemoryBackend struct {
	*memory.Storage
	mu sync.Mutex
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{Storage: memory.New()}
}

func (b *MemoryBackend) IndexAdd(ctx context.Context, key, member string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	members, err := b.members(key)
	if err != nil {
		return err
	}
	if slices.Contains(members, member) {
		return nil
	}
	return b.store(key, append(members, member))
}

func (b *MemoryBackend) IndexMembers(ctx context.Context, key string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.members(key)
}

func (b *MemoryBackend) IndexRemove(ctx context.Context, key, member string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	members, err := b.members(key)
	if err != nil {
		return err
	}
	idx := slices.Index(members, member)
	if idx < 0 {
		return nil
	}
	members = slices.Delete(members, idx, idx+1)
	if len(members) == 0 {
		return b.Storage.Delete(key)
	}
	return b.store(key, members)
}

func (b *MemoryBackend) members(key string) ([]string, error) {
	raw, err := b.Storage.Get(key)
	if err != nil || len(raw) == 0 {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("index %q: %w", key, err)
	}
	return out, nil
}

func (b *MemoryBackend) store(key string, members []string) error {
	raw, err := json.Marshal(members)
	if err != nil {
		return err
	}
	return b.Storage.Set(key, raw, 0)
}
