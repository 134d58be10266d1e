// Package stats keeps the lifetime counters shown by the UI.
package stats

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Counter keys.
const (
	TotalDownloads = "totalDownloads"
	AdsBlocked     = "adsBlocked"
)

// Keys lists every known counter.
var Keys = []string{TotalDownloads, AdsBlocked}

const redisHashKey = "streamsave:stats"

// Counters is a key-value store of monotonically increasing counters.
type Counters interface {
	Increment(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	All(ctx context.Context) (map[string]int64, error)
}

// RedisCounters stores counters in a Redis hash.
type RedisCounters struct {
	client *redis.Client
}

// NewRedisCounters creates counters over client.
func NewRedisCounters(client *redis.Client) *RedisCounters {
	return &RedisCounters{client: client}
}

func (c *RedisCounters) Increment(ctx context.Context, key string) (int64, error) {
	n, err := c.client.HIncrBy(ctx, redisHashKey, key, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	return n, nil
}

func (c *RedisCounters) Get(ctx context.Context, key string) (int64, error) {
	n, err := c.client.HGet(ctx, redisHashKey, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return n, nil
}

// All returns every known counter, zero when unset.
func (c *RedisCounters) All(ctx context.Context) (map[string]int64, error) {
	raw, err := c.client.HGetAll(ctx, redisHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}

	out := zeroed()
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s is not numeric: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

// MemoryCounters keeps counters in process memory.
type MemoryCounters struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewMemoryCounters creates empty in-memory counters.
func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{values: make(map[string]int64)}
}

func (c *MemoryCounters) Increment(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key]++
	return c.values[key], nil
}

func (c *MemoryCounters) Get(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], nil
}

func (c *MemoryCounters) All(_ context.Context) (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := zeroed()
	for k, v := range c.values {
		out[k] = v
	}
	return out, nil
}

func zeroed() map[string]int64 {
	out := make(map[string]int64, len(Keys))
	for _, k := range Keys {
		out[k] = 0
	}
	return out
}
