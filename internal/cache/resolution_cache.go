package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streamsave/streamsave-go/internal/metrics"
	"github.com/streamsave/streamsave-go/internal/models"
)

const resolutionKeyPrefix = "streamsave:resolution:"

// ResolutionCache stores normalized resolution results keyed by video id. Direct URLs
// expire upstream, so entries must carry a short TTL.
type ResolutionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResolutionCache creates a cache over client.
func NewResolutionCache(client *redis.Client, ttl time.Duration) *ResolutionCache {
	return &ResolutionCache{client: client, ttl: ttl}
}

// Get returns the cached result for videoID, or nil on a miss.
func (c *ResolutionCache) Get(ctx context.Context, videoID string) (*models.VideoInfo, error) {
	data, err := c.client.Get(ctx, resolutionKeyPrefix+videoID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheLookup(false)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get resolution from cache: %w", err)
	}

	var info models.VideoInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached resolution: %w", err)
	}

	metrics.RecordCacheLookup(true)
	return &info, nil
}

// Set caches info under its video id.
func (c *ResolutionCache) Set(ctx context.Context, info *models.VideoInfo) error {
	if info == nil || info.VideoID == "" {
		return fmt.Errorf("resolution has no video id")
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal resolution: %w", err)
	}

	if err := c.client.Set(ctx, resolutionKeyPrefix+info.VideoID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache resolution: %w", err)
	}
	return nil
}

// Delete drops the cached result for videoID.
func (c *ResolutionCache) Delete(ctx context.Context, videoID string) error {
	if err := c.client.Del(ctx, resolutionKeyPrefix+videoID).Err(); err != nil {
		return fmt.Errorf("failed to delete cached resolution: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *ResolutionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
