package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/tvbudget/internal/storage"
	"github.com/redis/go-redis/v9"
)

type themeCacheStore struct {
	client *redis.Client
}

// Get returns the cached classification for a video, or storage.ErrNotFound
func (s *themeCacheStore) Get(ctx context.Context, videoID string) (*storage.ThemeEntry, error) {
	data, err := s.client.Get(ctx, themeKey(videoID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return parseThemeEntry(data)
}

// Put stores a cache entry. Redis expires the key once the entry's lifetime
// has passed; callers still check ThemeEntry.Expired against their own clock.
func (s *themeCacheStore) Put(ctx context.Context, entry storage.ThemeEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode theme entry: %w", err)
	}

	var ttl time.Duration
	if !entry.ExpiresAt.IsZero() {
		ttl = entry.ExpiresAt.Sub(entry.CreatedAt)
		if ttl <= 0 {
			return s.Delete(ctx, entry.VideoID)
		}
	}

	return s.client.Set(ctx, themeKey(entry.VideoID), payload, ttl).Err()
}

// Delete removes a cache entry
func (s *themeCacheStore) Delete(ctx context.Context, videoID string) error {
	return s.client.Del(ctx, themeKey(videoID)).Err()
}
