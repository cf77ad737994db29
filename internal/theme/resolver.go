// Package theme maps video identifiers to theme labels, caching each
// classification so the classifier runs at most once per video within the
// cache lifetime.
package theme

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goodtune/tvbudget/internal/classifier"
	"github.com/goodtune/tvbudget/internal/clock"
	"github.com/goodtune/tvbudget/internal/metrics"
	"github.com/goodtune/tvbudget/internal/storage"
	"github.com/goodtune/tvbudget/internal/theme/label"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

const defaultCacheSize = 1024

// Config holds resolver configuration
type Config struct {
	TTL       time.Duration // zero disables expiry
	CacheSize int
}

// Resolver turns video metadata into a theme label
type Resolver struct {
	classifier classifier.Classifier
	store      storage.ThemeCacheStore
	memory     *lru.Cache[string, storage.ThemeEntry]
	ttl        time.Duration
	clock      clock.Clock
	logger     zerolog.Logger
}

// NewResolver creates a resolver backed by an in-memory LRU in front of the
// persistent cache store.
func NewResolver(c classifier.Classifier, store storage.ThemeCacheStore, config Config, clk clock.Clock, logger zerolog.Logger) (*Resolver, error) {
	if config.CacheSize <= 0 {
		config.CacheSize = defaultCacheSize
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	memory, err := lru.New[string, storage.ThemeEntry](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create theme cache: %w", err)
	}

	return &Resolver{
		classifier: c,
		store:      store,
		memory:     memory,
		ttl:        config.TTL,
		clock:      clk,
		logger:     logger.With().Str("component", "theme-resolver").Logger(),
	}, nil
}

// Resolve returns the theme for a video. It never fails: any classifier
// error yields Unclassified, which is not cached so a later call can retry.
// A label derived from empty metadata is returned but not cached either, so
// a metadata outage cannot pin a guess for the whole cache lifetime.
func (r *Resolver) Resolve(ctx context.Context, videoID, title, description string) string {
	if videoID == "" {
		return Unclassified
	}

	now := r.clock.Now()

	if entry, ok := r.memory.Get(videoID); ok {
		if !entry.Expired(now) {
			metrics.ThemeLookups.WithLabelValues("memory").Inc()
			return entry.Theme
		}
		r.memory.Remove(videoID)
	}

	if entry := r.lookupStore(ctx, videoID, now); entry != nil {
		r.memory.Add(videoID, *entry)
		metrics.ThemeLookups.WithLabelValues("store").Inc()
		return entry.Theme
	}

	start := time.Now()
	name, err := r.classifier.Classify(ctx, title, description)
	if err == nil {
		name = label.Normalize(name)
		if name == "" || name == label.Total {
			err = fmt.Errorf("%w: %q", classifier.ErrUnparseable, name)
		}
	}
	if err != nil {
		metrics.ClassifierDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		metrics.ThemeLookups.WithLabelValues("fallback").Inc()
		r.logger.Warn().
			Err(err).
			Str("video_id", videoID).
			Str("title", title).
			Msg("Classification failed, using unclassified")
		return Unclassified
	}
	metrics.ClassifierDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	metrics.ThemeLookups.WithLabelValues("classifier").Inc()

	if strings.TrimSpace(title) == "" && strings.TrimSpace(description) == "" {
		r.logger.Info().
			Str("video_id", videoID).
			Str("theme", name).
			Msg("Classified video without metadata, not caching")
		return name
	}

	entry := storage.ThemeEntry{
		VideoID:   videoID,
		Theme:     name,
		CreatedAt: now,
	}
	if r.ttl > 0 {
		entry.ExpiresAt = now.Add(r.ttl)
	}
	r.memory.Add(videoID, entry)
	if err := r.store.Put(ctx, entry); err != nil {
		r.logger.Warn().Err(err).Str("video_id", videoID).Msg("Failed to persist theme cache entry")
	}

	r.logger.Info().
		Str("video_id", videoID).
		Str("title", title).
		Str("theme", name).
		Msg("Classified video")

	return name
}

// Forget drops a video from both cache layers, so its next sighting is
// classified again.
func (r *Resolver) Forget(ctx context.Context, videoID string) error {
	r.memory.Remove(videoID)
	return r.store.Delete(ctx, videoID)
}

// lookupStore returns a live entry from the persistent cache, removing it
// when it has expired. Store errors are logged and treated as a miss.
func (r *Resolver) lookupStore(ctx context.Context, videoID string, now time.Time) *storage.ThemeEntry {
	entry, err := r.store.Get(ctx, videoID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("video_id", videoID).Msg("Theme cache lookup failed")
		return nil
	}
	if entry.Expired(now) {
		if err := r.store.Delete(ctx, videoID); err != nil {
			r.logger.Debug().Err(err).Str("video_id", videoID).Msg("Failed to delete expired theme cache entry")
		}
		return nil
	}
	return entry
}
