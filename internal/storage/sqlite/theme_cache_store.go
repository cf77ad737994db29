package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/tvbudget/internal/storage"
)

type themeCacheStore struct {
	db *sql.DB
}

// Get returns the cached classification for a video, or storage.ErrNotFound
func (s *themeCacheStore) Get(ctx context.Context, videoID string) (*storage.ThemeEntry, error) {
	var (
		entry     storage.ThemeEntry
		createdAt string
		expiresAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT video_id, theme, created_at, expires_at FROM theme_cache WHERE video_id = ?",
		videoID,
	).Scan(&entry.VideoID, &entry.Theme, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query theme cache: %w", err)
	}

	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	exp, err := parseNullTime(expiresAt)
	if err != nil {
		return nil, err
	}
	if exp != nil {
		entry.ExpiresAt = *exp
	}
	return &entry, nil
}

// Put inserts or replaces a cache entry
func (s *themeCacheStore) Put(ctx context.Context, entry storage.ThemeEntry) error {
	var expires *time.Time
	if !entry.ExpiresAt.IsZero() {
		expires = &entry.ExpiresAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO theme_cache (video_id, theme, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			theme = excluded.theme,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, entry.VideoID, entry.Theme, formatTime(entry.CreatedAt), nullTime(expires))
	if err != nil {
		return fmt.Errorf("failed to store theme cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry. Deleting a missing entry is not an error.
func (s *themeCacheStore) Delete(ctx context.Context, videoID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM theme_cache WHERE video_id = ?", videoID); err != nil {
		return fmt.Errorf("failed to delete theme cache entry: %w", err)
	}
	return nil
}
