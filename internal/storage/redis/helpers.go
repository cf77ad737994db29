package redis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/goodtune/tvbudget/internal/storage"
)

const (
	accumulatorsKey  = keyPrefix + "accumulators"
	sessionsIndexKey = keyPrefix + "sessions"
	sessionKeyPrefix = keyPrefix + "session:"
	themeCachePrefix = keyPrefix + "theme:"
)

func themeKey(videoID string) string {
	return themeCachePrefix + videoID
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// scoreOf orders session records by end time at millisecond resolution
func scoreOf(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// parseAccumulator decodes one hash field of the accumulator table
func parseAccumulator(theme, data string) (storage.Accumulator, error) {
	var acc storage.Accumulator
	if err := json.Unmarshal([]byte(data), &acc); err != nil {
		return storage.Accumulator{}, fmt.Errorf("failed to decode accumulator %s: %w", theme, err)
	}
	acc.Theme = theme
	return acc, nil
}

// parseThemeEntry decodes a cached classification
func parseThemeEntry(data string) (*storage.ThemeEntry, error) {
	if data == "" {
		return nil, storage.ErrNotFound
	}
	var entry storage.ThemeEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("failed to decode theme entry: %w", err)
	}
	return &entry, nil
}

// parseSessionRecord decodes a stored session
func parseSessionRecord(data string) (storage.SessionRecord, error) {
	var rec storage.SessionRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return storage.SessionRecord{}, fmt.Errorf("failed to decode session record: %w", err)
	}
	return rec, nil
}
