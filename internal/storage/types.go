package storage

import (
	"time"
)

// Accumulator is the persisted running total for one theme.
type Accumulator struct {
	Theme             string     `json:"theme"`
	CumulativeSeconds float64    `json:"cumulative_seconds"`
	LimitSeconds      *float64   `json:"limit_seconds,omitempty"`
	LastUpdate        time.Time  `json:"last_update"`
	LastAlertAt       *time.Time `json:"last_alert_at,omitempty"`
}

// ThemeEntry is a cached classification result for one video.
type ThemeEntry struct {
	VideoID   string    `json:"video_id"`
	Theme     string    `json:"theme"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"` // zero means never
}

// Expired reports whether the entry has passed its expiry at now.
func (e *ThemeEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// SessionRecord is one closed viewing session.
type SessionRecord struct {
	ID              string    `json:"id"`
	VideoID         string    `json:"video_id"`
	Theme           string    `json:"theme"`
	Title           string    `json:"title"`
	Channel         string    `json:"channel"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// CloneAccumulators returns a deep copy of accs.
func CloneAccumulators(accs []Accumulator) []Accumulator {
	out := make([]Accumulator, len(accs))
	for i, a := range accs {
		out[i] = a
		if a.LimitSeconds != nil {
			v := *a.LimitSeconds
			out[i].LimitSeconds = &v
		}
		if a.LastAlertAt != nil {
			v := *a.LastAlertAt
			out[i].LastAlertAt = &v
		}
	}
	return out
}
