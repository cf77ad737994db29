package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goodtune/tvbudget/internal/theme/label"
)

// ParseDuration parses a Go duration string. An empty string or "0" is a zero duration.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative: %s", s)
	}
	return d, nil
}

// MustDuration parses s, returning fallback when it is empty or invalid.
func MustDuration(s string, fallback time.Duration) time.Duration {
	d, err := ParseDuration(s)
	if err != nil || d == 0 {
		return fallback
	}
	return d
}

// ParseLimit parses a per-theme limit given either as a duration ("30m")
// or as a plain number of seconds ("1800").
func ParseLimit(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty limit")
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("limit must not be negative: %s", s)
		}
		return secs, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q: want a duration like 30m or a number of seconds", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("limit must not be negative: %s", s)
	}
	return d.Seconds(), nil
}

// ParseLimits converts the ledger.limits table into seconds keyed by theme.
// Theme keys are normalized exactly like resolver output.
func ParseLimits(raw map[string]string) (map[string]float64, error) {
	limits := make(map[string]float64, len(raw))
	origin := make(map[string]string, len(raw))
	for theme, value := range raw {
		key := label.Normalize(theme)
		if key == "" {
			return nil, fmt.Errorf("ledger.limits contains an empty theme name")
		}
		if key == label.Total {
			return nil, fmt.Errorf("ledger.limits.%s: reserved name, use ledger.total_limit", theme)
		}
		if prev, ok := origin[key]; ok {
			return nil, fmt.Errorf("ledger.limits.%s and ledger.limits.%s name the same theme %q", prev, theme, key)
		}
		secs, err := ParseLimit(value)
		if err != nil {
			return nil, fmt.Errorf("ledger.limits.%s: %w", theme, err)
		}
		if secs == 0 {
			return nil, fmt.Errorf("ledger.limits.%s: limit must be positive", theme)
		}
		limits[key] = secs
		origin[key] = theme
	}
	return limits, nil
}

// ParseTotalLimit parses ledger.total_limit. An empty value means no budget
// across themes and yields zero.
func ParseTotalLimit(s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	secs, err := ParseLimit(s)
	if err != nil {
		return 0, fmt.Errorf("ledger.total_limit: %w", err)
	}
	if secs == 0 {
		return 0, fmt.Errorf("ledger.total_limit: limit must be positive")
	}
	return secs, nil
}
