package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/goodtune/tvbudget/internal/storage"
	"github.com/goodtune/tvbudget/internal/usage"
)

func ptr[T any](v T) *T { return &v }

func TestPrintUsage(t *testing.T) {
	period, err := usage.NewPeriod("daily", "00:00", "monday", "UTC")
	if err != nil {
		t.Fatalf("NewPeriod failed: %v", err)
	}
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	accs := []storage.Accumulator{
		{Theme: "baseball", CumulativeSeconds: 1900, LimitSeconds: ptr(1800.0), LastAlertAt: ptr(now)},
		{Theme: "gaming", CumulativeSeconds: 600, LimitSeconds: ptr(3600.0)},
		{Theme: "news", CumulativeSeconds: 125},
	}

	total := storage.Accumulator{Theme: "__total__", CumulativeSeconds: 2625, LimitSeconds: ptr(7200.0)}

	var buf bytes.Buffer
	printUsage(&buf, accs, total, period, now)
	out := strings.ToLower(buf.String())

	for _, want := range []string{"baseball", "31m 40s", "30m 0s", "106%", "alerted", "17%", "under", "2m 5s", "unlimited", "total", "43m 45s", "2h 0m 0s", "36%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintUsageEmpty(t *testing.T) {
	period, _ := usage.NewPeriod("none", "00:00", "monday", "UTC")
	var buf bytes.Buffer
	printUsage(&buf, nil, storage.Accumulator{}, period, time.Now())
	if !strings.Contains(buf.String(), "No watch time recorded yet.") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, []storage.SessionRecord{{
		VideoID:         "abc123",
		Theme:           "baseball",
		Title:           "Top 10 Home Runs",
		EndedAt:         time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		DurationSeconds: 3723,
	}})
	for _, want := range []string{"abc123", "baseball", "1h 2m 3s", "Top 10 Home Runs"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		acc  storage.Accumulator
		want string
	}{
		{storage.Accumulator{CumulativeSeconds: 900, LimitSeconds: ptr(1800.0)}, "50%"},
		{storage.Accumulator{CumulativeSeconds: 0, LimitSeconds: ptr(1800.0)}, "0%"},
		{storage.Accumulator{CumulativeSeconds: 900}, "-"},
	}
	for _, tt := range tests {
		if got := formatPercent(tt.acc); got != tt.want {
			t.Errorf("formatPercent(%+v) = %q, want %q", tt.acc, got, tt.want)
		}
	}
}
