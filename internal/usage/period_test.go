package usage

import (
	"testing"
	"time"
)

func TestCurrentPeriodStart(t *testing.T) {
	utc := time.UTC

	tests := []struct {
		name      string
		cadence   string
		resetTime string
		weekStart string
		now       time.Time
		want      time.Time
	}{
		{
			name:    "daily midnight",
			cadence: "daily", resetTime: "00:00",
			now:  time.Date(2024, 6, 12, 15, 0, 0, 0, utc),
			want: time.Date(2024, 6, 12, 0, 0, 0, 0, utc),
		},
		{
			name:    "daily before reset time belongs to yesterday",
			cadence: "daily", resetTime: "04:30",
			now:  time.Date(2024, 6, 12, 3, 0, 0, 0, utc),
			want: time.Date(2024, 6, 11, 4, 30, 0, 0, utc),
		},
		{
			name:    "daily exactly at reset time",
			cadence: "daily", resetTime: "04:30",
			now:  time.Date(2024, 6, 12, 4, 30, 0, 0, utc),
			want: time.Date(2024, 6, 12, 4, 30, 0, 0, utc),
		},
		{
			name:    "weekly monday start from wednesday",
			cadence: "weekly", resetTime: "00:00", weekStart: "monday",
			now:  time.Date(2024, 6, 12, 15, 0, 0, 0, utc),
			want: time.Date(2024, 6, 10, 0, 0, 0, 0, utc),
		},
		{
			name:    "weekly sunday start on sunday",
			cadence: "weekly", resetTime: "00:00", weekStart: "sun",
			now:  time.Date(2024, 6, 16, 9, 0, 0, 0, utc),
			want: time.Date(2024, 6, 16, 0, 0, 0, 0, utc),
		},
		{
			name:    "weekly monday before reset time",
			cadence: "weekly", resetTime: "06:00", weekStart: "monday",
			now:  time.Date(2024, 6, 10, 5, 0, 0, 0, utc),
			want: time.Date(2024, 6, 3, 6, 0, 0, 0, utc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPeriod(tt.cadence, tt.resetTime, tt.weekStart, "UTC")
			if err != nil {
				t.Fatalf("NewPeriod failed: %v", err)
			}
			if got := p.CurrentPeriodStart(tt.now); !got.Equal(tt.want) {
				t.Errorf("CurrentPeriodStart() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPeriodStale(t *testing.T) {
	daily, _ := NewPeriod("daily", "00:00", "", "UTC")
	weekly, _ := NewPeriod("weekly", "00:00", "monday", "UTC")
	none, _ := NewPeriod("none", "", "", "UTC")

	wed := time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)
	tue := wed.AddDate(0, 0, -1)
	prevSun := time.Date(2024, 6, 9, 23, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		period Period
		last   time.Time
		want   bool
	}{
		{"daily same day", daily, wed.Add(-time.Hour), false},
		{"daily yesterday", daily, tue, true},
		{"weekly same week", weekly, tue, false},
		{"weekly previous week", weekly, prevSun, true},
		{"none never stale", none, wed.AddDate(-1, 0, 0), false},
		{"zero last update", daily, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.period.Stale(tt.last, wed); got != tt.want {
				t.Errorf("Stale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextReset(t *testing.T) {
	daily, _ := NewPeriod("daily", "04:00", "", "UTC")
	now := time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)
	if got, want := daily.NextReset(now), time.Date(2024, 6, 13, 4, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("NextReset() = %v, want %v", got, want)
	}

	none, _ := NewPeriod("none", "", "", "UTC")
	if !none.NextReset(now).IsZero() {
		t.Error("Expected zero next reset with no cadence")
	}
}

func TestNewPeriodErrors(t *testing.T) {
	tests := []struct {
		cadence, resetTime, weekStart, tz string
	}{
		{"monthly", "00:00", "monday", "UTC"},
		{"daily", "25:00", "monday", "UTC"},
		{"weekly", "00:00", "someday", "UTC"},
		{"daily", "00:00", "monday", "Mars/Olympus"},
	}
	for _, tt := range tests {
		if _, err := NewPeriod(tt.cadence, tt.resetTime, tt.weekStart, tt.tz); err == nil {
			t.Errorf("NewPeriod(%q, %q, %q, %q) succeeded, want error", tt.cadence, tt.resetTime, tt.weekStart, tt.tz)
		}
	}
}
