package usage

import (
	"fmt"
	"strings"
	"time"
)

// Cadence selects how often accumulators are reset.
type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
	CadenceNone   Cadence = "none"
)

// Period computes accounting-period boundaries. A period starts at the
// configured time of day, and for weekly cadence on the configured weekday.
type Period struct {
	Cadence   Cadence
	ResetTime time.Time // only hour and minute are used
	WeekStart time.Weekday
	Location  *time.Location
}

// NewPeriod parses the ledger reset settings.
func NewPeriod(cadence, resetTime, weekStart, timezone string) (Period, error) {
	p := Period{Cadence: Cadence(strings.ToLower(cadence))}
	switch p.Cadence {
	case CadenceDaily, CadenceWeekly, CadenceNone:
	default:
		return Period{}, fmt.Errorf("unknown reset cadence %q", cadence)
	}

	if resetTime == "" {
		resetTime = "00:00"
	}
	parsed, err := time.Parse("15:04", resetTime)
	if err != nil {
		return Period{}, fmt.Errorf("invalid reset time %q: %w", resetTime, err)
	}
	p.ResetTime = parsed

	p.WeekStart, err = parseWeekday(weekStart)
	if err != nil {
		return Period{}, err
	}

	switch timezone {
	case "", "Local":
		p.Location = time.Local
	default:
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return Period{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
		p.Location = loc
	}

	return p, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	if s == "" {
		return time.Monday, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if strings.EqualFold(s, name) || strings.EqualFold(s, name[:3]) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid week start %q", s)
}

func (p Period) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

// CurrentPeriodStart returns the start of the period containing now.
// With CadenceNone it returns the zero time: nothing is ever stale.
func (p Period) CurrentPeriodStart(now time.Time) time.Time {
	if p.Cadence == CadenceNone {
		return time.Time{}
	}

	local := now.In(p.location())

	// Get today at reset time
	start := time.Date(local.Year(), local.Month(), local.Day(),
		p.ResetTime.Hour(), p.ResetTime.Minute(), 0, 0, local.Location())

	// If we haven't reached reset time today, yesterday is still the current "day"
	if local.Before(start) {
		start = start.AddDate(0, 0, -1)
	}

	if p.Cadence == CadenceWeekly {
		back := (int(start.Weekday()) - int(p.WeekStart) + 7) % 7
		start = start.AddDate(0, 0, -back)
	}

	return start
}

// NextReset returns the next period boundary after now, or the zero time
// with CadenceNone.
func (p Period) NextReset(now time.Time) time.Time {
	start := p.CurrentPeriodStart(now)
	switch p.Cadence {
	case CadenceDaily:
		return start.AddDate(0, 0, 1)
	case CadenceWeekly:
		return start.AddDate(0, 0, 7)
	default:
		return time.Time{}
	}
}

// Stale reports whether lastUpdate belongs to a period before the one
// containing now.
func (p Period) Stale(lastUpdate, now time.Time) bool {
	if p.Cadence == CadenceNone || lastUpdate.IsZero() {
		return false
	}
	return lastUpdate.Before(p.CurrentPeriodStart(now))
}
