package usage

import (
	"errors"
	"time"
)

var (
	// ErrInvalidDuration is returned for non-positive or implausibly long sessions.
	ErrInvalidDuration = errors.New("usage: invalid session duration")

	// ErrPersist is returned when the accumulator table could not be written
	// after all retries. The in-memory state is left unchanged.
	ErrPersist = errors.New("usage: failed to persist accumulators")
)

// Result describes the outcome of recording one closed session.
type Result struct {
	Theme             string
	CumulativeSeconds float64
	LimitSeconds      *float64
	// FreshCrossing is true only on the call that moved the total from
	// below the limit to at or above it.
	FreshCrossing bool
	LastAlertAt   *time.Time
	// PeriodReset is true when a stale accumulator was zeroed before adding.
	PeriodReset bool
	// Total is the same outcome for the all-themes accumulator. It is set
	// by RecordSession and nil on the total itself.
	Total *Result
}

// OverLimit reports whether the cumulative total is at or above the limit.
func (r Result) OverLimit() bool {
	return r.LimitSeconds != nil && r.CumulativeSeconds >= *r.LimitSeconds
}

// State is the display state of a theme within the current period.
type State string

const (
	StateUnlimited State = "unlimited"
	StateUnder     State = "under"
	StateOver      State = "over"
	StateAlerted   State = "alerted"
)
