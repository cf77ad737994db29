package usage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/goodtune/tvbudget/internal/clock"
	"github.com/goodtune/tvbudget/internal/metrics"
	"github.com/goodtune/tvbudget/internal/storage"
	"github.com/goodtune/tvbudget/internal/theme/label"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxSessionDuration bounds a single session; anything longer
	// points at a clock jump rather than real viewing.
	DefaultMaxSessionDuration = 12 * time.Hour

	// DefaultPersistRetries is the number of write attempts before giving up
	DefaultPersistRetries = 3

	// DefaultPersistBackoff is the delay before the first retry
	DefaultPersistBackoff = 200 * time.Millisecond
)

// Config holds ledger configuration
type Config struct {
	Limits             map[string]float64 // theme -> seconds
	TotalLimit         float64            // across all themes, zero for none
	Period             Period
	MaxSessionDuration time.Duration
	PersistRetries     int
	PersistBackoff     time.Duration
}

// Ledger owns the per-theme accumulator table. Every mutation is applied to
// a copy, written through the AccumulatorStore, and only then committed to
// memory, so memory never runs ahead of storage.
//
// Next to the themes the table holds one accumulator under label.Total that
// sums every recorded session in the period. It follows the same reset and
// crossing rules as a theme.
type Ledger struct {
	store  storage.AccumulatorStore
	config Config
	clock  clock.Clock
	logger zerolog.Logger

	mu   sync.Mutex
	accs map[string]storage.Accumulator
}

// NewLedger loads persisted accumulators and returns a ready Ledger
func NewLedger(ctx context.Context, store storage.AccumulatorStore, config Config, clk clock.Clock, logger zerolog.Logger) (*Ledger, error) {
	if config.MaxSessionDuration <= 0 {
		config.MaxSessionDuration = DefaultMaxSessionDuration
	}
	if config.PersistRetries <= 0 {
		config.PersistRetries = DefaultPersistRetries
	}
	if config.PersistBackoff < 0 {
		config.PersistBackoff = 0
	}
	if config.Limits == nil {
		config.Limits = map[string]float64{}
	}
	if _, ok := config.Limits[label.Total]; ok {
		return nil, fmt.Errorf("%q is reserved for the total limit", label.Total)
	}
	if config.TotalLimit < 0 {
		return nil, fmt.Errorf("total limit must not be negative")
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load accumulators: %w", err)
	}

	l := &Ledger{
		store:  store,
		config: config,
		clock:  clk,
		logger: logger.With().Str("component", "ledger").Logger(),
		accs:   make(map[string]storage.Accumulator, len(loaded)),
	}

	now := clk.Now()
	for _, acc := range loaded {
		// Limits always come from configuration
		acc.LimitSeconds = l.limitFor(acc.Theme)
		l.accs[acc.Theme] = acc
		if !config.Period.Stale(acc.LastUpdate, now) {
			metrics.WatchSeconds.WithLabelValues(acc.Theme).Set(acc.CumulativeSeconds)
		}
	}

	l.logger.Info().
		Int("themes", len(loaded)).
		Str("cadence", string(config.Period.Cadence)).
		Msg("Loaded watch-time accumulators")

	return l, nil
}

// RecordSession adds a closed session's duration to a theme's accumulator
// and to the total, and reports whether this call crossed either limit.
func (l *Ledger) RecordSession(ctx context.Context, theme string, seconds float64) (Result, error) {
	if err := l.validateDuration(seconds); err != nil {
		metrics.RejectedSessions.Inc()
		l.logger.Warn().
			Str("theme", theme).
			Float64("duration_seconds", seconds).
			Msg("Rejected session with invalid duration")
		return Result{Theme: theme}, err
	}
	if theme == label.Total {
		return Result{Theme: theme}, fmt.Errorf("%q is not a theme", theme)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	next := l.copyTable()
	result := l.add(next, theme, seconds, now)
	total := l.add(next, label.Total, seconds, now)

	if err := l.persist(ctx, next); err != nil {
		return Result{Theme: theme}, err
	}
	l.accs = next

	metrics.WatchSecondsTotal.WithLabelValues(theme).Add(seconds)
	for _, r := range []Result{result, total} {
		metrics.WatchSeconds.WithLabelValues(r.Theme).Set(r.CumulativeSeconds)
		if r.FreshCrossing {
			metrics.LimitCrossings.WithLabelValues(r.Theme).Inc()
		}
	}

	event := l.logger.Debug()
	if result.FreshCrossing || total.FreshCrossing {
		event = l.logger.Info()
	}
	event.
		Str("theme", theme).
		Float64("duration_seconds", seconds).
		Float64("cumulative_seconds", result.CumulativeSeconds).
		Bool("fresh_crossing", result.FreshCrossing).
		Float64("total_seconds", total.CumulativeSeconds).
		Bool("total_crossing", total.FreshCrossing).
		Msg("Recorded session")

	result.Total = &total
	return result, nil
}

// add applies one session to key in table, resetting a stale accumulator
// first. Callers hold l.mu.
func (l *Ledger) add(table map[string]storage.Accumulator, key string, seconds float64, now time.Time) Result {
	acc, ok := table[key]
	if !ok {
		acc = storage.Accumulator{Theme: key}
	}

	periodReset := false
	if l.config.Period.Stale(acc.LastUpdate, now) {
		l.logger.Info().
			Str("theme", key).
			Float64("previous_seconds", acc.CumulativeSeconds).
			Time("last_update", acc.LastUpdate).
			Msg("Accounting period rolled over, resetting accumulator")
		acc.CumulativeSeconds = 0
		acc.LastAlertAt = nil
		periodReset = true
	}

	before := acc.CumulativeSeconds
	acc.CumulativeSeconds = before + seconds
	acc.LastUpdate = now
	acc.LimitSeconds = l.limitFor(key)
	table[key] = acc

	return Result{
		Theme:             key,
		CumulativeSeconds: acc.CumulativeSeconds,
		LimitSeconds:      copyFloat(acc.LimitSeconds),
		FreshCrossing:     acc.LimitSeconds != nil && before < *acc.LimitSeconds && acc.CumulativeSeconds >= *acc.LimitSeconds,
		LastAlertAt:       copyTime(acc.LastAlertAt),
		PeriodReset:       periodReset,
	}
}

// MarkAlerted records that an alert fired for theme at the given time
func (l *Ledger) MarkAlerted(ctx context.Context, theme string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accs[theme]
	if !ok {
		return fmt.Errorf("no accumulator for theme %q", theme)
	}
	acc.LastAlertAt = &at
	return l.commit(ctx, acc)
}

// Reset zeroes the named themes, or every theme and the total when none are
// given, and re-arms their alerts. Time removed from a theme is also taken
// off the total. Reset returns the names it actually reset; unknown names
// are skipped.
func (l *Ledger) Reset(ctx context.Context, themes ...string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(themes) == 0 {
		for theme := range l.accs {
			themes = append(themes, theme)
		}
	}

	now := l.clock.Now()
	next := l.copyTable()
	reset := make([]string, 0, len(themes))
	var removed float64
	for _, theme := range themes {
		acc, ok := next[theme]
		if !ok {
			continue
		}
		if theme != label.Total && !l.config.Period.Stale(acc.LastUpdate, now) {
			removed += acc.CumulativeSeconds
		}
		acc.CumulativeSeconds = 0
		acc.LastAlertAt = nil
		acc.LastUpdate = now
		next[theme] = acc
		reset = append(reset, theme)
	}
	if len(reset) == 0 {
		return reset, nil
	}

	if total, ok := next[label.Total]; ok && total.CumulativeSeconds > 0 && removed > 0 && !l.config.Period.Stale(total.LastUpdate, now) {
		total.CumulativeSeconds = math.Max(0, total.CumulativeSeconds-removed)
		if total.LimitSeconds == nil || total.CumulativeSeconds < *total.LimitSeconds {
			total.LastAlertAt = nil
		}
		next[label.Total] = total
	}

	if err := l.persist(ctx, next); err != nil {
		return nil, err
	}
	l.accs = next

	for _, theme := range reset {
		metrics.WatchSeconds.WithLabelValues(theme).Set(0)
	}
	if total, ok := next[label.Total]; ok {
		metrics.WatchSeconds.WithLabelValues(label.Total).Set(total.CumulativeSeconds)
	}
	sort.Strings(reset)
	l.logger.Info().Strs("themes", reset).Msg("Accumulators reset")
	return reset, nil
}

// Flush rewrites the current table. Every mutation is already written
// through, so this only matters after an earlier failure.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persist(ctx, l.copyTable())
}

// Snapshot returns the theme accumulators as seen in the current period,
// sorted by theme. Stale accumulators read as zero; configured themes with
// no recorded time are included. The total is reported by Total.
func (l *Ledger) Snapshot() []storage.Accumulator {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	out := make([]storage.Accumulator, 0, len(l.accs)+len(l.config.Limits))
	seen := make(map[string]bool, len(l.accs))

	for theme, acc := range l.accs {
		if theme == label.Total {
			continue
		}
		seen[theme] = true
		out = append(out, l.current(acc, now))
	}
	for theme := range l.config.Limits {
		if !seen[theme] {
			out = append(out, storage.Accumulator{Theme: theme, LimitSeconds: l.limitFor(theme)})
		}
	}

	out = storage.CloneAccumulators(out)
	sort.Slice(out, func(i, j int) bool { return out[i].Theme < out[j].Theme })
	return out
}

// Total returns the all-themes accumulator for the current period
func (l *Ledger) Total() storage.Accumulator {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accs[label.Total]
	if !ok {
		return storage.Accumulator{Theme: label.Total, LimitSeconds: l.limitFor(label.Total)}
	}
	return storage.CloneAccumulators([]storage.Accumulator{l.current(acc, l.clock.Now())})[0]
}

// current hides values from a finished period
func (l *Ledger) current(acc storage.Accumulator, now time.Time) storage.Accumulator {
	if l.config.Period.Stale(acc.LastUpdate, now) {
		acc.CumulativeSeconds = 0
		acc.LastAlertAt = nil
	}
	return acc
}

// Period returns the ledger's accounting period
func (l *Ledger) Period() Period {
	return l.config.Period
}

// StateOf classifies an accumulator for display
func StateOf(acc storage.Accumulator) State {
	switch {
	case acc.LimitSeconds == nil:
		return StateUnlimited
	case acc.CumulativeSeconds < *acc.LimitSeconds:
		return StateUnder
	case acc.LastAlertAt != nil:
		return StateAlerted
	default:
		return StateOver
	}
}

func (l *Ledger) validateDuration(seconds float64) error {
	if seconds <= 0 || math.IsNaN(seconds) {
		return fmt.Errorf("%w: %v seconds", ErrInvalidDuration, seconds)
	}
	if seconds > l.config.MaxSessionDuration.Seconds() {
		return fmt.Errorf("%w: %v seconds exceeds maximum %s", ErrInvalidDuration, seconds, l.config.MaxSessionDuration)
	}
	return nil
}

func (l *Ledger) limitFor(theme string) *float64 {
	if theme == label.Total {
		if l.config.TotalLimit <= 0 {
			return nil
		}
		limit := l.config.TotalLimit
		return &limit
	}
	limit, ok := l.config.Limits[theme]
	if !ok {
		return nil
	}
	return &limit
}

// commit persists the table with acc replaced and then swaps it in.
// Callers hold l.mu.
func (l *Ledger) commit(ctx context.Context, acc storage.Accumulator) error {
	next := l.copyTable()
	next[acc.Theme] = acc
	if err := l.persist(ctx, next); err != nil {
		return err
	}
	l.accs = next
	return nil
}

func (l *Ledger) copyTable() map[string]storage.Accumulator {
	next := make(map[string]storage.Accumulator, len(l.accs)+1)
	for theme, acc := range l.accs {
		next[theme] = acc
	}
	return next
}

// persist writes the table with bounded retries
func (l *Ledger) persist(ctx context.Context, table map[string]storage.Accumulator) error {
	accs := make([]storage.Accumulator, 0, len(table))
	for _, acc := range table {
		accs = append(accs, acc)
	}
	sort.Slice(accs, func(i, j int) bool { return accs[i].Theme < accs[j].Theme })
	accs = storage.CloneAccumulators(accs)

	backoff := l.config.PersistBackoff
	var lastErr error
	for attempt := 1; attempt <= l.config.PersistRetries; attempt++ {
		lastErr = l.store.Replace(ctx, accs)
		if lastErr == nil {
			return nil
		}
		metrics.PersistFailures.Inc()

		l.logger.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", l.config.PersistRetries).
			Msg("Failed to persist accumulators")

		if attempt == l.config.PersistRetries {
			break
		}
		if err := sleepContext(ctx, backoff); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}
		backoff *= 2
	}

	return fmt.Errorf("%w: %w", ErrPersist, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
