// Package monitor runs the polling loop that feeds viewing sessions through
// theme resolution, watch-time accounting and alerting, one tick at a time.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/tvbudget/internal/alert"
	"github.com/goodtune/tvbudget/internal/analytics"
	"github.com/goodtune/tvbudget/internal/clock"
	"github.com/goodtune/tvbudget/internal/metrics"
	"github.com/goodtune/tvbudget/internal/observer"
	"github.com/goodtune/tvbudget/internal/storage"
	"github.com/goodtune/tvbudget/internal/theme"
	"github.com/goodtune/tvbudget/internal/theme/label"
	"github.com/goodtune/tvbudget/internal/usage"
	"github.com/goodtune/tvbudget/internal/youtube"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const (
	DefaultPollInterval  = 5 * time.Second
	DefaultPruneInterval = 24 * time.Hour
	shutdownTimeout      = 15 * time.Second
)

// Resolver maps a video to its theme label
type Resolver interface {
	Resolve(ctx context.Context, videoID, title, description string) string
}

// Ledger accumulates watch time per theme
type Ledger interface {
	RecordSession(ctx context.Context, theme string, seconds float64) (usage.Result, error)
	Flush(ctx context.Context) error
}

// Alerter reacts to ledger results
type Alerter interface {
	MaybeAlert(ctx context.Context, theme string, result usage.Result) (bool, error)
}

// Deps are the collaborators driven by the loop
type Deps struct {
	Source    observer.Source
	Metadata  youtube.Fetcher
	Resolver  Resolver
	Ledger    Ledger
	Alerter   Alerter
	Sessions  storage.SessionLogStore
	Publisher analytics.Publisher
	Clock     clock.Clock
}

// Config holds loop configuration
type Config struct {
	PollInterval     time.Duration
	AbsenceTicks     int
	OutageTimeout    time.Duration
	SessionRetention time.Duration // zero keeps the session log forever
	PruneInterval    time.Duration

	// Heartbeat, when set, is called after every completed tick
	Heartbeat func()
}

// RunStats summarises one monitor run
type RunStats struct {
	StartedAt        time.Time
	VideosDetected   int
	SessionsRecorded int
	SessionsRejected int
	AlertsFired      int
	WatchedSeconds   float64
}

// activeSession is what the loop knows about the open session
type activeSession struct {
	VideoID string
	Theme   string
	Title   string
	Channel string
}

// Monitor owns the observer and drives the other components. All ledger
// mutations happen on the Run goroutine, in event order.
type Monitor struct {
	deps     Deps
	config   Config
	logger   zerolog.Logger
	observer *observer.Observer

	active    *activeSession
	lastPrune time.Time

	mu    sync.Mutex
	stats RunStats
}

// New creates a monitor
func New(deps Deps, config Config, logger zerolog.Logger) *Monitor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.PruneInterval <= 0 {
		config.PruneInterval = DefaultPruneInterval
	}
	if deps.Clock == nil {
		deps.Clock = clock.RealClock{}
	}
	if deps.Publisher == nil {
		deps.Publisher = analytics.Noop{}
	}

	logger = logger.With().Str("component", "monitor").Logger()
	return &Monitor{
		deps:   deps,
		config: config,
		logger: logger,
		observer: observer.New(deps.Source, observer.Config{
			AbsenceTicks:  config.AbsenceTicks,
			OutageTimeout: config.OutageTimeout,
		}, deps.Clock, logger),
	}
}

// Run polls until ctx is cancelled or a persistence failure makes further
// accounting unsafe. On cancellation the open session is recorded and the
// ledger flushed before Run returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	m.stats = RunStats{StartedAt: m.deps.Clock.Now()}
	m.mu.Unlock()

	m.logger.Info().
		Dur("poll_interval", m.config.PollInterval).
		Msg("Monitoring started")

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		if err := m.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			m.logger.Error().Err(err).Msg("Monitoring stopped on fatal error")
			return err
		}

		select {
		case <-ctx.Done():
			return m.shutdown(context.WithoutCancel(ctx))
		case <-ticker.C:
		}
	}
	return m.shutdown(context.WithoutCancel(ctx))
}

// Tick runs one synchronous pass: poll, then handle each event in order
func (m *Monitor) Tick(ctx context.Context) error {
	m.maybePrune(ctx)

	for _, ev := range m.observer.Tick(ctx) {
		if err := m.handle(ctx, ev); err != nil {
			return err
		}
	}

	if m.config.Heartbeat != nil {
		m.config.Heartbeat()
	}
	return nil
}

// Stats returns a copy of the run statistics
func (m *Monitor) Stats() RunStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Monitor) shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	for _, ev := range m.observer.Close(m.deps.Clock.Now()) {
		if err := m.handle(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.deps.Ledger.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush ledger: %w", err))
	}

	stats := m.Stats()
	m.logger.Info().
		Int("videos_detected", stats.VideosDetected).
		Int("sessions_recorded", stats.SessionsRecorded).
		Int("alerts_fired", stats.AlertsFired).
		Float64("watched_seconds", stats.WatchedSeconds).
		Msg("Monitoring stopped")

	return errors.Join(errs...)
}

func (m *Monitor) handle(ctx context.Context, ev observer.Event) error {
	switch ev := ev.(type) {
	case observer.SessionStarted:
		m.sessionStarted(ctx, ev)
		return nil
	case observer.SessionEnded:
		return m.sessionEnded(ctx, ev)
	default:
		return nil
	}
}

func (m *Monitor) sessionStarted(ctx context.Context, ev observer.SessionStarted) {
	m.mu.Lock()
	m.stats.VideosDetected++
	m.mu.Unlock()

	meta := m.fetchMetadata(ctx, ev.VideoID)
	name := m.deps.Resolver.Resolve(ctx, ev.VideoID, meta.Title, meta.Description)

	m.active = &activeSession{
		VideoID: ev.VideoID,
		Theme:   name,
		Title:   meta.Title,
		Channel: meta.Channel,
	}

	m.logger.Info().
		Str("video_id", ev.VideoID).
		Str("title", meta.Title).
		Str("channel", meta.Channel).
		Str("theme", name).
		Msg("Now watching")
}

func (m *Monitor) fetchMetadata(ctx context.Context, videoID string) youtube.Metadata {
	if m.deps.Metadata == nil {
		return youtube.Metadata{}
	}
	meta, err := m.deps.Metadata.Fetch(ctx, videoID)
	if err != nil {
		m.logger.Warn().Err(err).Str("video_id", videoID).Msg("Failed to fetch video metadata")
		return youtube.Metadata{}
	}
	return meta
}

func (m *Monitor) sessionEnded(ctx context.Context, ev observer.SessionEnded) error {
	session := m.active
	m.active = nil
	if session == nil || session.VideoID != ev.VideoID {
		session = &activeSession{
			VideoID: ev.VideoID,
			Theme:   m.deps.Resolver.Resolve(ctx, ev.VideoID, "", ""),
		}
	}

	seconds := ev.Duration.Seconds()
	result, err := m.deps.Ledger.RecordSession(ctx, session.Theme, seconds)
	if errors.Is(err, usage.ErrInvalidDuration) {
		m.mu.Lock()
		m.stats.SessionsRejected++
		m.mu.Unlock()
		m.logger.Warn().
			Err(err).
			Str("video_id", ev.VideoID).
			Str("theme", session.Theme).
			Msg("Session not recorded")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record session for %s: %w", session.Theme, err)
	}
	metrics.SessionsTotal.WithLabelValues(session.Theme).Inc()

	alerts, err := m.alert(ctx, session.Theme, result)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.stats.SessionsRecorded++
	m.stats.WatchedSeconds += seconds
	m.stats.AlertsFired += alerts
	m.mu.Unlock()

	m.logSession(ctx, storage.SessionRecord{
		ID:              ulid.MustNewDefault(ev.EndedAt).String(),
		VideoID:         ev.VideoID,
		Theme:           session.Theme,
		Title:           session.Title,
		Channel:         session.Channel,
		StartedAt:       ev.StartedAt,
		EndedAt:         ev.EndedAt,
		DurationSeconds: seconds,
	})
	return nil
}

// alert hands the theme result and then the total result to the Alerter
func (m *Monitor) alert(ctx context.Context, theme string, result usage.Result) (int, error) {
	fired := 0
	ok, err := m.deps.Alerter.MaybeAlert(ctx, theme, result)
	if err != nil {
		return fired, err
	}
	if ok {
		fired++
	}
	if result.Total == nil {
		return fired, nil
	}
	ok, err = m.deps.Alerter.MaybeAlert(ctx, label.Total, *result.Total)
	if err != nil {
		return fired, err
	}
	if ok {
		fired++
	}
	return fired, nil
}

// logSession appends to the session log and publishes analytics. Both are
// history only, so failures are logged and accounting carries on.
func (m *Monitor) logSession(ctx context.Context, record storage.SessionRecord) {
	if m.deps.Sessions != nil {
		if err := m.deps.Sessions.Append(ctx, record); err != nil {
			m.logger.Warn().Err(err).Str("session_id", record.ID).Msg("Failed to append session log")
		}
	}
	if err := m.deps.Publisher.Publish(ctx, record); err != nil {
		m.logger.Warn().Err(err).Str("session_id", record.ID).Msg("Failed to publish session")
	}
}

func (m *Monitor) maybePrune(ctx context.Context) {
	if m.deps.Sessions == nil || m.config.SessionRetention <= 0 {
		return
	}
	now := m.deps.Clock.Now()
	if !m.lastPrune.IsZero() && now.Sub(m.lastPrune) < m.config.PruneInterval {
		return
	}
	m.lastPrune = now

	removed, err := m.deps.Sessions.DeleteBefore(ctx, now.Add(-m.config.SessionRetention))
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to prune session log")
		return
	}
	if removed > 0 {
		m.logger.Info().Int("removed", removed).Msg("Pruned session log")
	}
}

var (
	_ Resolver = (*theme.Resolver)(nil)
	_ Ledger   = (*usage.Ledger)(nil)
	_ Alerter  = (*alert.Dispatcher)(nil)
)
