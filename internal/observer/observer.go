// Package observer turns periodic now-playing polls into discrete viewing
// session events.
package observer

import (
	"context"
	"time"

	"github.com/goodtune/tvbudget/internal/clock"
	"github.com/goodtune/tvbudget/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultAbsenceTicks is used when Config.AbsenceTicks is unset
const DefaultAbsenceTicks = 3

// Source reports the video currently playing. An empty id means nothing is
// playing; an error means the answer is unknown.
type Source interface {
	CurrentVideo(ctx context.Context) (string, error)
}

// Config holds observer configuration
type Config struct {
	// AbsenceTicks is the number of consecutive "nothing playing"
	// observations that end a session.
	AbsenceTicks int

	// OutageTimeout ends a session once polls have failed for this long.
	// Zero keeps the session open until the TV answers again.
	OutageTimeout time.Duration
}

// Event is emitted when a session starts or ends
type Event interface {
	isEvent()
}

// SessionStarted marks a newly observed video
type SessionStarted struct {
	VideoID string
	At      time.Time
}

// SessionEnded closes a session. EndedAt is never before StartedAt.
type SessionEnded struct {
	VideoID   string
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
}

func (SessionStarted) isEvent() {}
func (SessionEnded) isEvent() {}

// Observer tracks the active session across polls. It is not safe for
// concurrent use; the monitor loop owns it.
type Observer struct {
	source Source
	config Config
	clock  clock.Clock
	logger zerolog.Logger

	current   string
	startedAt time.Time
	lastSeen  time.Time

	absentTicks  int
	absentSince  time.Time
	failingSince time.Time
}

// New creates an observer polling source
func New(source Source, config Config, clk clock.Clock, logger zerolog.Logger) *Observer {
	if config.AbsenceTicks <= 0 {
		config.AbsenceTicks = DefaultAbsenceTicks
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Observer{
		source: source,
		config: config,
		clock:  clk,
		logger: logger.With().Str("component", "observer").Logger(),
	}
}

// session returns the open session's video id and start time, if any
func (o *Observer) session() (string, time.Time, bool) {
	return o.current, o.startedAt, o.current != ""
}

// Tick polls the source once and returns the resulting events in order
func (o *Observer) Tick(ctx context.Context) []Event {
	pollStart := time.Now()
	id, err := o.source.CurrentVideo(ctx)
	metrics.PollDuration.Observe(time.Since(pollStart).Seconds())
	now := o.clock.Now()

	if err != nil {
		metrics.PollsTotal.WithLabelValues("error").Inc()
		return o.handleFailure(now, err)
	}
	o.failingSince = time.Time{}

	if id == "" {
		metrics.PollsTotal.WithLabelValues("idle").Inc()
		return o.handleAbsence(now)
	}
	metrics.PollsTotal.WithLabelValues("video").Inc()

	if id == o.current {
		o.absentTicks = 0
		o.lastSeen = now
		return nil
	}

	var events []Event
	if o.current != "" {
		end := now
		if o.absentTicks > 0 {
			end = o.absentSince
		}
		events = append(events, o.end(end))
	}
	return append(events, o.start(id, now))
}

// Close ends the open session, if any. Used on shutdown.
func (o *Observer) Close(now time.Time) []Event {
	if o.current == "" {
		return nil
	}
	end := now
	if o.absentTicks > 0 {
		end = o.absentSince
	}
	return []Event{o.end(end)}
}

func (o *Observer) handleFailure(now time.Time, err error) []Event {
	if o.failingSince.IsZero() {
		o.failingSince = now
	}
	o.logger.Warn().
		Err(err).
		Str("video_id", o.current).
		Dur("failing_for", now.Sub(o.failingSince)).
		Msg("Now-playing poll failed, keeping last known video")

	if o.current == "" || o.config.OutageTimeout <= 0 {
		return nil
	}
	if now.Sub(o.lastSeen) < o.config.OutageTimeout {
		return nil
	}

	o.logger.Info().
		Str("video_id", o.current).
		Time("last_seen", o.lastSeen).
		Msg("Now-playing source unavailable too long, ending session")
	return []Event{o.end(o.lastSeen)}
}

func (o *Observer) handleAbsence(now time.Time) []Event {
	if o.current == "" {
		return nil
	}
	o.absentTicks++
	if o.absentTicks == 1 {
		o.absentSince = now
	}
	if o.absentTicks < o.config.AbsenceTicks {
		return nil
	}
	return []Event{o.end(o.absentSince)}
}

func (o *Observer) start(id string, now time.Time) SessionStarted {
	o.current = id
	o.startedAt = now
	o.lastSeen = now
	o.absentTicks = 0
	o.absentSince = time.Time{}
	metrics.ActiveSession.Set(1)

	o.logger.Info().Str("video_id", id).Msg("Video session started")
	return SessionStarted{VideoID: id, At: now}
}

func (o *Observer) end(at time.Time) SessionEnded {
	if at.Before(o.startedAt) {
		at = o.startedAt
	}
	ev := SessionEnded{
		VideoID:   o.current,
		StartedAt: o.startedAt,
		EndedAt:   at,
		Duration:  at.Sub(o.startedAt),
	}

	o.current = ""
	o.startedAt = time.Time{}
	o.lastSeen = time.Time{}
	o.absentTicks = 0
	o.absentSince = time.Time{}
	metrics.ActiveSession.Set(0)

	o.logger.Info().
		Str("video_id", ev.VideoID).
		Float64("duration_seconds", ev.Duration.Seconds()).
		Msg("Video session ended")
	return ev
}
