package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/tvbudget/internal/clock"
	"github.com/goodtune/tvbudget/internal/metrics"
	"github.com/goodtune/tvbudget/internal/usage"
	"github.com/rs/zerolog"
)

// DefaultCooldown is the minimum gap between two alerts for one theme
const DefaultCooldown = 10 * time.Minute

// Marker records that an alert fired. The Ledger implements it.
type Marker interface {
	MarkAlerted(ctx context.Context, theme string, at time.Time) error
}

// Config holds dispatcher configuration
type Config struct {
	Cooldown time.Duration
}

// Dispatcher turns fresh limit crossings into spoken alerts
type Dispatcher struct {
	speaker  Speaker
	marker   Marker
	cooldown time.Duration
	clock    clock.Clock
	logger   zerolog.Logger
}

// NewDispatcher creates an alert dispatcher
func NewDispatcher(speaker Speaker, marker Marker, config Config, clk clock.Clock, logger zerolog.Logger) *Dispatcher {
	if config.Cooldown < 0 {
		config.Cooldown = 0
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Dispatcher{
		speaker:  speaker,
		marker:   marker,
		cooldown: config.Cooldown,
		clock:    clk,
		logger:   logger.With().Str("component", "alert").Logger(),
	}
}

// MaybeAlert fires when result is a fresh crossing and the theme is out of
// its cooldown. Speech failures are logged and still count as delivered.
// The returned error is non-nil only when the alert time could not be
// persisted.
func (d *Dispatcher) MaybeAlert(ctx context.Context, theme string, result usage.Result) (bool, error) {
	if !result.FreshCrossing || result.LimitSeconds == nil {
		return false, nil
	}

	now := d.clock.Now()
	if result.LastAlertAt != nil && now.Sub(*result.LastAlertAt) < d.cooldown {
		metrics.AlertsTotal.WithLabelValues(theme, "cooldown").Inc()
		d.logger.Info().
			Str("theme", theme).
			Time("last_alert_at", *result.LastAlertAt).
			Dur("cooldown", d.cooldown).
			Msg("Limit crossed during cooldown, alert suppressed")
		return false, nil
	}

	text := Message(theme, *result.LimitSeconds)
	d.logger.Warn().
		Str("theme", theme).
		Float64("cumulative_seconds", result.CumulativeSeconds).
		Float64("limit_seconds", *result.LimitSeconds).
		Msg(text)

	if err := d.speaker.Speak(ctx, text); err != nil {
		metrics.AlertsTotal.WithLabelValues(theme, "speech_failed").Inc()
		d.logger.Error().Err(err).Str("theme", theme).Msg("Speech output failed")
	} else {
		metrics.AlertsTotal.WithLabelValues(theme, "spoken").Inc()
	}

	if err := d.marker.MarkAlerted(ctx, theme, now); err != nil {
		return true, fmt.Errorf("failed to record alert for %s: %w", theme, err)
	}
	return true, nil
}
