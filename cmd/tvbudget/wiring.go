package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gofrs/flock"
	"github.com/goodtune/tvbudget/internal/alert"
	"github.com/goodtune/tvbudget/internal/clock"
	"github.com/goodtune/tvbudget/internal/config"
	"github.com/goodtune/tvbudget/internal/storage"
	"github.com/goodtune/tvbudget/internal/storage/redis"
	"github.com/goodtune/tvbudget/internal/storage/sqlite"
	"github.com/goodtune/tvbudget/internal/usage"
	"github.com/rs/zerolog"
)

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "sqlite":
		s, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		s, err := redis.Open(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (must be sqlite or redis)", cfg.Type)
	}
}

// acquireLock takes the single-writer lock guarding the accumulator table
func acquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("another tvbudget process holds %s", path)
	}
	return lock, nil
}

func newLedger(ctx context.Context, cfg *config.Config, store storage.AccumulatorStore, clk clock.Clock, logger zerolog.Logger) (*usage.Ledger, error) {
	limits, err := config.ParseLimits(cfg.Ledger.Limits)
	if err != nil {
		return nil, err
	}
	total, err := config.ParseTotalLimit(cfg.Ledger.TotalLimit)
	if err != nil {
		return nil, err
	}
	period, err := usage.NewPeriod(cfg.Ledger.ResetCadence, cfg.Ledger.ResetTime, cfg.Ledger.WeekStart, cfg.Ledger.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger period: %w", err)
	}

	return usage.NewLedger(ctx, store, usage.Config{
		Limits:             limits,
		TotalLimit:         total,
		Period:             period,
		MaxSessionDuration: config.MustDuration(cfg.Ledger.MaxSessionDuration, usage.DefaultMaxSessionDuration),
		PersistRetries:     cfg.Ledger.PersistRetries,
		PersistBackoff:     usage.DefaultPersistBackoff,
	}, clk, logger)
}

// newSpeaker always prints the banner; the command backend also speaks it
func newSpeaker(cfg config.SpeechConfig) alert.Speaker {
	console := alert.ConsoleSpeaker{Out: os.Stdout}
	if strings.ToLower(cfg.Backend) == "console" {
		return console
	}
	return alert.Chain{
		console,
		alert.CommandSpeaker{
			Command: cfg.Command,
			Args:    cfg.Args,
			Timeout: config.MustDuration(cfg.Timeout, 0),
		},
	}
}
