package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/tvbudget/internal/alert"
	"github.com/goodtune/tvbudget/internal/analytics"
	"github.com/goodtune/tvbudget/internal/classifier"
	"github.com/goodtune/tvbudget/internal/clock"
	"github.com/goodtune/tvbudget/internal/config"
	"github.com/goodtune/tvbudget/internal/metrics"
	"github.com/goodtune/tvbudget/internal/monitor"
	"github.com/goodtune/tvbudget/internal/systemd"
	"github.com/goodtune/tvbudget/internal/theme"
	"github.com/goodtune/tvbudget/internal/tv"
	"github.com/goodtune/tvbudget/internal/youtube"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch the TV and enforce watch-time budgets",
	Long:  `Poll the TV for the playing YouTube video, account watch time per theme and alert when a budget is exceeded.`,
	RunE:  runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout).With().Str("run_id", uuid.NewString()).Logger()
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting tvbudget")

	if cfg.TV.Host == "" {
		return fmt.Errorf("tv.host is required to monitor")
	}
	if err := config.EnsureStateDirs(cfg); err != nil {
		return err
	}

	lock, err := acquireLock(cfg.Storage.LockPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn().Err(err).Msg("Failed to release lock")
		}
	}()

	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()
	logger.Info().Str("type", cfg.Storage.Type).Msg("Storage initialized")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.RealClock{}

	ledger, err := newLedger(ctx, cfg, store.Accumulators(), clk, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}

	cls, err := classifier.New(cfg.Classifier, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize classifier: %w", err)
	}

	resolver, err := theme.NewResolver(cls, store.ThemeCache(), theme.Config{
		TTL:       config.MustDuration(cfg.ThemeCache.TTL, 0),
		CacheSize: cfg.ThemeCache.Size,
	}, clk, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize theme resolver: %w", err)
	}

	dispatcher := alert.NewDispatcher(newSpeaker(cfg.Alert.Speech), ledger, alert.Config{
		Cooldown: config.MustDuration(cfg.Alert.Cooldown, alert.DefaultCooldown),
	}, clk, logger)

	source, err := tv.NewClient(cfg.TV)
	if err != nil {
		return fmt.Errorf("failed to initialize TV client: %w", err)
	}

	var metadata youtube.Fetcher
	if cfg.YouTube.APIKey != "" {
		metadata = youtube.NewClient(cfg.YouTube)
	} else {
		logger.Warn().Msg("No YouTube API key configured, videos will be classified without metadata")
	}

	publisher, err := analytics.New(cfg.Analytics.Kafka, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize analytics: %w", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close analytics publisher")
		}
	}()

	if cfg.Metrics.Enabled {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Metrics.BindAddress, cfg.Metrics.Port)
		metricsServer := metrics.NewServer(metricsAddr, logger)
		if sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start Metrics Server: %w", err)
		}
		defer func() {
			if err := metricsServer.Stop(); err != nil {
				logger.Error().Err(err).Msg("Error stopping Metrics Server")
			}
		}()
		logger.Info().Str("addr", metricsAddr).Msg("Metrics Server started")
	}

	mon := monitor.New(monitor.Deps{
		Source:    source,
		Metadata:  metadata,
		Resolver:  resolver,
		Ledger:    ledger,
		Alerter:   dispatcher,
		Sessions:  store.Sessions(),
		Publisher: publisher,
		Clock:     clk,
	}, monitor.Config{
		PollInterval:     config.MustDuration(cfg.TV.PollInterval, monitor.DefaultPollInterval),
		AbsenceTicks:     cfg.TV.AbsenceTicks,
		OutageTimeout:    config.MustDuration(cfg.TV.OutageTimeout, 0),
		SessionRetention: config.MustDuration(cfg.Storage.SessionRetention, 0),
		Heartbeat:        watchdogHeartbeat(),
	}, logger)

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}
	_ = systemd.NotifyStatus(fmt.Sprintf("Watching %s", cfg.TV.Host))

	runErr := mon.Run(ctx)

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	printSummary(os.Stdout, mon.Stats(), time.Now())
	return runErr
}

// watchdogHeartbeat pings the systemd watchdog from the polling loop, so a
// hung tick lets systemd restart the service.
func watchdogHeartbeat() func() {
	interval := systemd.WatchdogInterval()
	if interval <= 0 {
		return nil
	}
	var last time.Time
	return func() {
		if time.Since(last) < interval {
			return
		}
		_ = systemd.NotifyWatchdog()
		last = time.Now()
	}
}

func printSummary(w io.Writer, stats monitor.RunStats, now time.Time) {
	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Fprintln(w, "\nSession statistics")
	_, _ = fmt.Fprintf(w, "  Monitoring duration: %s\n", alert.FormatDuration(now.Sub(stats.StartedAt).Seconds()))
	_, _ = fmt.Fprintf(w, "  Videos detected:     %d\n", stats.VideosDetected)
	_, _ = fmt.Fprintf(w, "  Sessions recorded:   %d\n", stats.SessionsRecorded)
	_, _ = fmt.Fprintf(w, "  Watch time:          %s\n", alert.FormatDuration(stats.WatchedSeconds))
	_, _ = fmt.Fprintf(w, "  Alerts fired:        %d\n", stats.AlertsFired)
}
