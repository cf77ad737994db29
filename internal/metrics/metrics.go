package metrics

import (
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Observer metrics
	PollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvbudget_polls_total",
			Help: "Total now-playing polls by outcome",
		},
		[]string{"outcome"}, // video, idle, error
	)

	PollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tvbudget_poll_duration_seconds",
			Help:    "Now-playing poll duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvbudget_sessions_total",
			Help: "Total closed viewing sessions",
		},
		[]string{"theme"},
	)

	ActiveSession = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tvbudget_active_session",
			Help: "1 while a video session is open",
		},
	)

	// Theme resolution metrics
	ThemeLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvbudget_theme_lookups_total",
			Help: "Theme resolutions by source",
		},
		[]string{"source"}, // memory, store, classifier, fallback
	)

	ClassifierDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tvbudget_classifier_duration_seconds",
			Help:    "Classifier call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"}, // ok, error
	)

	// Ledger metrics
	WatchSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tvbudget_watch_seconds",
			Help: "Cumulative watched seconds in the current period",
		},
		[]string{"theme"},
	)

	WatchSecondsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvbudget_watch_seconds_total",
			Help: "Total watched seconds recorded since start",
		},
		[]string{"theme"},
	)

	LimitCrossings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvbudget_limit_crossings_total",
			Help: "Total limit crossings",
		},
		[]string{"theme"},
	)

	RejectedSessions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tvbudget_rejected_sessions_total",
			Help: "Sessions rejected for an invalid duration",
		},
	)

	PersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tvbudget_persist_failures_total",
			Help: "Failed accumulator write attempts",
		},
	)

	// Alert metrics
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvbudget_alerts_total",
			Help: "Alerts by theme and outcome",
		},
		[]string{"theme", "outcome"}, // spoken, speech_failed, cooldown
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		PollsTotal,
		PollDuration,
		SessionsTotal,
		ActiveSession,
		ThemeLookups,
		ClassifierDuration,
		WatchSeconds,
		WatchSecondsTotal,
		LimitCrossings,
		RejectedSessions,
		PersistFailures,
		AlertsTotal,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Handler serves /metrics and /health
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			// Use systemd socket-activated listener
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			// Create and bind listener ourselves
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
