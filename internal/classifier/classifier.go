// Package classifier assigns a one-word theme label to a video from its
// title and description.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goodtune/tvbudget/internal/config"
	"github.com/rs/zerolog"
)

// ErrUnparseable is returned when a backend produced no usable label.
var ErrUnparseable = errors.New("classifier: no usable theme label")

// Classifier maps video metadata to a theme label.
type Classifier interface {
	Classify(ctx context.Context, title, description string) (string, error)
}

// New builds the configured backend. The llm backend falls back to keyword
// rules when no API key is set.
func New(cfg config.ClassifierConfig, logger zerolog.Logger) (Classifier, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "llm" && strings.TrimSpace(cfg.APIKey) == "" {
		logger.Warn().Msg("No classifier API key configured, falling back to keyword rules")
		backend = "keyword"
	}

	switch backend {
	case "llm":
		return NewLLM(LLMConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: config.MustDuration(cfg.Timeout, defaultHTTPTimeout),
		}, WithRetryMaxAttempts(cfg.RetryAttempts)), nil
	case "keyword":
		return NewKeyword(cfg.Keywords), nil
	case "noop":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Backend)
	}
}

// Noop never classifies anything.
type Noop struct{}

// Classify always fails with ErrUnparseable.
func (Noop) Classify(context.Context, string, string) (string, error) {
	return "", ErrUnparseable
}

// truncateRunes shortens s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

const defaultHTTPTimeout = 10 * time.Second
