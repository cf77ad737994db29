package alert

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/tvbudget/internal/clock"
	"github.com/goodtune/tvbudget/internal/storage"
	"github.com/goodtune/tvbudget/internal/theme/label"
	"github.com/goodtune/tvbudget/internal/usage"
	"github.com/rs/zerolog"
)

type recordingSpeaker struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (s *recordingSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return s.err
}

type recordingMarker struct {
	marks map[string]time.Time
	err   error
}

func (m *recordingMarker) MarkAlerted(_ context.Context, theme string, at time.Time) error {
	if m.err != nil {
		return m.err
	}
	if m.marks == nil {
		m.marks = map[string]time.Time{}
	}
	m.marks[theme] = at
	return nil
}

func limit(v float64) *float64 { return &v }

func TestMaybeAlert(t *testing.T) {
	now := time.Date(2024, 6, 12, 18, 0, 0, 0, time.UTC)
	recent := now.Add(-2 * time.Minute)
	old := now.Add(-time.Hour)

	tests := []struct {
		name   string
		result usage.Result
		want   bool
	}{
		{"fresh crossing fires", usage.Result{FreshCrossing: true, LimitSeconds: limit(1800), CumulativeSeconds: 1900}, true},
		{"not fresh", usage.Result{FreshCrossing: false, LimitSeconds: limit(1800), CumulativeSeconds: 2000}, false},
		{"no limit", usage.Result{FreshCrossing: true}, false},
		{"inside cooldown", usage.Result{FreshCrossing: true, LimitSeconds: limit(60), LastAlertAt: &recent}, false},
		{"cooldown elapsed", usage.Result{FreshCrossing: true, LimitSeconds: limit(60), LastAlertAt: &old}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			speaker := &recordingSpeaker{}
			marker := &recordingMarker{}
			d := NewDispatcher(speaker, marker, Config{Cooldown: 10 * time.Minute}, clock.NewTestClock(now), zerolog.Nop())

			fired, err := d.MaybeAlert(context.Background(), "baseball", tt.result)
			if err != nil {
				t.Fatalf("MaybeAlert returned error: %v", err)
			}
			if fired != tt.want {
				t.Fatalf("MaybeAlert() = %v, want %v", fired, tt.want)
			}
			if tt.want {
				if len(speaker.texts) != 1 || !strings.Contains(speaker.texts[0], "baseball") {
					t.Errorf("unexpected speech %v", speaker.texts)
				}
				if at, ok := marker.marks["baseball"]; !ok || !at.Equal(now) {
					t.Errorf("expected alert marked at %v, got %v", now, marker.marks)
				}
			} else if len(speaker.texts) != 0 || len(marker.marks) != 0 {
				t.Errorf("expected no side effects, got speech %v marks %v", speaker.texts, marker.marks)
			}
		})
	}
}

func TestMaybeAlertSpeechFailureStillMarks(t *testing.T) {
	speaker := &recordingSpeaker{err: errors.New("no audio device")}
	marker := &recordingMarker{}
	d := NewDispatcher(speaker, marker, Config{}, clock.NewTestClock(time.Now()), zerolog.Nop())

	fired, err := d.MaybeAlert(context.Background(), "news", usage.Result{FreshCrossing: true, LimitSeconds: limit(1200)})
	if err != nil {
		t.Fatalf("speech failure must not surface: %v", err)
	}
	if !fired {
		t.Fatal("expected alert to count as delivered")
	}
	if _, ok := marker.marks["news"]; !ok {
		t.Error("expected alert time recorded despite speech failure")
	}
}

func TestMaybeAlertMarkFailureSurfaces(t *testing.T) {
	marker := &recordingMarker{err: usage.ErrPersist}
	d := NewDispatcher(&recordingSpeaker{}, marker, Config{}, clock.NewTestClock(time.Now()), zerolog.Nop())

	_, err := d.MaybeAlert(context.Background(), "news", usage.Result{FreshCrossing: true, LimitSeconds: limit(1)})
	if !errors.Is(err, usage.ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
}

// ledgerStore keeps the accumulator table in memory for end-to-end tests
type ledgerStore struct{ table []storage.Accumulator }

func (s *ledgerStore) Load(context.Context) ([]storage.Accumulator, error) {
	return storage.CloneAccumulators(s.table), nil
}

func (s *ledgerStore) Replace(_ context.Context, accs []storage.Accumulator) error {
	s.table = storage.CloneAccumulators(accs)
	return nil
}

func TestLedgerAndDispatcherFireOncePerPeriod(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewTestClock(time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC))
	period, err := usage.NewPeriod("daily", "00:00", "monday", "UTC")
	if err != nil {
		t.Fatalf("NewPeriod failed: %v", err)
	}
	ledger, err := usage.NewLedger(ctx, &ledgerStore{}, usage.Config{
		Limits: map[string]float64{"baseball": 1800},
		Period: period,
	}, clk, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLedger failed: %v", err)
	}

	speaker := &recordingSpeaker{}
	d := NewDispatcher(speaker, ledger, Config{Cooldown: 10 * time.Minute}, clk, zerolog.Nop())

	for _, secs := range []float64{1000, 900, 100, 300} {
		clk.Advance(time.Minute)
		res, err := ledger.RecordSession(ctx, "baseball", secs)
		if err != nil {
			t.Fatalf("RecordSession failed: %v", err)
		}
		if _, err := d.MaybeAlert(ctx, "baseball", res); err != nil {
			t.Fatalf("MaybeAlert failed: %v", err)
		}
	}
	if len(speaker.texts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(speaker.texts))
	}

	// Next day the theme can cross again
	clk.Advance(24 * time.Hour)
	res, err := ledger.RecordSession(ctx, "baseball", 1800)
	if err != nil {
		t.Fatalf("RecordSession failed: %v", err)
	}
	if fired, _ := d.MaybeAlert(ctx, "baseball", res); !fired {
		t.Error("expected a fresh alert after the period reset")
	}
	if len(speaker.texts) != 2 {
		t.Errorf("expected two alerts in total, got %d", len(speaker.texts))
	}
}

func TestLedgerAndDispatcherTotalBudget(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewTestClock(time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC))
	period, err := usage.NewPeriod("daily", "00:00", "monday", "UTC")
	if err != nil {
		t.Fatalf("NewPeriod failed: %v", err)
	}
	ledger, err := usage.NewLedger(ctx, &ledgerStore{}, usage.Config{
		TotalLimit: 3600,
		Period:     period,
	}, clk, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLedger failed: %v", err)
	}

	speaker := &recordingSpeaker{}
	d := NewDispatcher(speaker, ledger, Config{Cooldown: 10 * time.Minute}, clk, zerolog.Nop())

	sessions := []struct {
		theme   string
		seconds float64
	}{
		{"news", 1800},
		{"gaming", 1500},
		{"music", 600}, // total crosses 3600 here
		{"news", 300},
	}
	for _, s := range sessions {
		clk.Advance(time.Minute)
		res, err := ledger.RecordSession(ctx, s.theme, s.seconds)
		if err != nil {
			t.Fatalf("RecordSession failed: %v", err)
		}
		if _, err := d.MaybeAlert(ctx, s.theme, res); err != nil {
			t.Fatalf("MaybeAlert failed: %v", err)
		}
		if _, err := d.MaybeAlert(ctx, label.Total, *res.Total); err != nil {
			t.Fatalf("MaybeAlert total failed: %v", err)
		}
	}

	if len(speaker.texts) != 1 {
		t.Fatalf("expected exactly one alert, got %v", speaker.texts)
	}
	if !strings.Contains(speaker.texts[0], "total watch time limit of 1h 0m 0s") {
		t.Errorf("unexpected alert text %q", speaker.texts[0])
	}
	if total := ledger.Total(); total.LastAlertAt == nil {
		t.Error("expected the total alert to be recorded")
	}
}

func TestConsoleSpeaker(t *testing.T) {
	var buf bytes.Buffer
	if err := (ConsoleSpeaker{Out: &buf}).Speak(context.Background(), "Alert! test"); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Alert! test") || !strings.Contains(buf.String(), strings.Repeat("!", 50)) {
		t.Errorf("unexpected banner %q", buf.String())
	}
}

func TestCommandSpeaker(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	if err := (CommandSpeaker{Command: "true", Args: []string{"-s", "150"}}).Speak(context.Background(), "hello"); err != nil {
		t.Errorf("Speak failed: %v", err)
	}
	if err := (CommandSpeaker{Command: "tvbudget-no-such-tts"}).Speak(context.Background(), "hello"); err == nil {
		t.Error("expected error for missing command")
	}
	if err := (CommandSpeaker{}).Speak(context.Background(), "hello"); err == nil {
		t.Error("expected error without command")
	}
}

func TestChainReportsAllFailures(t *testing.T) {
	first := &recordingSpeaker{err: errors.New("first")}
	second := &recordingSpeaker{}
	err := Chain{first, second}.Speak(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "first") {
		t.Fatalf("expected first failure, got %v", err)
	}
	if len(second.texts) != 1 {
		t.Error("expected second speaker to run after a failure")
	}
}
