package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/tvbudget/internal/alert"
	"github.com/goodtune/tvbudget/internal/clock"
	"github.com/goodtune/tvbudget/internal/config"
	"github.com/goodtune/tvbudget/internal/storage"
	"github.com/goodtune/tvbudget/internal/usage"
	"github.com/spf13/cobra"
)

var statsHistory int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show watch time for the current period",
	Long:  `Show the watch time per theme for the current accounting period, with limits and alert state.`,
	Example: `  tvbudget stats
  tvbudget -c config.yaml stats --history 20`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsHistory, "history", 0, "Also show the last N viewing sessions")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	ledger, err := newLedger(ctx, cfg, store.Accumulators(), clock.RealClock{}, quietLogger())
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	out := cmd.OutOrStdout()
	printUsage(out, ledger.Snapshot(), ledger.Total(), ledger.Period(), time.Now())

	if statsHistory > 0 {
		records, err := store.Sessions().Recent(ctx, statsHistory)
		if err != nil {
			return fmt.Errorf("failed to read session log: %w", err)
		}
		printHistory(out, records)
	}
	return nil
}

func printUsage(w io.Writer, accs []storage.Accumulator, total storage.Accumulator, period usage.Period, now time.Time) {
	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Fprintln(w, "Watch time this period")
	start := period.CurrentPeriodStart(now)
	if !start.IsZero() {
		_, _ = fmt.Fprintf(w, "Period: %s since %s, next reset %s\n",
			period.Cadence, start.Format("Mon 2 Jan 15:04"), period.NextReset(now).Format("Mon 2 Jan 15:04"))
	}

	if len(accs) == 0 {
		_, _ = fmt.Fprintln(w, "No watch time recorded yet.")
		return
	}

	rows := make([][]string, 0, len(accs))
	for _, acc := range accs {
		rows = append(rows, []string{
			acc.Theme,
			alert.FormatDuration(acc.CumulativeSeconds),
			formatLimit(acc.LimitSeconds),
			formatPercent(acc),
			stateLabel(usage.StateOf(acc)),
		})
	}

	_, _ = fmt.Fprintln(w, renderTable(
		[]string{"Theme", "Watched", "Limit", "Used", "State"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
		[]string{
			"Total",
			alert.FormatDuration(total.CumulativeSeconds),
			formatLimit(total.LimitSeconds),
			formatPercent(total),
			stateLabel(usage.StateOf(total)),
		},
	))
}

func printHistory(w io.Writer, records []storage.SessionRecord) {
	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Fprintln(w, "\nRecent sessions")
	if len(records) == 0 {
		_, _ = fmt.Fprintln(w, "No sessions recorded yet.")
		return
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.EndedAt.Local().Format("2006-01-02 15:04"),
			r.Theme,
			alert.FormatDuration(r.DurationSeconds),
			r.VideoID,
			r.Title,
		})
	}
	_, _ = fmt.Fprintln(w, renderTable(
		[]string{"Ended", "Theme", "Duration", "Video", "Title"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
		nil,
	))
}

func formatLimit(limit *float64) string {
	if limit == nil {
		return "-"
	}
	return alert.FormatDuration(*limit)
}

func formatPercent(acc storage.Accumulator) string {
	if acc.LimitSeconds == nil || *acc.LimitSeconds <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", acc.CumulativeSeconds / *acc.LimitSeconds * 100)
}

func stateLabel(state usage.State) string {
	switch state {
	case usage.StateOver:
		return color.New(color.FgRed, color.Bold).Sprint(string(state))
	case usage.StateAlerted:
		return color.New(color.FgYellow, color.Bold).Sprint(string(state))
	case usage.StateUnder:
		return color.New(color.FgGreen).Sprint(string(state))
	default:
		return string(state)
	}
}
