package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/tvbudget/internal/clock"
	"github.com/goodtune/tvbudget/internal/config"
	"github.com/goodtune/tvbudget/internal/theme/label"
	"github.com/spf13/cobra"
)

var resetTotal bool

var resetCmd = &cobra.Command{
	Use:   "reset [THEME...]",
	Short: "Zero watch time and re-arm alerts",
	Long: `Zero the watch-time accumulators for the given themes, or for every theme
and the total when none are given, and clear their alert state. Time removed
from a theme is also taken off the total. The monitor holds the same lock, so
stop it first.`,
	Example: `  tvbudget reset
  tvbudget reset baseball gaming
  tvbudget reset --total`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetTotal, "total", false, "Reset the total across all themes")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	themes, err := resetTargets(args, resetTotal)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.EnsureStateDirs(cfg); err != nil {
		return err
	}

	lock, err := acquireLock(cfg.Storage.LockPath)
	if err != nil {
		return fmt.Errorf("%w (is the monitor running?)", err)
	}
	defer lock.Unlock()

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

	reset, err := ledger.Reset(ctx, themes...)
	if err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}

	printResetResult(cmd.OutOrStdout(), themes, reset)
	return nil
}

// resetTargets normalizes the theme arguments. No arguments means every
// theme; arguments that all normalize to nothing are an error rather than
// a reset of everything.
func resetTargets(args []string, total bool) ([]string, error) {
	themes := make([]string, 0, len(args)+1)
	for _, arg := range args {
		t := label.Normalize(arg)
		if t == "" {
			continue
		}
		if t == label.Total {
			return nil, fmt.Errorf("%q is reserved, use --total", arg)
		}
		themes = append(themes, t)
	}
	if len(args) > 0 && len(themes) == 0 {
		return nil, fmt.Errorf("no valid theme names in %q", args)
	}
	if total {
		themes = append(themes, label.Total)
	}
	return themes, nil
}

func printResetResult(w io.Writer, requested, reset []string) {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow)

	if len(requested) == 0 {
		_, _ = green.Fprintln(w, "All themes reset")
		return
	}

	done := make(map[string]bool, len(reset))
	for _, t := range reset {
		done[t] = true
	}
	var names []string
	for _, t := range requested {
		if !done[t] {
			_, _ = yellow.Fprintf(w, "No watch time recorded for %s, nothing to reset\n", t)
			continue
		}
		if t == label.Total {
			t = "total"
		}
		names = append(names, t)
	}
	if len(names) > 0 {
		_, _ = green.Fprintf(w, "Reset: %s\n", strings.Join(names, ", "))
	}
}
