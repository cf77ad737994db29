package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goodtune/tvbudget/internal/config"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tvbudget",
	Short: "tvbudget - per-theme YouTube watch-time budgets for a smart TV",
	Long: `tvbudget watches what a Samsung smart TV is playing, classifies each
YouTube video into a theme, keeps a running watch-time total per theme and
speaks an alert when a theme's budget for the day (or week) is used up.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to monitor command when no subcommand is provided
		return runMonitor(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/tvbudget/config.yaml", "Path to configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig, out *os.File) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = out
	switch strings.ToLower(cfg.Format) {
	case "text":
		w = zerolog.ConsoleWriter{Out: out}
	case "auto":
		if isTerminal(out) {
			w = zerolog.ConsoleWriter{Out: out}
		}
	}

	return zerolog.New(w).With().Timestamp().Logger()
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// quietLogger is used by one-shot commands that print their own output
func quietLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
}
