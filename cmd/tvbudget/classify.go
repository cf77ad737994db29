package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/tvbudget/internal/classifier"
	"github.com/goodtune/tvbudget/internal/clock"
	"github.com/goodtune/tvbudget/internal/config"
	"github.com/goodtune/tvbudget/internal/theme"
	"github.com/goodtune/tvbudget/internal/theme/label"
	"github.com/goodtune/tvbudget/internal/youtube"
	"github.com/spf13/cobra"
)

var (
	classifyTitle       string
	classifyDescription string
	classifyVideoID     string
	classifyForget      string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Run the configured classifier once",
	Long: `Classify a title and description, or a YouTube video by id, without touching
the ledger or the theme cache.

With --forget, drop a video's cached theme instead so that it is classified
again the next time it plays. A running monitor keeps its in-memory copy
until it restarts.`,
	Example: `  tvbudget classify --title "Top 10 Home Runs" --description "Baseball highlights"
  tvbudget classify --video dQw4w9WgXcQ
  tvbudget classify --forget dQw4w9WgXcQ`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&classifyTitle, "title", "", "Video title")
	classifyCmd.Flags().StringVar(&classifyDescription, "description", "", "Video description")
	classifyCmd.Flags().StringVar(&classifyVideoID, "video", "", "YouTube video id to fetch metadata for")
	classifyCmd.Flags().StringVar(&classifyForget, "forget", "", "Drop the cached theme for this video id")
	classifyCmd.MarkFlagsOneRequired("title", "video", "forget")
	classifyCmd.MarkFlagsMutuallyExclusive("title", "forget")
	classifyCmd.MarkFlagsMutuallyExclusive("video", "forget")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if classifyForget != "" {
		return forgetTheme(ctx, cmd.OutOrStdout(), cfg, classifyForget)
	}

	title, description := classifyTitle, classifyDescription
	if classifyVideoID != "" {
		meta, err := youtube.NewClient(cfg.YouTube).Fetch(ctx, classifyVideoID)
		if err != nil {
			return fmt.Errorf("failed to fetch metadata: %w", err)
		}
		if meta.Empty() {
			return fmt.Errorf("video %s not found", classifyVideoID)
		}
		title, description = meta.Title, meta.Description
	}

	cls, err := classifier.New(cfg.Classifier, quietLogger())
	if err != nil {
		return err
	}

	name, err := cls.Classify(ctx, title, description)
	name = label.Normalize(name)
	out := cmd.OutOrStdout()
	if err != nil || name == "" {
		_, _ = color.New(color.FgYellow).Fprintf(out, "%s (classifier: %v)\n", theme.Unclassified, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Title: %s\n", title)
	_, _ = color.New(color.FgGreen, color.Bold).Fprintf(out, "Theme: %s\n", name)
	return nil
}

// forgetTheme evicts one video from the persistent theme cache
func forgetTheme(ctx context.Context, w io.Writer, cfg *config.Config, videoID string) error {
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	resolver, err := theme.NewResolver(classifier.Noop{}, store.ThemeCache(), theme.Config{}, clock.RealClock{}, quietLogger())
	if err != nil {
		return err
	}
	if err := resolver.Forget(ctx, videoID); err != nil {
		return fmt.Errorf("failed to forget %s: %w", videoID, err)
	}

	_, _ = color.New(color.FgGreen, color.Bold).Fprintf(w, "Forgot cached theme for %s\n", videoID)
	return nil
}
