package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/tvbudget/internal/classifier"
	"github.com/goodtune/tvbudget/internal/config"
	"github.com/goodtune/tvbudget/internal/tv"
	"github.com/goodtune/tvbudget/internal/youtube"
	"github.com/spf13/cobra"
)

// probeVideoID is a long-lived public video used to test the API key
const probeVideoID = "dQw4w9WgXcQ"

var checkTimeout time.Duration

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check connections to the TV, YouTube and the classifier",
	Long:  `Probe every external service the monitor depends on and report which are reachable.`,
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 15*time.Second, "Overall timeout for the checks")
	rootCmd.AddCommand(checkCmd)
}

type checkResult struct {
	name   string
	detail string
	err    error
	skip   bool
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	results := []checkResult{
		checkTV(ctx, cfg.TV),
		checkYouTube(ctx, cfg.YouTube),
		checkClassifier(ctx, cfg.Classifier),
	}
	printCheckResults(cmd.OutOrStdout(), results)

	for _, r := range results {
		if r.err != nil {
			return errors.New("one or more checks failed")
		}
	}
	return nil
}

func checkTV(ctx context.Context, cfg config.TVConfig) checkResult {
	res := checkResult{name: "TV"}
	client, err := tv.NewClient(cfg)
	if err != nil {
		res.err = err
		return res
	}
	info, err := client.DeviceInfo(ctx)
	if err != nil {
		res.err = err
		return res
	}
	res.detail = fmt.Sprintf("%s (%s)", info.Name, info.Device.ModelName)

	videoID, err := client.CurrentVideo(ctx)
	switch {
	case err != nil:
		res.detail += ", status unavailable: " + err.Error()
	case videoID != "":
		res.detail += ", playing " + videoID
	default:
		res.detail += ", nothing playing"
	}
	return res
}

func checkYouTube(ctx context.Context, cfg config.YouTubeConfig) checkResult {
	res := checkResult{name: "YouTube API"}
	if cfg.APIKey == "" {
		res.skip = true
		res.detail = "no api key configured"
		return res
	}
	meta, err := youtube.NewClient(cfg).Fetch(ctx, probeVideoID)
	if err != nil {
		res.err = err
		return res
	}
	res.detail = fmt.Sprintf("fetched %q", meta.Title)
	return res
}

func checkClassifier(ctx context.Context, cfg config.ClassifierConfig) checkResult {
	res := checkResult{name: "Classifier"}
	cls, err := classifier.New(cfg, quietLogger())
	if err != nil {
		res.err = err
		return res
	}

	llm, ok := cls.(*classifier.LLM)
	if !ok {
		res.skip = true
		res.detail = fmt.Sprintf("%T needs no connection", cls)
		return res
	}
	if err := llm.HealthCheck(ctx); err != nil {
		res.err = err
		return res
	}
	res.detail = "model responded"
	return res
}

func printCheckResults(w io.Writer, results []checkResult) {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed, color.Bold)

	for _, r := range results {
		switch {
		case r.err != nil:
			_, _ = red.Fprintf(w, "✗ %-12s %v\n", r.name, r.err)
		case r.skip:
			_, _ = yellow.Fprintf(w, "- %-12s %s\n", r.name, r.detail)
		default:
			_, _ = green.Fprintf(w, "✓ %-12s %s\n", r.name, r.detail)
		}
	}
}
