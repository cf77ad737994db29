package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Speaker delivers alert text to the viewer.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// CommandSpeaker runs a text-to-speech program with the text as its final
// argument, e.g. espeak -s 150 "...".
type CommandSpeaker struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// Speak runs the command and waits for it to finish.
func (s CommandSpeaker) Speak(ctx context.Context, text string) error {
	if s.Command == "" {
		return errors.New("speech: no command configured")
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, s.Args...), text)
	cmd := exec.CommandContext(ctx, s.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("speech: %s: %w: %s", s.Command, err, msg)
		}
		return fmt.Errorf("speech: %s: %w", s.Command, err)
	}
	return nil
}

// ConsoleSpeaker prints the alert as a highlighted banner.
type ConsoleSpeaker struct {
	Out io.Writer
}

// Speak writes the banner.
func (s ConsoleSpeaker) Speak(_ context.Context, text string) error {
	out := s.Out
	if out == nil {
		out = os.Stdout
	}
	bar := strings.Repeat("!", 50)
	red := color.New(color.FgRed, color.Bold)
	_, err := red.Fprintf(out, "\n%s\n%s\n%s\n\n", bar, text, bar)
	return err
}

// Chain speaks through each speaker in order and returns every failure.
type Chain []Speaker

// Speak calls every speaker even if an earlier one fails.
func (c Chain) Speak(ctx context.Context, text string) error {
	var errs []error
	for _, s := range c {
		if err := s.Speak(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
