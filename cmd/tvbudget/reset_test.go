package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goodtune/tvbudget/internal/theme/label"
)

func TestResetTargets(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		total   bool
		want    []string
		wantErr bool
	}{
		{"no args resets all", nil, false, []string{}, false},
		{"normalizes", []string{"Baseball", " Video  Games "}, false, []string{"baseball", "video games"}, false},
		{"skips blanks", []string{"news", " "}, false, []string{"news"}, false},
		{"only blanks is an error", []string{" ", ""}, false, nil, true},
		{"total flag", nil, true, []string{label.Total}, false},
		{"themes and total", []string{"news"}, true, []string{"news", label.Total}, false},
		{"reserved name", []string{"__TOTAL__"}, false, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resetTargets(tt.args, tt.total)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resetTargets() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("resetTargets() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintResetResult(t *testing.T) {
	var buf bytes.Buffer
	printResetResult(&buf, []string{"baseball", "curling", label.Total}, []string{"baseball", label.Total})
	out := buf.String()

	if !strings.Contains(out, "Reset: baseball, total") {
		t.Errorf("expected reset themes listed, got %q", out)
	}
	if !strings.Contains(out, "No watch time recorded for curling") {
		t.Errorf("expected a warning for the unknown theme, got %q", out)
	}
	if strings.Contains(out, "Reset: baseball, curling") {
		t.Errorf("unknown theme reported as reset: %q", out)
	}

	buf.Reset()
	printResetResult(&buf, nil, []string{"baseball"})
	if !strings.Contains(buf.String(), "All themes reset") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
