package alert

import (
	"fmt"
	"math"

	"github.com/goodtune/tvbudget/internal/theme/label"
)

// FormatDuration renders seconds as "1h 2m 3s", "2m 3s" or "3s".
// Fractional seconds are truncated.
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// Message is the spoken alert text for a theme over its limit.
func Message(theme string, limitSeconds float64) string {
	if theme == label.Total {
		return TotalMessage(limitSeconds)
	}
	return fmt.Sprintf("Alert! You have exceeded your %s watch time limit for %s videos!",
		FormatDuration(limitSeconds), theme)
}

// TotalMessage is the spoken alert text when all viewing together is over
// the total limit.
func TotalMessage(limitSeconds float64) string {
	return fmt.Sprintf("Alert! You have exceeded your total watch time limit of %s!",
		FormatDuration(limitSeconds))
}
