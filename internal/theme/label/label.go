// Package label normalizes theme labels. Configuration keys, resolver output
// and ledger accumulators all pass through Normalize so they agree.
package label

import (
	"strings"

	"golang.org/x/text/cases"
)

// Total is the accumulator key reserved for the all-themes budget. It can
// never be a theme.
const Total = "__total__"

// Normalize case-folds a label and collapses whitespace, so that "Sports",
// " sports " and "SPORTS" share one accumulator.
func Normalize(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}
