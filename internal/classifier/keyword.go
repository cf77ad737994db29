package classifier

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultKeywords is used when no keyword rules are configured.
var DefaultKeywords = map[string][]string{
	"baseball":   {"baseball", "mlb", "home run", "pitcher", "inning"},
	"basketball": {"basketball", "nba", "dunk", "three-pointer"},
	"football":   {"nfl", "touchdown", "quarterback", "super bowl"},
	"gaming":     {"gameplay", "minecraft", "fortnite", "let's play", "speedrun", "playthrough"},
	"news":       {"news", "breaking", "headlines", "report"},
	"music":      {"official video", "music video", "lyrics", "album", "concert"},
	"cooking":    {"recipe", "cooking", "kitchen", "bake"},
	"science":    {"science", "physics", "chemistry", "experiment"},
	"tech":       {"unboxing", "smartphone", "review", "tech"},
}

// Keyword matches configured keywords against the title and description.
// Themes are tried in name order and the first match wins.
type Keyword struct {
	themes []string
	rules  map[string][]string
}

// NewKeyword builds a keyword classifier. Keywords are case-folded.
func NewKeyword(rules map[string][]string) *Keyword {
	if len(rules) == 0 {
		rules = DefaultKeywords
	}

	fold := cases.Fold()
	k := &Keyword{rules: make(map[string][]string, len(rules))}
	for theme, words := range rules {
		theme = strings.TrimSpace(fold.String(theme))
		if theme == "" {
			continue
		}
		if _, seen := k.rules[theme]; !seen {
			k.themes = append(k.themes, theme)
			k.rules[theme] = nil
		}
		for _, w := range words {
			if w = strings.TrimSpace(fold.String(w)); w != "" {
				k.rules[theme] = append(k.rules[theme], w)
			}
		}
	}
	sort.Strings(k.themes)
	return k
}

// Classify returns the first theme with a keyword in the text.
func (k *Keyword) Classify(_ context.Context, title, description string) (string, error) {
	text := cases.Fold().String(title + "\n" + description)
	for _, theme := range k.themes {
		for _, w := range k.rules[theme] {
			if strings.Contains(text, w) {
				return theme, nil
			}
		}
	}
	return "", ErrUnparseable
}
