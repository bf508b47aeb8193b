package abuse

import (
	"context"
	"regexp"
)

// screenRule maps a compiled pattern to its category and required action.
type screenRule struct {
	pattern *regexp.Regexp
	abuse   string
	action  Action
}

// Screener is a local keyword classifier used as a fast path in front of the
// external service. It only ever escalates; a miss here does not mean clean.
type Screener struct {
	rules []screenRule
}

// NewScreener returns a screener with the stock rule set.
func NewScreener() *Screener {
	return &Screener{
		rules: []screenRule{
			{
				pattern: regexp.MustCompile(`(?i)\b(kill you|hurt you|find you|watch your back)\b`),
				abuse:   TypeThreat,
				action:  ActionBlock,
			},
			{
				pattern: regexp.MustCompile(`(?i)\b(idiot|stupid|useless|bloody fool|nonsense)\b`),
				abuse:   TypeHarassment,
				action:  ActionMask,
			},
			{
				pattern: regexp.MustCompile(`(?i)(https?://\S+.*){3,}`),
				abuse:   TypeSpam,
				action:  ActionLog,
			},
		},
	}
}

// Classify checks the rule list in order and returns the first hit.
// It never errors.
func (s *Screener) Classify(_ context.Context, text string) (Result, error) {
	if s == nil {
		return Result{Action: ActionNone}, nil
	}
	for _, rule := range s.rules {
		if rule.pattern.MatchString(text) {
			return Result{IsAbusive: true, Type: rule.abuse, Action: rule.action}, nil
		}
	}
	return Result{Action: ActionNone}, nil
}
