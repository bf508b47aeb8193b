// Package abuse screens inbound messages and decides how the engine must
// react: block the turn, mask the stored text, or just log the flag.
package abuse

import (
	"context"
	"strings"
)

// Action is what the engine must do with a flagged message.
type Action string

const (
	ActionNone  Action = "none"
	ActionLog   Action = "log"
	ActionMask  Action = "mask"
	ActionBlock Action = "block"
)

// Known abuse categories.
const (
	TypeProfanity  = "profanity"
	TypeHarassment = "harassment"
	TypeThreat     = "threat"
	TypeSpam       = "spam"
)

// Result is the outcome of classifying one message.
type Result struct {
	IsAbusive bool
	Type      string
	Action    Action
}

// Classifier decides the severity of a raw message. Implementations may call
// external services; the engine treats classification failure as non-abusive
// (fail-open) rather than blocking legitimate users.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// MaskWords replaces every word with a fixed-width placeholder, preserving
// word count so the redacted transcript still reads as a message shape.
func MaskWords(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	masked := make([]string, len(fields))
	for i := range fields {
		masked[i] = "****"
	}
	return strings.Join(masked, " ")
}

// BlockedPlaceholder is the stored display text for blocked messages. The
// original text never appears in the redacted view.
const BlockedPlaceholder = "[Blocked]"
