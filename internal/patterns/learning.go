package patterns

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MaxPendingPatterns bounds the candidate table. Once full, new words are
	// dropped outright rather than merged; the table is a bounded sample of
	// traffic, not a complete record.
	MaxPendingPatterns = 100

	// maxContextsPerPattern caps the surrounding-text samples kept per word.
	maxContextsPerPattern = 5

	// maxContextLen truncates each stored context snippet, counted in runes
	// so multi-byte scripts are not cut mid-character.
	maxContextLen = 120

	// minWordLength filters out short stopword-ish tokens during intake,
	// counted in runes so Devanagari and Gujarati words are measured the
	// same as Latin ones.
	minWordLength = 4

	newPatternConfidence = 0.5
	manualApproveScore   = 0.9
)

// PromotionPolicy carries the thresholds for the auto-promotion pass.
type PromotionPolicy struct {
	MinOccurrences int
	MinConfidence  float64
}

// DefaultPromotionPolicy matches the stock auto-approval thresholds.
func DefaultPromotionPolicy() PromotionPolicy {
	return PromotionPolicy{MinOccurrences: 20, MinConfidence: 0.9}
}

// RecordUnrecognized feeds a message the matcher could not classify into the
// pending-pattern table. Words already pending get their occurrence count
// bumped and a context sample appended; new words are inserted only while the
// table has room. Returns the number of pending entries touched or created.
func (t *Table) RecordUnrecognized(message, suggestedIntent string, now time.Time) int {
	touched := 0
	snippet := contextSnippet(message)

	for _, word := range intakeWords(message) {
		if existing := t.FindPending(word); existing != nil {
			existing.Occurrences++
			existing.LastSeen = now
			if existing.SuggestedIntent == "" {
				existing.SuggestedIntent = suggestedIntent
			}
			appendContext(existing, snippet)
			touched++
			continue
		}

		if len(t.PendingPatterns) >= MaxPendingPatterns {
			// Capacity backpressure: silently drop, not an error.
			continue
		}

		t.PendingPatterns = append(t.PendingPatterns, PendingPattern{
			ID:              uuid.NewString(),
			Word:            word,
			SuggestedIntent: suggestedIntent,
			Occurrences:     1,
			Contexts:        []string{snippet},
			FirstSeen:       now,
			LastSeen:        now,
			Status:          PendingStatusPending,
			Confidence:      newPatternConfidence,
		})
		touched++
	}
	return touched
}

// Promote moves every pending pattern that crosses the policy thresholds into
// the learned keyword table with AddedBy=auto, and returns how many moved.
// Entries below threshold are left pending for manual review.
func (t *Table) Promote(policy PromotionPolicy, now time.Time) int {
	promoted := 0
	for i := 0; i < len(t.PendingPatterns); {
		p := t.PendingPatterns[i]
		if p.Status == PendingStatusPending &&
			p.Occurrences >= policy.MinOccurrences &&
			p.Confidence >= policy.MinConfidence {
			t.LearnedKeywords = append(t.LearnedKeywords, LearnedKeyword{
				Word:    p.Word,
				Intent:  p.SuggestedIntent,
				Score:   p.Confidence,
				AddedOn: now,
				AddedBy: AddedByAuto,
			})
			t.removePending(i)
			promoted++
			continue
		}
		i++
	}
	return promoted
}

// Approve promotes a pending pattern under an admin-chosen intent, which
// overrides the suggestion. Returns false when the ID is unknown.
func (t *Table) Approve(id, intent string, now time.Time) bool {
	for i := range t.PendingPatterns {
		if t.PendingPatterns[i].ID != id {
			continue
		}
		t.LearnedKeywords = append(t.LearnedKeywords, LearnedKeyword{
			Word:    t.PendingPatterns[i].Word,
			Intent:  intent,
			Score:   manualApproveScore,
			AddedOn: now,
			AddedBy: AddedByAdmin,
		})
		t.removePending(i)
		return true
	}
	return false
}

// Reject deletes a pending pattern outright, keeping no record.
// Returns false when the ID is unknown.
func (t *Table) Reject(id string) bool {
	for i := range t.PendingPatterns {
		if t.PendingPatterns[i].ID == id {
			t.removePending(i)
			return true
		}
	}
	return false
}

// intakeWords tokenizes a message into deduplicated lowercase words longer
// than the minimum length.
func intakeWords(message string) []string {
	fields := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', ',', '.', '?', '!', ';', ':', '"', '\'', '(', ')':
			return true
		}
		return false
	})

	seen := make(map[string]struct{})
	var words []string
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minWordLength {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		words = append(words, f)
	}
	return words
}

func contextSnippet(message string) string {
	s := strings.TrimSpace(message)
	if utf8.RuneCountInString(s) > maxContextLen {
		s = string([]rune(s)[:maxContextLen])
	}
	return s
}

func appendContext(p *PendingPattern, snippet string) {
	if snippet == "" || len(p.Contexts) >= maxContextsPerPattern {
		return
	}
	for _, existing := range p.Contexts {
		if existing == snippet {
			return
		}
	}
	p.Contexts = append(p.Contexts, snippet)
}
