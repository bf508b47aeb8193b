package patterns

import (
	"sort"
	"strings"

	"github.com/smritistudio/chat-engine/internal/language"
)

// StaticMatchConfidence is the base score a static keyword match grants.
const StaticMatchConfidence = 0.9

// Match is the outcome of scoring one message against the table.
// A total non-match has empty Intent and zero Confidence; Match never errors.
type Match struct {
	Intent         string
	Confidence     float64
	MatchedKeyword string
	IsLearned      bool
}

// Matcher scores normalized messages against a pattern table.
type Matcher struct {
	table *Table
}

// NewMatcher creates a matcher over the given table.
func NewMatcher(table *Table) *Matcher {
	if table == nil {
		panic("patterns: table cannot be nil")
	}
	return &Matcher{table: table}
}

// Normalize lowercases and trims text, then applies auto-correct and synonym
// substitution. Substitution is a case-insensitive whole-message replace, not
// a tokenized rewrite. Replacements run longest key first so an entry like
// "snaps" wins over "snap" regardless of map order.
func (m *Matcher) Normalize(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, typo := range sortedKeys(m.table.AutoCorrect) {
		normalized = strings.ReplaceAll(normalized, strings.ToLower(typo), strings.ToLower(m.table.AutoCorrect[typo]))
	}
	for _, word := range sortedKeys(m.table.Synonyms) {
		normalized = strings.ReplaceAll(normalized, strings.ToLower(word), strings.ToLower(m.table.Synonyms[word]))
	}
	return normalized
}

// sortedKeys orders substitution keys longest first, ties broken
// lexicographically, so replacement order does not depend on map iteration.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Match normalizes text and returns the highest-confidence intent candidate.
// Candidate keywords for each intent are the union of that intent's English
// list, the detected language's list, and the declared language's list.
// Matching is exact substring containment; short keywords can over-match and
// callers are expected to tolerate that. Ties between a static and a learned
// match prefer the static entry.
func (m *Matcher) Match(text string, detected, declared language.Language) Match {
	normalized := m.Normalize(text)
	if normalized == "" {
		return Match{}
	}

	best := Match{}

	// Intents are scanned in name order so equal-confidence matches are
	// deterministic.
	names := make([]string, 0, len(m.table.Intents))
	for name := range m.table.Intents {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		intent := m.table.Intents[name]
		for _, kw := range candidateKeywords(intent, detected, declared) {
			if kw == "" {
				continue
			}
			if strings.Contains(normalized, strings.ToLower(kw)) && StaticMatchConfidence > best.Confidence {
				best = Match{
					Intent:         name,
					Confidence:     StaticMatchConfidence,
					MatchedKeyword: kw,
				}
			}
		}
	}

	for _, learned := range m.table.LearnedKeywords {
		if learned.Word == "" {
			continue
		}
		if strings.Contains(normalized, strings.ToLower(learned.Word)) && learned.Score > best.Confidence {
			best = Match{
				Intent:         learned.Intent,
				Confidence:     learned.Score,
				MatchedKeyword: learned.Word,
				IsLearned:      true,
			}
		}
	}

	return best
}

// candidateKeywords unions the English, detected, and declared keyword lists,
// deduplicated, preserving list order.
func candidateKeywords(intent Intent, detected, declared language.Language) []string {
	seen := make(map[string]struct{})
	var out []string
	appendList := func(lang language.Language) {
		for _, kw := range intent.KeywordsByLanguage[lang] {
			key := strings.ToLower(kw)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, kw)
		}
	}
	appendList(language.English)
	appendList(detected)
	appendList(declared)
	return out
}
