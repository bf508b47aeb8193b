package patterns

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordUnrecognizedInsertsNewWords(t *testing.T) {
	table := DefaultTable()
	now := time.Now()

	touched := table.RecordUnrecognized("do you cover destination receptions", IntentBooking, now)

	assert.Equal(t, 3, touched) // cover, destination, receptions (len > 3)
	require.Len(t, table.PendingPatterns, 3)

	p := table.FindPending("destination")
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Occurrences)
	assert.Equal(t, IntentBooking, p.SuggestedIntent)
	assert.Equal(t, PendingStatusPending, p.Status)
	assert.InDelta(t, 0.5, p.Confidence, 1e-9)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, now, p.FirstSeen)
}

func TestRecordUnrecognizedSkipsShortWords(t *testing.T) {
	table := DefaultTable()
	table.RecordUnrecognized("do we go far", "", time.Now())
	assert.Empty(t, table.PendingPatterns)
}

func TestRecordUnrecognizedCountsRunesNotBytes(t *testing.T) {
	table := DefaultTable()
	now := time.Now()

	// "हाँ" and "ના" are 1-2 characters but 6+ bytes; they must be filtered
	// like any other short token. "હલ્દીની" is long enough to keep.
	table.RecordUnrecognized("हाँ ના હલ્દીની", "", now)

	assert.Nil(t, table.FindPending("हाँ"))
	assert.Nil(t, table.FindPending("ના"))
	assert.NotNil(t, table.FindPending("હલ્દીની"))
}

func TestContextSnippetTruncatesOnRuneBoundary(t *testing.T) {
	table := DefaultTable()
	long := strings.Repeat("લગ્નના ", 40) + "ફોટોગ્રાફી"

	table.RecordUnrecognized(long, "", time.Now())

	p := table.FindPending("લગ્નના")
	require.NotNil(t, p)
	require.Len(t, p.Contexts, 1)
	snippet := p.Contexts[0]
	assert.Equal(t, maxContextLen, utf8.RuneCountInString(snippet))
	assert.True(t, utf8.ValidString(snippet))
}

func TestRecordUnrecognizedIncrementsExisting(t *testing.T) {
	table := DefaultTable()
	first := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	table.RecordUnrecognized("destination shoot query", IntentBooking, first)
	table.RecordUnrecognized("another destination question", IntentBooking, second)

	p := table.FindPending("destination")
	require.NotNil(t, p)
	assert.Equal(t, 2, p.Occurrences)
	assert.Equal(t, first, p.FirstSeen)
	assert.Equal(t, second, p.LastSeen)
	assert.Len(t, p.Contexts, 2)

	// A word never appears twice in the pending table.
	count := 0
	for _, pp := range table.PendingPatterns {
		if pp.Word == "destination" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRecordUnrecognizedDeduplicatesContexts(t *testing.T) {
	table := DefaultTable()
	now := time.Now()
	table.RecordUnrecognized("destination wedding", "", now)
	table.RecordUnrecognized("destination wedding", "", now.Add(time.Minute))

	p := table.FindPending("destination")
	require.NotNil(t, p)
	assert.Len(t, p.Contexts, 1)
	assert.Equal(t, 2, p.Occurrences)
}

func TestPendingTableNeverExceedsCap(t *testing.T) {
	table := DefaultTable()
	now := time.Now()

	for i := 0; i < 150; i++ {
		table.RecordUnrecognized(fmt.Sprintf("uniqueword%04d", i), "", now)
	}

	assert.Len(t, table.PendingPatterns, MaxPendingPatterns)

	// Existing words still get counted once the table is full.
	table.RecordUnrecognized("uniqueword0000", "", now)
	p := table.FindPending("uniqueword0000")
	require.NotNil(t, p)
	assert.Equal(t, 2, p.Occurrences)
}

func TestPromoteMovesQualifyingPatterns(t *testing.T) {
	table := DefaultTable()
	now := time.Now()
	table.PendingPatterns = []PendingPattern{
		{ID: "a", Word: "drone", SuggestedIntent: IntentShowPackages, Occurrences: 20, Confidence: 0.9, Status: PendingStatusPending},
		{ID: "b", Word: "candid", SuggestedIntent: IntentPortfolio, Occurrences: 19, Confidence: 0.9, Status: PendingStatusPending},
		{ID: "c", Word: "haldi", SuggestedIntent: IntentBooking, Occurrences: 25, Confidence: 0.5, Status: PendingStatusPending},
	}

	promoted := table.Promote(DefaultPromotionPolicy(), now)

	assert.Equal(t, 1, promoted)
	require.Len(t, table.LearnedKeywords, 1)
	assert.Equal(t, "drone", table.LearnedKeywords[0].Word)
	assert.Equal(t, IntentShowPackages, table.LearnedKeywords[0].Intent)
	assert.Equal(t, AddedByAuto, table.LearnedKeywords[0].AddedBy)
	assert.InDelta(t, 0.9, table.LearnedKeywords[0].Score, 1e-9)

	// Below-threshold entries stay pending untouched.
	assert.Nil(t, table.FindPendingByID("a"))
	assert.NotNil(t, table.FindPendingByID("b"))
	assert.NotNil(t, table.FindPendingByID("c"))
}

func TestApproveOverridesSuggestedIntent(t *testing.T) {
	table := DefaultTable()
	table.PendingPatterns = []PendingPattern{
		{ID: "p1", Word: "mehndi", SuggestedIntent: IntentPortfolio, Occurrences: 3, Confidence: 0.5, Status: PendingStatusPending},
	}

	ok := table.Approve("p1", IntentBooking, time.Now())

	require.True(t, ok)
	require.Len(t, table.LearnedKeywords, 1)
	assert.Equal(t, IntentBooking, table.LearnedKeywords[0].Intent)
	assert.Equal(t, AddedByAdmin, table.LearnedKeywords[0].AddedBy)
	assert.InDelta(t, 0.9, table.LearnedKeywords[0].Score, 1e-9)
	assert.Empty(t, table.PendingPatterns)
}

func TestApproveUnknownID(t *testing.T) {
	table := DefaultTable()
	assert.False(t, table.Approve("nope", IntentBooking, time.Now()))
}

func TestRejectDeletesOutright(t *testing.T) {
	table := DefaultTable()
	table.PendingPatterns = []PendingPattern{
		{ID: "p1", Word: "spam", Status: PendingStatusPending},
	}

	require.True(t, table.Reject("p1"))
	assert.Empty(t, table.PendingPatterns)
	assert.Empty(t, table.LearnedKeywords)
	assert.False(t, table.Reject("p1"))
}
