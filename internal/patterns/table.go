// Package patterns holds the keyword table the chat engine matches against
// and the learning pipeline that grows it from unrecognized traffic.
package patterns

import (
	"time"

	"github.com/smritistudio/chat-engine/internal/language"
)

// Well-known intent names. The table document may carry more; these are the
// ones other packages reference directly.
const (
	IntentGreeting     = "greeting"
	IntentPricing      = "pricing"
	IntentShowPackages = "showPackages"
	IntentPortfolio    = "portfolio"
	IntentBooking      = "booking"
	IntentContact      = "contact"
	IntentAvailability = "availability"
	IntentLocation     = "location"
	IntentThanks       = "thanks"
	IntentFallback     = "fallback"
)

// AddedBy records how a learned keyword entered the live table.
const (
	AddedByAuto  = "auto"
	AddedByAdmin = "admin"
)

// PendingStatus values for candidate patterns awaiting review.
const (
	PendingStatusPending  = "pending"
	PendingStatusApproved = "approved"
	PendingStatusRejected = "rejected"
)

// Intent is one classifiable message category with its per-language keywords.
type Intent struct {
	KeywordsByLanguage map[language.Language][]string `json:"keywordsByLanguage" dynamodbav:"keywordsByLanguage"`
	ResponseKey        string                         `json:"responseKey" dynamodbav:"responseKey"`
}

// LearnedKeyword is a word promoted from observed traffic into live matching.
type LearnedKeyword struct {
	Word    string    `json:"word" dynamodbav:"word"`
	Intent  string    `json:"intent" dynamodbav:"intent"`
	Score   float64   `json:"score" dynamodbav:"score"`
	AddedOn time.Time `json:"addedOn" dynamodbav:"addedOn"`
	AddedBy string    `json:"addedBy" dynamodbav:"addedBy"`
}

// PendingPattern is a candidate word awaiting promotion or rejection.
type PendingPattern struct {
	ID              string    `json:"id" dynamodbav:"id"`
	Word            string    `json:"word" dynamodbav:"word"`
	SuggestedIntent string    `json:"suggestedIntent" dynamodbav:"suggestedIntent"`
	Occurrences     int       `json:"occurrences" dynamodbav:"occurrences"`
	Contexts        []string  `json:"contexts" dynamodbav:"contexts"`
	FirstSeen       time.Time `json:"firstSeen" dynamodbav:"firstSeen"`
	LastSeen        time.Time `json:"lastSeen" dynamodbav:"lastSeen"`
	Status          string    `json:"status" dynamodbav:"status"`
	Confidence      float64   `json:"confidence" dynamodbav:"confidence"`
}

// Table is the process-wide pattern document. It is loaded from the document
// store, mutated by the learning pipeline, and written back with the same
// optimistic version discipline as session documents.
type Table struct {
	Intents         map[string]Intent `json:"intents" dynamodbav:"intents"`
	Synonyms        map[string]string `json:"synonyms" dynamodbav:"synonyms"`
	AutoCorrect     map[string]string `json:"autoCorrect" dynamodbav:"autoCorrect"`
	LearnedKeywords []LearnedKeyword  `json:"learnedKeywords" dynamodbav:"learnedKeywords"`
	PendingPatterns []PendingPattern  `json:"pendingPatterns" dynamodbav:"pendingPatterns"`
	Version         int64             `json:"version" dynamodbav:"version"`
}

// FindPending returns the pending pattern with the given word, if any.
func (t *Table) FindPending(word string) *PendingPattern {
	for i := range t.PendingPatterns {
		if t.PendingPatterns[i].Word == word {
			return &t.PendingPatterns[i]
		}
	}
	return nil
}

// FindPendingByID returns the pending pattern with the given ID, if any.
func (t *Table) FindPendingByID(id string) *PendingPattern {
	for i := range t.PendingPatterns {
		if t.PendingPatterns[i].ID == id {
			return &t.PendingPatterns[i]
		}
	}
	return nil
}

// removePending deletes the pending entry at index i preserving order.
func (t *Table) removePending(i int) {
	t.PendingPatterns = append(t.PendingPatterns[:i], t.PendingPatterns[i+1:]...)
}

// DefaultTable seeds the studio's stock intents. The live table normally comes
// from the document store; this is the bootstrap document and test fixture.
func DefaultTable() *Table {
	return &Table{
		Intents: map[string]Intent{
			IntentGreeting: {
				ResponseKey: "greeting",
				KeywordsByLanguage: map[language.Language][]string{
					language.English:  {"hello", "hi", "hey", "good morning", "good evening", "namaste"},
					language.Hindi:    {"नमस्ते", "हेलो", "namaste ji"},
					language.Gujarati: {"કેમ છો", "નમસ્તે", "kem cho"},
				},
			},
			IntentPricing: {
				ResponseKey: "pricing",
				KeywordsByLanguage: map[language.Language][]string{
					language.English:  {"price", "cost", "charge", "rate", "how much", "budget"},
					language.Hindi:    {"कीमत", "कितना", "दाम", "kitna", "kimat", "daam"},
					language.Gujarati: {"ભાવ", "કિંમત", "ketla", "bhav", "kimmat"},
				},
			},
			IntentShowPackages: {
				ResponseKey: "showPackages",
				KeywordsByLanguage: map[language.Language][]string{
					language.English:  {"package", "packages", "plan", "plans", "offer"},
					language.Hindi:    {"पैकेज", "प्लान", "package dikhao"},
					language.Gujarati: {"પેકેજ", "પ્લાન", "package batavo"},
				},
			},
			IntentPortfolio: {
				ResponseKey: "portfolio",
				KeywordsByLanguage: map[language.Language][]string{
					language.English:  {"portfolio", "photos", "work", "sample", "gallery", "album"},
					language.Hindi:    {"फोटो", "काम", "एल्बम", "photo dikhao"},
					language.Gujarati: {"ફોટા", "કામ", "આલ્બમ", "phota batavo"},
				},
			},
			IntentBooking: {
				ResponseKey: "booking",
				KeywordsByLanguage: map[language.Language][]string{
					language.English:  {"book", "booking", "appointment", "schedule", "reserve", "available date"},
					language.Hindi:    {"बुक", "बुकिंग", "booking karni"},
					language.Gujarati: {"બુક", "બુકિંગ", "booking karvi"},
				},
			},
			IntentContact: {
				ResponseKey: "contact",
				KeywordsByLanguage: map[language.Language][]string{
					language.English:  {"contact", "phone", "call", "whatsapp", "email", "number"},
					language.Hindi:    {"संपर्क", "फोन", "नंबर", "number do"},
					language.Gujarati: {"સંપર્ક", "ફોન", "નંબર", "number aapo"},
				},
			},
			IntentAvailability: {
				ResponseKey: "availability",
				KeywordsByLanguage: map[language.Language][]string{
					language.English:  {"available", "availability", "free on", "open on", "timing", "hours"},
					language.Hindi:    {"उपलब्ध", "समय", "khali ho"},
					language.Gujarati: {"ઉપલબ્ધ", "સમય", "khali cho"},
				},
			},
			IntentLocation: {
				ResponseKey: "location",
				KeywordsByLanguage: map[language.Language][]string{
					language.English:  {"location", "address", "where are you", "studio address", "reach"},
					language.Hindi:    {"पता", "कहाँ", "kahan ho"},
					language.Gujarati: {"સરનામું", "ક્યાં", "kya cho"},
				},
			},
			IntentThanks: {
				ResponseKey: "thanks",
				KeywordsByLanguage: map[language.Language][]string{
					language.English:  {"thank", "thanks", "great", "awesome", "dhanyavad"},
					language.Hindi:    {"धन्यवाद", "शुक्रिया", "shukriya"},
					language.Gujarati: {"આભાર", "aabhar"},
				},
			},
		},
		Synonyms: map[string]string{
			"pics":        "photos",
			"pix":         "photos",
			"snap":        "photos",
			"snaps":       "photos",
			"marriage":    "wedding",
			"shaadi":      "wedding",
			"lagna":       "wedding",
			"prewedding":  "pre-wedding",
			"fees":        "price",
			"charges":     "price",
			"rates":       "price",
			"mobile":      "phone",
			"appointment": "booking",
		},
		AutoCorrect: map[string]string{
			"pakage":   "package",
			"packge":   "package",
			"pacakge":  "package",
			"prise":    "price",
			"pricee":   "price",
			"prize":    "price",
			"bokking":  "booking",
			"boking":   "booking",
			"weding":   "wedding",
			"wedings":  "weddings",
			"fotograf": "photograph",
			"foto":     "photo",
			"adress":   "address",
			"avilable": "available",
		},
	}
}
