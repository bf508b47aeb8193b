// Package language classifies inbound chat messages into the closed set of
// languages the studio answers in.
package language

import "strings"

// Language is one of the supported reply languages.
type Language string

const (
	English  Language = "en"
	Hindi    Language = "hi"
	Gujarati Language = "gu"
)

// Supported reports whether l is a member of the closed language set.
func Supported(l Language) bool {
	switch l {
	case English, Hindi, Gujarati:
		return true
	}
	return false
}

// Romanized words that strongly indicate a language even when the message is
// typed in Latin script. Gujarati is checked first so it wins ties with Hindi.
var (
	romanizedGujarati = []string{
		"kem", "cho", "chhe", "majama", "saru", "saru", "aavjo", "joie",
		"ketla", "ketlu", "thase", "karvu", "joiye", "apvanu", "fotawala",
	}
	romanizedHindi = []string{
		"kya", "hai", "kaise", "kitna", "kitne", "chahiye", "karna",
		"batao", "bataiye", "shaadi", "shadi", "mein", "nahi", "nahin",
		"karwana", "hoga", "milega",
	}
)

// Detect classifies text into one of the supported languages. It is
// deterministic and total: every input maps to exactly one language.
func Detect(text string) Language {
	return DetectWithFallback(text, English)
}

// DetectWithFallback behaves like Detect but returns the caller-declared
// fallback when no signal is found. An unsupported fallback degrades to
// English.
func DetectWithFallback(text string, fallback Language) Language {
	for _, r := range text {
		if r >= 0x0900 && r <= 0x097F { // Devanagari block
			return Hindi
		}
	}
	for _, r := range text {
		if r >= 0x0A80 && r <= 0x0AFF { // Gujarati block
			return Gujarati
		}
	}

	lowered := strings.ToLower(text)
	words := strings.FieldsFunc(lowered, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
	for _, w := range words {
		for _, g := range romanizedGujarati {
			if w == g {
				return Gujarati
			}
		}
	}
	for _, w := range words {
		for _, h := range romanizedHindi {
			if w == h {
				return Hindi
			}
		}
	}

	if Supported(fallback) {
		return fallback
	}
	return English
}
