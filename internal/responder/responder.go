// Package responder turns a matched intent into the bot's reply: template
// lookup with language fallback, business-fact interpolation, package
// attachments and quick-reply suggestions.
package responder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smritistudio/chat-engine/internal/language"
	"github.com/smritistudio/chat-engine/internal/patterns"
)

// maxFeaturesShown bounds how many bullet points each package card carries.
const maxFeaturesShown = 4

// Facts are the business values templates may interpolate. Nothing
// user-supplied is ever interpolated into a template.
type Facts struct {
	StudioName string `json:"studioName"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
}

// Package is a configured service offering as stored in the config document.
type Package struct {
	ID           string   `json:"id" dynamodbav:"id"`
	Name         string   `json:"name" dynamodbav:"name"`
	Price        int      `json:"price" dynamodbav:"price"`
	Emoji        string   `json:"emoji" dynamodbav:"emoji"`
	Features     []string `json:"features" dynamodbav:"features"`
	Popular      bool     `json:"popular" dynamodbav:"popular"`
	DisplayOrder int      `json:"displayOrder" dynamodbav:"displayOrder"`
	Active       bool     `json:"active" dynamodbav:"active"`
}

// PackageView is the trimmed package shape attached to a response.
type PackageView struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    string   `json:"price"`
	Emoji    string   `json:"emoji"`
	Features []string `json:"features"`
	Popular  bool     `json:"popular"`
}

// Table holds the configured reply templates and quick replies, keyed by
// intent then language code. It lives in the config store next to the
// pattern table and is versioned the same way.
type Table struct {
	Templates    map[string]map[string]string   `json:"templates" dynamodbav:"templates"`
	QuickReplies map[string]map[string][]string `json:"quickReplies" dynamodbav:"quickReplies"`
	Version      int64                          `json:"version" dynamodbav:"version"`
}

// Response is the rendered reply handed back to the engine.
type Response struct {
	Text         string        `json:"text"`
	Intent       string        `json:"intent"`
	Language     string        `json:"language"`
	Packages     []PackageView `json:"packages,omitempty"`
	QuickReplies []string      `json:"quickReplies,omitempty"`
}

// genericQuickReplies is the fallback suggestion set when an intent has no
// configured quick replies.
var genericQuickReplies = []string{"Book Now", "More Details", "Contact"}

// Renderer assembles responses from the configured table, package list and
// business facts.
type Renderer struct {
	table    *Table
	packages []Package
	facts    Facts
}

// NewRenderer creates a renderer. The table is required.
func NewRenderer(table *Table, pkgs []Package, facts Facts) *Renderer {
	if table == nil {
		panic("responder: table cannot be nil")
	}
	return &Renderer{table: table, packages: pkgs, facts: facts}
}

// Render looks up the template for (intent, language), falling back to the
// English template for the intent, then to the fallback intent in the
// requested language. Business facts are interpolated; pricing and
// showPackages additionally attach the active package list.
func (r *Renderer) Render(intent string, lang language.Language) Response {
	text := r.lookup(intent, lang)
	resp := Response{
		Text:         r.interpolate(text),
		Intent:       intent,
		Language:     string(lang),
		QuickReplies: r.quickReplies(intent, lang),
	}
	if intent == patterns.IntentPricing || intent == patterns.IntentShowPackages {
		resp.Packages = r.activePackages()
	}
	return resp
}

// RenderText is Render without the attachments, for replies the engine
// composes itself (e.g. the abuse block notice).
func (r *Renderer) RenderText(intent string, lang language.Language) string {
	return r.interpolate(r.lookup(intent, lang))
}

func (r *Renderer) lookup(intent string, lang language.Language) string {
	if byLang, ok := r.table.Templates[intent]; ok {
		if text, ok := byLang[string(lang)]; ok && text != "" {
			return text
		}
		if text, ok := byLang[string(language.English)]; ok && text != "" {
			return text
		}
	}
	if byLang, ok := r.table.Templates[patterns.IntentFallback]; ok {
		if text, ok := byLang[string(lang)]; ok && text != "" {
			return text
		}
		if text, ok := byLang[string(language.English)]; ok && text != "" {
			return text
		}
	}
	return "Sorry, I did not catch that. Could you rephrase?"
}

func (r *Renderer) quickReplies(intent string, lang language.Language) []string {
	if byLang, ok := r.table.QuickReplies[intent]; ok {
		if replies, ok := byLang[string(lang)]; ok && len(replies) > 0 {
			return replies
		}
		if replies, ok := byLang[string(language.English)]; ok && len(replies) > 0 {
			return replies
		}
	}
	return genericQuickReplies
}

func (r *Renderer) interpolate(text string) string {
	rep := strings.NewReplacer(
		"{{studioName}}", r.facts.StudioName,
		"{{phone}}", r.facts.Phone,
		"{{email}}", r.facts.Email,
	)
	return rep.Replace(text)
}

func (r *Renderer) activePackages() []PackageView {
	active := make([]Package, 0, len(r.packages))
	for _, p := range r.packages {
		if p.Active {
			active = append(active, p)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].DisplayOrder < active[j].DisplayOrder
	})

	views := make([]PackageView, 0, len(active))
	for _, p := range active {
		features := p.Features
		if len(features) > maxFeaturesShown {
			features = features[:maxFeaturesShown]
		}
		views = append(views, PackageView{
			ID:       p.ID,
			Name:     p.Name,
			Price:    FormatINR(p.Price),
			Emoji:    p.Emoji,
			Features: features,
			Popular:  p.Popular,
		})
	}
	return views
}

// FormatINR renders a rupee amount with Indian digit grouping, e.g.
// 125000 -> "₹1,25,000".
func FormatINR(amount int) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := fmt.Sprintf("%d", amount)
	if len(s) > 3 {
		head, tail := s[:len(s)-3], s[len(s)-3:]
		var parts []string
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		if head != "" {
			parts = append([]string{head}, parts...)
		}
		s = strings.Join(parts, ",") + "," + tail
	}
	if neg {
		return "-₹" + s
	}
	return "₹" + s
}
