package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/smritistudio/chat-engine/internal/language"
	"github.com/smritistudio/chat-engine/internal/llm"
	"github.com/smritistudio/chat-engine/internal/patterns"
	"github.com/smritistudio/chat-engine/internal/session"
	"github.com/smritistudio/chat-engine/pkg/logging"
)

// contextWindowTurns bounds how much history the completion call sees.
const contextWindowTurns = 6

// ErrAIUnavailable is returned when the completion path cannot produce a
// reply (circuit open, rate limited, provider failure, empty response). The
// caller substitutes the static fallback response.
var ErrAIUnavailable = errors.New("engine: ai completion unavailable")

var languageNames = map[language.Language]string{
	language.English:  "English",
	language.Hindi:    "Hindi",
	language.Gujarati: "Gujarati",
}

// Dispatcher wraps the completion client with a circuit breaker, a request
// rate limit and a per-call timeout.
type Dispatcher struct {
	client     llm.Client
	model      string
	studioName string
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	timeout    time.Duration
	logger     *logging.Logger
}

// NewDispatcher builds a dispatcher. requestsPerMin caps outbound completion
// calls; timeout bounds each call.
func NewDispatcher(client llm.Client, model, studioName string, requestsPerMin int, timeout time.Duration, logger *logging.Logger) *Dispatcher {
	if client == nil {
		panic("engine: llm client cannot be nil")
	}
	if requestsPerMin <= 0 {
		requestsPerMin = 60
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "chat-completion",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Dispatcher{
		client:     client,
		model:      model,
		studioName: studioName,
		breaker:    breaker,
		limiter:    rate.NewLimiter(rate.Limit(float64(requestsPerMin)/60.0), requestsPerMin/6+1),
		timeout:    timeout,
		logger:     logger,
	}
}

// Complete generates a free-form reply for a message the pattern matcher
// could not resolve. The last few turns of the conversation are included so
// the model keeps context, and the system prompt pins the reply language.
func (d *Dispatcher) Complete(ctx context.Context, message string, turns []session.Message, lang language.Language) (string, error) {
	if !d.limiter.Allow() {
		return "", fmt.Errorf("%w: rate limited", ErrAIUnavailable)
	}

	messages := make([]llm.ChatMessage, 0, len(turns)+1)
	for _, turn := range turns {
		role := llm.ChatRoleUser
		if turn.Role == session.RoleBot {
			role = llm.ChatRoleAssistant
		}
		messages = append(messages, llm.ChatMessage{Role: role, Content: turn.Display()})
	}
	messages = append(messages, llm.ChatMessage{Role: llm.ChatRoleUser, Content: message})

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result, err := d.breaker.Execute(func() (interface{}, error) {
		return d.client.Complete(callCtx, llm.Request{
			Model:       d.model,
			System:      []string{d.systemPrompt(lang)},
			Messages:    messages,
			MaxTokens:   300,
			Temperature: 0.7,
		})
	})
	if err != nil {
		d.logger.Warn("completion call failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}

	resp := result.(llm.Response)
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrAIUnavailable)
	}
	return text, nil
}

// SuggestIntent asks the model which known intent a message most likely
// belongs to. Best-effort: any failure returns the fallback intent and no
// error, since learning must never block on this call.
func (d *Dispatcher) SuggestIntent(ctx context.Context, message string) string {
	if !d.limiter.Allow() {
		return patterns.IntentFallback
	}

	known := []string{
		patterns.IntentGreeting, patterns.IntentPricing, patterns.IntentShowPackages,
		patterns.IntentPortfolio, patterns.IntentBooking, patterns.IntentContact,
		patterns.IntentAvailability, patterns.IntentLocation, patterns.IntentThanks,
	}
	prompt := fmt.Sprintf(
		"Classify this photography studio customer message into exactly one of these intents: %s. Reply with the intent name only.\n\nMessage: %s",
		strings.Join(known, ", "), message,
	)

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result, err := d.breaker.Execute(func() (interface{}, error) {
		return d.client.Complete(callCtx, llm.Request{
			Model:     d.model,
			Messages:  []llm.ChatMessage{{Role: llm.ChatRoleUser, Content: prompt}},
			MaxTokens: 10,
		})
	})
	if err != nil {
		return patterns.IntentFallback
	}

	suggestion := strings.ToLower(strings.TrimSpace(result.(llm.Response).Text))
	for _, intent := range known {
		if strings.EqualFold(suggestion, intent) {
			return intent
		}
	}
	return patterns.IntentFallback
}

func (d *Dispatcher) systemPrompt(lang language.Language) string {
	name := languageNames[lang]
	if name == "" {
		name = "English"
	}
	return fmt.Sprintf(
		"You are the friendly assistant on the website of %s, a photography studio in India. "+
			"Answer questions about photography services, weddings, portraits and events. "+
			"Keep replies short (2-3 sentences), warm and helpful. Reply in %s. "+
			"If asked about exact pricing or availability, suggest viewing the packages or sharing contact details rather than inventing numbers.",
		d.studioName, name,
	)
}
