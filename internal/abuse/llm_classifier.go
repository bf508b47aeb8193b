package abuse

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/smritistudio/chat-engine/internal/llm"
)

const classifierPrompt = `Classify this chat message from a photography studio's website for abusive content. Respond with JSON only.

Categories:
- profanity: Swearing or vulgar language
- harassment: Insults or demeaning language aimed at staff
- threat: Threats of violence or harm
- spam: Repeated promotional or link-stuffed content
- none: Normal customer message

Severity actions:
- block: Severe abuse, the message must not be answered
- mask: Mild abuse, hide the words but keep answering
- log: Borderline, record the flag and answer normally
- none: Clean message

Message: %s

Respond with: {"abusive": <true|false>, "type": "<category>", "action": "<action>"}`

// LLMClassifier asks a language model for a graded abuse classification.
type LLMClassifier struct {
	client llm.Client
	model  string
}

// NewLLMClassifier creates an LLM-backed classifier.
func NewLLMClassifier(client llm.Client, model string) *LLMClassifier {
	if client == nil {
		panic("abuse: llm client cannot be nil")
	}
	return &LLMClassifier{client: client, model: model}
}

// Classify sends the message to the model and parses its JSON verdict.
// A parse failure is treated as a clean message rather than an error so the
// engine stays fail-open.
func (c *LLMClassifier) Classify(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Action: ActionNone}, nil
	}

	prompt := strings.Replace(classifierPrompt, "%s", text, 1)
	resp, err := c.client.Complete(ctx, llm.Request{
		Model:       c.model,
		Messages:    []llm.ChatMessage{{Role: llm.ChatRoleUser, Content: prompt}},
		MaxTokens:   60,
		Temperature: 0,
	})
	if err != nil {
		return Result{}, err
	}

	var verdict struct {
		Abusive bool   `json:"abusive"`
		Type    string `json:"type"`
		Action  string `json:"action"`
	}

	// The model may wrap the JSON in extra prose.
	content := strings.TrimSpace(resp.Text)
	startIdx := strings.Index(content, "{")
	endIdx := strings.LastIndex(content, "}")
	if startIdx >= 0 && endIdx > startIdx {
		content = content[startIdx : endIdx+1]
	}
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		return Result{Action: ActionNone}, nil
	}

	action := Action(verdict.Action)
	switch action {
	case ActionBlock, ActionMask, ActionLog, ActionNone:
	default:
		action = ActionNone
	}
	if !verdict.Abusive {
		return Result{Action: ActionNone}, nil
	}
	return Result{IsAbusive: true, Type: verdict.Type, Action: action}, nil
}

// Chain runs the local screener first and falls through to the LLM classifier
// only for messages the screener did not flag.
type Chain struct {
	screener *Screener
	external Classifier
}

// NewChain composes the fast local screener with an external classifier.
// Either may be nil.
func NewChain(screener *Screener, external Classifier) *Chain {
	return &Chain{screener: screener, external: external}
}

// Classify returns the screener verdict when it flags, otherwise defers to
// the external classifier.
func (c *Chain) Classify(ctx context.Context, text string) (Result, error) {
	if c.screener != nil {
		res, _ := c.screener.Classify(ctx, text)
		if res.IsAbusive {
			return res, nil
		}
	}
	if c.external == nil {
		return Result{Action: ActionNone}, nil
	}
	return c.external.Classify(ctx, text)
}
