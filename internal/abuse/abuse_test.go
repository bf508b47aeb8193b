package abuse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smritistudio/chat-engine/internal/llm"
)

type stubLLM struct {
	text string
	err  error
}

func (s *stubLLM) Complete(_ context.Context, _ llm.Request) (llm.Response, error) {
	if s.err != nil {
		return llm.Response{}, s.err
	}
	return llm.Response{Text: s.text}, nil
}

func TestScreenerRules(t *testing.T) {
	s := NewScreener()

	tests := []struct {
		name   string
		text   string
		want   Result
	}{
		{
			name: "threat blocks",
			text: "I will find you and hurt you",
			want: Result{IsAbusive: true, Type: TypeThreat, Action: ActionBlock},
		},
		{
			name: "insult masks",
			text: "your staff is an idiot",
			want: Result{IsAbusive: true, Type: TypeHarassment, Action: ActionMask},
		},
		{
			name: "link spam logs",
			text: "http://a.com http://b.com http://c.com buy now",
			want: Result{IsAbusive: true, Type: TypeSpam, Action: ActionLog},
		},
		{
			name: "clean passes",
			text: "what are your wedding packages",
			want: Result{Action: ActionNone},
		},
		{
			name: "two links not spam",
			text: "see http://a.com and http://b.com",
			want: Result{Action: ActionNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Classify(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScreenerNilReceiver(t *testing.T) {
	var s *Screener
	got, err := s.Classify(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, Result{Action: ActionNone}, got)
}

func TestMaskWords(t *testing.T) {
	assert.Equal(t, "**** **** ****", MaskWords("you stupid bot"))
	assert.Equal(t, "", MaskWords("   "))
	assert.Equal(t, "****", MaskWords("nonsense"))
}

func TestLLMClassifierVerdicts(t *testing.T) {
	tests := []struct {
		name string
		text string
		resp string
		want Result
	}{
		{
			name: "block verdict",
			text: "threatening message",
			resp: `{"abusive": true, "type": "threat", "action": "block"}`,
			want: Result{IsAbusive: true, Type: TypeThreat, Action: ActionBlock},
		},
		{
			name: "verdict wrapped in prose",
			text: "some insult",
			resp: "Here is the classification: {\"abusive\": true, \"type\": \"harassment\", \"action\": \"mask\"} as requested.",
			want: Result{IsAbusive: true, Type: TypeHarassment, Action: ActionMask},
		},
		{
			name: "clean verdict",
			text: "how much for a wedding shoot",
			resp: `{"abusive": false, "type": "none", "action": "none"}`,
			want: Result{Action: ActionNone},
		},
		{
			name: "unknown action defaults to none",
			text: "edge case",
			resp: `{"abusive": true, "type": "spam", "action": "nuke"}`,
			want: Result{IsAbusive: true, Type: TypeSpam, Action: ActionNone},
		},
		{
			name: "garbage response fails open",
			text: "hello",
			resp: "I cannot classify that.",
			want: Result{Action: ActionNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewLLMClassifier(&stubLLM{text: tt.resp}, "test-model")
			got, err := c.Classify(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLLMClassifierEmptyMessageSkipsCall(t *testing.T) {
	c := NewLLMClassifier(&stubLLM{err: errors.New("should not be called")}, "test-model")
	got, err := c.Classify(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, Result{Action: ActionNone}, got)
}

func TestLLMClassifierPropagatesError(t *testing.T) {
	c := NewLLMClassifier(&stubLLM{err: errors.New("model down")}, "test-model")
	_, err := c.Classify(context.Background(), "hello")
	assert.Error(t, err)
}

func TestChainScreenerShortCircuits(t *testing.T) {
	chain := NewChain(NewScreener(), &LLMClassifier{client: &stubLLM{err: errors.New("should not be called")}})
	got, err := chain.Classify(context.Background(), "I will hurt you")
	require.NoError(t, err)
	assert.Equal(t, Result{IsAbusive: true, Type: TypeThreat, Action: ActionBlock}, got)
}

func TestChainFallsThroughToExternal(t *testing.T) {
	external := NewLLMClassifier(&stubLLM{text: `{"abusive": true, "type": "profanity", "action": "mask"}`}, "m")
	chain := NewChain(NewScreener(), external)
	got, err := chain.Classify(context.Background(), "something the screener misses")
	require.NoError(t, err)
	assert.Equal(t, Result{IsAbusive: true, Type: TypeProfanity, Action: ActionMask}, got)
}

func TestChainWithoutExternal(t *testing.T) {
	chain := NewChain(NewScreener(), nil)
	got, err := chain.Classify(context.Background(), "plain message")
	require.NoError(t, err)
	assert.Equal(t, Result{Action: ActionNone}, got)
}
