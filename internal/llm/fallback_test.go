package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	resp  Response
	err   error
	calls int
}

func (s *stubClient) Complete(_ context.Context, _ Request) (Response, error) {
	s.calls++
	return s.resp, s.err
}

func TestFallbackClientUsesPrimary(t *testing.T) {
	primary := &stubClient{resp: Response{Text: "primary"}}
	fallback := &stubClient{resp: Response{Text: "fallback"}}
	c := NewFallbackClient(primary, fallback, nil)

	resp, err := c.Complete(context.Background(), Request{})

	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Text)
	assert.Zero(t, fallback.calls)
}

func TestFallbackClientRetriesOnPrimaryFailure(t *testing.T) {
	primary := &stubClient{err: errors.New("throttled")}
	fallback := &stubClient{resp: Response{Text: "fallback"}}
	c := NewFallbackClient(primary, fallback, nil)

	resp, err := c.Complete(context.Background(), Request{})

	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Text)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestFallbackClientNoFallbackConfigured(t *testing.T) {
	primaryErr := errors.New("unavailable")
	c := NewFallbackClient(&stubClient{err: primaryErr}, nil, nil)

	_, err := c.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, primaryErr)
}

func TestFallbackClientBothFail(t *testing.T) {
	fallbackErr := errors.New("also down")
	c := NewFallbackClient(&stubClient{err: errors.New("down")}, &stubClient{err: fallbackErr}, nil)

	_, err := c.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, fallbackErr)
}
