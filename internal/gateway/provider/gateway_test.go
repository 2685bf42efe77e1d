package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	id       string
	replies  []string
	err      error
	payloads []ChatPayload
}

func (s *stubProvider) ID() string    { return s.id }
func (s *stubProvider) Enabled() bool { return true }
func (s *stubProvider) Call(ctx context.Context, payload ChatPayload) (string, error) {
	s.payloads = append(s.payloads, payload)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", nil
	}
	out := s.replies[0]
	s.replies = s.replies[1:]
	return out, nil
}

func newTestGateway(p ModelProvider) *Gateway {
	g := NewGateway(time.Second)
	g.buildFn = func(tag, model string, timeout time.Duration) (ModelProvider, error) {
		return p, nil
	}
	return g
}

func TestGenerateReturnsText(t *testing.T) {
	stub := &stubProvider{id: "openai:gpt-4o", replies: []string{"hello world"}}
	g := newTestGateway(stub)

	out, err := g.Generate(context.Background(), Selector{"openai", "gpt-4o"}, "research", "sys", "user", Options{Temperature: 0.7, MaxTokens: 4096})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
	require.Len(t, stub.payloads, 1)
	assert.Equal(t, "sys", stub.payloads[0].System)
	assert.Equal(t, "user", stub.payloads[0].User)
}

func TestGenerateRetriesOnceOnEmptyResponse(t *testing.T) {
	stub := &stubProvider{id: "openai:gpt-4o", replies: []string{"  \n\t ", "recovered"}}
	g := newTestGateway(stub)

	out, err := g.Generate(context.Background(), Selector{"openai", "gpt-4o"}, "backtest", "sys", "user", Options{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	require.Len(t, stub.payloads, 2)

	// retry collapses system+user into a single user channel
	retry := stub.payloads[1]
	assert.Empty(t, retry.System)
	assert.True(t, strings.HasPrefix(retry.User, "Instructions: sys"))
	assert.Contains(t, retry.User, "Input: user")
}

func TestGenerateEmptyAfterRetryReturnsEmpty(t *testing.T) {
	stub := &stubProvider{id: "openai:gpt-4o", replies: []string{"", ""}}
	g := newTestGateway(stub)

	out, err := g.Generate(context.Background(), Selector{"openai", "gpt-4o"}, "debug", "sys", "user", Options{})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Len(t, stub.payloads, 2)
}

func TestGeneratePropagatesProviderError(t *testing.T) {
	stub := &stubProvider{id: "claude:opus", err: ErrProviderUnavailable}
	g := newTestGateway(stub)

	_, err := g.Generate(context.Background(), Selector{"claude", "opus"}, "research", "sys", "user", Options{})
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
}

func TestGatewayCachesProviders(t *testing.T) {
	builds := 0
	g := NewGateway(time.Second)
	g.buildFn = func(tag, model string, timeout time.Duration) (ModelProvider, error) {
		builds++
		return &stubProvider{id: tag + ":" + model, replies: []string{"a", "b"}}, nil
	}

	sel := Selector{"groq", "llama-3.3-70b"}
	_, err := g.Generate(context.Background(), sel, "research", "s", "u", Options{})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), sel, "research", "s", "u", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, builds)
}

func TestBuildUnknownProvider(t *testing.T) {
	_, err := Build("nope", "model-x", time.Second)
	assert.Error(t, err)
}

func TestBuildMissingKeyYieldsUnavailable(t *testing.T) {
	t.Setenv("XAI_API_KEY", "")
	p, err := Build("xai", "grok-3", time.Second)
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	_, cerr := p.Call(context.Background(), ChatPayload{User: "hi"})
	assert.True(t, errors.Is(cerr, ErrProviderUnavailable))
}

func TestBuildOllamaNeedsNoKey(t *testing.T) {
	p, err := Build("ollama", "deepseek-r1", time.Second)
	require.NoError(t, err)
	assert.True(t, p.Enabled())
}
