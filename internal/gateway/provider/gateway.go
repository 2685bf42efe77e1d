package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"rbi/internal/logger"
)

// Selector 指明某次调用走哪家 provider 的哪个模型。
type Selector struct {
	Provider string
	Model    string
}

func (s Selector) String() string {
	return fmt.Sprintf("%s:%s", s.Provider, s.Model)
}

// Options 为生成参数；不支持温度的 provider 静默丢弃。
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Gateway 是核心对模型层的唯一入口：generate(system, user) -> text。
// provider 实例按 Selector 惰性构建并缓存。
type Gateway struct {
	timeout time.Duration

	mu        sync.Mutex
	providers map[string]ModelProvider

	// buildFn 可在测试中替换
	buildFn func(tag, model string, timeout time.Duration) (ModelProvider, error)
}

func NewGateway(timeout time.Duration) *Gateway {
	return &Gateway{
		timeout:   timeout,
		providers: make(map[string]ModelProvider),
		buildFn:   Build,
	}
}

func (g *Gateway) resolve(sel Selector) (ModelProvider, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := sel.String()
	if p, ok := g.providers[key]; ok {
		return p, nil
	}
	p, err := g.buildFn(sel.Provider, sel.Model, g.timeout)
	if err != nil {
		return nil, err
	}
	g.providers[key] = p
	return p, nil
}

// Generate 调用指定模型并返回纯文本。
// 响应为空白时用简化格式（单通道拼接）重试一次，仍为空则返回空串。
func (g *Gateway) Generate(ctx context.Context, sel Selector, stage, systemPrompt, userContent string, opts Options) (string, error) {
	p, err := g.resolve(sel)
	if err != nil {
		return "", err
	}

	payload := ChatPayload{
		System:      systemPrompt,
		User:        userContent,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	logger.LogLLMRequest(p.ID(), stage, systemPrompt, userContent)
	out, err := p.Call(ctx, payload)
	if err != nil {
		return "", err
	}
	logger.LogLLMResponse(p.ID(), stage, out)
	if strings.TrimSpace(out) != "" {
		return out, nil
	}

	// 空响应：简化为单通道输入再试一次
	logger.Warnf("[AI] %s 返回空响应，使用简化格式重试", p.ID())
	retry := ChatPayload{
		User:        fmt.Sprintf("Instructions: %s\n\nInput: %s", systemPrompt, userContent),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	out, err = p.Call(ctx, retry)
	if err != nil {
		return "", err
	}
	logger.LogLLMResponse(p.ID(), stage, out)
	if strings.TrimSpace(out) == "" {
		return "", nil
	}
	return out, nil
}
