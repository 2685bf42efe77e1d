package provider

import (
	"context"
	"errors"
)

// ChatPayload 是一次模型调用的全部输入。
type ChatPayload struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// ModelProvider 屏蔽各家 API 的差异，只暴露一次文本补全。
type ModelProvider interface {
	ID() string
	Enabled() bool

	Call(ctx context.Context, payload ChatPayload) (string, error)
}

// ErrProviderUnavailable 表示该 provider 未配置凭证。
var ErrProviderUnavailable = errors.New("provider unavailable: missing credentials")
