package provider

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"rbi/internal/logger"
)

// envKeyByProvider 各 provider 的 API Key 环境变量；缺失即视为 UNAVAILABLE。
// ollama 本地运行，无需凭证。
var envKeyByProvider = map[string]string{
	"claude":   "ANTHROPIC_API_KEY",
	"openai":   "OPENAI_API_KEY",
	"gemini":   "GEMINI_API_KEY",
	"groq":     "GROQ_API_KEY",
	"deepseek": "DEEPSEEK_API_KEY",
	"xai":      "XAI_API_KEY",
}

// openAICompatBase OpenAI 兼容端点的默认 BaseURL。
var openAICompatBase = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"groq":     "https://api.groq.com/openai/v1",
	"deepseek": "https://api.deepseek.com/v1",
	"xai":      "https://api.x.ai/v1",
	"ollama":   "http://localhost:11434/v1",
}

// Build 根据 provider 标签与模型名构建 ModelProvider。
// 凭证从环境变量读取，进程生命周期内不变。
func Build(providerTag, model string, timeout time.Duration) (ModelProvider, error) {
	tag := strings.ToLower(strings.TrimSpace(providerTag))
	model = strings.TrimSpace(model)
	if tag == "" || model == "" {
		return nil, fmt.Errorf("provider/model 不能为空")
	}
	id := fmt.Sprintf("%s:%s", tag, model)

	apiKey := ""
	if envVar, needsKey := envKeyByProvider[tag]; needsKey {
		apiKey = strings.TrimSpace(os.Getenv(envVar))
		if apiKey == "" {
			logger.Warnf("未检测到 %s，provider %s 标记为不可用", envVar, tag)
			return unavailableProvider{id: id}, nil
		}
	}

	switch tag {
	case "claude":
		return NewClaudeModelProvider(id, true, &ClaudeClient{
			APIKey:  apiKey,
			Model:   model,
			Timeout: timeout,
		}), nil
	case "gemini":
		return NewGeminiModelProvider(id, true, &GeminiClient{
			APIKey:  apiKey,
			Model:   model,
			Timeout: timeout,
		}), nil
	case "openai", "groq", "deepseek", "xai", "ollama":
		return NewOpenAIModelProvider(id, true, &OpenAIChatClient{
			BaseURL:             openAICompatBase[tag],
			APIKey:              apiKey,
			Model:               model,
			Timeout:             timeout,
			SupportsTemperature: true,
		}), nil
	default:
		return nil, fmt.Errorf("未知 provider: %s", tag)
	}
}

// unavailableProvider 占位：任何调用都返回 ErrProviderUnavailable。
type unavailableProvider struct {
	id string
}

func (p unavailableProvider) ID() string    { return p.id }
func (p unavailableProvider) Enabled() bool { return false }
func (p unavailableProvider) Call(ctx context.Context, payload ChatPayload) (string, error) {
	return "", ErrProviderUnavailable
}
