package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"rbi/internal/logger"
)

// ClaudeClient 访问 Anthropic /v1/messages。
// system 走独立字段，响应文本位于 content[0].text。
type ClaudeClient struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Version string
}

func (c *ClaudeClient) CallWithMessages(ctx context.Context, payload ChatPayload) (string, error) {
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
	url := c.BaseURL
	if url == "" {
		url = "https://api.anthropic.com"
	}
	url = strings.TrimRight(url, "/") + "/v1/messages"
	version := c.Version
	if version == "" {
		version = "2023-06-01"
	}

	maxTokens := payload.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	body := map[string]any{
		"model":       c.Model,
		"max_tokens":  maxTokens,
		"temperature": payload.Temperature,
		"messages": []map[string]string{
			{"role": "user", "content": payload.User},
		},
	}
	if payload.System != "" {
		body["system"] = payload.System
	}
	b, _ := json.Marshal(body)
	logger.Debugf("[AI] 请求: POST %s, model=%s, bytes=%d", url, c.Model, len(b))

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", version)

	httpc := &http.Client{Timeout: c.Timeout}
	resp, err := httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode/100 != 2 {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = resp.Status
		}
		return "", fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
	}
	// content 可能有多个块（如 thinking），拼接所有 text 块
	var b2 strings.Builder
	gjson.GetBytes(raw, "content").ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			b2.WriteString(block.Get("text").String())
		}
		return true
	})
	return b2.String(), nil
}

type ClaudeModelProvider struct {
	id      string
	enabled bool
	client  *ClaudeClient
}

func NewClaudeModelProvider(id string, enabled bool, client *ClaudeClient) *ClaudeModelProvider {
	return &ClaudeModelProvider{id: id, enabled: enabled, client: client}
}

func (p *ClaudeModelProvider) ID() string    { return p.id }
func (p *ClaudeModelProvider) Enabled() bool { return p.enabled }
func (p *ClaudeModelProvider) Call(ctx context.Context, payload ChatPayload) (string, error) {
	if !p.enabled {
		return "", ErrProviderUnavailable
	}
	return p.client.CallWithMessages(ctx, payload)
}
