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

// GeminiClient 访问 Generative Language API 的 generateContent。
// 该接口只有单一输入通道：system 与 user 拼成一段文本发送。
type GeminiClient struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func (c *GeminiClient) CallWithMessages(ctx context.Context, payload ChatPayload) (string, error) {
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
	base := c.BaseURL
	if base == "" {
		base = "https://generativelanguage.googleapis.com"
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(base, "/"), c.Model, c.APIKey)

	input := payload.User
	if payload.System != "" {
		input = fmt.Sprintf("Instructions: %s\n\nInput: %s", payload.System, payload.User)
	}
	genCfg := map[string]any{"temperature": payload.Temperature}
	if payload.MaxTokens > 0 {
		genCfg["maxOutputTokens"] = payload.MaxTokens
	}
	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": input}}},
		},
		"generationConfig": genCfg,
	}
	b, _ := json.Marshal(body)
	logger.Debugf("[AI] 请求: POST %s:generateContent, bytes=%d", c.Model, len(b))

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")

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
	var out strings.Builder
	gjson.GetBytes(raw, "candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
		out.WriteString(part.Get("text").String())
		return true
	})
	return out.String(), nil
}

type GeminiModelProvider struct {
	id      string
	enabled bool
	client  *GeminiClient
}

func NewGeminiModelProvider(id string, enabled bool, client *GeminiClient) *GeminiModelProvider {
	return &GeminiModelProvider{id: id, enabled: enabled, client: client}
}

func (p *GeminiModelProvider) ID() string    { return p.id }
func (p *GeminiModelProvider) Enabled() bool { return p.enabled }
func (p *GeminiModelProvider) Call(ctx context.Context, payload ChatPayload) (string, error) {
	if !p.enabled {
		return "", ErrProviderUnavailable
	}
	return p.client.CallWithMessages(ctx, payload)
}
