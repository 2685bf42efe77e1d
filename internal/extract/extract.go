// Package extract 把各类想法来源（YouTube 链接、PDF 链接、自由文本）
// 归一化为纯文本，供 Research 阶段消费。
package extract

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"rbi/internal/logger"
)

// ErrContentUnavailable 表示无法获取来源文本（字幕缺失、PDF 解析失败、网络错误）。
// 上游应跳过该想法且不写入台账，留待下次运行重试。
var ErrContentUnavailable = errors.New("content unavailable")

type Extractor struct {
	httpc *http.Client
	// timedTextBase 可在测试中指向本地 httptest 服务
	timedTextBase string
}

func New(timeout time.Duration) *Extractor {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Extractor{
		httpc:         &http.Client{Timeout: timeout},
		timedTextBase: "https://www.youtube.com/api/timedtext",
	}
}

// Extract 按来源形态分发：
//   - 含 youtube.com / youtu.be 的按视频字幕抓取
//   - 以 .pdf 结尾（忽略大小写）的按 PDF 下载解析
//   - 其余原样返回
func (e *Extractor) Extract(ctx context.Context, source string) (string, error) {
	trimmed := strings.TrimSpace(source)
	switch {
	case strings.Contains(trimmed, "youtube.com") || strings.Contains(trimmed, "youtu.be"):
		text, err := e.fetchTranscript(ctx, trimmed)
		if err != nil {
			logger.Warnf("获取 YouTube 字幕失败: %v", err)
			return "", errors.Join(ErrContentUnavailable, err)
		}
		return text, nil
	case strings.HasSuffix(strings.ToLower(trimmed), ".pdf"):
		text, err := e.fetchPDF(ctx, trimmed)
		if err != nil {
			logger.Warnf("解析 PDF 失败: %v", err)
			return "", errors.Join(ErrContentUnavailable, err)
		}
		return text, nil
	default:
		return source, nil
	}
}
