package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// fetchTranscript 抓取英文自动字幕（timedtext JSON3 格式），
// 按时间顺序以单个空格拼接所有文本段。
func (e *Extractor) fetchTranscript(ctx context.Context, videoURL string) (string, error) {
	id, err := videoID(videoURL)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("v", id)
	q.Set("lang", "en")
	q.Set("kind", "asr")
	q.Set("fmt", "json3")
	reqURL := e.timedTextBase + "?" + q.Encode()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("timedtext status=%d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	text := parseTimedText(raw)
	if text == "" {
		return "", fmt.Errorf("video %s 无可用英文字幕", id)
	}
	return fmt.Sprintf("Transcript of YouTube video %s:\n\n%s", id, text), nil
}

// parseTimedText 解析 JSON3 字幕：events[].segs[].utf8，段间单空格。
func parseTimedText(raw []byte) string {
	var parts []string
	gjson.GetBytes(raw, "events").ForEach(func(_, ev gjson.Result) bool {
		ev.Get("segs").ForEach(func(_, seg gjson.Result) bool {
			s := strings.TrimSpace(seg.Get("utf8").String())
			if s != "" {
				parts = append(parts, s)
			}
			return true
		})
		return true
	})
	return strings.Join(parts, " ")
}

// videoID 兼容 watch?v=、youtu.be/、shorts/、embed/ 四种链接形态。
func videoID(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if v := u.Query().Get("v"); v != "" {
		return v, nil
	}
	path := strings.Trim(u.Path, "/")
	if strings.Contains(u.Host, "youtu.be") && path != "" {
		return strings.SplitN(path, "/", 2)[0], nil
	}
	for _, prefix := range []string{"shorts/", "embed/"} {
		if rest, ok := strings.CutPrefix(path, prefix); ok && rest != "" {
			return strings.SplitN(rest, "/", 2)[0], nil
		}
	}
	return "", fmt.Errorf("无法从 %q 解析视频 ID", raw)
}
