// Package sanitize 将模型原始输出整理为可落盘的文本或代码。
// 推理标记（如 <think>）的清理规则集中在本包，便于后续扩展其它模型家族的标记。
package sanitize

import (
	"strings"
)

// ContentType 决定清理策略：纯文本只去推理标记，代码还需抽取围栏块。
type ContentType string

const (
	ContentText ContentType = "text"
	ContentCode ContentType = "code"
)

const codeFence = "```"

// reasoningMarkers 列出成对出现的推理标记；新增模型家族时在此追加。
var reasoningMarkers = []struct {
	open  string
	close string
}{
	{open: "<think>", close: "</think>"},
}

// Clean 清理模型输出。纯函数，幂等：Clean(Clean(x)) == Clean(x)。
func Clean(raw string, contentType ContentType) string {
	text := stripReasoning(raw)
	if contentType == ContentCode {
		if code, ok := extractCodeBlocks(text); ok {
			text = code
		}
	}
	return strings.TrimSpace(text)
}

// stripReasoning 移除所有成对推理标记之间的内容；若移除后为空，
// 退回最后一个闭合标记之后的文本。
func stripReasoning(raw string) string {
	text := raw
	for _, marker := range reasoningMarkers {
		if !strings.Contains(text, marker.open) && !strings.Contains(text, marker.close) {
			continue
		}
		stripped := removeSpans(text, marker.open, marker.close)
		if strings.TrimSpace(stripped) != "" {
			text = stripped
			continue
		}
		if idx := strings.LastIndex(text, marker.close); idx != -1 {
			text = text[idx+len(marker.close):]
		}
	}
	return text
}

func removeSpans(text, open, close string) string {
	var b strings.Builder
	for {
		start := strings.Index(text, open)
		if start == -1 {
			b.WriteString(text)
			break
		}
		b.WriteString(text[:start])
		rest := text[start+len(open):]
		end := strings.Index(rest, close)
		if end == -1 {
			// 未闭合的标记：其后全部视为推理内容
			break
		}
		text = rest[end+len(close):]
	}
	return b.String()
}

// extractCodeBlocks 抽取三反引号围栏内的代码。优先取标记为 python 的块，
// 否则接受任意围栏块；多个块之间以一个空行连接。无围栏时返回 ok=false。
func extractCodeBlocks(text string) (string, bool) {
	blocks := fencedBlocks(text)
	if len(blocks) == 0 {
		return "", false
	}
	var python []string
	for _, blk := range blocks {
		if strings.EqualFold(blk.lang, "python") {
			python = append(python, blk.body)
		}
	}
	if len(python) > 0 {
		return strings.Join(python, "\n\n"), true
	}
	all := make([]string, 0, len(blocks))
	for _, blk := range blocks {
		all = append(all, blk.body)
	}
	return strings.Join(all, "\n\n"), true
}

type fencedBlock struct {
	lang string
	body string
}

func fencedBlocks(text string) []fencedBlock {
	var out []fencedBlock
	for {
		start := strings.Index(text, codeFence)
		if start == -1 {
			break
		}
		rest := text[start+len(codeFence):]
		end := strings.Index(rest, codeFence)
		if end == -1 {
			break
		}
		block := rest[:end]
		text = rest[end+len(codeFence):]

		lang := ""
		body := block
		if idx := strings.IndexAny(block, "\r\n"); idx != -1 {
			first := strings.TrimSpace(block[:idx])
			if first != "" && !strings.ContainsAny(first, " \t") && len(first) <= 20 {
				lang = first
				body = block[idx:]
			}
		}
		body = strings.Trim(body, "\r\n")
		out = append(out, fencedBlock{lang: lang, body: body})
	}
	return out
}
