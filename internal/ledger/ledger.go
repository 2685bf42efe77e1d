// Package ledger 维护 processed_ideas.log：追加式文本日志，
// 以内容哈希判定某条 idea 是否已处理。
package ledger

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const snippetMax = 100

// Ledger 是单写者的追加式账本。行格式：
// <hex哈希>,<YYYY-MM-DD HH:MM:SS>,<策略名>,<来源片段>
type Ledger struct {
	path string
}

func New(path string) (*Ledger, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("ledger path 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Ledger{path: path}, nil
}

func (l *Ledger) Path() string { return l.path }

// Hash 返回来源串 UTF-8 字节的 128 位摘要（hex）。
// 摘要算法只需仓库内稳定，用于去重，不承担安全职责。
func Hash(source string) string {
	sum := md5.Sum([]byte(source))
	return hex.EncodeToString(sum[:])
}

// IsLogged 判断来源是否已有账本行（哈希为行首字段）。
func (l *Ledger) IsLogged(source string) (bool, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	want := Hash(source)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if h, _, ok := strings.Cut(line, ","); ok && h == want {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// Record 追加一行并立即刷盘；崩溃时未刷盘的 idea 保持可重试。
func (l *Ledger) Record(source, strategyName string) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		header := "# processed ideas: <hash>,<timestamp>,<strategy>,<source snippet>\n"
		if _, err := f.WriteString(header); err != nil {
			return err
		}
	}
	line := fmt.Sprintf("%s,%s,%s,%s\n",
		Hash(source),
		time.Now().Format("2006-01-02 15:04:05"),
		strategyName,
		Snippet(source))
	if _, err := f.WriteString(line); err != nil {
		return err
	}
	return f.Sync()
}

// Snippet 取来源前 100 字符，逗号与换行替换为空格。
func Snippet(source string) string {
	replacer := strings.NewReplacer(",", " ", "\n", " ", "\r", " ")
	s := replacer.Replace(source)
	runes := []rune(s)
	if len(runes) > snippetMax {
		s = string(runes[:snippetMax])
	}
	return s
}
