// Package dataset 准备回测脚本引用的行情 CSV：
// 从 Binance 拉取 K 线落盘，或读取并规范既有文件的列名。
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// 回测脚本约定的 Title-case 列序。
var canonicalHeader = []string{"Datetime", "Open", "High", "Low", "Close", "Volume"}

// Candle 单根 K 线。
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// LoadCSV 读取数据文件并把列名规范到 Title case；
// 无名列（如 pandas 落盘留下的 Unnamed: 0）被丢弃。
func LoadCSV(path string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("数据文件 %s 没有数据行", path)
	}

	idx := map[string]int{}
	for i, col := range rows[0] {
		name := normalizeColumn(col)
		if name == "" {
			continue
		}
		idx[name] = i
	}
	for _, need := range []string{"Open", "High", "Low", "Close", "Volume"} {
		if _, ok := idx[need]; !ok {
			return nil, fmt.Errorf("数据文件缺少 %s 列", need)
		}
	}

	var out []Candle
	for _, row := range rows[1:] {
		c := Candle{
			Open:   parseFloat(row, idx["Open"]),
			High:   parseFloat(row, idx["High"]),
			Low:    parseFloat(row, idx["Low"]),
			Close:  parseFloat(row, idx["Close"]),
			Volume: parseFloat(row, idx["Volume"]),
		}
		if i, ok := idx["Datetime"]; ok && i < len(row) {
			c.Time, _ = time.Parse(time.RFC3339, row[i])
		}
		out = append(out, c)
	}
	return out, nil
}

// WriteCSV 以规范列序落盘。
func WriteCSV(path string, candles []Candle) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(canonicalHeader); err != nil {
		return err
	}
	for _, c := range candles {
		row := []string{
			c.Time.Format(time.RFC3339),
			formatFloat(c.Open),
			formatFloat(c.High),
			formatFloat(c.Low),
			formatFloat(c.Close),
			formatFloat(c.Volume),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// normalizeColumn 统一各种来源的列名：大小写不敏感，常见别名折叠。
func normalizeColumn(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" || strings.HasPrefix(strings.ToLower(name), "unnamed") {
		return ""
	}
	switch strings.ToLower(name) {
	case "open":
		return "Open"
	case "high":
		return "High"
	case "low":
		return "Low"
	case "close", "adj close":
		return "Close"
	case "volume", "vol":
		return "Volume"
	case "datetime", "date", "time", "timestamp":
		return "Datetime"
	}
	return ""
}

func parseFloat(row []string, i int) float64 {
	if i >= len(row) {
		return 0
	}
	f, _ := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
