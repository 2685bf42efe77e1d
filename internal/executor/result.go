// Package executor 在受控子进程中运行回测脚本并对输出做分类。
package executor

import (
	"encoding/json"
	"time"
)

// ExecutionResult 一次脚本执行的完整捕获。
type ExecutionResult struct {
	Stdout     string
	Stderr     string
	ReturnCode int
	Duration   time.Duration
	TimedOut   bool
	Timestamp  time.Time
}

// Success 进程正常退出且未超时。
func (r ExecutionResult) Success() bool {
	return !r.TimedOut && r.ReturnCode == 0
}

// resultRecord 为落盘 JSON 的布局，字段名与既有记录保持兼容。
type resultRecord struct {
	Success       bool    `json:"success"`
	ReturnCode    *int    `json:"return_code"`
	Stdout        string  `json:"stdout"`
	Stderr        string  `json:"stderr"`
	ExecutionTime float64 `json:"execution_time"`
	Timestamp     string  `json:"timestamp"`
}

// MarshalRecord 生成执行记录 JSON。超时的退出码无意义，置 null。
func (r ExecutionResult) MarshalRecord() ([]byte, error) {
	rec := resultRecord{
		Success:       r.Success(),
		Stdout:        r.Stdout,
		Stderr:        r.Stderr,
		ExecutionTime: r.Duration.Seconds(),
		Timestamp:     r.Timestamp.Format(time.RFC3339),
	}
	if !r.TimedOut {
		code := r.ReturnCode
		rec.ReturnCode = &code
	}
	return json.MarshalIndent(rec, "", "  ")
}
