package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"rbi/internal/logger"
)

// Executor 以固定解释器运行脚本，强制执行超时。
// 同一时刻至多一个子进程存活。
type Executor struct {
	// Interpreter 解释器命令，默认 python3；可指向某个 conda/venv 环境内的解释器。
	Interpreter string
	// WorkDir 子进程工作目录，空则继承当前目录。
	WorkDir string
	Timeout time.Duration
}

func New(interpreter, workDir string, timeout time.Duration) *Executor {
	if interpreter == "" {
		interpreter = "python3"
	}
	if timeout == 0 {
		timeout = 300 * time.Second
	}
	return &Executor{Interpreter: interpreter, WorkDir: workDir, Timeout: timeout}
}

// Run 执行脚本并捕获全部输出。超时时 TimedOut=true，退出码不可信。
func (e *Executor) Run(ctx context.Context, scriptPath string) ExecutionResult {
	runCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.Interpreter, scriptPath)
	cmd.Dir = e.WorkDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := ExecutionResult{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  time.Since(start),
		Timestamp: start,
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		logger.Warnf("脚本 %s 超时（%s），已终止", scriptPath, e.Timeout)
		return res
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ReturnCode = exitErr.ExitCode()
		} else {
			// 启动失败（解释器不存在等），按非零退出处理
			res.ReturnCode = -1
			res.Stderr = err.Error()
		}
	}
	return res
}
