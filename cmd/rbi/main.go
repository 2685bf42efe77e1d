package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"rbi/internal/app"
	rbicfg "rbi/internal/config"
	"rbi/internal/logger"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("RBI_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := rbicfg.Load(cfgPath)
	if err != nil {
		log.Printf("读取配置失败: %v", err)
		os.Exit(2)
	}

	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Printf("初始化日志文件失败: %v", err)
		os.Exit(2)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	llmFile, err := setupLLMLogOutput(cfg.App.LLMLogPath)
	if err != nil {
		log.Printf("初始化 LLM 日志失败: %v", err)
		os.Exit(2)
	}
	if llmFile != nil {
		defer llmFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（%s）", cfgPath)

	application, err := app.NewApp(cfg)
	if err != nil {
		logger.Errorf("初始化应用失败: %v", err)
		os.Exit(2)
	}

	err = application.Run(ctx)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		logger.Infof("收到退出信号，已停止")
		os.Exit(130)
	}
	if err != nil {
		logger.Errorf("运行失败: %v", err)
		os.Exit(1)
	}
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}

// setupLLMLogOutput 配置了路径就开启模型请求/响应留档。
func setupLLMLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	logger.SetLLMWriter(f)
	return f, nil
}
