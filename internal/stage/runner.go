package stage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rbi/internal/artifact"
	"rbi/internal/gateway/provider"
	"rbi/internal/logger"
	"rbi/internal/namegen"
	"rbi/internal/sanitize"
)

var (
	// ErrEmptyModelResponse 模型在重试后仍未返回文本。
	ErrEmptyModelResponse = errors.New("empty model response")
	// ErrSanitizedEmpty 清洗后内容为空（通常是只有围栏没有代码）。
	ErrSanitizedEmpty = errors.New("sanitized output is empty")
	// ErrNoSelector 阶段未配置模型。
	ErrNoSelector = errors.New("no model selector for stage")
)

// Gateway 是 Runner 对模型层的最小依赖面。
type Gateway interface {
	Generate(ctx context.Context, sel provider.Selector, stage, systemPrompt, userContent string, opts provider.Options) (string, error)
}

// SelectorSource 提供阶段到模型的映射；允许热更新的实现。
type SelectorSource interface {
	Selector(s Stage) (provider.Selector, bool)
}

// MapSource 静态映射实现。
type MapSource map[Stage]provider.Selector

func (m MapSource) Selector(s Stage) (provider.Selector, bool) {
	sel, ok := m[s]
	return sel, ok
}

// Input 聚合一次阶段调用所需的全部上游材料；各阶段只取自己需要的字段。
type Input struct {
	StrategyName string
	IdeaText     string // Research
	StrategyText string // Backtest 与 Debug 的参考
	Code         string // Package / Debug / Optimize
	ErrorText    string // Debug：上一次执行的错误输出
	Stdout       string // Optimize：上一次执行的统计输出
	Version      int    // 修复循环修订号，>0 时产物落 backtests_optimized
}

// Result 为一次阶段调用的产出。
type Result struct {
	Text         string
	StrategyName string
	Path         string
	Skipped      bool
}

// Runner 执行单个阶段：拼用户内容、调模型、清洗、落盘。
type Runner struct {
	gw        Gateway
	store     *artifact.Store
	names     *namegen.Generator
	selectors SelectorSource
	opts      provider.Options
}

func NewRunner(gw Gateway, store *artifact.Store, names *namegen.Generator, selectors SelectorSource, opts provider.Options) *Runner {
	return &Runner{gw: gw, store: store, names: names, selectors: selectors, opts: opts}
}

// Run 执行一个阶段。规范路径已有产物时跳过模型调用，返回既有内容。
func (r *Runner) Run(ctx context.Context, s Stage, in Input) (Result, error) {
	sel, ok := r.selectors.Selector(s)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNoSelector, s)
	}

	// Research 的策略名来自输出本身，无法提前判重；
	// 修复循环内的调用（Version>0）总是产出新版本，不判重
	if s != Research && s != Optimize && in.Version == 0 && r.store.Exists(s.ArtifactKind(), in.StrategyName, 0) {
		data, err := r.store.Read(s.ArtifactKind(), in.StrategyName, 0)
		if err != nil {
			return Result{}, err
		}
		logger.Stagef(s.String(), in.StrategyName, "产物已存在，跳过")
		return Result{
			Text:         string(data),
			StrategyName: in.StrategyName,
			Path:         r.store.Path(s.ArtifactKind(), in.StrategyName, 0),
			Skipped:      true,
		}, nil
	}

	logger.Stagef(s.String(), in.StrategyName, "调用 %s", sel)
	raw, err := r.generateWithRetry(ctx, sel, s, in)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(raw) == "" {
		return Result{}, fmt.Errorf("%w: stage=%s", ErrEmptyModelResponse, s)
	}

	text := sanitize.Clean(raw, s.ContentType())
	if text == "" {
		return Result{}, fmt.Errorf("%w: stage=%s", ErrSanitizedEmpty, s)
	}

	name := in.StrategyName
	if s == Research {
		name = r.strategyName(text)
	}

	kind := s.ArtifactKind()
	if in.Version > 0 {
		// 循环修订一律进 backtests_optimized，带版本号
		kind = artifact.KindOptimized
	}
	path, err := r.store.Write(kind, name, in.Version, []byte(text))
	if err != nil {
		return Result{}, fmt.Errorf("persist %s artifact: %w", s, err)
	}
	return Result{Text: text, StrategyName: name, Path: path}, nil
}

// generateWithRetry 对瞬时错误做一次阶段内重试；凭证缺失直接失败。
func (r *Runner) generateWithRetry(ctx context.Context, sel provider.Selector, s Stage, in Input) (string, error) {
	user := composeUserContent(s, in)
	out, err := r.gw.Generate(ctx, sel, s.String(), s.SystemPrompt(), user, r.opts)
	if err == nil || errors.Is(err, provider.ErrProviderUnavailable) || ctx.Err() != nil {
		return out, err
	}
	logger.Warnf("[%s] 模型调用失败，重试一次: %v", s, err)
	return r.gw.Generate(ctx, sel, s.String(), s.SystemPrompt(), user, r.opts)
}

func composeUserContent(s Stage, in Input) string {
	switch s {
	case Research:
		return in.IdeaText
	case Backtest:
		return "Create a backtest for this strategy:\n\n" + in.StrategyText
	case Package:
		return "Check and fix indicator packages in this code:\n\n" + in.Code
	case Debug:
		var b strings.Builder
		b.WriteString("Here's the backtest code to debug:\n\n")
		b.WriteString(in.Code)
		if in.ErrorText != "" {
			b.WriteString("\n\nExecution error output:\n")
			b.WriteString(in.ErrorText)
		}
		if in.StrategyText != "" {
			b.WriteString("\n\nOriginal strategy for reference:\n")
			b.WriteString(in.StrategyText)
		}
		return b.String()
	default: // Optimize
		return "Improve this backtest. Current stdout:\n" + in.Stdout + "\n\nCode:\n" + in.Code
	}
}

// strategyName 从 Research 输出中提取 STRATEGY_NAME: 行并归一化；
// 缺失或归一化后为空时合成一个名字。
func (r *Runner) strategyName(text string) string {
	for _, line := range strings.Split(text, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "STRATEGY_NAME:")
		if !ok {
			continue
		}
		if name := namegen.Normalize(strings.TrimSpace(rest)); name != "" {
			return name
		}
	}
	name := r.names.Next()
	logger.Warnf("Research 输出缺少 STRATEGY_NAME，合成名字 %s", name)
	return name
}
