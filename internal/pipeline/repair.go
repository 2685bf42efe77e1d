package pipeline

import (
	"context"
	"fmt"

	"rbi/internal/artifact"
	"rbi/internal/executor"
	"rbi/internal/logger"
	"rbi/internal/report"
	"rbi/internal/stage"
	"rbi/internal/store/runstore"
)

// LoopOutcome 修复循环的两种终局。
type LoopOutcome string

const (
	LoopTargetHit       LoopOutcome = "TARGET_HIT"
	LoopBudgetExhausted LoopOutcome = "BUDGET_EXHAUSTED"
)

const timeoutStderr = "execution exceeded timeout"

// RepairLoop 执行-诊断-修复状态机。每个修订占用新的版本路径，
// 且执行前代码必已落盘，执行记录始终指向当轮运行的脚本。
type RepairLoop struct {
	runner StageRunner
	exec   ScriptRunner
	store  *artifact.Store
	parser *executor.Parser
	runs   *runstore.Store // 可为 nil

	targetReturnPct float64
	maxIterations   int
	renderChart     bool
}

type LoopDeps struct {
	Runner          StageRunner
	Exec            ScriptRunner
	Store           *artifact.Store
	Parser          *executor.Parser
	Runs            *runstore.Store
	TargetReturnPct float64
	MaxIterations   int
	RenderChart     bool
}

func NewRepairLoop(d LoopDeps) *RepairLoop {
	if d.MaxIterations <= 0 {
		d.MaxIterations = 1
	}
	return &RepairLoop{
		runner:          d.Runner,
		exec:            d.Exec,
		store:           d.Store,
		parser:          d.Parser,
		runs:            d.Runs,
		targetReturnPct: d.TargetReturnPct,
		maxIterations:   d.MaxIterations,
		renderChart:     d.RenderChart,
	}
}

// Run 对最终回测脚本启动循环。返回 error 仅在上下文取消或
// 模型侧把某次修复也做不出来（此时循环无法继续）。
func (l *RepairLoop) Run(ctx context.Context, runID, strategy, finalCode, strategyText string) (LoopOutcome, error) {
	currentCode := finalCode
	var points []report.LoopPoint

	outcome := LoopBudgetExhausted
	for iteration := 0; iteration < l.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		// 第 0 轮复用 Debug 终稿；之后每轮先把当前修订落成 OPT_v<k>
		scriptPath := l.store.Path(artifact.KindFinal, strategy, 0)
		if iteration > 0 {
			var err error
			scriptPath, err = l.store.Write(artifact.KindOptimized, strategy, iteration, []byte(currentCode))
			if err != nil {
				return "", fmt.Errorf("persist revision v%d: %w", iteration, err)
			}
		}

		logger.Stagef("loop", strategy, "第 %d 轮执行 %s", iteration, scriptPath)
		res := l.exec.Run(ctx, scriptPath)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		cls := l.parser.Classify(res, l.targetReturnPct)
		retPct, hasRet := l.parser.ReturnPct(res)

		if record, err := res.MarshalRecord(); err == nil {
			if _, werr := l.store.WriteExecutionResult(strategy, res.Timestamp, record); werr != nil {
				logger.Warnf("执行记录落盘失败: %v", werr)
			}
		}
		l.recordIteration(ctx, runID, strategy, iteration, scriptPath, res, cls, retPct, hasRet)
		points = append(points, report.LoopPoint{
			Iteration:      iteration,
			Classification: string(cls),
			ReturnPct:      retPct,
			HasReturn:      hasRet,
		})
		logger.Stagef("loop", strategy, "第 %d 轮分类 %s", iteration, cls)

		if cls == executor.SuccessAtTarget {
			if _, err := l.store.CopyTargetHit(strategy, []byte(currentCode)); err != nil {
				logger.Warnf("TARGET_HIT 副本落盘失败: %v", err)
			}
			outcome = LoopTargetHit
			break
		}

		next, err := l.repair(ctx, strategy, strategyText, currentCode, res, cls, iteration+1)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", err
		}
		currentCode = next
	}

	if l.renderChart && len(points) > 0 {
		if _, err := report.RenderLoopChart(l.store, strategy, l.targetReturnPct, points); err != nil {
			logger.Warnf("收益曲线渲染失败: %v", err)
		}
	}
	return outcome, nil
}

// repair 按分类选下一个阶段：达不到目标走 Optimize，跑不起来走 Debug。
// 超时视同失败，用合成的 stderr 驱动 Debug。
func (l *RepairLoop) repair(ctx context.Context, strategy, strategyText, code string, res executor.ExecutionResult, cls executor.Classification, nextVersion int) (string, error) {
	var (
		out stage.Result
		err error
	)
	switch cls {
	case executor.SuccessBelowTarget:
		out, err = l.runner.Run(ctx, stage.Optimize, stage.Input{
			StrategyName: strategy,
			Code:         code,
			Stdout:       res.Stdout,
			Version:      nextVersion,
		})
	case executor.Timeout:
		out, err = l.runner.Run(ctx, stage.Debug, stage.Input{
			StrategyName: strategy,
			Code:         code,
			ErrorText:    timeoutStderr,
			StrategyText: strategyText,
			Version:      nextVersion,
		})
	default: // Failure
		out, err = l.runner.Run(ctx, stage.Debug, stage.Input{
			StrategyName: strategy,
			Code:         code,
			ErrorText:    l.parser.ExtractError(res),
			StrategyText: strategyText,
			Version:      nextVersion,
		})
	}
	if err != nil {
		return "", fmt.Errorf("repair via %s failed: %w", cls, err)
	}
	return out.Text, nil
}

func (l *RepairLoop) recordIteration(ctx context.Context, runID, strategy string, iteration int, scriptPath string, res executor.ExecutionResult, cls executor.Classification, retPct float64, hasRet bool) {
	if l.runs == nil || runID == "" {
		return
	}
	_, err := l.runs.InsertIteration(ctx, runstore.Iteration{
		RunID:          runID,
		Iteration:      iteration,
		Classification: string(cls),
		ReturnPct:      nullFloat(retPct, hasRet),
		ReturnCode:     nullInt(res.ReturnCode, !res.TimedOut),
		TimedOut:       res.TimedOut,
		DurationMS:     res.Duration.Milliseconds(),
		ScriptPath:     scriptPath,
		ResultPath:     l.store.ExecutionResultPath(strategy, res.Timestamp),
	})
	if err != nil {
		logger.Warnf("迭代记录写入失败: %v", err)
	}
}
