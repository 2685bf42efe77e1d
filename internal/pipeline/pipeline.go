// Package pipeline 串起单个想法的处理流程与自主修复循环。
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rbi/internal/artifact"
	"rbi/internal/executor"
	"rbi/internal/extract"
	"rbi/internal/ledger"
	"rbi/internal/logger"
	"rbi/internal/stage"
	"rbi/internal/store/runstore"
	"rbi/internal/store/stagelog"
)

// 终态展示串，打在每个想法的收尾日志里。
const (
	OutcomeOK              = "ok"
	OutcomeSkipped         = "skipped"
	OutcomeTargetHit       = "target-hit"
	OutcomeBudgetExhausted = "budget-exhausted"
)

// Outcome 一个想法的终态。
type Outcome struct {
	Status       string
	Reason       string
	StrategyName string
}

func (o Outcome) String() string {
	if o.Status == OutcomeSkipped && o.Reason != "" {
		return fmt.Sprintf("skipped (%s)", o.Reason)
	}
	return o.Status
}

// ContentExtractor 见 extract 包。
type ContentExtractor interface {
	Extract(ctx context.Context, source string) (string, error)
}

// StageRunner 见 stage 包。
type StageRunner interface {
	Run(ctx context.Context, s stage.Stage, in stage.Input) (stage.Result, error)
}

// ScriptRunner 见 executor 包。
type ScriptRunner interface {
	Run(ctx context.Context, scriptPath string) executor.ExecutionResult
}

// Pipeline 对单个想法执行 Research → Backtest → Package → Debug，
// 再视配置进入修复循环。
type Pipeline struct {
	extractor ContentExtractor
	runner    StageRunner
	ledger    *ledger.Ledger
	store     *artifact.Store
	loop      *RepairLoop
	selectors stage.SelectorSource

	runs   *runstore.Store  // 可为 nil
	stages *stagelog.Store  // 可为 nil

	autonomousExecute bool
}

type Deps struct {
	Extractor         ContentExtractor
	Runner            StageRunner
	Ledger            *ledger.Ledger
	Store             *artifact.Store
	Loop              *RepairLoop
	Selectors         stage.SelectorSource
	Runs              *runstore.Store
	Stages            *stagelog.Store
	AutonomousExecute bool
}

func New(d Deps) *Pipeline {
	return &Pipeline{
		extractor:         d.Extractor,
		runner:            d.Runner,
		ledger:            d.Ledger,
		store:             d.Store,
		loop:              d.Loop,
		selectors:         d.Selectors,
		runs:              d.Runs,
		stages:            d.Stages,
		autonomousExecute: d.AutonomousExecute,
	}
}

// ProcessIdea 处理一个想法。阶段失败只终结当前想法，返回 skipped 而非 error；
// 返回 error 仅代表上下文取消。
func (p *Pipeline) ProcessIdea(ctx context.Context, source string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	logged, err := p.ledger.IsLogged(source)
	if err != nil {
		return p.skip("", "", fmt.Sprintf("ledger read failed: %v", err)), nil
	}
	if logged {
		logger.Infof("想法已处理过，跳过: %s", ledger.Snippet(source))
		return Outcome{Status: OutcomeSkipped, Reason: "already processed"}, nil
	}

	runID := uuid.NewString()
	p.recordRunStart(ctx, runID, source)

	text, err := p.extractor.Extract(ctx, source)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		// 内容拿不到：不记账，留待下次重试
		return p.skip(runID, "", "content unavailable"), nil
	}

	res, err := p.runStage(ctx, runID, stage.Research, stage.Input{IdeaText: text})
	if err != nil {
		return p.stageFailure(ctx, runID, stage.Research, err)
	}
	name := res.StrategyName
	strategyText := res.Text
	p.setStrategyName(ctx, runID, name)

	// 名字落定后才记账，Research 失败的想法保持可重试
	if err := p.ledger.Record(source, name); err != nil {
		return p.skip(runID, name, fmt.Sprintf("ledger append failed: %v", err)), nil
	}

	res, err = p.runStage(ctx, runID, stage.Backtest, stage.Input{
		StrategyName: name,
		StrategyText: strategyText,
	})
	if err != nil {
		return p.stageFailure(ctx, runID, stage.Backtest, err)
	}

	res, err = p.runStage(ctx, runID, stage.Package, stage.Input{
		StrategyName: name,
		Code:         res.Text,
	})
	if err != nil {
		return p.stageFailure(ctx, runID, stage.Package, err)
	}

	res, err = p.runStage(ctx, runID, stage.Debug, stage.Input{
		StrategyName: name,
		Code:         res.Text,
		StrategyText: strategyText,
	})
	if err != nil {
		return p.stageFailure(ctx, runID, stage.Debug, err)
	}

	if !p.autonomousExecute || p.loop == nil {
		p.finishRun(ctx, runID, runstore.StatusOK, "")
		return Outcome{Status: OutcomeOK, StrategyName: name}, nil
	}

	loopOutcome, err := p.loop.Run(ctx, runID, name, res.Text, strategyText)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return p.skip(runID, name, fmt.Sprintf("repair loop failed: %v", err)), nil
	}
	switch loopOutcome {
	case LoopTargetHit:
		p.finishRun(ctx, runID, runstore.StatusTargetHit, "")
		return Outcome{Status: OutcomeTargetHit, StrategyName: name}, nil
	default:
		p.finishRun(ctx, runID, runstore.StatusBudgetExhausted, "")
		return Outcome{Status: OutcomeBudgetExhausted, StrategyName: name}, nil
	}
}

// runStage 包一层留痕：耗时、所用模型、产物路径进 stage log。
func (p *Pipeline) runStage(ctx context.Context, runID string, s stage.Stage, in stage.Input) (stage.Result, error) {
	start := time.Now()
	res, err := p.runner.Run(ctx, s, in)
	p.recordStageCall(ctx, runID, s, in.StrategyName, res, err, time.Since(start))
	return res, err
}

func (p *Pipeline) stageFailure(ctx context.Context, runID string, s stage.Stage, err error) (Outcome, error) {
	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}
	logger.Errorf("[%s] 阶段失败: %v", s, err)
	reason := fmt.Sprintf("%s stage failed", s)
	if errors.Is(err, extract.ErrContentUnavailable) {
		reason = "content unavailable"
	}
	return p.skip(runID, "", reason), nil
}

func (p *Pipeline) skip(runID, name, reason string) Outcome {
	if runID != "" {
		p.finishRun(context.Background(), runID, runstore.StatusSkipped, reason)
	}
	return Outcome{Status: OutcomeSkipped, Reason: reason, StrategyName: name}
}

func (p *Pipeline) recordRunStart(ctx context.Context, runID, source string) {
	if p.runs == nil {
		return
	}
	err := p.runs.InsertRun(ctx, runstore.Run{
		ID:            runID,
		ContentHash:   ledger.Hash(source),
		SourceSnippet: ledger.Snippet(source),
		DateFolder:    p.store.DateFolder(),
	})
	if err != nil {
		logger.Warnf("run store 写入失败: %v", err)
	}
}

func (p *Pipeline) setStrategyName(ctx context.Context, runID, name string) {
	if p.runs == nil {
		return
	}
	if err := p.runs.SetStrategyName(ctx, runID, name); err != nil {
		logger.Warnf("run store 更新失败: %v", err)
	}
}

func (p *Pipeline) finishRun(ctx context.Context, runID, status, message string) {
	if p.runs == nil || runID == "" {
		return
	}
	if err := p.runs.Finish(ctx, runID, status, message); err != nil {
		logger.Warnf("run store 收尾失败: %v", err)
	}
}

func (p *Pipeline) recordStageCall(ctx context.Context, runID string, s stage.Stage, strategy string, res stage.Result, callErr error, dur time.Duration) {
	if p.stages == nil {
		return
	}
	call := stagelog.StageCallModel{
		RunID:        runID,
		StrategyName: firstNonEmpty(res.StrategyName, strategy),
		Stage:        s.String(),
		Skipped:      res.Skipped,
		DurationMS:   dur.Milliseconds(),
		ArtifactPath: res.Path,
	}
	if p.selectors != nil {
		if sel, ok := p.selectors.Selector(s); ok {
			call.Provider = sel.Provider
			call.Model = sel.Model
		}
	}
	if callErr != nil {
		call.Error = callErr.Error()
	}
	if err := p.stages.Record(ctx, call, nil); err != nil {
		logger.Warnf("stage log 写入失败: %v", err)
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// nullFloat / nullInt 供 repair loop 落库使用。
func nullFloat(f float64, ok bool) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: ok}
}

func nullInt(v int, ok bool) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: ok}
}
