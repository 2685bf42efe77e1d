package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rbi/internal/artifact"
	rbicfg "rbi/internal/config"
	"rbi/internal/dataset"
	"rbi/internal/executor"
	"rbi/internal/extract"
	"rbi/internal/gateway/provider"
	"rbi/internal/ledger"
	"rbi/internal/logger"
	"rbi/internal/modelmap"
	"rbi/internal/namegen"
	"rbi/internal/pipeline"
	"rbi/internal/stage"
	"rbi/internal/store/runstore"
	"rbi/internal/store/stagelog"
	statushttp "rbi/internal/transport/http/status"
)

// 模型调用的单次超时，与脚本执行超时分开管理。
const modelCallTimeout = 180 * time.Second

type AppBuilder struct {
	cfg *rbicfg.Config

	registryFn   func(*rbicfg.Config) (*modelmap.Registry, error)
	gatewayFn    func(time.Duration) stage.Gateway
	statusHTTPFn func(rbicfg.AppConfig, *runstore.Store, *stagelog.Store, *modelmap.Registry, string) (*statushttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *rbicfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:          cfg,
		registryFn:   buildRegistry,
		gatewayFn:    buildGateway,
		statusHTTPFn: buildStatusServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	store, err := artifact.NewStore(cfg.Pipeline.ArtifactRoot, cfg.Pipeline.DateFolder)
	if err != nil {
		return nil, fmt.Errorf("初始化产物目录失败: %w", err)
	}
	if err := store.EnsureSideDirs(); err != nil {
		return nil, fmt.Errorf("创建产物子目录失败: %w", err)
	}
	logger.Infof("✓ 产物根目录: %s（日期目录 %s）", cfg.Pipeline.ArtifactRoot, store.DateFolder())

	led, err := ledger.New(cfg.Pipeline.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("初始化账本失败: %w", err)
	}

	registry, err := b.registryFn(cfg)
	if err != nil {
		return nil, err
	}

	gw := b.gatewayFn(modelCallTimeout)
	runner := stage.NewRunner(gw, store, namegen.New(time.Now().UnixNano()), registry, provider.Options{
		Temperature: cfg.Pipeline.Temperature,
		MaxTokens:   cfg.Pipeline.MaxTokens,
	})

	// 路径显式置空时关闭对应存储，文件系统状态仍是权威
	var runs *runstore.Store
	if path := strings.TrimSpace(cfg.Store.RunDBPath); path != "" {
		runs, err = runstore.New(path)
		if err != nil {
			return nil, fmt.Errorf("初始化 run 存储失败: %w", err)
		}
	}
	var stages *stagelog.Store
	if path := strings.TrimSpace(cfg.Store.StageDBPath); path != "" {
		stages, err = stagelog.New(path)
		if err != nil {
			if runs != nil {
				runs.Close()
			}
			return nil, fmt.Errorf("初始化 stage 留痕存储失败: %w", err)
		}
	}

	execTimeout := time.Duration(cfg.Pipeline.ExecutionTimeoutSeconds) * time.Second
	loop := pipeline.NewRepairLoop(pipeline.LoopDeps{
		Runner:          runner,
		Exec:            executor.New(cfg.Pipeline.Interpreter, cfg.Pipeline.WorkDir, execTimeout),
		Store:           store,
		Parser:          executor.NewParser(),
		Runs:            runs,
		TargetReturnPct: cfg.Pipeline.TargetReturnPct,
		MaxIterations:   cfg.Pipeline.MaxIterations,
		RenderChart:     cfg.Pipeline.RenderChart,
	})

	pipe := pipeline.New(pipeline.Deps{
		Extractor:         extract.New(modelCallTimeout),
		Runner:            runner,
		Ledger:            led,
		Store:             store,
		Loop:              loop,
		Selectors:         registry,
		Runs:              runs,
		Stages:            stages,
		AutonomousExecute: cfg.Pipeline.AutonomousExecute,
	})
	orch := pipeline.NewOrchestrator(pipe, cfg.Pipeline.IdeasPath, cfg.Pipeline.MaxIdeas,
		time.Duration(cfg.Pipeline.IdeaSleepSeconds)*time.Second)

	if cfg.Dataset.AutoFetch {
		ensureDataset(ctx, cfg.Dataset)
	}

	var statusSrv *statushttp.Server
	switch {
	case cfg.App.HTTPEnable && runs == nil:
		logger.Warnf("run 存储未启用，状态接口不可用")
	case cfg.App.HTTPEnable:
		statusSrv, err = b.statusHTTPFn(cfg.App, runs, stages, registry, cfg.Pipeline.LedgerPath)
		if err != nil {
			runs.Close()
			if stages != nil {
				stages.Close()
			}
			return nil, fmt.Errorf("初始化状态接口失败: %w", err)
		}
	}

	return &App{
		cfg:        cfg,
		orch:       orch,
		statusHTTP: statusSrv,
		runs:       runs,
		stages:     stages,
	}, nil
}

// buildRegistry 外部 models.yaml 优先（带热更新），否则用主配置内联映射。
func buildRegistry(cfg *rbicfg.Config) (*modelmap.Registry, error) {
	if path := strings.TrimSpace(cfg.Models.MapPath); path != "" {
		reg, err := modelmap.NewFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("加载 model map 失败: %w", err)
		}
		reg.OnChange(func(snap modelmap.Snapshot) {
			logger.Infof("model map 已热更新到 v%d（%d 个阶段）", snap.Version, len(snap.Selectors))
		})
		return reg, nil
	}
	selectors := make(map[stage.Stage]provider.Selector, len(cfg.Models.StageModels))
	for name, entry := range cfg.Models.StageModels {
		s := stage.Stage(strings.ToLower(strings.TrimSpace(name)))
		selectors[s] = provider.Selector{Provider: entry.Provider, Model: entry.Model}
	}
	return modelmap.NewStatic(selectors), nil
}

func buildGateway(timeout time.Duration) stage.Gateway {
	return provider.NewGateway(timeout)
}

func buildStatusServer(appCfg rbicfg.AppConfig, runs *runstore.Store, stages *stagelog.Store, registry *modelmap.Registry, ledgerPath string) (*statushttp.Server, error) {
	return statushttp.NewServer(statushttp.Config{
		Addr:       appCfg.HTTPAddr,
		Runs:       runs,
		Stages:     stages,
		Registry:   registry,
		LedgerPath: ledgerPath,
	})
}

// ensureDataset 数据文件缺失时拉取；失败不阻塞启动，回测脚本自己会报错。
func ensureDataset(ctx context.Context, cfg rbicfg.DatasetConfig) {
	fetcher := dataset.NewFetcher()
	if err := fetcher.Ensure(ctx, cfg.Path, cfg.Symbol, cfg.Interval, cfg.Limit); err != nil {
		logger.Warnf("数据文件准备失败: %v", err)
		return
	}
	candles, err := dataset.LoadCSV(cfg.Path)
	if err != nil {
		logger.Warnf("数据文件读取失败: %v", err)
		return
	}
	snap, err := dataset.Describe(candles)
	if err != nil {
		logger.Warnf("数据健全性检查失败: %v", err)
		return
	}
	logger.Infof("✓ 数据就绪 %s: %s", cfg.Path, snap)
}

func WithRegistry(fn func(*rbicfg.Config) (*modelmap.Registry, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.registryFn = fn
		}
	}
}

func WithGateway(fn func(time.Duration) stage.Gateway) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.gatewayFn = fn
		}
	}
}

func WithStatusHTTP(fn func(rbicfg.AppConfig, *runstore.Store, *stagelog.Store, *modelmap.Registry, string) (*statushttp.Server, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.statusHTTPFn = fn
		}
	}
}
