package app

import (
	"context"
	"fmt"

	rbicfg "rbi/internal/config"
	"rbi/internal/logger"
	"rbi/internal/pipeline"
	"rbi/internal/store/runstore"
	"rbi/internal/store/stagelog"
	statushttp "rbi/internal/transport/http/status"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动流水线与状态接口。
type App struct {
	cfg        *rbicfg.Config
	orch       *pipeline.Orchestrator
	statusHTTP *statushttp.Server

	runs   *runstore.Store
	stages *stagelog.Store
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *rbicfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动流水线。watch_ideas 开启时常驻监听清单文件，
// 否则处理完一遍清单即退出。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.orch == nil {
		return fmt.Errorf("orchestrator not initialized")
	}
	defer a.closeStores()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, ctx := errgroup.WithContext(ctx)

	if a.statusHTTP != nil {
		group.Go(func() error {
			if err := a.statusHTTP.Start(ctx); err != nil {
				return fmt.Errorf("status http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		// 单轮模式跑完后 cancel，放状态接口下线
		defer cancel()
		if a.cfg.Pipeline.WatchIdeas {
			return a.orch.Watch(ctx)
		}
		if err := a.orch.Run(ctx); err != nil {
			return err
		}
		logger.Infof("清单处理完毕，退出")
		return nil
	})

	return group.Wait()
}

func (a *App) closeStores() {
	if a.runs != nil {
		if err := a.runs.Close(); err != nil {
			logger.Warnf("关闭 run 存储失败: %v", err)
		}
	}
	if a.stages != nil {
		if err := a.stages.Close(); err != nil {
			logger.Warnf("关闭 stage 存储失败: %v", err)
		}
	}
}
