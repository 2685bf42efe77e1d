package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"rbi/internal/artifact"
	"rbi/internal/ledger"
	"rbi/internal/logger"
)

const ideasTemplate = `# 每行一个交易想法：自由文本、YouTube 链接或 PDF 链接。
# 以 # 开头的行是注释。处理顺序即行序。
`

// Orchestrator 顺序消费 ideas 清单，想法之间串行。
type Orchestrator struct {
	pipeline  *Pipeline
	ideasPath string

	maxIdeas  int           // <=0 表示不设上限
	ideaSleep time.Duration // 相邻想法之间的间隔
}

func NewOrchestrator(p *Pipeline, ideasPath string, maxIdeas int, ideaSleep time.Duration) *Orchestrator {
	return &Orchestrator{
		pipeline:  p,
		ideasPath: ideasPath,
		maxIdeas:  maxIdeas,
		ideaSleep: ideaSleep,
	}
}

// Run 处理一遍清单。清单缺失时生成模板并正常返回；
// 单个想法的失败不终止整轮。
func (o *Orchestrator) Run(ctx context.Context) error {
	ideas, err := o.loadIdeas()
	if err != nil {
		return err
	}
	if len(ideas) == 0 {
		logger.Infof("清单没有待处理的想法")
		return nil
	}
	if o.maxIdeas > 0 && len(ideas) > o.maxIdeas {
		ideas = ideas[:o.maxIdeas]
	}
	logger.Infof("本轮处理 %d 个想法", len(ideas))

	for i, idea := range ideas {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := o.pipeline.ProcessIdea(ctx, idea)
		if err != nil {
			return err
		}
		logger.Infof("[%d/%d] %s: %s", i+1, len(ideas), outcomeLabel(outcome), ledger.Snippet(idea))
		if o.ideaSleep > 0 && i < len(ideas)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.ideaSleep):
			}
		}
	}
	return nil
}

// Watch 先跑一遍，然后监听清单文件变更，每次写入后再跑一遍。
func (o *Orchestrator) Watch(ctx context.Context) error {
	if err := o.Run(ctx); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(o.ideasPath)); err != nil {
		return err
	}
	logger.Infof("监听 %s，文件变更后自动重跑", o.ideasPath)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != filepath.Clean(o.ideasPath) {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
				continue
			}
			logger.Infof("清单有更新，重新处理")
			if err := o.Run(ctx); err != nil {
				return err
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("清单监听出错: %v", werr)
		}
	}
}

// loadIdeas 读取清单；文件不存在时写入模板，返回空清单。
func (o *Orchestrator) loadIdeas() ([]string, error) {
	raw, err := os.ReadFile(o.ideasPath)
	if os.IsNotExist(err) {
		logger.Infof("清单不存在，生成模板: %s", o.ideasPath)
		if werr := artifact.WriteFileAtomic(o.ideasPath, []byte(ideasTemplate)); werr != nil {
			return nil, fmt.Errorf("写入清单模板失败: %w", werr)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取清单失败: %w", err)
	}

	var ideas []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ideas = append(ideas, line)
	}
	return ideas, nil
}

func outcomeLabel(o Outcome) string {
	if o.StrategyName != "" {
		return fmt.Sprintf("%s [%s]", o.String(), o.StrategyName)
	}
	return o.String()
}
