// Package stage 定义流水线的五个阶段及其提示词、输出类型与产物映射。
package stage

import (
	"rbi/internal/artifact"
	"rbi/internal/sanitize"
)

type Stage string

const (
	Research Stage = "research"
	Backtest Stage = "backtest"
	Package  Stage = "package"
	Debug    Stage = "debug"
	Optimize Stage = "optimize"
)

// All 按流水线顺序返回全部阶段。
func All() []Stage {
	return []Stage{Research, Backtest, Package, Debug, Optimize}
}

func (s Stage) String() string { return string(s) }

func (s Stage) Valid() bool {
	switch s {
	case Research, Backtest, Package, Debug, Optimize:
		return true
	}
	return false
}

// ContentType Research 产出说明文本，其余阶段产出代码。
func (s Stage) ContentType() sanitize.ContentType {
	if s == Research {
		return sanitize.ContentText
	}
	return sanitize.ContentCode
}

// ArtifactKind 各阶段的规范产物位置；Debug 的产物即最终回测脚本。
func (s Stage) ArtifactKind() artifact.Kind {
	switch s {
	case Research:
		return artifact.KindResearch
	case Backtest:
		return artifact.KindBacktest
	case Package:
		return artifact.KindPackage
	case Debug:
		return artifact.KindFinal
	default:
		return artifact.KindOptimized
	}
}

// SystemPrompt 阶段固定的 system 提示词。
func (s Stage) SystemPrompt() string {
	switch s {
	case Research:
		return promptResearch
	case Backtest:
		return promptBacktest
	case Package:
		return promptPackage
	case Debug:
		return promptDebug
	default:
		return promptOptimize
	}
}
