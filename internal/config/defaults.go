package config

import (
	"path/filepath"
	"strings"
)

// 默认值常量
const (
	defaultLogLevel         = "info"
	defaultLogPath          = "logs/rbi.log"
	defaultLLMLogPath       = "logs/rbi-llm.log"
	defaultHTTPAddr         = ":9980"
	defaultTargetReturn     = 50.0
	defaultMaxIterations    = 5
	defaultExecTimeout      = 300
	defaultTemperature      = 0.7
	defaultMaxTokens        = 4096
	defaultInterpreter      = "python3"
	defaultDatasetPath      = "data/BTC-USD-15m.csv"
	defaultDatasetSymbol    = "BTCUSDT"
	defaultDatasetInterval  = "15m"
	defaultDatasetLimit     = 1500
	defaultRunDBRelative    = "runs.db"
	defaultStageDBRelative  = "stages.db"
	defaultIdeasRelative    = "ideas.txt"
	defaultLedgerRelative   = "processed_ideas.log"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Pipeline.applyDefaults(keys)
	c.Dataset.applyDefaults(keys)
	c.Store.applyDefaults(keys, c.Pipeline.ArtifactRoot)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.log_level", &a.LogLevel, defaultLogLevel),
		stringFieldDefault("app.log_path", &a.LogPath, defaultLogPath),
		stringFieldDefault("app.llm_log_path", &a.LLMLogPath, defaultLLMLogPath),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultHTTPAddr),
	)
}

func (p *PipelineConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	root := strings.TrimSpace(p.ArtifactRoot)
	applyFieldDefaults(keys,
		stringFieldDefault("pipeline.ideas_path", &p.IdeasPath, filepath.Join(root, defaultIdeasRelative)),
		stringFieldDefault("pipeline.ledger_path", &p.LedgerPath, filepath.Join(root, defaultLedgerRelative)),
		stringFieldDefault("pipeline.interpreter", &p.Interpreter, defaultInterpreter),
		fieldDefault{
			key:   "pipeline.target_return_pct",
			need:  func() bool { return p.TargetReturnPct == 0 },
			apply: func() { p.TargetReturnPct = defaultTargetReturn },
		},
		fieldDefault{
			key:   "pipeline.max_iterations",
			need:  func() bool { return p.MaxIterations <= 0 },
			apply: func() { p.MaxIterations = defaultMaxIterations },
		},
		fieldDefault{
			key:   "pipeline.execution_timeout_seconds",
			need:  func() bool { return p.ExecutionTimeoutSeconds <= 0 },
			apply: func() { p.ExecutionTimeoutSeconds = defaultExecTimeout },
		},
		fieldDefault{
			key:   "pipeline.temperature",
			need:  func() bool { return p.Temperature == 0 },
			apply: func() { p.Temperature = defaultTemperature },
		},
		fieldDefault{
			key:   "pipeline.max_tokens",
			need:  func() bool { return p.MaxTokens <= 0 },
			apply: func() { p.MaxTokens = defaultMaxTokens },
		},
	)
}

func (d *DatasetConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("dataset.path", &d.Path, defaultDatasetPath),
		stringFieldDefault("dataset.symbol", &d.Symbol, defaultDatasetSymbol),
		stringFieldDefault("dataset.interval", &d.Interval, defaultDatasetInterval),
		fieldDefault{
			key:   "dataset.limit",
			need:  func() bool { return d.Limit <= 0 },
			apply: func() { d.Limit = defaultDatasetLimit },
		},
	)
}

func (s *StoreConfig) applyDefaults(keys keySet, artifactRoot string) {
	if s == nil {
		return
	}
	root := strings.TrimSpace(artifactRoot)
	applyFieldDefaults(keys,
		stringFieldDefault("store.run_db_path", &s.RunDBPath, filepath.Join(root, defaultRunDBRelative)),
		stringFieldDefault("store.stage_db_path", &s.StageDBPath, filepath.Join(root, defaultStageDBRelative)),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
