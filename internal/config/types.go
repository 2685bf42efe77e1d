package config

import "strings"

// Config 顶层配置。字段标签沿用 toml 命名，但文件本体是 YAML，
// 解码时通过 mapstructure 指定 TagName。
type Config struct {
	Include  []string       `toml:"include"`
	App      AppConfig      `toml:"app"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Models   ModelsConfig   `toml:"models"`
	Dataset  DatasetConfig  `toml:"dataset"`
	Store    StoreConfig    `toml:"store"`
}

type AppConfig struct {
	LogLevel   string `toml:"log_level"`
	LogPath    string `toml:"log_path"`
	LLMLogPath string `toml:"llm_log_path"`
	HTTPAddr   string `toml:"http_addr"`
	HTTPEnable bool   `toml:"http_enable"`
}

type PipelineConfig struct {
	ArtifactRoot            string  `toml:"artifact_root"`
	IdeasPath               string  `toml:"ideas_path"`
	LedgerPath              string  `toml:"ledger_path"`
	DateFolder              string  `toml:"date_folder"`
	TargetReturnPct         float64 `toml:"target_return_pct"`
	MaxIterations           int     `toml:"max_iterations"`
	ExecutionTimeoutSeconds int     `toml:"execution_timeout_seconds"`
	AutonomousExecute       bool    `toml:"autonomous_execute"`
	Temperature             float64 `toml:"temperature"`
	MaxTokens               int     `toml:"max_tokens"`
	MaxIdeas                int     `toml:"max_ideas"`
	IdeaSleepSeconds        int     `toml:"idea_sleep_seconds"`
	WatchIdeas              bool    `toml:"watch_ideas"`
	Interpreter             string  `toml:"interpreter"`
	WorkDir                 string  `toml:"work_dir"`
	RenderChart             bool    `toml:"render_chart"`
}

// ModelEntry 单个阶段的模型选择。
type ModelEntry struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
}

type ModelsConfig struct {
	// MapPath 指向外部 models.yaml；非空时启用热更新并覆盖 StageModels。
	MapPath     string                `toml:"map_path"`
	StageModels map[string]ModelEntry `toml:"stage_models"`
}

type DatasetConfig struct {
	Path      string `toml:"path"`
	Symbol    string `toml:"symbol"`
	Interval  string `toml:"interval"`
	Limit     int    `toml:"limit"`
	AutoFetch bool   `toml:"auto_fetch"`
}

type StoreConfig struct {
	RunDBPath   string `toml:"run_db_path"`
	StageDBPath string `toml:"stage_db_path"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
