// Package modelmap 维护阶段到 provider/model 的映射。
// 支持从 YAML 文件加载并热更新，文件内容经 JSON Schema 校验。
package modelmap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"rbi/internal/gateway/provider"
	"rbi/internal/logger"
	"rbi/internal/stage"
)

// Entry YAML 中单个阶段的模型配置。
type Entry struct {
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`
}

type fileConfig struct {
	StageModels map[string]Entry `yaml:"stage_models" json:"stage_models"`
}

// Snapshot 当前映射的不可变视图。
type Snapshot struct {
	Version   int64
	LoadedAt  time.Time
	Selectors map[stage.Stage]provider.Selector
}

// ChangeListener 在映射重载后触发。
type ChangeListener func(Snapshot)

const schemaJSON = `{
  "type": "object",
  "required": ["stage_models"],
  "properties": {
    "stage_models": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["provider", "model"],
        "properties": {
          "provider": {
            "type": "string",
            "enum": ["claude", "openai", "gemini", "groq", "deepseek", "xai", "ollama"]
          },
          "model": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var mapSchema = jsonschema.MustCompileString("modelmap.json", schemaJSON)

// Registry 从文件加载映射并监听变更；实现 stage.SelectorSource。
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewFromFile 读取 models.yaml 并开启文件监听。
func NewFromFile(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("model map 需要文件路径")
	}
	r := &Registry{path: path, v: viper.New()}
	if err := r.reload(); err != nil {
		return nil, err
	}
	r.v.SetConfigFile(path)
	if err := r.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取 model map 失败: %w", err)
	}
	r.v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("model map 重载失败: %v", err)
			return
		}
		r.notifyListeners()
	})
	r.v.WatchConfig()
	return r, nil
}

// NewStatic 用既有映射构建不监听文件的 registry（来自主配置内联映射）。
func NewStatic(selectors map[stage.Stage]provider.Selector) *Registry {
	cloned := make(map[stage.Stage]provider.Selector, len(selectors))
	for k, v := range selectors {
		cloned[k] = v
	}
	return &Registry{
		snapshot: Snapshot{Version: 1, LoadedAt: time.Now(), Selectors: cloned},
	}
}

// Selector 实现 stage.SelectorSource。
func (r *Registry) Selector(s stage.Stage) (provider.Selector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sel, ok := r.snapshot.Selectors[s]
	return sel, ok
}

// Snapshot 返回当前映射快照。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// OnChange 注册重载回调。
func (r *Registry) OnChange(fn ChangeListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Registry) reload() error {
	selectors, err := readMapFile(r.path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:   r.snapshot.Version + 1,
		LoadedAt:  time.Now(),
		Selectors: selectors,
	}
	r.mu.Unlock()
	logger.Infof("model map 载入 %d 个阶段映射（%s）", len(selectors), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer func() {
				if p := recover(); p != nil {
					logger.Errorf("model map listener panic: %v", p)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:   src.Version,
		LoadedAt:  src.LoadedAt,
		Selectors: make(map[stage.Stage]provider.Selector, len(src.Selectors)),
	}
	for k, v := range src.Selectors {
		dst.Selectors[k] = v
	}
	return dst
}

func readMapFile(path string) (map[stage.Stage]provider.Selector, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 model map 失败: %w", err)
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("解析 model map 失败: %w", err)
	}
	if err := mapSchema.Validate(normalizeYAML(generic)); err != nil {
		return nil, fmt.Errorf("model map 校验失败: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	selectors := make(map[stage.Stage]provider.Selector, len(cfg.StageModels))
	for name, entry := range cfg.StageModels {
		s := stage.Stage(strings.ToLower(strings.TrimSpace(name)))
		if !s.Valid() {
			return nil, fmt.Errorf("未知阶段: %q", name)
		}
		selectors[s] = provider.Selector{Provider: entry.Provider, Model: entry.Model}
	}
	return selectors, nil
}

// normalizeYAML 把 yaml 解码出的 map[any]any 转成 schema 校验可接受的形态。
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = normalizeYAML(child)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[fmt.Sprint(k)] = normalizeYAML(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = normalizeYAML(child)
		}
		return out
	default:
		return v
	}
}
