package config

import (
	"fmt"
	"strings"
)

var knownProviders = map[string]bool{
	"claude": true, "openai": true, "gemini": true,
	"groq": true, "deepseek": true, "xai": true, "ollama": true,
}

var knownStages = map[string]bool{
	"research": true, "backtest": true, "package": true,
	"debug": true, "optimize": true,
}

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Pipeline.validate(); err != nil {
		return err
	}
	return c.Models.validate()
}

func (p *PipelineConfig) validate() error {
	if strings.TrimSpace(p.ArtifactRoot) == "" {
		return fmt.Errorf("pipeline.artifact_root 必填")
	}
	if p.TargetReturnPct < 0 {
		return fmt.Errorf("pipeline.target_return_pct 不能为负")
	}
	if p.MaxIdeas < 0 {
		return fmt.Errorf("pipeline.max_ideas 不能为负")
	}
	return nil
}

func (m *ModelsConfig) validate() error {
	if strings.TrimSpace(m.MapPath) != "" {
		// 外部映射文件自带 schema 校验
		return nil
	}
	if len(m.StageModels) == 0 {
		return fmt.Errorf("models.stage_models 至少配置一个阶段（或提供 models.map_path）")
	}
	for name, entry := range m.StageModels {
		key := strings.ToLower(strings.TrimSpace(name))
		if !knownStages[key] {
			return fmt.Errorf("models.stage_models 含未知阶段: %s", name)
		}
		if !knownProviders[strings.ToLower(strings.TrimSpace(entry.Provider))] {
			return fmt.Errorf("models.stage_models.%s 的 provider 未知: %s", name, entry.Provider)
		}
		if strings.TrimSpace(entry.Model) == "" {
			return fmt.Errorf("models.stage_models.%s 缺少 model", name)
		}
	}
	return nil
}
