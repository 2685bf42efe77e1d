package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rbicfg "rbi/internal/config"
	"rbi/internal/stage"
)

func testConfig(t *testing.T) *rbicfg.Config {
	t.Helper()
	root := t.TempDir()
	return &rbicfg.Config{
		App: rbicfg.AppConfig{LogLevel: "info"},
		Pipeline: rbicfg.PipelineConfig{
			ArtifactRoot:            root,
			IdeasPath:               filepath.Join(root, "ideas.txt"),
			LedgerPath:              filepath.Join(root, "processed_ideas.log"),
			TargetReturnPct:         50,
			MaxIterations:           3,
			ExecutionTimeoutSeconds: 10,
			Temperature:             0.7,
			MaxTokens:               1024,
			Interpreter:             "python3",
		},
		Models: rbicfg.ModelsConfig{
			StageModels: map[string]rbicfg.ModelEntry{
				"research": {Provider: "openai", Model: "gpt-4o"},
				"backtest": {Provider: "openai", Model: "gpt-4o"},
				"package":  {Provider: "openai", Model: "gpt-4o"},
				"debug":    {Provider: "openai", Model: "gpt-4o"},
				"optimize": {Provider: "openai", Model: "gpt-4o"},
			},
		},
		Store: rbicfg.StoreConfig{
			RunDBPath:   filepath.Join(root, "runs.db"),
			StageDBPath: filepath.Join(root, "stages.db"),
		},
	}
}

func TestBuilderConstructsApp(t *testing.T) {
	cfg := testConfig(t)
	a, err := NewAppBuilder(cfg).Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, a)
	defer a.closeStores()

	assert.NotNil(t, a.orch)
	assert.NotNil(t, a.runs)
	assert.NotNil(t, a.stages)
	assert.Nil(t, a.statusHTTP, "http disabled by default in this config")
}

func TestBuilderDisablesStoresOnEmptyPaths(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.RunDBPath = ""
	cfg.Store.StageDBPath = ""
	cfg.App.HTTPEnable = true

	a, err := NewAppBuilder(cfg).Build(context.Background())
	require.NoError(t, err)
	defer a.closeStores()

	assert.Nil(t, a.runs)
	assert.Nil(t, a.stages)
	assert.Nil(t, a.statusHTTP, "status api needs the run store")
}

func TestBuilderRegistryFromInlineMap(t *testing.T) {
	cfg := testConfig(t)
	reg, err := buildRegistry(cfg)
	require.NoError(t, err)

	sel, ok := reg.Selector(stage.Research)
	require.True(t, ok)
	assert.Equal(t, "openai", sel.Provider)
	assert.Equal(t, "gpt-4o", sel.Model)

	_, ok = reg.Selector(stage.Stage("deploy"))
	assert.False(t, ok)
}

func TestNewAppNilConfig(t *testing.T) {
	_, err := NewApp(nil)
	assert.Error(t, err)
}
