package stage

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbi/internal/artifact"
	"rbi/internal/gateway/provider"
	"rbi/internal/namegen"
)

type scriptedGateway struct {
	replies []string
	errs    []error
	calls   []struct {
		Stage  string
		System string
		User   string
	}
}

func (g *scriptedGateway) Generate(ctx context.Context, sel provider.Selector, stage, systemPrompt, userContent string, opts provider.Options) (string, error) {
	g.calls = append(g.calls, struct {
		Stage  string
		System string
		User   string
	}{stage, systemPrompt, userContent})
	i := len(g.calls) - 1
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i < len(g.replies) {
		return g.replies[i], nil
	}
	return "", nil
}

func allSelectors() MapSource {
	m := make(MapSource)
	for _, s := range All() {
		m[s] = provider.Selector{Provider: "openai", Model: "gpt-4o"}
	}
	return m
}

func newTestRunner(t *testing.T, gw Gateway) (*Runner, *artifact.Store) {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir(), "03_15_2026")
	require.NoError(t, err)
	return NewRunner(gw, store, namegen.New(1), allSelectors(), provider.Options{Temperature: 0.7, MaxTokens: 4096}), store
}

func TestRunResearchExtractsName(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"STRATEGY_NAME: BouncyDiverger\n\nSTRATEGY_DETAILS: buy on RSI<30"}}
	r, store := newTestRunner(t, gw)

	res, err := r.Run(context.Background(), Research, Input{IdeaText: "RSI divergence bounce"})
	require.NoError(t, err)
	assert.Equal(t, "BouncyDiverger", res.StrategyName)
	assert.Equal(t, store.Path(artifact.KindResearch, "BouncyDiverger", 0), res.Path)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "STRATEGY_DETAILS")
	assert.Equal(t, "RSI divergence bounce", gw.calls[0].User)
}

func TestRunResearchSynthesizesName(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"just a strategy description without a name line"}}
	r, _ := newTestRunner(t, gw)

	res, err := r.Run(context.Background(), Research, Input{IdeaText: "idea"})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z]+$`), res.StrategyName)
	assert.GreaterOrEqual(t, len(res.StrategyName), 8)
}

func TestRunBacktestExtractsFencedCode(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"Here is the code:\n```python\nprint('bt v0')\n```\nEnjoy!"}}
	r, _ := newTestRunner(t, gw)

	res, err := r.Run(context.Background(), Backtest, Input{StrategyName: "BouncyDiverger", StrategyText: "details"})
	require.NoError(t, err)
	assert.Equal(t, "print('bt v0')", res.Text)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "print('bt v0')", string(data))
	assert.Contains(t, gw.calls[0].User, "Create a backtest for this strategy:\n\ndetails")
}

func TestRunSkipsExistingArtifact(t *testing.T) {
	gw := &scriptedGateway{}
	r, store := newTestRunner(t, gw)
	_, err := store.Write(artifact.KindFinal, "BouncyDiverger", 0, []byte("print('existing')"))
	require.NoError(t, err)

	res, err := r.Run(context.Background(), Debug, Input{StrategyName: "BouncyDiverger", Code: "anything"})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "print('existing')", res.Text)
	assert.Empty(t, gw.calls, "model must not be called when the artifact exists")
}

func TestRunDebugComposesErrorAndStrategy(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"```python\nprint('fixed')\n```"}}
	r, _ := newTestRunner(t, gw)

	_, err := r.Run(context.Background(), Debug, Input{
		StrategyName: "BouncyDiverger",
		Code:         "print(broken",
		ErrorText:    "SyntaxError: unexpected EOF",
		StrategyText: "buy dips",
	})
	require.NoError(t, err)
	user := gw.calls[0].User
	assert.Contains(t, user, "Here's the backtest code to debug:\n\nprint(broken")
	assert.Contains(t, user, "SyntaxError: unexpected EOF")
	assert.Contains(t, user, "Original strategy for reference:\nbuy dips")
}

func TestRunOptimizeWritesVersionedArtifact(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"```python\nprint('v2')\n```"}}
	r, store := newTestRunner(t, gw)

	res, err := r.Run(context.Background(), Optimize, Input{
		StrategyName: "BouncyDiverger",
		Code:         "print('v1')",
		Stdout:       "Return [%]   12.5",
		Version:      2,
	})
	require.NoError(t, err)
	assert.Equal(t, store.Path(artifact.KindOptimized, "BouncyDiverger", 2), res.Path)
	assert.Contains(t, gw.calls[0].User, "Current stdout:\nReturn [%]   12.5")
}

func TestRunRetriesTransientError(t *testing.T) {
	gw := &scriptedGateway{
		errs:    []error{errors.New("status=500: boom"), nil},
		replies: []string{"", "STRATEGY_NAME: GoldenHunter\n\ndetails"},
	}
	r, _ := newTestRunner(t, gw)

	res, err := r.Run(context.Background(), Research, Input{IdeaText: "idea"})
	require.NoError(t, err)
	assert.Equal(t, "GoldenHunter", res.StrategyName)
	assert.Len(t, gw.calls, 2)
}

func TestRunNoRetryWhenProviderUnavailable(t *testing.T) {
	gw := &scriptedGateway{errs: []error{provider.ErrProviderUnavailable}}
	r, _ := newTestRunner(t, gw)

	_, err := r.Run(context.Background(), Research, Input{IdeaText: "idea"})
	assert.True(t, errors.Is(err, provider.ErrProviderUnavailable))
	assert.Len(t, gw.calls, 1)
}

func TestRunSanitizedEmptyFails(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"```python\n```", "```python\n```"}}
	r, _ := newTestRunner(t, gw)

	_, err := r.Run(context.Background(), Backtest, Input{StrategyName: "X", StrategyText: "d"})
	assert.True(t, errors.Is(err, ErrSanitizedEmpty))
}

func TestRunEmptyResponseFails(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"", ""}}
	r, _ := newTestRunner(t, gw)

	_, err := r.Run(context.Background(), Backtest, Input{StrategyName: "X", StrategyText: "d"})
	assert.True(t, errors.Is(err, ErrEmptyModelResponse))
}

func TestStageMappings(t *testing.T) {
	assert.Equal(t, artifact.KindFinal, Debug.ArtifactKind())
	assert.Equal(t, artifact.KindOptimized, Optimize.ArtifactKind())
	for _, s := range All() {
		assert.True(t, s.Valid())
		assert.NotEmpty(t, s.SystemPrompt())
	}
	assert.Contains(t, Backtest.SystemPrompt(), DatasetPath)
	assert.Contains(t, Package.SystemPrompt(), "backtesting.lib")
}
