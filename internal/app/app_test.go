package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/smhanov/contextual"
	"github.com/smhanov/contextual/internal/config"
	"github.com/smhanov/contextual/prompts"
	"github.com/smhanov/contextual/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func localConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LLM.Provider = "ollama"
	cfg.Search.Provider = "duckduckgo"
	return cfg
}

func TestNewBuildsAgent(t *testing.T) {
	cfg := localConfig()
	cfg.Policy.RelevanceOrder = "split_first"

	a, err := New(context.Background(), cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Agent)
	assert.Equal(t, contextual.SplitBeforeRelevance, a.Agent.RelevanceOrder())
	assert.Equal(t, Info{
		Provider:       "ollama",
		Model:          "llama3.1",
		Search:         "duckduckgo",
		Fetch:          true,
		RelevanceOrder: "split_first",
		Prompts:        "embedded",
	}, a.Info)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := localConfig()
	cfg.Policy.GatewayTimeout = "whenever"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNewMissingClaudeKey(t *testing.T) {
	cfg := localConfig()
	cfg.LLM.Provider = "claude"
	cfg.Claude.APIKey = ""
	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classifier model")
}

func TestBuildModelsSharesGateways(t *testing.T) {
	cfg := localConfig()
	cfg.LLM.Model = "llama3"
	cfg.LLM.FinalizerModel = "llama3:70b"

	models, err := buildModels(context.Background(), cfg, arbor.NewLogger())
	require.NoError(t, err)

	assert.Same(t, models[config.StepClassifier], models[config.StepSplitter])
	assert.NotSame(t, models[config.StepClassifier], models[config.StepFinalizer])
}

func TestNewSearchProvider(t *testing.T) {
	logger := arbor.NewLogger()

	p, name, err := NewSearchProvider(config.SearchConfig{Provider: "tavily", APIKey: "k", MaxResults: 3}, logger)
	require.NoError(t, err)
	assert.Equal(t, "tavily", name)
	assert.Equal(t, 3, p.(*search.Tavily).MaxResults)

	p, name, err = NewSearchProvider(config.SearchConfig{Provider: "brave", APIKey: "k"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "brave", name)
	assert.IsType(t, &search.Brave{}, p)

	p, name, err = NewSearchProvider(config.SearchConfig{Provider: "tavily"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "duckduckgo", name)
	assert.IsType(t, &search.DuckDuckGo{}, p)

	_, _, err = NewSearchProvider(config.SearchConfig{Provider: "altavista"}, logger)
	assert.Error(t, err)
}

func TestNewWithPromptDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "answer.txt"), []byte("Use {context} to answer {question}."), 0o644))

	cfg := localConfig()
	cfg.Prompts.Dir = dir
	cfg.Prompts.Watch = true

	a, err := New(context.Background(), cfg, arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, dir, a.Info.Prompts)

	tmpl, ok := a.Prompts.Get(prompts.Answer)
	require.True(t, ok)
	assert.Equal(t, "Use {context} to answer {question}.", tmpl.Text)
	assert.NoError(t, a.Close())
}
