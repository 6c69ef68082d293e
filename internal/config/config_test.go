package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONTEXTUAL_SERVER_HOST", "CONTEXTUAL_SERVER_PORT", "CONTEXTUAL_LOG_LEVEL", "CONTEXTUAL_LOG_OUTPUT",
		"CONTEXTUAL_LLM_PROVIDER", "CONTEXTUAL_LLM_MODEL", "CONTEXTUAL_LLM_TEMPERATURE",
		"ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY", "OLLAMA_HOST",
		"CONTEXTUAL_SEARCH_PROVIDER", "TAVILY_API_KEY", "BRAVE_API_KEY",
		"CONTEXTUAL_POLICY_RELEVANCE_ORDER", "CONTEXTUAL_POLICY_GATEWAY_TIMEOUT",
		"CONTEXTUAL_PROMPTS_DIR", "CONTEXTUAL_PROMPTS_WATCH",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8000", cfg.Address())
	assert.Equal(t, "openrouter", cfg.LLM.Provider)
	assert.Equal(t, "raw", cfg.Policy.RelevanceOrder)
	assert.Equal(t, 30*time.Second, ParseDuration(cfg.Policy.GatewayTimeout, 0))
	assert.True(t, cfg.Fetch.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFilesLaterWins(t *testing.T) {
	clearEnv(t)
	base := writeFile(t, "base.toml", `
[server]
port = 9000

[llm]
provider = "ollama"
model = "llama3"

[policy]
relevance_order = "split_first"
`)
	local := writeFile(t, "local.toml", `
[llm]
model = "qwen2.5"
finalizer_model = "qwen2.5:32b"
`)

	cfg, err := LoadFromFiles(base, "", local)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "split_first", cfg.Policy.RelevanceOrder)

	classifier := cfg.LLMSettings(StepClassifier)
	assert.Equal(t, "qwen2.5", classifier.Model)
	assert.Equal(t, "http://localhost:11434", classifier.Endpoint)
	assert.Equal(t, "qwen2.5:32b", cfg.LLMSettings(StepFinalizer).Model)
}

func TestLoadFromFilesErrors(t *testing.T) {
	clearEnv(t)
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	bad := writeFile(t, "bad.toml", "[server\nport = ")
	_, err = LoadFromFiles(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file 1 of 1")
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONTEXTUAL_SERVER_PORT", "9191")
	t.Setenv("CONTEXTUAL_LOG_OUTPUT", "console, file")
	t.Setenv("CONTEXTUAL_LLM_PROVIDER", "Claude")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("CONTEXTUAL_SEARCH_PROVIDER", "brave")
	t.Setenv("BRAVE_API_KEY", "brave-key")
	t.Setenv("TAVILY_API_KEY", "tavily-key")
	t.Setenv("CONTEXTUAL_PROMPTS_WATCH", "true")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, []string{"console", "file"}, cfg.Logging.Output)
	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.Equal(t, "brave-key", cfg.Search.APIKey)
	assert.True(t, cfg.Prompts.Watch)

	settings := cfg.LLMSettings(StepSplitter)
	assert.Equal(t, "sk-ant", settings.APIKey)
	assert.Equal(t, "claude-3-5-haiku-latest", settings.Model)
}

func TestEnvOverridesIgnoreBadNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONTEXTUAL_SERVER_PORT", "eighty")
	t.Setenv("CONTEXTUAL_LLM_TEMPERATURE", "warm")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 0.0, cfg.LLM.Temperature)
}

func TestValidate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.LLM.Provider = "mystery"
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Policy.RelevanceOrder = "sideways"
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Policy.GatewayTimeout = "soon"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy.gateway_timeout")
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, ParseDuration("", 5*time.Second))
	assert.Equal(t, 5*time.Second, ParseDuration("nope", 5*time.Second))
	assert.Equal(t, 5*time.Second, ParseDuration("-1s", 5*time.Second))
	assert.Equal(t, 250*time.Millisecond, ParseDuration("250ms", 5*time.Second))
}
