// Package config loads the contextual service configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/smhanov/contextual/llm"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig   `toml:"server"`
	Logging    LoggingConfig  `toml:"logging"`
	LLM        LLMConfig      `toml:"llm"`
	Claude     ProviderConfig `toml:"claude"`
	Gemini     ProviderConfig `toml:"gemini"`
	Ollama     ProviderConfig `toml:"ollama"`
	OpenAI     ProviderConfig `toml:"openai"`
	OpenRouter ProviderConfig `toml:"openrouter"`
	Search     SearchConfig   `toml:"search"`
	Fetch      FetchConfig    `toml:"fetch"`
	Policy     PolicyConfig   `toml:"policy"`
	Prompts    PromptsConfig  `toml:"prompts"`
}

type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port" validate:"min=0,max=65535"`
	ShutdownTimeout string `toml:"shutdown_timeout"` // e.g. "10s"
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output []string `toml:"output"` // "console" and/or "file"
	File   string   `toml:"file"`   // log file path when output includes "file"
}

// LLMConfig selects the language model gateway. The per-step model names
// override Model for that step only.
type LLMConfig struct {
	Provider        string  `toml:"provider" validate:"oneof=claude gemini ollama openai openrouter"`
	Model           string  `toml:"model"`
	ClassifierModel string  `toml:"classifier_model"`
	SplitterModel   string  `toml:"splitter_model"`
	FinalizerModel  string  `toml:"finalizer_model"`
	Temperature     float64 `toml:"temperature" validate:"min=0,max=2"`
	MaxTokens       int     `toml:"max_tokens" validate:"min=0"`
	Timeout         string  `toml:"timeout"` // HTTP timeout of the gateway client
}

// ProviderConfig holds credentials and defaults for one gateway.
type ProviderConfig struct {
	APIKey   string `toml:"api_key"`
	Endpoint string `toml:"endpoint"`
	Model    string `toml:"model"` // used when llm.model is empty
}

type SearchConfig struct {
	Provider   string  `toml:"provider" validate:"oneof=tavily brave duckduckgo"`
	APIKey     string  `toml:"api_key"`
	Depth      string  `toml:"depth" validate:"omitempty,oneof=basic advanced"`
	MaxResults int     `toml:"max_results" validate:"min=0,max=20"`
	Timeout    string  `toml:"timeout"`
	Cost       float64 `toml:"cost"` // dollars per search call
}

type FetchConfig struct {
	Enabled bool   `toml:"enabled"`
	Timeout string `toml:"timeout"`
}

type PolicyConfig struct {
	RelevanceOrder string `toml:"relevance_order" validate:"oneof=raw raw_input split split_first"`
	GatewayTimeout string `toml:"gateway_timeout"`
}

type PromptsConfig struct {
	Dir   string `toml:"dir"`   // directory of template overrides; empty uses built-ins
	Watch bool   `toml:"watch"` // reload templates when files in Dir change
}

// NewDefaultConfig returns the configuration used when no file or
// environment variable says otherwise.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8000,
			ShutdownTimeout: "10s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"console"},
			File:   "logs/contextual.log",
		},
		LLM: LLMConfig{
			Provider:    llm.ProviderOpenRouter,
			Temperature: 0,
			MaxTokens:   1024,
			Timeout:     "2m",
		},
		Claude:     ProviderConfig{Model: "claude-3-5-haiku-latest"},
		Gemini:     ProviderConfig{Model: "gemini-2.5-flash"},
		Ollama:     ProviderConfig{Endpoint: llm.OllamaEndpoint, Model: "llama3.1"},
		OpenAI:     ProviderConfig{Endpoint: "https://api.openai.com/v1", Model: "gpt-4o-mini"},
		OpenRouter: ProviderConfig{Endpoint: llm.OpenRouterEndpoint, Model: "openai/gpt-4o-mini"},
		Search: SearchConfig{
			Provider:   "tavily",
			Depth:      "basic",
			MaxResults: 5,
			Timeout:    "10s",
		},
		Fetch: FetchConfig{
			Enabled: true,
			Timeout: "15s",
		},
		Policy: PolicyConfig{
			RelevanceOrder: "raw",
			GatewayTimeout: "30s",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files; empty paths are skipped.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Server configuration
	if host := os.Getenv("CONTEXTUAL_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("CONTEXTUAL_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	// Logging configuration
	if level := os.Getenv("CONTEXTUAL_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
	if output := os.Getenv("CONTEXTUAL_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitList(output)
	}

	// Model gateway
	if provider := os.Getenv("CONTEXTUAL_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = strings.ToLower(provider)
	}
	if model := os.Getenv("CONTEXTUAL_LLM_MODEL"); model != "" {
		config.LLM.Model = model
	}
	if temp := os.Getenv("CONTEXTUAL_LLM_TEMPERATURE"); temp != "" {
		if t, err := strconv.ParseFloat(temp, 64); err == nil {
			config.LLM.Temperature = t
		}
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if apiKey := os.Getenv("OPENROUTER_API_KEY"); apiKey != "" {
		config.OpenRouter.APIKey = apiKey
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		config.Ollama.Endpoint = host
	}

	// Search
	if provider := os.Getenv("CONTEXTUAL_SEARCH_PROVIDER"); provider != "" {
		config.Search.Provider = strings.ToLower(provider)
	}
	switch config.Search.Provider {
	case "tavily":
		if apiKey := os.Getenv("TAVILY_API_KEY"); apiKey != "" {
			config.Search.APIKey = apiKey
		}
	case "brave":
		if apiKey := os.Getenv("BRAVE_API_KEY"); apiKey != "" {
			config.Search.APIKey = apiKey
		}
	}

	// Policy and prompts
	if order := os.Getenv("CONTEXTUAL_POLICY_RELEVANCE_ORDER"); order != "" {
		config.Policy.RelevanceOrder = strings.ToLower(order)
	}
	if timeout := os.Getenv("CONTEXTUAL_POLICY_GATEWAY_TIMEOUT"); timeout != "" {
		config.Policy.GatewayTimeout = timeout
	}
	if dir := os.Getenv("CONTEXTUAL_PROMPTS_DIR"); dir != "" {
		config.Prompts.Dir = dir
	}
	if watch := os.Getenv("CONTEXTUAL_PROMPTS_WATCH"); watch != "" {
		if w, err := strconv.ParseBool(watch); err == nil {
			config.Prompts.Watch = w
		}
	}
}

// Validate checks field values and duration strings.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for name, value := range map[string]string{
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"llm.timeout":             c.LLM.Timeout,
		"search.timeout":          c.Search.Timeout,
		"fetch.timeout":           c.Fetch.Timeout,
		"policy.gateway_timeout":  c.Policy.GatewayTimeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid configuration: %s: %w", name, err)
		}
	}
	return nil
}

// Address is the host:port the HTTP server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Provider returns the settings block of the selected gateway.
func (c *Config) Provider() ProviderConfig {
	switch c.LLM.Provider {
	case llm.ProviderClaude:
		return c.Claude
	case llm.ProviderGemini:
		return c.Gemini
	case llm.ProviderOllama:
		return c.Ollama
	case llm.ProviderOpenAI:
		return c.OpenAI
	}
	return c.OpenRouter
}

// Step names accepted by LLMSettings.
const (
	StepClassifier = "classifier"
	StepSplitter   = "splitter"
	StepFinalizer  = "finalizer"
)

// LLMSettings returns the gateway configuration for one agent step.
func (c *Config) LLMSettings(step string) llm.Config {
	p := c.Provider()
	model := c.LLM.Model
	if model == "" {
		model = p.Model
	}
	switch step {
	case StepClassifier:
		model = firstNonEmpty(c.LLM.ClassifierModel, model)
	case StepSplitter:
		model = firstNonEmpty(c.LLM.SplitterModel, model)
	case StepFinalizer:
		model = firstNonEmpty(c.LLM.FinalizerModel, model)
	}
	return llm.Config{
		Provider:    c.LLM.Provider,
		Model:       model,
		APIKey:      p.APIKey,
		Endpoint:    p.Endpoint,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
		Timeout:     ParseDuration(c.LLM.Timeout, 2*time.Minute),
	}
}

// ParseDuration parses s, returning fallback when s is empty or invalid.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
