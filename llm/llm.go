// Package llm provides language model gateways for the contextual agent.
//
// Every gateway implements contextual.LLMProvider and additionally accepts
// a role-tagged message history through Chat:
//
//   - Claude: Anthropic Messages API (anthropic-sdk-go)
//   - Gemini: Google Gemini API (google.golang.org/genai)
//   - Ollama: a local Ollama server (github.com/ollama/ollama/api)
//   - OpenAI: any OpenAI-compatible /chat/completions endpoint, including OpenRouter
//
// Use New to build one from configuration.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smhanov/contextual"
	"github.com/ternarybob/arbor"
)

// Roles understood by every gateway.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chatter is implemented by gateways that accept a full message history.
type Chatter interface {
	contextual.LLMProvider
	Chat(ctx context.Context, messages []Message) (contextual.LLMResponse, error)
}

// Config selects and configures a gateway.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	Endpoint    string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Logger      arbor.ILogger
}

// Provider names accepted by New.
const (
	ProviderClaude     = "claude"
	ProviderGemini     = "gemini"
	ProviderOllama     = "ollama"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

const defaultMaxTokens = 1024

// New builds the gateway named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Chatter, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("llm: model is required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderClaude, "anthropic":
		return NewClaude(cfg)
	case ProviderGemini, "google":
		return NewGemini(ctx, cfg)
	case ProviderOllama, "":
		return NewOllama(cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderOpenRouter:
		if cfg.Endpoint == "" {
			cfg.Endpoint = OpenRouterEndpoint
		}
		return NewOpenAI(cfg)
	}
	return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
}

// promptMessages turns the LLMProvider call shape into a history.
func promptMessages(systemPrompt, userPrompt string) []Message {
	var msgs []Message
	if strings.TrimSpace(systemPrompt) != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	return append(msgs, Message{Role: RoleUser, Content: userPrompt})
}

// splitSystem separates the first system message from the rest, for APIs
// that take the system prompt as its own parameter. At least one user
// message is required.
func splitSystem(messages []Message) (string, []Message, error) {
	if len(messages) == 0 {
		return "", nil, errors.New("messages cannot be empty")
	}
	var system string
	rest := make([]Message, 0, len(messages))
	hasUser := false
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if system == "" {
				system = m.Content
			}
		case RoleUser:
			hasUser = true
			rest = append(rest, m)
		default:
			rest = append(rest, m)
		}
	}
	if !hasUser {
		return "", nil, errors.New("at least one message must have role 'user'")
	}
	return system, rest, nil
}

func loggerOrDefault(l arbor.ILogger) arbor.ILogger {
	if l == nil {
		return arbor.NewLogger()
	}
	return l
}
