package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/smhanov/contextual"
)

// Claude calls the Anthropic Messages API.
type Claude struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewClaude creates a Claude gateway. Extra request options are passed to
// the SDK client, e.g. option.WithBaseURL for a proxy.
func NewClaude(cfg Config, opts ...option.RequestOption) (*Claude, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("claude: API key is missing")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.Endpoint))
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.Timeout))
	}
	reqOpts = append(reqOpts, opts...)

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Claude{
		client:      anthropic.NewClient(reqOpts...),
		model:       cfg.Model,
		maxTokens:   int64(maxTokens),
		temperature: cfg.Temperature,
	}, nil
}

// Generate implements contextual.LLMProvider.
func (c *Claude) Generate(ctx context.Context, systemPrompt, userPrompt string) (contextual.LLMResponse, error) {
	return c.Chat(ctx, promptMessages(systemPrompt, userPrompt))
}

// Chat sends a message history and returns the concatenated text blocks.
func (c *Claude) Chat(ctx context.Context, messages []Message) (contextual.LLMResponse, error) {
	system, rest, err := splitSystem(messages)
	if err != nil {
		return contextual.LLMResponse{}, fmt.Errorf("claude: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Messages:    toClaudeMessages(rest),
		Temperature: anthropic.Float(c.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return contextual.LLMResponse{}, fmt.Errorf("claude API call failed: %w", err)
	}

	var text, reasoning strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "thinking":
			reasoning.WriteString(block.Thinking)
		}
	}
	return contextual.LLMResponse{Text: text.String(), Reasoning: reasoning.String()}, nil
}

func toClaudeMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		// Default to user for unknown roles
		out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}
	return out
}
