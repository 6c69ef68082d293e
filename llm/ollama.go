package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/smhanov/contextual"
)

// OllamaEndpoint is the default local Ollama server.
const OllamaEndpoint = "http://localhost:11434"

// Ollama calls a local Ollama server through its chat API.
type Ollama struct {
	client      *api.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOllama creates an Ollama gateway for cfg.Endpoint, or for the server
// named by OLLAMA_HOST when no endpoint is configured.
func NewOllama(cfg Config) (*Ollama, error) {
	var client *api.Client
	if strings.TrimSpace(cfg.Endpoint) == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama: %w", err)
		}
		client = c
	} else {
		base, err := url.Parse(normalizeEndpoint(cfg.Endpoint))
		if err != nil {
			return nil, fmt.Errorf("ollama: invalid endpoint %q: %w", cfg.Endpoint, err)
		}
		client = api.NewClient(base, &http.Client{Timeout: cfg.Timeout})
	}
	return &Ollama{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Generate implements contextual.LLMProvider.
func (o *Ollama) Generate(ctx context.Context, systemPrompt, userPrompt string) (contextual.LLMResponse, error) {
	return o.Chat(ctx, promptMessages(systemPrompt, userPrompt))
}

// Chat sends a message history without streaming.
func (o *Ollama) Chat(ctx context.Context, messages []Message) (contextual.LLMResponse, error) {
	stream := false
	options := map[string]interface{}{"temperature": o.temperature}
	if o.maxTokens > 0 {
		options["num_predict"] = o.maxTokens
	}
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: toOllamaMessages(messages),
		Stream:   &stream,
		Options:  options,
	}

	var text strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		text.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return contextual.LLMResponse{}, fmt.Errorf("ollama chat failed: %w", err)
	}
	return contextual.LLMResponse{Text: text.String()}, nil
}

func toOllamaMessages(messages []Message) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, api.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func normalizeEndpoint(endpoint string) string {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return "http://" + endpoint
	}
	return endpoint
}
