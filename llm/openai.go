package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smhanov/contextual"
	"github.com/ternarybob/arbor"
)

// OpenRouterEndpoint is the OpenRouter OpenAI-compatible API.
const OpenRouterEndpoint = "https://openrouter.ai/api/v1"

const openAIMaxRetries = 5

// OpenAI calls any server that exposes an OpenAI-style /chat/completions
// endpoint (OpenAI, OpenRouter, Ollama /v1, vLLM, LiteLLM, etc.).
type OpenAI struct {
	Endpoint    string
	Model       string
	APIKey      string // optional, leave empty for keyless servers
	Temperature float64
	MaxTokens   int

	client    *http.Client
	logger    arbor.ILogger
	baseDelay time.Duration
}

type openaiRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		Cost float64 `json:"cost"`
	} `json:"usage"`
}

// NewOpenAI creates an OpenAI-compatible gateway.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("openai: endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		// Generous so large-model requests finish, but never unbounded.
		timeout = 10 * time.Minute
	}
	return &OpenAI{
		Endpoint:    cfg.Endpoint,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: timeout},
		logger:      loggerOrDefault(cfg.Logger),
		baseDelay:   time.Second,
	}, nil
}

// Generate implements contextual.LLMProvider.
func (o *OpenAI) Generate(ctx context.Context, systemPrompt, userPrompt string) (contextual.LLMResponse, error) {
	return o.Chat(ctx, promptMessages(systemPrompt, userPrompt))
}

// Chat sends a message history. OpenRouter's usage.cost, when present, is
// reported as the call cost.
func (o *OpenAI) Chat(ctx context.Context, messages []Message) (contextual.LLMResponse, error) {
	body, err := o.doRequestWithRetries(ctx, openaiRequest{
		Model:       o.Model,
		Messages:    messages,
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
	})
	if err != nil {
		return contextual.LLMResponse{}, err
	}

	var resp openaiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return contextual.LLMResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return contextual.LLMResponse{}, errors.New("openai response contained no choices")
	}
	msg := resp.Choices[0].Message
	return contextual.LLMResponse{
		Text:      strings.TrimSpace(msg.Content),
		Reasoning: msg.Reasoning,
		Cost:      resp.Usage.Cost,
	}, nil
}

func (o *OpenAI) completionsURL() string {
	// Append /v1/chat/completions if the endpoint doesn't already end with a path
	u := strings.TrimRight(normalizeEndpoint(o.Endpoint), "/")
	if !strings.HasSuffix(u, "/chat/completions") {
		if !strings.HasSuffix(u, "/v1") {
			u += "/v1"
		}
		u += "/chat/completions"
	}
	return u
}

func (o *OpenAI) doRequestWithRetries(ctx context.Context, reqBody openaiRequest) ([]byte, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	url := o.completionsURL()

	for i := 0; ; i++ {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if o.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+o.APIKey)
		}

		resp, err := o.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send request after %v: %w", time.Since(start).Truncate(time.Millisecond), err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			if readErr != nil {
				return nil, fmt.Errorf("failed to read response: %w", readErr)
			}
			o.logger.Debug().Str("url", url).Dur("elapsed", time.Since(start)).Msg("Completion received")
			return body, nil
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusGatewayTimeout
		if !retryable || i == openAIMaxRetries {
			return nil, fmt.Errorf("openai API error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
		}

		delay := o.baseDelay * time.Duration(1<<i)
		o.logger.Warn().Str("status", resp.Status).Dur("delay", delay).Msg("Completion throttled, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}
