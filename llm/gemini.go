package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smhanov/contextual"
	"google.golang.org/genai"
)

// Gemini calls the Google Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

// NewGemini creates a Gemini gateway.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: API key is missing")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Gemini{
		client:      client,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(maxTokens),
	}, nil
}

// Generate implements contextual.LLMProvider.
func (g *Gemini) Generate(ctx context.Context, systemPrompt, userPrompt string) (contextual.LLMResponse, error) {
	return g.Chat(ctx, promptMessages(systemPrompt, userPrompt))
}

// Chat sends a message history and returns the first candidate with text.
func (g *Gemini) Chat(ctx context.Context, messages []Message) (contextual.LLMResponse, error) {
	system, rest, err := splitSystem(messages)
	if err != nil {
		return contextual.LLMResponse{}, fmt.Errorf("gemini: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: g.maxTokens,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, toGeminiContents(rest), config)
	if err != nil {
		return contextual.LLMResponse{}, fmt.Errorf("gemini generation failed: %w", err)
	}
	return contextual.LLMResponse{Text: geminiText(resp)}, nil
}

func toGeminiContents(messages []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{
			Role:  string(role),
			Parts: []*genai.Part{genai.NewPartFromText(m.Content)},
		})
	}
	return out
}

// geminiText returns the text of the first candidate that has any.
func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" && !part.Thought {
				b.WriteString(part.Text)
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}
