// Package app wires configuration into a ready-to-use agent.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/smhanov/contextual"
	"github.com/smhanov/contextual/fetch"
	"github.com/smhanov/contextual/internal/config"
	"github.com/smhanov/contextual/llm"
	"github.com/smhanov/contextual/prompts"
	"github.com/smhanov/contextual/search"
	"github.com/ternarybob/arbor"
)

// Info summarizes which collaborators the agent was built with.
type Info struct {
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	Search         string `json:"search"`
	Fetch          bool   `json:"fetch"`
	RelevanceOrder string `json:"relevance_order"`
	Prompts        string `json:"prompts"`
}

// App owns the agent and the resources it depends on.
type App struct {
	Config  *config.Config
	Logger  arbor.ILogger
	Agent   *contextual.Agent
	Prompts *prompts.Set
	Info    Info

	watcher *prompts.Watcher
}

// New builds the agent described by cfg. Close must be called when done.
func New(ctx context.Context, cfg *config.Config, logger arbor.ILogger) (*App, error) {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	order, err := contextual.ParseRelevanceOrder(cfg.Policy.RelevanceOrder)
	if err != nil {
		return nil, err
	}

	set, err := loadPrompts(cfg.Prompts.Dir)
	if err != nil {
		return nil, err
	}

	models, err := buildModels(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	searcher, searchName, err := NewSearchProvider(cfg.Search, logger)
	if err != nil {
		return nil, err
	}

	opts := []contextual.Option{
		contextual.WithClassifierModel(models[config.StepClassifier]),
		contextual.WithSplitterModel(models[config.StepSplitter]),
		contextual.WithFinalizerModel(models[config.StepFinalizer]),
		contextual.WithSearchProvider(searcher),
		contextual.WithSearchCost(cfg.Search.Cost),
		contextual.WithPrompts(set),
		contextual.WithRelevanceOrder(order),
		contextual.WithGatewayTimeout(config.ParseDuration(cfg.Policy.GatewayTimeout, 30*time.Second)),
		contextual.WithLogger(logger),
	}
	if cfg.Fetch.Enabled {
		client := &http.Client{Timeout: config.ParseDuration(cfg.Fetch.Timeout, 15*time.Second)}
		opts = append(opts, contextual.WithFetchProvider(fetch.NewHTTPWithClient(client)))
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Agent:   contextual.New(opts...),
		Prompts: set,
		Info: Info{
			Provider:       cfg.LLM.Provider,
			Model:          cfg.LLMSettings(config.StepFinalizer).Model,
			Search:         searchName,
			Fetch:          cfg.Fetch.Enabled,
			RelevanceOrder: order.String(),
			Prompts:        set.Source(),
		},
	}

	if cfg.Prompts.Watch && cfg.Prompts.Dir != "" {
		if err := a.watchPrompts(ctx); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("provider", a.Info.Provider).
		Str("model", a.Info.Model).
		Str("search", a.Info.Search).
		Str("relevance_order", a.Info.RelevanceOrder).
		Str("prompts", a.Info.Prompts).
		Msg("Agent ready")
	return a, nil
}

// Close stops the prompt watcher if one is running.
func (a *App) Close() error {
	if a.watcher == nil {
		return nil
	}
	return a.watcher.Stop()
}

func loadPrompts(dir string) (*prompts.Set, error) {
	if dir == "" {
		return prompts.Default()
	}
	set, err := prompts.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts from %s: %w", dir, err)
	}
	return set, nil
}

func (a *App) watchPrompts(ctx context.Context) error {
	w, err := prompts.NewWatcher(a.Prompts, a.Config.Prompts.Dir, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create prompt watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to watch %s: %w", a.Config.Prompts.Dir, err)
	}
	a.watcher = w
	return nil
}

// buildModels creates one gateway per distinct model name and shares it
// between the steps that use it.
func buildModels(ctx context.Context, cfg *config.Config, logger arbor.ILogger) (map[string]contextual.LLMProvider, error) {
	byModel := make(map[string]contextual.LLMProvider)
	out := make(map[string]contextual.LLMProvider)
	for _, step := range []string{config.StepClassifier, config.StepSplitter, config.StepFinalizer} {
		settings := cfg.LLMSettings(step)
		settings.Logger = logger
		if m, ok := byModel[settings.Model]; ok {
			out[step] = m
			continue
		}
		m, err := llm.New(ctx, settings)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s model: %w", step, err)
		}
		byModel[settings.Model] = m
		out[step] = m
	}
	return out, nil
}

// NewSearchProvider returns the configured web search gateway and its name.
// Keyed providers without a key fall back to DuckDuckGo.
func NewSearchProvider(cfg config.SearchConfig, logger arbor.ILogger) (contextual.SearchProvider, string, error) {
	client := &http.Client{Timeout: config.ParseDuration(cfg.Timeout, 10*time.Second)}
	switch cfg.Provider {
	case "tavily", "brave":
		if cfg.APIKey == "" {
			logger.Warn().Str("provider", cfg.Provider).Msg("Search API key is missing, using duckduckgo")
			return newDuckDuckGo(cfg, client), "duckduckgo", nil
		}
		if cfg.Provider == "brave" {
			b := search.NewBraveWithClient(cfg.APIKey, client)
			if cfg.MaxResults > 0 {
				b.MaxResults = cfg.MaxResults
			}
			return b, "brave", nil
		}
		t := search.NewTavilyWithClient(cfg.APIKey, cfg.Depth, client)
		if cfg.MaxResults > 0 {
			t.MaxResults = cfg.MaxResults
		}
		return t, "tavily", nil
	case "duckduckgo", "":
		return newDuckDuckGo(cfg, client), "duckduckgo", nil
	}
	return nil, "", fmt.Errorf("unknown search provider %q", cfg.Provider)
}

func newDuckDuckGo(cfg config.SearchConfig, client *http.Client) *search.DuckDuckGo {
	d := search.NewDuckDuckGoWithClient(client)
	if cfg.MaxResults > 0 {
		d.MaxResults = cfg.MaxResults
	}
	return d
}
