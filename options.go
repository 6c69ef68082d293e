package contextual

import (
	"time"

	"github.com/smhanov/contextual/prompts"
	"github.com/ternarybob/arbor"
)

const defaultGatewayTimeout = 30 * time.Second

// Option configures an Agent.
type Option func(*Agent)

// WithModel sets the model used for every step that has no model of its own.
func WithModel(m LLMProvider) Option {
	return func(a *Agent) { a.model = m }
}

// WithClassifierModel sets the model used for the presence and relevance
// judgments. Run it at temperature 0 for repeatable verdicts.
func WithClassifierModel(m LLMProvider) Option {
	return func(a *Agent) { a.classifier = m }
}

// WithSplitterModel sets the model that separates context from question.
func WithSplitterModel(m LLMProvider) Option {
	return func(a *Agent) { a.splitter = m }
}

// WithFinalizerModel sets the model used to produce the final answer.
func WithFinalizerModel(m LLMProvider) Option {
	return func(a *Agent) { a.finalizer = m }
}

// WithSearchProvider sets the search implementation.
func WithSearchProvider(searcher SearchProvider) Option {
	return func(a *Agent) { a.searcher = searcher }
}

// WithFetchProvider sets the optional fetch implementation.
func WithFetchProvider(fetcher FetchProvider) Option {
	return func(a *Agent) { a.fetcher = fetcher }
}

// WithPrompts replaces the built-in prompt templates.
func WithPrompts(set *prompts.Set) Option {
	return func(a *Agent) { a.prompts = set }
}

// WithRelevanceOrder selects when the relevance check runs relative to the split.
func WithRelevanceOrder(order RelevanceOrder) Option {
	return func(a *Agent) { a.order = order }
}

// WithGatewayTimeout bounds every individual model, search and fetch call.
func WithGatewayTimeout(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.gatewayTimeout = d
		}
	}
}

// WithSearchCost sets the cost (in dollars) charged per search call.
func WithSearchCost(cost float64) Option {
	return func(a *Agent) { a.searchCost = cost }
}

// WithLogger sets the logger. Prompts and raw model output are logged at
// debug level.
func WithLogger(logger arbor.ILogger) Option {
	return func(a *Agent) { a.logger = logger }
}
