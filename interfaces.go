package contextual

import "context"

// SearchResult is a single item returned by a SearchProvider.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchProvider executes a query and returns results ordered by rank.
// An empty slice with a nil error is a valid "nothing found" answer.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// FetchProvider retrieves readable content for a URL.
// The agent uses it when the top search result has no snippet.
type FetchProvider interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// LLMResponse is returned by LLMProvider.Generate and carries both the
// generated text and the cost (in dollars) of the call.
type LLMResponse struct {
	Text      string
	Reasoning string
	Cost      float64
}

// LLMProvider is implemented by language model clients.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (LLMResponse, error)
}

// ContextQuestionPair is the resolved input for answer synthesis.
type ContextQuestionPair struct {
	Context  string `json:"context" validate:"required"`
	Question string `json:"question" validate:"required"`
}

// ContextSource records where the context of a resolved pair came from.
type ContextSource string

const (
	SourceUser      ContextSource = "user"
	SourceSearch    ContextSource = "search"
	SourceNoResults ContextSource = "none"
)

// NoInformationFound is the context used when a web search returns nothing.
const NoInformationFound = "No relevant information was found on the web for this question."

// Result is returned by Agent.Answer.
type Result struct {
	Answer string
	Pair   ContextQuestionPair
	Source ContextSource
	Trace  Trace
	Cost   float64
}

// AnswerOption configures a single call to Agent.Answer or Agent.Resolve.
type AnswerOption func(*answerConfig)

type answerConfig struct {
	onTransition func(Transition)
}

// WithTransitionHook registers fn to be called synchronously, on the
// calling goroutine, for every state transition of the call.
func WithTransitionHook(fn func(Transition)) AnswerOption {
	return func(c *answerConfig) { c.onTransition = fn }
}
