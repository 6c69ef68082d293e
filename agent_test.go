package contextual

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM answers each step from its own script, telling steps apart by
// system prompt. Anything that is not a tool prompt is the finalizer.
type scriptedLLM struct {
	mu sync.Mutex

	presence  []string
	relevance []string
	split     []string
	final     []string

	idx         map[string]int
	calls       []string
	userPrompts map[string][]string

	costPerCall float64
	err         error
}

func (s *scriptedLLM) next(step string, list []string) (string, error) {
	if s.idx == nil {
		s.idx = map[string]int{}
	}
	i := s.idx[step]
	if i >= len(list) {
		return "", errors.New("no scripted response available for " + step)
	}
	s.idx[step] = i + 1
	return list[i], nil
}

func (s *scriptedLLM) Generate(_ context.Context, systemPrompt, userPrompt string) (LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var step string
	var list []string
	switch systemPrompt {
	case presenceSystemPrompt:
		step, list = "presence", s.presence
	case relevanceSystemPrompt:
		step, list = "relevance", s.relevance
	case splitterSystemPrompt:
		step, list = "split", s.split
	default:
		step, list = "final", s.final
	}
	s.calls = append(s.calls, step)
	if s.userPrompts == nil {
		s.userPrompts = map[string][]string{}
	}
	s.userPrompts[step] = append(s.userPrompts[step], userPrompt)

	if s.err != nil {
		return LLMResponse{}, s.err
	}
	text, err := s.next(step, list)
	if err != nil {
		return LLMResponse{}, err
	}
	return LLMResponse{Text: text, Cost: s.costPerCall}, nil
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakeSearch struct {
	mu      sync.Mutex
	results []SearchResult
	err     error
	queries []string
}

func (f *fakeSearch) Search(_ context.Context, query string) ([]SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.results, f.err
}

type fakeFetch struct {
	pages map[string]string
	urls  []string
}

func (f *fakeFetch) Fetch(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	page, ok := f.pages[url]
	if !ok {
		return "", errors.New("not found")
	}
	return page, nil
}

// blockingLLM never returns until released and ignores its context.
type blockingLLM struct{ release chan struct{} }

func (b blockingLLM) Generate(_ context.Context, _, _ string) (LLMResponse, error) {
	<-b.release
	return LLMResponse{Text: "context_missing"}, nil
}

func TestScenarioQuestionOnlySearchesWeb(t *testing.T) {
	llm := &scriptedLLM{
		presence: []string{"context_missing"},
		final:    []string{"Paris."},
	}
	searcher := &fakeSearch{results: []SearchResult{{Title: "France", URL: "https://example.com/france", Snippet: "Paris is the capital and largest city of France."}}}
	agent := New(WithModel(llm), WithSearchProvider(searcher))

	res, err := agent.Answer(context.Background(), "What is the capital of France?")
	require.NoError(t, err)

	assert.Equal(t, "Paris.", res.Answer)
	assert.Equal(t, []string{"What is the capital of France?"}, searcher.queries)
	assert.Equal(t, SourceSearch, res.Source)
	assert.Equal(t, "Paris is the capital and largest city of France.", res.Pair.Context)
	assert.Equal(t, "What is the capital of France?", res.Pair.Question)
	assert.Equal(t, []string{ToolJudgePresence, ToolWebSearch, ToolAnswer}, res.Trace.ToolCalls)
	assert.Equal(t, []State{StateStart, StatePresenceChecked, StateSearching, StateResolved, StateAnswered}, res.Trace.States())
	assert.Equal(t, []string{"presence", "final"}, llm.calls)
	require.Len(t, llm.userPrompts["final"], 1)
	assert.Contains(t, llm.userPrompts["final"][0], "Paris is the capital and largest city of France.")
}

func TestScenarioIrrelevantContextSearchesQuestionOnly(t *testing.T) {
	llm := &scriptedLLM{
		presence:  []string{"context_provided"},
		relevance: []string{"not_relevant"},
		split:     []string{`{"context": "Python is a programming language.", "question": "What are attention mechanisms?"}`},
		final:     []string{"Attention mechanisms weight parts of the input."},
	}
	searcher := &fakeSearch{results: []SearchResult{{URL: "https://example.com/attention", Snippet: "Attention lets a model focus on relevant tokens."}}}
	agent := New(WithModel(llm), WithSearchProvider(searcher))

	res, err := agent.Answer(context.Background(), "Python is a programming language. What are attention mechanisms?")
	require.NoError(t, err)

	assert.Equal(t, []string{"What are attention mechanisms?"}, searcher.queries)
	assert.Equal(t, "Attention lets a model focus on relevant tokens.", res.Pair.Context)
	assert.Equal(t, "What are attention mechanisms?", res.Pair.Question)
	assert.Equal(t, SourceSearch, res.Source)
	assert.Equal(t, []string{ToolJudgePresence, ToolCheckRelevance, ToolSplitContext, ToolWebSearch, ToolAnswer}, res.Trace.ToolCalls)
	assert.Equal(t, []State{StateStart, StatePresenceChecked, StateRelevanceChecked, StateSearching, StateResolved, StateAnswered}, res.Trace.States())

	// Raw ordering checks the undivided input against itself.
	require.Len(t, llm.userPrompts["relevance"], 1)
	assert.Contains(t, llm.userPrompts["relevance"][0], "Python is a programming language. What are attention mechanisms?")
}

func TestIrrelevantContextFallsBackToLastQuestion(t *testing.T) {
	llm := &scriptedLLM{
		presence:  []string{"context_provided"},
		relevance: []string{"not relevant"},
		split:     []string{"I cannot split this."},
		final:     []string{"answer"},
	}
	searcher := &fakeSearch{results: []SearchResult{{Snippet: "Attention is all you need."}}}
	agent := New(WithModel(llm), WithSearchProvider(searcher))

	res, err := agent.Answer(context.Background(), "Python is a programming language. What are attention mechanisms?")
	require.NoError(t, err)

	assert.Equal(t, []string{"What are attention mechanisms?"}, searcher.queries)
	require.Len(t, res.Trace.Warnings, 1)
	assert.ErrorIs(t, res.Trace.Warnings[0], ErrMalformedSplitterOutput)
}

func TestScenarioRelevantContextIsSplit(t *testing.T) {
	input := "The Eiffel Tower is in Paris and was completed in 1889. When was the Eiffel Tower completed?"
	llm := &scriptedLLM{
		presence:  []string{"context_provided"},
		relevance: []string{"relevant"},
		split:     []string{"```json\n{\"context\": \"The Eiffel Tower is in Paris and was completed in 1889.\", \"question\": \"When was the Eiffel Tower completed?\"}\n```"},
		final:     []string{"It was completed in 1889."},
	}
	searcher := &fakeSearch{}
	agent := New(WithModel(llm), WithSearchProvider(searcher))

	res, err := agent.Answer(context.Background(), input)
	require.NoError(t, err)

	assert.Empty(t, searcher.queries)
	assert.Equal(t, "It was completed in 1889.", res.Answer)
	assert.Equal(t, SourceUser, res.Source)
	assert.Equal(t, ContextQuestionPair{
		Context:  "The Eiffel Tower is in Paris and was completed in 1889.",
		Question: "When was the Eiffel Tower completed?",
	}, res.Pair)
	assert.Equal(t, []string{ToolJudgePresence, ToolCheckRelevance, ToolSplitContext, ToolAnswer}, res.Trace.ToolCalls)
	assert.Equal(t, []State{StateStart, StatePresenceChecked, StateRelevanceChecked, StateSplitting, StateResolved, StateAnswered}, res.Trace.States())
}

func TestEmptyInputMakesNoGatewayCalls(t *testing.T) {
	llm := &scriptedLLM{}
	searcher := &fakeSearch{}
	agent := New(WithModel(llm), WithSearchProvider(searcher))

	for _, input := range []string{"", "   ", "\n\t"} {
		res, err := agent.Answer(context.Background(), input)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyInput)
		assert.True(t, IsClientError(err))
		assert.Equal(t, StateFailed, res.Trace.State())
	}
	assert.Equal(t, 0, llm.callCount())
	assert.Empty(t, searcher.queries)
}

func TestGatewayTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	agent := New(
		WithModel(blockingLLM{release: release}),
		WithSearchProvider(&fakeSearch{}),
		WithGatewayTimeout(20*time.Millisecond),
	)

	start := time.Now()
	res, err := agent.Answer(context.Background(), "What is the capital of France?")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.ErrorIs(t, err, ErrGatewayTimeout)
	assert.False(t, IsClientError(err))
	assert.Equal(t, KindGatewayTimeout, KindOf(err))
	assert.Equal(t, StateFailed, res.Trace.State())

	var agentErr *Error
	require.True(t, errors.As(err, &agentErr))
	assert.Equal(t, StatePresenceChecked, agentErr.Stage)
}

func TestGatewayUnavailable(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("connection refused")}
	agent := New(WithModel(llm), WithSearchProvider(&fakeSearch{}))

	_, err := agent.Answer(context.Background(), "What is Go?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCallerCancellationIsNotTimeout(t *testing.T) {
	llm := &scriptedLLM{presence: []string{"context_missing"}}
	agent := New(WithModel(llm), WithSearchProvider(&fakeSearch{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agent.Answer(ctx, "What is Go?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrGatewayTimeout)
}

func TestSearchFailureFails(t *testing.T) {
	llm := &scriptedLLM{presence: []string{"context_missing"}}
	searcher := &fakeSearch{err: errors.New("search API error: 500")}
	agent := New(WithModel(llm), WithSearchProvider(searcher))

	res, err := agent.Answer(context.Background(), "What is Go?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	var agentErr *Error
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, StateSearching, agentErr.Stage)
	assert.Equal(t, StateFailed, res.Trace.State())
}

func TestMissingSearchProvider(t *testing.T) {
	llm := &scriptedLLM{presence: []string{"context_missing"}}
	agent := New(WithModel(llm))

	_, err := agent.Answer(context.Background(), "What is Go?")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestMalformedPresenceOutput(t *testing.T) {
	llm := &scriptedLLM{presence: []string{"I think the user might have given context."}}
	searcher := &fakeSearch{}
	agent := New(WithModel(llm), WithSearchProvider(searcher))

	_, err := agent.Answer(context.Background(), "What is Go?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedClassifierOutput)
	assert.Empty(t, searcher.queries)
}

func TestMalformedRelevanceOutput(t *testing.T) {
	llm := &scriptedLLM{
		presence:  []string{"context_provided"},
		relevance: []string{"somewhat"},
	}
	agent := New(WithModel(llm), WithSearchProvider(&fakeSearch{}))

	_, err := agent.Answer(context.Background(), "Go has goroutines. What are they?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedClassifierOutput)
	var agentErr *Error
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, StateRelevanceChecked, agentErr.Stage)
}

func TestMalformedSplitOnRelevantContextFails(t *testing.T) {
	llm := &scriptedLLM{
		presence:  []string{"context_provided"},
		relevance: []string{"relevant"},
		split:     []string{`{"context": "Go has goroutines."}`},
	}
	agent := New(WithModel(llm), WithSearchProvider(&fakeSearch{}))

	_, err := agent.Answer(context.Background(), "Go has goroutines. What are they?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedSplitterOutput)
}

func TestNoSearchResultsStillAnswers(t *testing.T) {
	llm := &scriptedLLM{
		presence: []string{"context_missing"},
		final:    []string{"I could not find anything about that."},
	}
	agent := New(WithModel(llm), WithSearchProvider(&fakeSearch{}))

	res, err := agent.Answer(context.Background(), "What is the zorblax constant?")
	require.NoError(t, err)

	assert.Equal(t, SourceNoResults, res.Source)
	assert.Equal(t, NoInformationFound, res.Pair.Context)
	require.Len(t, res.Trace.Warnings, 1)
	assert.ErrorIs(t, res.Trace.Warnings[0], ErrNoSearchResults)
	assert.Contains(t, llm.userPrompts["final"][0], NoInformationFound)
}

func TestEmptyTopSnippetIsFetched(t *testing.T) {
	llm := &scriptedLLM{presence: []string{"context_missing"}, final: []string{"ok"}}
	searcher := &fakeSearch{results: []SearchResult{
		{URL: "https://example.com/a", Snippet: " "},
		{URL: "https://example.com/b", Snippet: "second snippet"},
	}}
	fetcher := &fakeFetch{pages: map[string]string{"https://example.com/a": "# Page A\n\nFull text."}}
	agent := New(WithModel(llm), WithSearchProvider(searcher), WithFetchProvider(fetcher))

	res, err := agent.Answer(context.Background(), "What is on page A?")
	require.NoError(t, err)
	assert.Equal(t, "# Page A\n\nFull text.", res.Pair.Context)
	assert.Equal(t, []string{"https://example.com/a"}, fetcher.urls)
	assert.Equal(t, []string{ToolJudgePresence, ToolWebSearch, ToolFetchPage, ToolAnswer}, res.Trace.ToolCalls)
}

func TestEmptyTopSnippetUsesNextResult(t *testing.T) {
	llm := &scriptedLLM{presence: []string{"context_missing"}, final: []string{"ok"}}
	searcher := &fakeSearch{results: []SearchResult{
		{URL: "https://example.com/a"},
		{URL: "https://example.com/b", Snippet: "second snippet"},
	}}
	agent := New(WithModel(llm), WithSearchProvider(searcher))

	res, err := agent.Answer(context.Background(), "What is on page B?")
	require.NoError(t, err)
	assert.Equal(t, "second snippet", res.Pair.Context)
	assert.Equal(t, SourceSearch, res.Source)
}

func TestFailedFetchFallsBackToNextSnippet(t *testing.T) {
	llm := &scriptedLLM{presence: []string{"context_missing"}, final: []string{"ok"}}
	searcher := &fakeSearch{results: []SearchResult{
		{URL: "https://example.com/missing"},
		{URL: "https://example.com/b", Snippet: "second snippet"},
	}}
	agent := New(WithModel(llm), WithSearchProvider(searcher), WithFetchProvider(&fakeFetch{}))

	res, err := agent.Answer(context.Background(), "What is on page B?")
	require.NoError(t, err)
	assert.Equal(t, "second snippet", res.Pair.Context)
	require.Len(t, res.Trace.Warnings, 1)
}

func TestSplitBeforeRelevanceOrder(t *testing.T) {
	llm := &scriptedLLM{
		presence:  []string{"context_provided"},
		split:     []string{`{"context": "Go was released in 2009.", "question": "When was Go released?"}`},
		relevance: []string{"relevant"},
		final:     []string{"2009."},
	}
	searcher := &fakeSearch{}
	agent := New(WithModel(llm), WithSearchProvider(searcher), WithRelevanceOrder(SplitBeforeRelevance))

	res, err := agent.Answer(context.Background(), "Go was released in 2009. When was Go released?")
	require.NoError(t, err)

	assert.Equal(t, []string{ToolJudgePresence, ToolSplitContext, ToolCheckRelevance, ToolAnswer}, res.Trace.ToolCalls)
	assert.Equal(t, []State{StateStart, StatePresenceChecked, StateSplitting, StateRelevanceChecked, StateResolved, StateAnswered}, res.Trace.States())
	require.Len(t, llm.userPrompts["relevance"], 1)
	assert.Contains(t, llm.userPrompts["relevance"][0], "Go was released in 2009.")
	assert.NotContains(t, llm.userPrompts["relevance"][0], "Go was released in 2009. When was Go released?")
	assert.Empty(t, searcher.queries)
}

func TestSplitBeforeRelevanceSearchesSplitQuestion(t *testing.T) {
	llm := &scriptedLLM{
		presence:  []string{"context_provided"},
		split:     []string{`{"context": "I like cats.", "question": "What is the boiling point of water?"}`},
		relevance: []string{"irrelevant"},
		final:     []string{"100 C."},
	}
	searcher := &fakeSearch{results: []SearchResult{{Snippet: "Water boils at 100 degrees Celsius at sea level."}}}
	agent := New(WithModel(llm), WithSearchProvider(searcher), WithRelevanceOrder(SplitBeforeRelevance))

	res, err := agent.Answer(context.Background(), "I like cats. What is the boiling point of water?")
	require.NoError(t, err)
	assert.Equal(t, []string{"What is the boiling point of water?"}, searcher.queries)
	assert.Equal(t, SourceSearch, res.Source)
}

func TestTransitionHookSeesEveryState(t *testing.T) {
	llm := &scriptedLLM{presence: []string{"context_missing"}, final: []string{"ok"}}
	searcher := &fakeSearch{results: []SearchResult{{Snippet: "s"}}}
	agent := New(WithModel(llm), WithSearchProvider(searcher))

	var seen []State
	_, err := agent.Answer(context.Background(), "Q?", WithTransitionHook(func(tr Transition) {
		seen = append(seen, tr.To)
	}))
	require.NoError(t, err)
	assert.Equal(t, []State{StatePresenceChecked, StateSearching, StateResolved, StateAnswered}, seen)
}

func TestResolveStopsBeforeAnswer(t *testing.T) {
	llm := &scriptedLLM{presence: []string{"context_missing"}}
	searcher := &fakeSearch{results: []SearchResult{{Snippet: "s"}}}
	agent := New(WithModel(llm), WithSearchProvider(searcher))

	res, err := agent.Resolve(context.Background(), "Q?")
	require.NoError(t, err)
	assert.Empty(t, res.Answer)
	assert.Equal(t, StateResolved, res.Trace.State())
	assert.Equal(t, []string{"presence"}, llm.calls)
}

func TestAgentCostTracking(t *testing.T) {
	llm := &scriptedLLM{
		presence:    []string{"context_missing"},
		final:       []string{"final answer"},
		costPerCall: 0.01,
	}
	searcher := &fakeSearch{results: []SearchResult{{Snippet: "s"}}}
	agent := New(WithModel(llm), WithSearchProvider(searcher), WithSearchCost(0.005))

	res, err := agent.Answer(context.Background(), "Test question?")
	require.NoError(t, err)
	// presence(0.01) + search(0.005) + finalizer(0.01)
	assert.InDelta(t, 0.025, res.Cost, 0.0001)
}

func TestSeparateStepModels(t *testing.T) {
	classifier := &scriptedLLM{presence: []string{"context_provided"}, relevance: []string{"relevant"}}
	splitter := &scriptedLLM{split: []string{`{"context": "c", "question": "q?"}`}}
	finalizer := &scriptedLLM{final: []string{"done"}}
	agent := New(
		WithClassifierModel(classifier),
		WithSplitterModel(splitter),
		WithFinalizerModel(finalizer),
	)

	res, err := agent.Answer(context.Background(), "c. q?")
	require.NoError(t, err)
	assert.Equal(t, "done", res.Answer)
	assert.Equal(t, []string{"presence", "relevance"}, classifier.calls)
	assert.Equal(t, []string{"split"}, splitter.calls)
	assert.Equal(t, []string{"final"}, finalizer.calls)
}

func TestEmptyFinalAnswerFails(t *testing.T) {
	llm := &scriptedLLM{presence: []string{"context_missing"}, final: []string{"<think>hmm</think>"}}
	agent := New(WithModel(llm), WithSearchProvider(&fakeSearch{results: []SearchResult{{Snippet: "s"}}}))

	_, err := agent.Answer(context.Background(), "Q?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestParseRelevanceOrder(t *testing.T) {
	order, err := ParseRelevanceOrder("split_first")
	require.NoError(t, err)
	assert.Equal(t, SplitBeforeRelevance, order)

	order, err = ParseRelevanceOrder("")
	require.NoError(t, err)
	assert.Equal(t, RelevanceOnRawInput, order)

	_, err = ParseRelevanceOrder("sideways")
	assert.Error(t, err)
}
