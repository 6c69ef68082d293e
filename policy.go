package contextual

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smhanov/contextual/prompts"
)

// State is a step of the resolution state machine.
type State string

const (
	StateStart            State = "START"
	StatePresenceChecked  State = "PRESENCE_CHECKED"
	StateRelevanceChecked State = "RELEVANCE_CHECKED"
	StateSplitting        State = "SPLITTING"
	StateSearching        State = "SEARCHING"
	StateResolved         State = "RESOLVED"
	StateAnswered         State = "ANSWERED"
	StateFailed           State = "FAILED"
)

// RelevanceOrder selects how user-provided context is checked for relevance.
type RelevanceOrder int

const (
	// RelevanceOnRawInput checks relevance with the whole input standing in
	// for both context and question, and splits only relevant input.
	RelevanceOnRawInput RelevanceOrder = iota
	// SplitBeforeRelevance splits first and checks the split context
	// against the split question.
	SplitBeforeRelevance
)

func (o RelevanceOrder) String() string {
	switch o {
	case RelevanceOnRawInput:
		return "raw"
	case SplitBeforeRelevance:
		return "split_first"
	}
	return fmt.Sprintf("RelevanceOrder(%d)", int(o))
}

// ParseRelevanceOrder maps a configuration value to a RelevanceOrder.
func ParseRelevanceOrder(s string) (RelevanceOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raw", "raw_input":
		return RelevanceOnRawInput, nil
	case "split_first", "split":
		return SplitBeforeRelevance, nil
	}
	return RelevanceOnRawInput, fmt.Errorf("unknown relevance order %q (want raw or split_first)", s)
}

// Answer resolves query into a context/question pair and asks the finalizer
// model to answer it. On failure the returned Result still carries the
// trace and the cost spent so far.
func (a *Agent) Answer(ctx context.Context, query string, opts ...AnswerOption) (Result, error) {
	r := a.newRun(query, opts)
	res, err := a.resolve(ctx, r, query)
	if err != nil {
		return a.fail(r, res, err)
	}

	answer, err := a.synthesize(ctx, r, res.Pair)
	if err != nil {
		return a.fail(r, res, err)
	}
	a.enter(r, StateAnswered, "")
	res.Answer = answer
	res.Trace = r.trace
	res.Cost = r.cost
	return res, nil
}

// Resolve runs the policy up to RESOLVED without synthesizing an answer.
func (a *Agent) Resolve(ctx context.Context, query string, opts ...AnswerOption) (Result, error) {
	r := a.newRun(query, opts)
	res, err := a.resolve(ctx, r, query)
	if err != nil {
		return a.fail(r, res, err)
	}
	res.Trace = r.trace
	res.Cost = r.cost
	return res, nil
}

func (a *Agent) fail(r *run, res Result, err error) (Result, error) {
	a.enter(r, StateFailed, err.Error())
	a.logger.Warn().Err(err).Str("query", r.trace.Query).Msg("Resolution failed")
	res.Trace = r.trace
	res.Cost = r.cost
	return res, err
}

func (a *Agent) resolve(ctx context.Context, r *run, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, newError(KindEmptyInput, StateStart, nil)
	}

	presence, err := a.classifyPresence(ctx, r, query)
	if err != nil {
		return Result{}, err
	}
	a.enter(r, StatePresenceChecked, "presence="+string(presence))

	if presence == PresenceMissing {
		return a.searchForContext(ctx, r, query)
	}
	if a.order == SplitBeforeRelevance {
		return a.resolveSplitFirst(ctx, r, query)
	}
	return a.resolveRelevanceFirst(ctx, r, query)
}

func (a *Agent) resolveRelevanceFirst(ctx context.Context, r *run, query string) (Result, error) {
	verdict, err := a.classifyRelevance(ctx, r, query, query)
	if err != nil {
		return Result{}, err
	}
	a.enter(r, StateRelevanceChecked, "relevance="+string(verdict))

	if verdict == NotRelevant {
		question, err := a.questionPortion(ctx, r, query)
		if err != nil {
			return Result{}, err
		}
		return a.searchForContext(ctx, r, question)
	}

	a.enter(r, StateSplitting, "")
	pair, err := a.split(ctx, r, query)
	if err != nil {
		return Result{}, err
	}
	a.enter(r, StateResolved, "context from user input")
	return Result{Pair: pair, Source: SourceUser}, nil
}

func (a *Agent) resolveSplitFirst(ctx context.Context, r *run, query string) (Result, error) {
	a.enter(r, StateSplitting, "")
	pair, err := a.split(ctx, r, query)
	if err != nil {
		return Result{}, err
	}

	verdict, err := a.classifyRelevance(ctx, r, pair.Context, pair.Question)
	if err != nil {
		return Result{}, err
	}
	a.enter(r, StateRelevanceChecked, "relevance="+string(verdict))

	if verdict == NotRelevant {
		return a.searchForContext(ctx, r, pair.Question)
	}
	a.enter(r, StateResolved, "context from user input")
	return Result{Pair: pair, Source: SourceUser}, nil
}

// questionPortion extracts the question from input whose context was judged
// irrelevant, so the web search is not polluted by that context.
func (a *Agent) questionPortion(ctx context.Context, r *run, query string) (string, error) {
	pair, err := a.split(ctx, r, query)
	if err == nil {
		return pair.Question, nil
	}
	if !errors.Is(err, ErrMalformedSplitterOutput) {
		return "", err
	}
	question := QuestionPortion(query)
	r.trace.AppendWarning(err)
	a.logger.Warn().Err(err).Str("question", question).Msg("Splitter output unusable, using last question sentence")
	return question, nil
}

func (a *Agent) searchForContext(ctx context.Context, r *run, question string) (Result, error) {
	a.enter(r, StateSearching, "query="+question)
	results, err := a.search(ctx, r, question)
	if err != nil {
		return Result{}, err
	}

	text, from := a.contextFromResults(ctx, r, results)
	if text == "" {
		cause := fmt.Errorf("query %q returned no results", question)
		if len(results) > 0 {
			cause = fmt.Errorf("query %q returned %d results without content", question, len(results))
		}
		r.trace.AppendWarning(newError(KindNoSearchResults, StateSearching, cause))
		a.enter(r, StateResolved, "no search results")
		return Result{
			Pair:   ContextQuestionPair{Context: NoInformationFound, Question: question},
			Source: SourceNoResults,
		}, nil
	}
	a.enter(r, StateResolved, "context from "+from)
	return Result{
		Pair:   ContextQuestionPair{Context: text, Question: question},
		Source: SourceSearch,
	}, nil
}

// contextFromResults picks the context text: the top snippet, else the top
// page fetched, else the next non-empty snippet.
func (a *Agent) contextFromResults(ctx context.Context, r *run, results []SearchResult) (string, string) {
	if len(results) == 0 {
		return "", ""
	}
	top := results[0]
	if s := strings.TrimSpace(top.Snippet); s != "" {
		return s, sourceLabel(top)
	}
	if a.fetcher != nil && strings.TrimSpace(top.URL) != "" {
		text, err := a.fetch(ctx, r, top.URL)
		if err != nil {
			r.trace.AppendWarning(err)
			a.logger.Warn().Err(err).Str("url", top.URL).Msg("Fetch of top result failed")
		} else if text != "" {
			return text, top.URL
		}
	}
	for _, res := range results[1:] {
		if s := strings.TrimSpace(res.Snippet); s != "" {
			return s, sourceLabel(res)
		}
	}
	return "", ""
}

func sourceLabel(res SearchResult) string {
	if u := strings.TrimSpace(res.URL); u != "" {
		return u
	}
	return "search"
}

func (a *Agent) synthesize(ctx context.Context, r *run, pair ContextQuestionPair) (string, error) {
	vars := map[string]string{"context": pair.Context, "question": pair.Question}
	system, err := a.prompts.Render(prompts.System, vars)
	if err != nil {
		return "", err
	}
	user, err := a.prompts.Render(prompts.Answer, vars)
	if err != nil {
		return "", err
	}

	r.trace.AppendToolCall(ToolAnswer)
	text, err := a.generate(ctx, r, StateAnswered, a.finalizer, "Finalizer", system, user)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", newError(KindGatewayUnavailable, StateAnswered, errors.New("model returned an empty answer"))
	}
	return text, nil
}
