package contextual

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smhanov/contextual/prompts"
	"github.com/ternarybob/arbor"
)

// Agent resolves a user query into a context/question pair and answers it.
// An Agent holds configuration only and is safe for concurrent use.
type Agent struct {
	model          LLMProvider
	classifier     LLMProvider
	splitter       LLMProvider
	finalizer      LLMProvider
	searcher       SearchProvider
	fetcher        FetchProvider
	prompts        *prompts.Set
	order          RelevanceOrder
	gatewayTimeout time.Duration
	searchCost     float64
	logger         arbor.ILogger
}

// New constructs an Agent with optional configuration.
func New(opts ...Option) *Agent {
	a := &Agent{
		order:          RelevanceOnRawInput,
		gatewayTimeout: defaultGatewayTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.classifier == nil {
		a.classifier = a.model
	}
	if a.splitter == nil {
		a.splitter = a.model
	}
	if a.finalizer == nil {
		a.finalizer = a.model
	}
	if a.prompts == nil {
		a.prompts = prompts.MustDefault()
	}
	if a.logger == nil {
		a.logger = arbor.NewLogger()
	}
	return a
}

// RelevanceOrder reports the configured relevance ordering.
func (a *Agent) RelevanceOrder() RelevanceOrder { return a.order }

// run carries the per-call state of one Answer, Resolve or tool call.
type run struct {
	trace Trace
	cost  float64
	hook  func(Transition)
}

func (a *Agent) newRun(query string, opts []AnswerOption) *run {
	var cfg answerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &run{trace: NewTrace(query), hook: cfg.onTransition}
}

func (a *Agent) enter(r *run, to State, note string) {
	t := Transition{From: r.trace.State(), To: to, Note: note}
	r.trace.Transitions = append(r.trace.Transitions, t)
	a.logger.Debug().Str("from", string(t.From)).Str("to", string(t.To)).Str("note", note).Msg("State transition")
	if r.hook != nil {
		r.hook(t)
	}
}

// callWithDeadline runs fn and returns as soon as either fn finishes or ctx
// ends. A provider that ignores its context is abandoned, not interrupted.
func callWithDeadline[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		v   T
		err error
	}
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{v, err}
	}()
	select {
	case o := <-done:
		return o.v, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (a *Agent) generate(ctx context.Context, r *run, stage State, model LLMProvider, label, system, user string) (string, error) {
	if model == nil {
		return "", newError(KindGatewayUnavailable, stage, fmt.Errorf("%s model is not configured", strings.ToLower(label)))
	}
	callCtx, cancel := context.WithTimeout(ctx, a.gatewayTimeout)
	defer cancel()

	a.logger.Debug().Str("step", label).Str("system", system).Str("prompt", user).Msg("Model request")
	started := time.Now()
	resp, err := callWithDeadline(callCtx, func(c context.Context) (LLMResponse, error) {
		return model.Generate(c, system, user)
	})
	if err != nil {
		gerr := gatewayError(stage, callCtx, ctx, err)
		a.logger.Warn().Str("step", label).Str("kind", gerr.Kind.String()).Err(err).Msg("Model call failed")
		return "", gerr
	}
	r.cost += resp.Cost
	a.logger.Debug().Str("step", label).Dur("elapsed", time.Since(started)).Str("response", resp.Text).Msg("Model response")
	return getContent(resp, a.logger, label), nil
}

// Search runs query against the configured search provider under the
// gateway timeout.
func (a *Agent) Search(ctx context.Context, query string) ([]SearchResult, error) {
	return a.search(ctx, a.newRun(query, nil), query)
}

func (a *Agent) search(ctx context.Context, r *run, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, newError(KindEmptyInput, StateSearching, nil)
	}
	if a.searcher == nil {
		return nil, newError(KindGatewayUnavailable, StateSearching, errors.New("search provider is not configured"))
	}
	callCtx, cancel := context.WithTimeout(ctx, a.gatewayTimeout)
	defer cancel()

	r.trace.AppendToolCall(ToolWebSearch)
	a.logger.Debug().Str("query", query).Msg("Search request")
	results, err := callWithDeadline(callCtx, func(c context.Context) ([]SearchResult, error) {
		return a.searcher.Search(c, query)
	})
	r.cost += a.searchCost
	if err != nil {
		gerr := gatewayError(StateSearching, callCtx, ctx, err)
		a.logger.Warn().Str("query", query).Str("kind", gerr.Kind.String()).Err(err).Msg("Search failed")
		return nil, gerr
	}
	a.logger.Debug().Str("query", query).Int("results", len(results)).Msg("Search response")
	return results, nil
}

func (a *Agent) fetch(ctx context.Context, r *run, url string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.gatewayTimeout)
	defer cancel()

	r.trace.AppendToolCall(ToolFetchPage)
	text, err := callWithDeadline(callCtx, func(c context.Context) (string, error) {
		return a.fetcher.Fetch(c, url)
	})
	if err != nil {
		return "", gatewayError(StateSearching, callCtx, ctx, err)
	}
	return strings.TrimSpace(text), nil
}
