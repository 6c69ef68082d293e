package contextual

import (
	"context"
	"strings"

	"github.com/smhanov/contextual/prompts"
)

// Split separates text into its context and question portions. The caller
// is expected to have established that text carries relevant context; Split
// does not re-check. Both fields of a successful result are non-empty.
func (a *Agent) Split(ctx context.Context, text string) (ContextQuestionPair, error) {
	return a.split(ctx, a.newRun(text, nil), text)
}

func (a *Agent) split(ctx context.Context, r *run, text string) (ContextQuestionPair, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ContextQuestionPair{}, newError(KindEmptyInput, StateSplitting, nil)
	}
	user, err := a.prompts.Render(prompts.Splitter, map[string]string{"input": text})
	if err != nil {
		return ContextQuestionPair{}, err
	}

	r.trace.AppendToolCall(ToolSplitContext)
	raw, err := a.generate(ctx, r, StateSplitting, a.splitter, "Splitter", splitterSystemPrompt, user)
	if err != nil {
		return ContextQuestionPair{}, err
	}
	pair, err := parseSplit(raw)
	if err != nil {
		return ContextQuestionPair{}, newError(KindMalformedSplitterOutput, StateSplitting, err)
	}
	return pair, nil
}
