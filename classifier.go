package contextual

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smhanov/contextual/prompts"
)

// PresenceVerdict says whether user input carries its own context.
type PresenceVerdict string

const (
	PresenceProvided PresenceVerdict = "context_provided"
	PresenceMissing  PresenceVerdict = "context_missing"
)

// RelevanceVerdict says whether a context helps answer a question.
type RelevanceVerdict string

const (
	Relevant    RelevanceVerdict = "relevant"
	NotRelevant RelevanceVerdict = "not_relevant"
)

// ClassifyPresence judges whether text contains background context in
// addition to a question.
func (a *Agent) ClassifyPresence(ctx context.Context, text string) (PresenceVerdict, error) {
	return a.classifyPresence(ctx, a.newRun(text, nil), text)
}

// ClassifyRelevance judges whether contextText can help answer question.
// It is only meaningful once presence has been judged provided.
func (a *Agent) ClassifyRelevance(ctx context.Context, contextText, question string) (RelevanceVerdict, error) {
	return a.classifyRelevance(ctx, a.newRun(question, nil), contextText, question)
}

func (a *Agent) classifyPresence(ctx context.Context, r *run, text string) (PresenceVerdict, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", newError(KindEmptyInput, StatePresenceChecked, nil)
	}
	user, err := a.prompts.Render(prompts.Presence, map[string]string{"input": text})
	if err != nil {
		return "", err
	}

	r.trace.AppendToolCall(ToolJudgePresence)
	raw, err := a.generate(ctx, r, StatePresenceChecked, a.classifier, "Presence", presenceSystemPrompt, user)
	if err != nil {
		return "", err
	}
	verdict, ok := parsePresence(raw)
	if !ok {
		return "", newError(KindMalformedClassifierOutput, StatePresenceChecked, fmt.Errorf("unrecognised presence label %q", raw))
	}
	return verdict, nil
}

func (a *Agent) classifyRelevance(ctx context.Context, r *run, contextText, question string) (RelevanceVerdict, error) {
	contextText = strings.TrimSpace(contextText)
	question = strings.TrimSpace(question)
	if contextText == "" || question == "" {
		return "", newError(KindEmptyInput, StateRelevanceChecked, errors.New("context and question are both required"))
	}
	user, err := a.prompts.Render(prompts.Relevance, map[string]string{"context": contextText, "question": question})
	if err != nil {
		return "", err
	}

	r.trace.AppendToolCall(ToolCheckRelevance)
	raw, err := a.generate(ctx, r, StateRelevanceChecked, a.classifier, "Relevance", relevanceSystemPrompt, user)
	if err != nil {
		return "", err
	}
	verdict, ok := parseRelevance(raw)
	if !ok {
		return "", newError(KindMalformedClassifierOutput, StateRelevanceChecked, fmt.Errorf("unrecognised relevance label %q", raw))
	}
	return verdict, nil
}
