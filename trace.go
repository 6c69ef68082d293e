package contextual

import (
	"fmt"
	"strings"
)

// Tool names recorded in a Trace, in the vocabulary of the chat tools.
const (
	ToolJudgePresence  = "judge_context_presence"
	ToolCheckRelevance = "check_context_relevance"
	ToolSplitContext   = "split_context"
	ToolWebSearch      = "web_search"
	ToolFetchPage      = "fetch_page"
	ToolAnswer         = "answer"
)

// Transition is one step of the resolution state machine.
type Transition struct {
	From State  `json:"from"`
	To   State  `json:"to"`
	Note string `json:"note,omitempty"`
}

// Trace records what a single call did: the states it went through, the
// tools it invoked in order, and any non-fatal problems along the way.
type Trace struct {
	Query       string
	Transitions []Transition
	ToolCalls   []string
	Warnings    []error
}

// NewTrace starts a trace for query.
func NewTrace(query string) Trace {
	return Trace{Query: strings.TrimSpace(query)}
}

// State is the state the trace ended in.
func (t Trace) State() State {
	if len(t.Transitions) == 0 {
		return StateStart
	}
	return t.Transitions[len(t.Transitions)-1].To
}

// States lists every state visited, starting with StateStart.
func (t Trace) States() []State {
	out := []State{StateStart}
	for _, tr := range t.Transitions {
		out = append(out, tr.To)
	}
	return out
}

// AppendToolCall adds a tool invocation to the call log.
func (t *Trace) AppendToolCall(name string) {
	if name == "" {
		return
	}
	t.ToolCalls = append(t.ToolCalls, name)
}

// AppendWarning records a problem that did not stop the call.
func (t *Trace) AppendWarning(err error) {
	if err == nil {
		return
	}
	t.Warnings = append(t.Warnings, err)
}

// Snapshot renders the trace for logs and the CLI.
func (t Trace) Snapshot() string {
	var b strings.Builder
	b.WriteString("Query:\n")
	b.WriteString(t.Query)
	b.WriteString("\n\nStates:\n")
	b.WriteString(string(StateStart))
	for _, tr := range t.Transitions {
		b.WriteString(" -> ")
		b.WriteString(string(tr.To))
		if tr.Note != "" {
			b.WriteString(fmt.Sprintf(" (%s)", tr.Note))
		}
	}
	b.WriteString("\n\nTools called:\n")
	if len(t.ToolCalls) == 0 {
		b.WriteString("(none)")
	} else {
		for i, name := range t.ToolCalls {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, name))
		}
	}
	if len(t.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range t.Warnings {
			b.WriteString("- ")
			b.WriteString(w.Error())
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
