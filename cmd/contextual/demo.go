package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/smhanov/contextual"
	"github.com/smhanov/contextual/internal/app"
	"github.com/spf13/cobra"
)

var (
	demoStepsOnly bool
	demoFlowsOnly bool
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Walk through each step and each resolution flow",
	Long: `Runs each tool on its own with sample input, then sends three sample
messages through the full agent and compares the tools it called with the
expected flow:

  A  question only                 -> search
  B  context relevant to question  -> split
  C  context unrelated to question -> search for the question`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().BoolVar(&demoStepsOnly, "steps", false, "Only run the individual steps")
	demoCmd.Flags().BoolVar(&demoFlowsOnly, "flows", false, "Only run the full flows")
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	out := cmd.OutOrStdout()
	if !demoFlowsOnly {
		runSteps(ctx, out, application.Agent)
		fmt.Fprintln(out)
	}
	if !demoStepsOnly {
		if failed := runFlows(ctx, out, application.Agent); failed > 0 {
			return fmt.Errorf("%d of %d flows did not follow the expected tool sequence", failed, len(demoFlows(application.Agent.RelevanceOrder())))
		}
	}
	return nil
}

type demoFlow struct {
	name     string
	query    string
	expected []string
}

// demoFlows returns the sample flows with the tool sequence the given
// relevance order should produce.
func demoFlows(order contextual.RelevanceOrder) []demoFlow {
	judge := contextual.ToolJudgePresence
	check := contextual.ToolCheckRelevance
	split := contextual.ToolSplitContext
	search := contextual.ToolWebSearch
	answer := contextual.ToolAnswer

	relevant := []string{judge, check, split, answer}
	irrelevant := []string{judge, check, split, search, answer}
	if order == contextual.SplitBeforeRelevance {
		relevant = []string{judge, split, check, answer}
		irrelevant = []string{judge, split, check, search, answer}
	}

	return []demoFlow{
		{
			name:     "Flow A: Missing Context",
			query:    "What are attention mechanisms?",
			expected: []string{judge, search, answer},
		},
		{
			name:     "Flow B: Context Provided + Relevant",
			query:    "Attention mechanisms are components that help models focus on input parts. How are they used in transformers?",
			expected: relevant,
		},
		{
			name:     "Flow C: Context Provided + Irrelevant",
			query:    "Python is a programming language. What are attention mechanisms?",
			expected: irrelevant,
		},
	}
}

func rule(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

// runFlows sends each sample message through the agent and reports how many
// did not call the expected tools. Page fetches are shown but not compared.
func runFlows(ctx context.Context, w io.Writer, agent *contextual.Agent) int {
	rule(w)
	fmt.Fprintln(w, "Resolution flows")
	rule(w)

	failed := 0
	for i, flow := range demoFlows(agent.RelevanceOrder()) {
		fmt.Fprintf(w, "\nTest Case %d: %s\n", i+1, flow.name)
		fmt.Fprintf(w, "Query:    %s\n", flow.query)
		fmt.Fprintf(w, "Expected: %s\n", strings.Join(flow.expected, " -> "))

		result, err := agent.Answer(ctx, flow.query)
		fmt.Fprintf(w, "Actual:   %s\n", strings.Join(result.Trace.ToolCalls, " -> "))
		if err != nil {
			failed++
			fmt.Fprintf(w, "Error:    %v\n", err)
			continue
		}

		if sameTools(flow.expected, result.Trace.ToolCalls) {
			fmt.Fprintln(w, "Result:   flow followed")
		} else {
			failed++
			fmt.Fprintln(w, "Result:   flow NOT followed")
		}
		fmt.Fprintf(w, "\nAnswer:\n%s\n", result.Answer)
	}
	return failed
}

func sameTools(expected, actual []string) bool {
	var called []string
	for _, name := range actual {
		if name != contextual.ToolFetchPage {
			called = append(called, name)
		}
	}
	if len(called) != len(expected) {
		return false
	}
	for i := range expected {
		if called[i] != expected[i] {
			return false
		}
	}
	return true
}

// runSteps exercises each tool on its own.
func runSteps(ctx context.Context, w io.Writer, agent *contextual.Agent) {
	rule(w)
	fmt.Fprintln(w, "Individual steps")
	rule(w)

	fmt.Fprintln(w, "\nSTEP 1: Judge Context Presence")
	for _, input := range []string{
		"What is machine learning?",
		"Machine learning is AI. How does it work?",
	} {
		verdict, err := agent.ClassifyPresence(ctx, input)
		fmt.Fprintf(w, "Input:  %s\nResult: %s\n\n", input, stepResult(string(verdict), err))
	}

	fmt.Fprintln(w, "STEP 2: Web Search")
	results, err := agent.Search(ctx, "attention mechanisms")
	switch {
	case err != nil:
		fmt.Fprintf(w, "Error: %v\n", err)
	case len(results) == 0:
		fmt.Fprintln(w, "No search results found.")
	default:
		fmt.Fprintf(w, "%s\n", preview(results[0].Snippet, 200))
	}

	fmt.Fprintln(w, "\nSTEP 3: Check Context Relevance")
	for _, tc := range []struct{ context, question, expected string }{
		{"Attention mechanisms help models focus on relevant input parts.", "How do attention mechanisms work?", string(contextual.Relevant)},
		{"Python is a programming language.", "What are attention mechanisms?", string(contextual.NotRelevant)},
	} {
		verdict, err := agent.ClassifyRelevance(ctx, tc.context, tc.question)
		fmt.Fprintf(w, "Context:  %s\nQuestion: %s\nResult:   %s\nExpected: %s\n\n", tc.context, tc.question, stepResult(string(verdict), err), tc.expected)
	}

	fmt.Fprintln(w, "STEP 4: Split Context and Question")
	pair, err := agent.Split(ctx, "Transformers use attention. How do they work?")
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Context:  %s\nQuestion: %s\n", pair.Context, pair.Question)
}

func stepResult(value string, err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return value
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
