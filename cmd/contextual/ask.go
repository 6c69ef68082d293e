package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/smhanov/contextual"
	"github.com/smhanov/contextual/internal/app"
	"github.com/spf13/cobra"
)

var (
	askResolveOnly bool
	askTrace       bool
	askPlain       bool
)

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Answer one message and exit",
	Long: `Runs a single message through the agent and prints the answer.
With --resolve-only the agent stops once it knows the context and question.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askResolveOnly, "resolve-only", false, "Print the resolved context and question instead of an answer")
	askCmd.Flags().BoolVar(&askTrace, "trace", false, "Print the states and tools the agent went through")
	askCmd.Flags().BoolVar(&askPlain, "plain", false, "Print the answer without markdown rendering")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	message := strings.Join(args, " ")
	out := cmd.OutOrStdout()

	var result contextual.Result
	if askResolveOnly {
		result, err = application.Agent.Resolve(ctx, message)
	} else {
		result, err = application.Agent.Answer(ctx, message)
	}
	if askTrace {
		defer fmt.Fprintf(out, "\n%s\n\nCost: $%.4f\n", result.Trace.Snapshot(), result.Cost)
	}
	if err != nil {
		return err
	}

	if askResolveOnly {
		fmt.Fprintf(out, "Source:   %s\nContext:  %s\nQuestion: %s\n", result.Source, result.Pair.Context, result.Pair.Question)
		return nil
	}
	fmt.Fprintln(out, renderAnswer(result.Answer, askPlain))
	return nil
}
