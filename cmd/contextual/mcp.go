package main

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"github.com/smhanov/contextual/internal/app"
	"github.com/smhanov/contextual/internal/logging"
	"github.com/smhanov/contextual/internal/mcptools"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the agent's tools over MCP on stdio",
	Long: `Runs an MCP server on stdin/stdout exposing judge_context_presence,
check_context_relevance, split_context, web_search and answer_question.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	// Minimal logging to avoid cluttering MCP stdio
	logger = logging.Quiet()

	application, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	return server.ServeStdio(mcptools.NewServer(application.Agent, version, logger))
}
