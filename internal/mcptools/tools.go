// Package mcptools exposes the agent's steps as MCP tools.
package mcptools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/smhanov/contextual"
)

// Tool names. The first four match the step names recorded in a Trace.
const (
	ToolJudgePresence  = contextual.ToolJudgePresence
	ToolCheckRelevance = contextual.ToolCheckRelevance
	ToolSplitContext   = contextual.ToolSplitContext
	ToolWebSearch      = contextual.ToolWebSearch
	ToolAnswer         = "answer_question"
)

func createJudgePresenceTool() mcp.Tool {
	return mcp.NewTool(ToolJudgePresence,
		mcp.WithDescription("Decide whether a message carries background context besides its question. Returns context_provided or context_missing."),
		mcp.WithString("user_input",
			mcp.Required(),
			mcp.Description("The full user message"),
		),
	)
}

func createCheckRelevanceTool() mcp.Tool {
	return mcp.NewTool(ToolCheckRelevance,
		mcp.WithDescription("Decide whether the given context helps answer the question. Returns relevant or not_relevant."),
		mcp.WithString("context",
			mcp.Required(),
			mcp.Description("Background context"),
		),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer"),
		),
	)
}

func createSplitContextTool() mcp.Tool {
	return mcp.NewTool(ToolSplitContext,
		mcp.WithDescription(`Separate the background context from the question. Returns JSON: {"context": "...", "question": "..."}`),
		mcp.WithString("user_input",
			mcp.Required(),
			mcp.Description("A message that contains both context and a question"),
		),
	)
}

func createWebSearchTool() mcp.Tool {
	return mcp.NewTool(ToolWebSearch,
		mcp.WithDescription("Search the web and return the top result's text"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
	)
}

func createAnswerTool() mcp.Tool {
	return mcp.NewTool(ToolAnswer,
		mcp.WithDescription("Answer a message end to end: judge context, search or split as needed, then answer"),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The user message"),
		),
		mcp.WithBoolean("include_trace",
			mcp.Description("Append the resolution trace to the answer (default: false)"),
		),
	)
}
