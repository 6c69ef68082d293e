package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/smhanov/contextual"
	"github.com/ternarybob/arbor"
)

// NoSearchResults is returned by web_search when the provider finds nothing.
const NoSearchResults = "No search results found."

// Agent is the subset of *contextual.Agent the tools call.
type Agent interface {
	ClassifyPresence(ctx context.Context, text string) (contextual.PresenceVerdict, error)
	ClassifyRelevance(ctx context.Context, contextText, question string) (contextual.RelevanceVerdict, error)
	Split(ctx context.Context, text string) (contextual.ContextQuestionPair, error)
	Search(ctx context.Context, query string) ([]contextual.SearchResult, error)
	Answer(ctx context.Context, query string, opts ...contextual.AnswerOption) (contextual.Result, error)
}

var _ Agent = (*contextual.Agent)(nil)

// NewServer returns an MCP server with every tool registered.
func NewServer(agent Agent, version string, logger arbor.ILogger) *server.MCPServer {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	s := server.NewMCPServer(
		"contextual",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(createJudgePresenceTool(), handleJudgePresence(agent, logger))
	s.AddTool(createCheckRelevanceTool(), handleCheckRelevance(agent, logger))
	s.AddTool(createSplitContextTool(), handleSplitContext(agent, logger))
	s.AddTool(createWebSearchTool(), handleWebSearch(agent, logger))
	s.AddTool(createAnswerTool(), handleAnswer(agent, logger))
	return s
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(fmt.Sprintf(format, args...))},
		IsError: true,
	}
}

// requireText reads a required, non-blank string argument.
func requireText(request mcp.CallToolRequest, name string) (string, *mcp.CallToolResult) {
	value, err := request.RequireString(name)
	if err != nil || strings.TrimSpace(value) == "" {
		return "", errorResult("Error: %s parameter is required", name)
	}
	return value, nil
}

func handleJudgePresence(agent Agent, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input, bad := requireText(request, "user_input")
		if bad != nil {
			return bad, nil
		}
		verdict, err := agent.ClassifyPresence(ctx, input)
		if err != nil {
			logger.Error().Err(err).Str("tool", ToolJudgePresence).Msg("Tool failed")
			return errorResult("Error: %v", err), nil
		}
		return textResult(string(verdict)), nil
	}
}

func handleCheckRelevance(agent Agent, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		contextText, bad := requireText(request, "context")
		if bad != nil {
			return bad, nil
		}
		question, bad := requireText(request, "question")
		if bad != nil {
			return bad, nil
		}
		verdict, err := agent.ClassifyRelevance(ctx, contextText, question)
		if err != nil {
			logger.Error().Err(err).Str("tool", ToolCheckRelevance).Msg("Tool failed")
			return errorResult("Error: %v", err), nil
		}
		return textResult(string(verdict)), nil
	}
}

func handleSplitContext(agent Agent, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input, bad := requireText(request, "user_input")
		if bad != nil {
			return bad, nil
		}
		pair, err := agent.Split(ctx, input)
		if err != nil {
			logger.Error().Err(err).Str("tool", ToolSplitContext).Msg("Tool failed")
			return errorResult("Error: %v", err), nil
		}
		data, err := json.Marshal(pair)
		if err != nil {
			return nil, err
		}
		return textResult(string(data)), nil
	}
}

// handleWebSearch returns the top result's snippet, like the agent's own
// search step does before falling back to other results.
func handleWebSearch(agent Agent, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, bad := requireText(request, "query")
		if bad != nil {
			return bad, nil
		}
		results, err := agent.Search(ctx, query)
		if err != nil {
			logger.Error().Err(err).Str("tool", ToolWebSearch).Msg("Tool failed")
			return errorResult("Search error: %v", err), nil
		}
		for _, r := range results {
			if snippet := strings.TrimSpace(r.Snippet); snippet != "" {
				return textResult(snippet), nil
			}
		}
		return textResult(NoSearchResults), nil
	}
}

func handleAnswer(agent Agent, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, bad := requireText(request, "message")
		if bad != nil {
			return bad, nil
		}
		result, err := agent.Answer(ctx, message)
		if err != nil {
			logger.Error().Err(err).Str("tool", ToolAnswer).Msg("Tool failed")
			return errorResult("Agent error: %v", err), nil
		}
		text := result.Answer
		if request.GetBool("include_trace", false) {
			text += "\n\n" + result.Trace.Snapshot()
		}
		return textResult(text), nil
	}
}
