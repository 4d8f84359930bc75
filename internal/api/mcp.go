package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Pipeline Asker
}

// NewMCPServer creates an MCP server exposing the fault pipeline as tools,
// so agent hosts can query turbine risk without going through HTTP.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"windbot",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("windbot — wind turbine fault risk prediction and explanation."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("predict_fault",
			mcp.WithDescription("Predict the fault probability for a turbine and return the top contributing sensor features."),
			mcp.WithString("turbine_id", mcp.Description("Turbine identifier, e.g. WTG-07"), mcp.Required()),
			mcp.WithString("log_date", mcp.Description("Optional ISO date (YYYY-MM-DD); latest row is used when omitted")),
		),
		mcpPredictFault(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_turbine",
			mcp.WithDescription("Ask a natural-language question about turbine fault risk and get a grounded explanation."),
			mcp.WithString("question", mcp.Description("The question to ask"), mcp.Required()),
			mcp.WithString("user_id", mcp.Description("Optional user identifier for conversation history")),
		),
		mcpAskTurbine(deps),
	)

	return s
}

func mcpPredictFault(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		turbineID, err := req.RequireString("turbine_id")
		if err != nil {
			return mcpError("turbine_id is required"), nil
		}
		logDate := req.GetString("log_date", "")

		pred, err := deps.Pipeline.Predict(ctx, turbineID, logDate)
		if err != nil {
			return mcpError(fmt.Sprintf("prediction failed: %v", err)), nil
		}

		b, err := json.Marshal(pred)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal prediction: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAskTurbine(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		userID := req.GetString("user_id", anonymousUser)

		resp := deps.Pipeline.Ask(ctx, userID, question)
		return mcpText(resp.Answer), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
