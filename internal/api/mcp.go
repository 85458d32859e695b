package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"askfolio/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store   *storage.Store
	Engine  Searcher
	Synth   Synthesizer
	Indexer ProjectIndexer
	TopK    int
}

// NewMCPServer creates an MCP server exposing portfolio search and
// indexing tools, plus the project list as a resource.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.TopK <= 0 {
		deps.TopK = defaultTopK
	}

	s := server.NewMCPServer(
		"askfolio",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("askfolio answers questions about a portfolio of projects using hybrid semantic search."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_projects",
			mcp.WithDescription("Search the portfolio with a natural-language query and get ranked results plus a cited answer."),
			mcp.WithString("query", mcp.Description("Natural-language question about the portfolio"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (1-10, default 5)")),
		),
		mcpSearchProjects(deps),
	)

	s.AddTool(
		mcp.NewTool("index_project",
			mcp.WithDescription("Rebuild the vector index for one project by ID."),
			mcp.WithString("id", mcp.Description("Project ID"), mcp.Required()),
		),
		mcpIndexProject(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"portfolio://projects",
			"Projects",
			mcp.WithResourceDescription("All portfolio projects as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProjects(deps),
	)

	return s
}

func mcpSearchProjects(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", deps.TopK)
		if limit < minTopK {
			limit = minTopK
		}
		if limit > maxTopK {
			limit = maxTopK
		}

		results, err := deps.Engine.Search(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		ans := deps.Synth.Synthesize(ctx, query, results)

		b, err := json.Marshal(searchResponse{Results: results, Answer: ans})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpIndexProject(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		p, err := deps.Store.GetProject(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("project %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get project: %v", err)), nil
		}

		n, err := deps.Indexer.IndexProject(ctx, p)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to index project: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Indexed project %s: %d records written", id, n)), nil
	}
}

func mcpResourceProjects(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		projects, err := deps.Store.ListProjects(ctx, 1000, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}

		out := make([]projectResponse, len(projects))
		for i, p := range projects {
			out[i] = toProjectResponse(p)
		}
		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal projects: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
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
