// Package mcp provides Model Context Protocol server functionality.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/librarianhq/librarian/application/service"
	"github.com/librarianhq/librarian/domain/library"
)

// Catalog provides library catalog search for MCP tools.
type Catalog interface {
	Search(ctx context.Context, query string, limit, offset int) ([]service.CatalogEntry, error)
}

// DocsProvider provides versioned documentation retrieval for MCP tools.
type DocsProvider interface {
	Query(ctx context.Context, libraryID, topic string, tokens int, tag string) ([]library.Document, error)
}

// Server wraps the MCP server with librarian-specific tools.
type Server struct {
	mcpServer *server.MCPServer
	catalog   Catalog
	docs      DocsProvider
	logger    *slog.Logger
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(catalog Catalog, docs DocsProvider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		catalog: catalog,
		docs:    docs,
		logger:  logger,
	}

	mcpServer := server.NewMCPServer(
		"librarian",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

// registerTools registers all librarian tools with the MCP server.
func (s *Server) registerTools(mcpServer *server.MCPServer) {
	searchTool := mcp.NewTool("search_libraries",
		mcp.WithDescription("Search the documentation catalog for libraries matching a query"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query, e.g. a library or framework name"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of results to return (default: 10)"),
		),
	)

	mcpServer.AddTool(searchTool, s.handleSearchLibraries)

	docsTool := mcp.NewTool("get_library_docs",
		mcp.WithDescription("Fetch documentation snippets for a library, optionally scoped to a topic and version"),
		mcp.WithString("library",
			mcp.Required(),
			mcp.Description("The library name in /org/project form, e.g. /vercel/next.js"),
		),
		mcp.WithString("topic",
			mcp.Description("Topic to focus the documentation on"),
		),
		mcp.WithString("tag",
			mcp.Description("Version tag to read from (default: latest)"),
		),
		mcp.WithNumber("tokens",
			mcp.Description("Maximum number of documentation tokens to return (default: 10000)"),
		),
	)

	mcpServer.AddTool(docsTool, s.handleGetLibraryDocs)
}

// handleSearchLibraries handles the search_libraries tool invocation.
func (s *Server) handleSearchLibraries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}

	limit := request.GetInt("limit", 10)

	entries, err := s.catalog.Search(ctx, query, limit, 0)
	if err != nil {
		s.logger.Error("catalog search failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	type libraryResult struct {
		Name        string   `json:"name"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		State       string   `json:"state"`
		Versions    []string `json:"versions"`
		TotalTokens int      `json:"totalTokens"`
		Score       *float64 `json:"score,omitempty"`
	}

	results := make([]libraryResult, len(entries))
	for i, e := range entries {
		results[i] = libraryResult{
			Name:        e.Name(),
			Title:       e.Title,
			Description: e.Description,
			State:       string(e.State),
			Versions:    e.Tags,
			TotalTokens: e.TotalTokens,
		}
		if e.Scored {
			score := e.Score
			results[i].Score = &score
		}
	}

	jsonBytes, err := json.Marshal(results)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleGetLibraryDocs handles the get_library_docs tool invocation.
func (s *Server) handleGetLibraryDocs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("library")
	if err != nil {
		return mcp.NewToolResultError("library is required"), nil
	}

	org, project, ok := splitLibraryName(name)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("invalid library name: %s (expected /org/project)", name)), nil
	}

	topic := request.GetString("topic", "")
	tag := request.GetString("tag", "")
	tokens := request.GetInt("tokens", service.DefaultQueryTokens)

	libraryID := library.DeriveID(library.CanonicalName(org, project))
	docs, err := s.docs.Query(ctx, libraryID, topic, tokens, tag)
	if err != nil {
		s.logger.Error("docs query failed", slog.String("library", name), slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("failed to get docs: %v", err)), nil
	}

	if len(docs) == 0 {
		return mcp.NewToolResultText("No documentation found for " + name + "."), nil
	}

	return mcp.NewToolResultText(formatDocs(docs)), nil
}

// splitLibraryName parses a /org/project name, tolerating a missing
// leading slash.
func splitLibraryName(name string) (org, project string, ok bool) {
	trimmed := strings.Trim(name, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// formatDocs renders documentation snippets as plain text, one block per
// snippet with a dashed separator.
func formatDocs(docs []library.Document) string {
	separator := strings.Repeat("-", 40)

	var parts []string
	for i, doc := range docs {
		if i > 0 {
			parts = append(parts, separator)
		}
		parts = append(parts,
			"",
			"TITLE: "+doc.Title,
			"DESCRIPTION: "+doc.Description,
			"SOURCE: "+doc.Source,
			"",
			"LANGUAGE: "+doc.Language,
			"CODE:",
			"```",
			doc.Code,
			"```",
			"",
		)
	}
	return strings.Join(parts, "\n")
}

// MCPServer returns the underlying MCP server for stdio serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
