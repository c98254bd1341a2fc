// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Othala tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/docservice"
)

// Server wraps the MCP server with Othala tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all Othala tools registered.
func New(svc *docservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_records",
		mcp.WithDescription("Full-text search through archived record titles, abstracts and authors."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchRecords)

	s.mcp.AddTool(mcp.NewTool("read_record",
		mcp.WithDescription("Read an archived record's metadata. Does not contact the remote host. "+
			"Numbers follow the document number contract; read it first via the "+
			"get_number_contract tool or the othala://number-format resource."),
		mcp.WithString("number", mcp.Required(), mcp.Description("Document number, optionally versioned (e.g. T0123456-v2)")),
	), s.readRecord)

	s.mcp.AddTool(mcp.NewTool("fetch_record",
		mcp.WithDescription("Fetch a record, going to the remote host when the local archive cannot serve it."),
		mcp.WithString("number", mcp.Required(), mcp.Description("Document number, optionally versioned")),
		mcp.WithBoolean("force", mcp.Description("Fetch from the host even when archived locally")),
	), s.fetchRecord)

	s.mcp.AddTool(mcp.NewTool("get_number_contract",
		mcp.WithDescription("Returns the document number format contract. "+
			"Call this before constructing record numbers."),
	), s.getNumberContract)

	s.mcp.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("List archived records, optionally filtered by category letter."),
		mcp.WithString("category", mcp.Description("Optional category letter (empty for all)")),
	), s.listRecords)

	s.mcp.AddTool(mcp.NewTool("get_referencing",
		mcp.WithDescription("Find all archived documents that reference the specified document."),
		mcp.WithString("number", mcp.Required(), mcp.Description("Document number to find references to")),
	), s.getReferencing)

	// Resource: document number contract.
	s.mcp.AddResource(
		mcp.NewResource("othala://number-format", "Document Number Contract",
			mcp.WithResourceDescription("Document number format used by every tool taking a number."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNumberFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	number, err := req.RequireString("number")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	record, err := s.svc.GetRecord(ctx, number)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not archived: %s", number)), nil
	}
	out, _ := json.MarshalIndent(record, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) fetchRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	number, err := req.RequireString("number")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	force := req.GetBool("force", false)

	record, err := s.svc.FetchRecord(ctx, number, docservice.FetchOptions{Force: force})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(record, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := ""
	if c, err := req.RequireString("category"); err == nil {
		category = c
	}

	items, _, err := s.svc.ListRecords(ctx, 200, 0, category, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var lines []string
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%s\t%s", item.Number, item.Title))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getNumberContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NumberFormatContract), nil
}

func (s *Server) readNumberFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "othala://number-format",
			MIMEType: "text/markdown",
			Text:     NumberFormatContract,
		},
	}, nil
}

func (s *Server) getReferencing(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	number, err := req.RequireString("number")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refs, err := s.svc.Referencing(ctx, number)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(refs) == 0 {
		return mcp.NewToolResultText("no referencing documents found"), nil
	}
	return mcp.NewToolResultText(strings.Join(refs, "\n")), nil
}
