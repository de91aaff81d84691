// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes read-only tools over compiled content via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/kiln/internal/apperr"
	"github.com/starford/kiln/internal/contentservice"
	"github.com/starford/kiln/internal/models"
)

// ContentFormatURI is the URI of the content format resource.
const ContentFormatURI = "kiln://content-format"

// Server wraps the MCP server with content tools.
type Server struct {
	mcp *server.MCPServer
	svc *contentservice.Service
}

// New creates a new MCP server with all content tools registered.
func New(svc *contentservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Kiln",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_collections",
		mcp.WithDescription("List the content collections of the current build with record counts and tags."),
	), s.listCollections)

	s.mcp.AddTool(mcp.NewTool("get_record",
		mcp.WithDescription("Get one compiled record (rendered HTML, headings, fields) by collection and slug."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name (e.g. posts)")),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Record slug")),
		mcp.WithString("group", mcp.Description("Group key for grouped collections (e.g. the recipe directory)")),
	), s.getRecord)

	s.mcp.AddTool(mcp.NewTool("search_records",
		mcp.WithDescription("Full-text search through compiled records."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results"), mcp.Min(1)),
	), s.searchRecords)

	s.mcp.AddTool(mcp.NewTool("query_records",
		mcp.WithDescription("Evaluate a JSONPath expression over the records of a collection, "+
			"e.g. $[?(@.tags[*] == 'go')].slug"),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
		mcp.WithString("path", mcp.Required(), mcp.Description("JSONPath expression rooted at the record array")),
	), s.queryRecords)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all records that link to the given site-relative href."),
		mcp.WithString("href", mcp.Required(), mcp.Description("Site-relative href (e.g. /posts/hello-world)")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_diagnostics",
		mcp.WithDescription("List the diagnostics (validation errors, load failures, warnings) of the current build."),
		mcp.WithString("severity", mcp.Description("Only return this severity"), mcp.Enum(string(models.SeverityError), string(models.SeverityWarning))),
	), s.getDiagnostics)

	s.mcp.AddTool(mcp.NewTool("get_content_format",
		mcp.WithDescription("Returns the source content format: frontmatter, directives, "+
			"code annotations, and the field schema of every collection."),
	), s.getContentFormat)

	// Resource: content format.
	s.mcp.AddResource(
		mcp.NewResource(ContentFormatURI, "Content Format",
			mcp.WithResourceDescription("Source content format and collection schemas."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContentFormatResource,
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

// toolError converts a service error into a tool error result.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listCollections(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gen, list, err := s.svc.ListCollections(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"generation": gen, "collections": list}), nil
}

func (s *Server) getRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	group := req.GetString("group", "")
	var rec *models.Record
	if group != "" {
		rec, err = s.svc.RecordInGroup(ctx, name, group, slug)
	} else {
		rec, err = s.svc.Record(ctx, name, slug)
	}
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			if group != "" {
				return mcp.NewToolResultError(fmt.Sprintf("not found: %s/%s/%s", name, group, slug)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s/%s", name, slug)), nil
		}
		return toolError(err), nil
	}
	return jsonResult(rec), nil
}

func (s *Server) searchRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", contentservice.DefaultSearchLimit))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) queryRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	expr, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Query(ctx, name, expr)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	href, err := req.RequireString("href")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refs, err := s.svc.Backlinks(ctx, href)
	if err != nil {
		return toolError(err), nil
	}
	if len(refs) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return jsonResult(refs), nil
}

func (s *Server) getDiagnostics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.Diagnostics(ctx)
	if err != nil {
		return toolError(err), nil
	}
	if sev := req.GetString("severity", ""); sev != "" {
		filtered := make([]models.Diagnostic, 0, len(rep.Diagnostics))
		for _, d := range rep.Diagnostics {
			if string(d.Severity) == sev {
				filtered = append(filtered, d)
			}
		}
		rep.Diagnostics = filtered
	}
	return jsonResult(rep), nil
}

func (s *Server) contentFormat() string {
	g, err := s.svc.Generation()
	if err != nil {
		return ContentFormat(nil)
	}
	return ContentFormat(g.Definitions)
}

func (s *Server) getContentFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.contentFormat()), nil
}

func (s *Server) readContentFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContentFormatURI,
			MIMEType: "text/markdown",
			Text:     s.contentFormat(),
		},
	}, nil
}
