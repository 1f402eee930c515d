// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Wintermute tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/wintermute/internal/index"
	"github.com/starford/wintermute/internal/models"
	"github.com/starford/wintermute/internal/storyservice"
)

const markupURI = "wintermute://markup"

// Server wraps the MCP server with Wintermute tools.
type Server struct {
	mcp *server.MCPServer
	svc *storyservice.Service
}

// New creates a new MCP server with all Wintermute tools registered.
func New(svc *storyservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Wintermute",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("convert_story",
		mcp.WithDescription("Convert published Twine HTML into the story graph JSON without storing it."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Published story HTML containing <tw-storydata>")),
	), s.convertStory)

	s.mcp.AddTool(mcp.NewTool("list_stories",
		mcp.WithDescription("List stories in the library, one path per line."),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
		mcp.WithString("sort", mcp.Description("Sort by path, name or updated_at")),
	), s.listStories)

	s.mcp.AddTool(mcp.NewTool("read_story",
		mcp.WithDescription("Read a library story as story graph JSON."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the story (e.g. series/part-one.html)")),
	), s.readStory)

	s.mcp.AddTool(mcp.NewTool("search_passages",
		mcp.WithDescription("Full-text search through passage names, text and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchPassages)

	s.mcp.AddTool(mcp.NewTool("get_broken_links",
		mcp.WithDescription("List links whose target passage does not exist."),
		mcp.WithString("path", mcp.Description("Story path (empty for the whole library)")),
	), s.getBrokenLinks)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all passages in a story that link to the named passage."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Story path")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Passage name")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("import_story",
		mcp.WithDescription("Download a published story from an http(s) URL or a base64 data URI "+
			"and add it to the library. Read the markup contract via get_markup_contract or the "+
			markupURI+" resource first."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:text/html;base64,... URI")),
		mcp.WithString("filename", mcp.Description("Optional library file name (defaults to the story name)")),
	), s.importStory)

	s.mcp.AddTool(mcp.NewTool("get_markup_contract",
		mcp.WithDescription("Returns the link and metadata markup contract and the output JSON shape."),
	), s.getMarkupContract)

	s.mcp.AddResource(
		mcp.NewResource(markupURI, "Markup Contract",
			mcp.WithResourceDescription("Passage link and metadata markup understood by the converter."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMarkupResource,
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

func storyResult(st *models.Story) (*mcp.CallToolResult, error) {
	out, err := models.MarshalStory(st, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) convertStory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := s.svc.Convert(ctx, []byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return storyResult(st)
}

func (s *Server) listStories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, _, err := s.svc.ListStories(ctx,
		req.GetInt("limit", 0), req.GetInt("offset", 0), req.GetString("sort", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no stories found"), nil
	}
	paths := make([]string, len(items))
	for i, it := range items {
		paths[i] = it.Path
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) readStory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.GetStory(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", path, err)), nil
	}
	return storyResult(d.Story)
}

func (s *Server) searchPassages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

// formatLinks renders links as "path: source -> target" lines.
func formatLinks(links []index.LinkRow) string {
	lines := make([]string, len(links))
	for i, l := range links {
		lines[i] = fmt.Sprintf("%s: %s -> %s", l.Path, l.SourceName, l.Target)
	}
	return strings.Join(lines, "\n")
}

func (s *Server) getBrokenLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	links, err := s.svc.BrokenLinks(ctx, req.GetString("path", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(links) == 0 {
		return mcp.NewToolResultText("no broken links found"), nil
	}
	return mcp.NewToolResultText(formatLinks(links)), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	links, err := s.svc.Backlinks(ctx, path, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(links) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(formatLinks(links)), nil
}

func (s *Server) getMarkupContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MarkupContract), nil
}

func (s *Server) readMarkupResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      markupURI,
			MIMEType: "text/markdown",
			Text:     MarkupContract,
		},
	}, nil
}
