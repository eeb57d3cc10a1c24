// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes keyword categorization tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/kwcat/internal/apperr"
	"github.com/starford/kwcat/internal/models"
)

// Categorizer runs and reports project categorizations.
type Categorizer interface {
	Run(ctx context.Context, projectID int64, raw []models.KeywordRecord, force bool) (*models.Result, error)
	Status(ctx context.Context, projectID int64) (models.CacheEntry, error)
}

// Server wraps the MCP server with kwcat tools.
type Server struct {
	mcp    *server.MCPServer
	svc    Categorizer
	logger *slog.Logger
}

// New creates a new MCP server with all tools registered. A nil logger
// discards output.
func New(svc Categorizer, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{svc: svc, logger: logger}

	s.mcp = server.NewMCPServer(
		"kwcat",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("categorize_keywords",
		mcp.WithDescription("Deduplicate a project's search keywords and group them into categories. "+
			"Returns the cached result unless force is true."),
		mcp.WithNumber("project_id", mcp.Required(), mcp.Description("Project id")),
		mcp.WithArray("keywords", mcp.Required(),
			mcp.Description("Keywords as plain strings or objects with keyword, search_volume, cpc, competition")),
		mcp.WithBoolean("force", mcp.Description("Recompute even when a cached result exists")),
	), s.categorizeKeywords)

	s.mcp.AddTool(mcp.NewTool("get_categorization",
		mcp.WithDescription("Return the cached categorization of a project, if any."),
		mcp.WithNumber("project_id", mcp.Required(), mcp.Description("Project id")),
	), s.getCategorization)

	s.mcp.AddResource(
		mcp.NewResource(iconsResourceURI, "Category Icons",
			mcp.WithResourceDescription("Icon names categories may use."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readIconsResource,
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

func requireProjectID(req mcp.CallToolRequest) (int64, error) {
	id, err := req.RequireFloat("project_id")
	if err != nil {
		return 0, err
	}
	if id < 1 || id != float64(int64(id)) {
		return 0, fmt.Errorf("project_id must be a positive integer")
	}
	return int64(id), nil
}

type categorizeResult struct {
	Categories        []models.Category `json:"categories"`
	Source            models.Source     `json:"ai_source"`
	KeywordCount      int               `json:"keyword_count"`
	OriginalCount     int               `json:"original_count"`
	DuplicatesRemoved int               `json:"duplicates_removed"`
}

func (s *Server) categorizeKeywords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireProjectID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, ok := req.GetArguments()["keywords"]
	if !ok {
		return mcp.NewToolResultError("keywords is required"), nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var keywords []models.KeywordRecord
	if err := json.Unmarshal(data, &keywords); err != nil {
		return mcp.NewToolResultError("keywords must be an array of strings or keyword objects"), nil
	}

	res, err := s.svc.Run(ctx, id, keywords, req.GetBool("force", false))
	if err != nil {
		return s.toolError("categorize keywords", id, err), nil
	}
	out, _ := json.MarshalIndent(categorizeResult{
		Categories:        res.Categories,
		Source:            res.Source,
		KeywordCount:      res.KeywordsConsidered,
		OriginalCount:     res.OriginalCount,
		DuplicatesRemoved: res.DuplicatesRemoved,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getCategorization(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireProjectID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.svc.Status(ctx, id)
	if err != nil {
		return s.toolError("get categorization", id, err), nil
	}
	if !entry.Hit() {
		return mcp.NewToolResultText("project has not been categorized yet"), nil
	}
	out, _ := json.MarshalIndent(entry.Categories, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) toolError(msg string, id int64, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("project not found")
	case errors.Is(err, apperr.ErrNoKeywords), errors.Is(err, apperr.ErrInvalidInput):
		return mcp.NewToolResultError(err.Error())
	default:
		s.logger.Error(msg, slog.Int64("project_id", id), slog.String("error", err.Error()))
		return mcp.NewToolResultError("internal error")
	}
}

func (s *Server) readIconsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      iconsResourceURI,
			MIMEType: "text/markdown",
			Text:     CategoryIconsDoc(),
		},
	}, nil
}
