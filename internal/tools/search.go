package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/chatrecall/internal/search"
)

// SearchTool handles search_messages, search_semantic and search_hybrid.
// One instance serves one mode.
type SearchTool struct {
	searcher Searcher
	mode     search.Mode
	limits   Limits
}

// NewSearchTool creates a SearchTool for the given mode.
func NewSearchTool(s Searcher, mode search.Mode, limits Limits) *SearchTool {
	return &SearchTool{searcher: s, mode: mode, limits: limits}
}

var searchToolInfo = map[search.Mode]struct{ name, description string }{
	search.ModeLexical: {
		"search_messages",
		"Fast lexical full-text search over indexed chat chunks. Every query word must " +
			"match the start of a word in the chunk.",
	},
	search.ModeSemantic: {
		"search_semantic",
		"Semantic vector search over indexed chat chunks. Finds passages with related " +
			"wording even when the exact words differ.",
	},
	search.ModeHybrid: {
		"search_hybrid",
		"Hybrid search (lexical + semantic + rank fusion) for high-precision retrieval. " +
			"Use this by default.",
	},
}

// Definition returns the MCP tool definition for the tool's mode.
func (t *SearchTool) Definition() mcp.Tool {
	info := searchToolInfo[t.mode]
	opts := []mcp.ToolOption{
		mcp.WithDescription(info.description),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query, natural language or keywords"),
		),
		mcp.WithNumber("top_k",
			mcp.Description(fmt.Sprintf("Max results (default: %d, max: %d)", t.limits.DefaultTopK, t.limits.MaxTopK)),
		),
	}
	return mcp.NewTool(info.name, append(opts, filterOptions()...)...)
}

type searchResponse struct {
	Mode  search.Mode  `json:"mode"`
	Query string       `json:"query"`
	Count int          `json:"count"`
	Hits  []search.Hit `json:"hits"`
}

// Handle processes the search call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	filters, err := filtersArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	hits, err := t.searcher.Search(ctx, t.mode, query, filters, t.limits.topK(req))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	return jsonResult(searchResponse{Mode: t.mode, Query: query, Count: len(hits), Hits: hits})
}
