package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/chatrecall/internal/search"
)

const maxCitationsLimit = 20

// AnswerTool handles the answer_with_citations MCP tool.
type AnswerTool struct {
	searcher Searcher
}

// NewAnswerTool creates an AnswerTool.
func NewAnswerTool(s Searcher) *AnswerTool {
	return &AnswerTool{searcher: s}
}

// Definition returns the MCP tool definition for answer_with_citations.
func (t *AnswerTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Retrieve relevant evidence and return an extractive answer with citations. " +
				"The answer quotes the archive; it never invents content.",
		),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer from the archive"),
		),
		mcp.WithNumber("max_citations",
			mcp.Description(fmt.Sprintf("Max citations (default: %d, max: %d)", search.DefaultMaxCitations, maxCitationsLimit)),
		),
	}
	return mcp.NewTool("answer_with_citations", append(opts, filterOptions()...)...)
}

// Handle processes the answer_with_citations tool call.
func (t *AnswerTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question := req.GetString("question", "")
	if question == "" {
		return mcp.NewToolResultError("'question' is required"), nil
	}
	filters, err := filtersArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	maxCitations := clamp(intArg(req, "max_citations", search.DefaultMaxCitations), 1, maxCitationsLimit)

	answer, err := t.searcher.AnswerWithCitations(ctx, question, filters, maxCitations)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("answer failed: %v", err)), nil
	}
	return jsonResult(answer)
}
