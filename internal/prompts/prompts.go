// Package prompts implements MCP prompt handlers for the archive.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// RecallPrompt handles the recall MCP prompt.
// It guides the AI through search, context expansion and a cited answer.
type RecallPrompt struct{}

// NewRecallPrompt creates a RecallPrompt.
func NewRecallPrompt() *RecallPrompt {
	return &RecallPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *RecallPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("recall",
		mcp.WithPromptDescription(
			"Find what was said about a topic in past conversations and answer with citations.",
		),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("What to look for"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("role",
			mcp.ArgumentDescription("Only consider messages from this role: user or assistant"),
		),
	)
}

// Handle processes the recall prompt request.
func (p *RecallPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := strings.TrimSpace(req.Params.Arguments["topic"])
	if topic == "" {
		return nil, fmt.Errorf("prompts: recall: 'topic' is required")
	}

	filter := ""
	if role := strings.TrimSpace(req.Params.Arguments["role"]); role != "" {
		filter = fmt.Sprintf(" with role='%s'", role)
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Recall: %s", topic),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"What did I discuss about %q in my past conversations?\n\n"+
						"Please:\n"+
						"1. Run `search_hybrid` with query=%q%s\n"+
						"2. For the two most relevant hits, run `get_message_context` to read the surrounding messages\n"+
						"3. Run `answer_with_citations` with the same question\n"+
						"4. Summarise what you found, citing conversation titles and dates. If nothing matches, say so",
					topic, topic, filter,
				)),
			},
		},
	}, nil
}

// StatusPrompt handles the archive-status MCP prompt.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("archive-status",
		mcp.WithPromptDescription(
			"Check what the archive contains, which embedding provider is active, "+
				"and whether anything needs reindexing.",
		),
	)
}

// Handle processes the archive-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Archive status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `health` to check my chat archive.\n\n" +
						"Then:\n" +
						"1. Report how many conversations, messages and chunks are indexed\n" +
						"2. Compare the chunk and embedding counts; if embeddings are missing, offer to run `reindex`\n" +
						"3. Show the latest import, and its error text if it failed",
				),
			},
		},
	}, nil
}
