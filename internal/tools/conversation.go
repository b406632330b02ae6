package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/chatrecall/internal/search"
)

const (
	defaultContextWindow = 2
	maxContextWindow     = 20
)

type notFound struct {
	Found   bool   `json:"found"`
	Message string `json:"message"`
}

// ─── get_conversation ────────────────────────────────────────────────────────

// GetConversationTool handles the get_conversation MCP tool.
type GetConversationTool struct {
	searcher Searcher
}

// NewGetConversationTool creates a GetConversationTool.
func NewGetConversationTool(s Searcher) *GetConversationTool {
	return &GetConversationTool{searcher: s}
}

// Definition returns the MCP tool definition for get_conversation.
func (t *GetConversationTool) Definition() mcp.Tool {
	return mcp.NewTool("get_conversation",
		mcp.WithDescription("Load a full conversation with all normalized messages in order."),
		mcp.WithString("conversation_id",
			mcp.Required(),
			mcp.Description("Conversation ID (from search hits)"),
		),
	)
}

// Handle processes the get_conversation tool call.
func (t *GetConversationTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("conversation_id", "")
	if id == "" {
		return mcp.NewToolResultError("'conversation_id' is required"), nil
	}

	conv, found, err := t.searcher.GetConversation(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get conversation failed: %v", err)), nil
	}
	if !found {
		return jsonResult(notFound{Message: fmt.Sprintf("Conversation %s not found", id)})
	}
	return jsonResult(struct {
		Found        bool                      `json:"found"`
		Conversation search.ConversationDetail `json:"conversation"`
	}{true, conv})
}

// ─── get_message_context ─────────────────────────────────────────────────────

// MessageContextTool handles the get_message_context MCP tool.
type MessageContextTool struct {
	searcher Searcher
}

// NewMessageContextTool creates a MessageContextTool.
func NewMessageContextTool(s Searcher) *MessageContextTool {
	return &MessageContextTool{searcher: s}
}

// Definition returns the MCP tool definition for get_message_context.
func (t *MessageContextTool) Definition() mcp.Tool {
	return mcp.NewTool("get_message_context",
		mcp.WithDescription(
			"Return the messages around a specific message. Use after a search to read "+
				"what was said before and after a hit.",
		),
		mcp.WithString("message_id",
			mcp.Required(),
			mcp.Description("Message ID to center on (from search hits)"),
		),
		mcp.WithNumber("before",
			mcp.Description("Messages to include before the focus (default: 2, max: 20)"),
		),
		mcp.WithNumber("after",
			mcp.Description("Messages to include after the focus (default: 2, max: 20)"),
		),
	)
}

// Handle processes the get_message_context tool call.
func (t *MessageContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("message_id", "")
	if id == "" {
		return mcp.NewToolResultError("'message_id' is required"), nil
	}
	before := clamp(intArg(req, "before", defaultContextWindow), 0, maxContextWindow)
	after := clamp(intArg(req, "after", defaultContextWindow), 0, maxContextWindow)

	mc, found, err := t.searcher.GetMessageContext(ctx, id, before, after)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get message context failed: %v", err)), nil
	}
	if !found {
		return jsonResult(notFound{Message: fmt.Sprintf("Message %s not found", id)})
	}
	return jsonResult(struct {
		Found   bool                  `json:"found"`
		Context search.MessageContext `json:"context"`
	}{true, mc})
}
