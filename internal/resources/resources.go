// Package resources implements MCP resource handlers for the archive.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (chatrecall://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/chatrecall/internal/search"
	"github.com/HendryAvila/chatrecall/internal/store"
)

const (
	StatsURI                = "chatrecall://index/stats"
	conversationURIPrefix   = "chatrecall://conversations/"
	ConversationURITemplate = conversationURIPrefix + "{id}"
)

// StatsSource supplies index statistics.
type StatsSource interface {
	OverviewStats(ctx context.Context) (store.OverviewStats, error)
}

// ConversationSource loads full conversations.
type ConversationSource interface {
	GetConversation(ctx context.Context, id string) (search.ConversationDetail, bool, error)
}

// Handler manages archive resource endpoints.
type Handler struct {
	stats         StatsSource
	conversations ConversationSource
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(stats StatsSource, conversations ConversationSource) *Handler {
	return &Handler{stats: stats, conversations: conversations}
}

// StatsResource returns the MCP resource definition for index statistics.
func (h *Handler) StatsResource() mcp.Resource {
	return mcp.NewResource(
		StatsURI,
		"Archive Statistics",
		mcp.WithResourceDescription("Conversation, message, chunk and embedding counts plus the latest import"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStats returns the current statistics as JSON.
func (h *Handler) HandleStats(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats, err := h.stats.OverviewStats(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, stats)
}

// ConversationTemplate returns the MCP resource template for single
// conversations.
func (h *Handler) ConversationTemplate() mcp.ResourceTemplate {
	return mcp.NewResourceTemplate(
		ConversationURITemplate,
		"Conversation",
		mcp.WithTemplateDescription("A stored conversation with all its messages in order"),
		mcp.WithTemplateMIMEType("application/json"),
	)
}

// HandleConversation returns the conversation named by the URI.
func (h *Handler) HandleConversation(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	id, ok := strings.CutPrefix(req.Params.URI, conversationURIPrefix)
	if !ok || id == "" {
		return errorResource(req.Params.URI, "missing conversation id"), nil
	}

	conv, found, err := h.conversations.GetConversation(ctx, id)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	if !found {
		return errorResource(req.Params.URI, fmt.Sprintf("conversation %s not found", id)), nil
	}
	return jsonResource(req.Params.URI, conv)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("resources: marshal: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
