package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/chatrecall/internal/embedding"
	"github.com/HendryAvila/chatrecall/internal/store"
	"github.com/HendryAvila/chatrecall/internal/textutil"
)

// StatsTool handles the stats_overview MCP tool.
type StatsTool struct {
	archive Archive
}

// NewStatsTool creates a StatsTool.
func NewStatsTool(a Archive) *StatsTool {
	return &StatsTool{archive: a}
}

// Definition returns the MCP tool definition for stats_overview.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("stats_overview",
		mcp.WithDescription("Return global index counts and the most recent import."),
	)
}

// Handle processes the stats_overview tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.archive.OverviewStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}
	return jsonResult(stats)
}

// HealthTool handles the health MCP tool.
type HealthTool struct {
	archive Archive
	indexer Indexer
}

// NewHealthTool creates a HealthTool.
func NewHealthTool(a Archive, idx Indexer) *HealthTool {
	return &HealthTool{archive: a, indexer: idx}
}

// Definition returns the MCP tool definition for health.
func (t *HealthTool) Definition() mcp.Tool {
	return mcp.NewTool("health",
		mcp.WithDescription("Health and configuration status: database path, embedding provider and index counts."),
	)
}

// Handle processes the health tool call.
func (t *HealthTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.archive.OverviewStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}
	return jsonResult(struct {
		Status    string                 `json:"status"`
		DBPath    string                 `json:"db_path"`
		Embedding embedding.ProviderInfo `json:"embedding"`
		Stats     store.OverviewStats    `json:"stats"`
		Timestamp string                 `json:"timestamp"`
	}{"ok", t.archive.Path(), t.indexer.Info(), stats, textutil.NowISO()})
}
