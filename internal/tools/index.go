package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/chatrecall/internal/embedding"
	"github.com/HendryAvila/chatrecall/internal/ingest"
	"github.com/HendryAvila/chatrecall/internal/textutil"
)

// DefaultToolSourceLabel labels imports started from the MCP tool.
const DefaultToolSourceLabel = "mcp-ingest"

// ─── ingest_export ───────────────────────────────────────────────────────────

// IngestTool handles the ingest_export MCP tool.
type IngestTool struct {
	ingester Ingester
	indexer  Indexer
}

// NewIngestTool creates an IngestTool.
func NewIngestTool(ing Ingester, idx Indexer) *IngestTool {
	return &IngestTool{ingester: ing, indexer: idx}
}

// Definition returns the MCP tool definition for ingest_export.
func (t *IngestTool) Definition() mcp.Tool {
	return mcp.NewTool("ingest_export",
		mcp.WithDescription(
			"Import a chat export JSON file into the local search index, then embed any new "+
				"chunks. Re-importing identical content is detected and skipped.",
		),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path to the export file"),
		),
		mcp.WithString("source_label",
			mcp.Description("Free-form label recorded with the import (default: mcp-ingest)"),
		),
	)
}

type ingestResponse struct {
	Ingest         ingest.Result            `json:"ingest"`
	Embeddings     embedding.BackfillResult `json:"embeddings"`
	EmbeddingError string                   `json:"embedding_error,omitempty"`
}

// Handle processes the ingest_export tool call. A failed backfill does not
// undo the import; it is reported alongside the ingest result.
func (t *IngestTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("file_path", "")
	if path == "" {
		return mcp.NewToolResultError("'file_path' is required"), nil
	}
	label := req.GetString("source_label", DefaultToolSourceLabel)

	res, err := t.ingester.Ingest(ctx, path, label)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ingest failed: %v", err)), nil
	}

	out := ingestResponse{Ingest: res}
	out.Embeddings, err = t.indexer.Backfill(ctx)
	if err != nil {
		out.EmbeddingError = err.Error()
	}
	return jsonResult(out)
}

// ─── reindex ─────────────────────────────────────────────────────────────────

// ReindexTool handles the reindex MCP tool.
type ReindexTool struct {
	archive Archive
	indexer Indexer
}

// NewReindexTool creates a ReindexTool.
func NewReindexTool(a Archive, idx Indexer) *ReindexTool {
	return &ReindexTool{archive: a, indexer: idx}
}

// Definition returns the MCP tool definition for reindex.
func (t *ReindexTool) Definition() mcp.Tool {
	return mcp.NewTool("reindex",
		mcp.WithDescription(
			"Rebuild the full-text index from stored chunks and embed chunks that have no "+
				"vector yet. With force=true every embedding is regenerated.",
		),
		mcp.WithBoolean("force",
			mcp.Description("Regenerate all embeddings instead of only missing ones (default: false)"),
		),
	)
}

// Handle processes the reindex tool call.
func (t *ReindexTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ftsRows, err := t.archive.RebuildFTS(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("rebuild full-text index failed: %v", err)), nil
	}

	embed := t.indexer.Backfill
	if boolArg(req, "force", false) {
		embed = t.indexer.Reindex
	}
	res, err := embed(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("embedding failed: %v", err)), nil
	}

	return jsonResult(struct {
		FTSRows    int                      `json:"fts_rows"`
		Embeddings embedding.BackfillResult `json:"embeddings"`
		Timestamp  string                   `json:"timestamp"`
	}{ftsRows, res, textutil.NowISO()})
}
