// Package tools provides the MCP tool handlers for the conversation archive.
//
// Each tool follows the same shape:
// - A struct with its dependencies injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a JSON text result
//
// Domain failures are returned as tool errors, never as Go errors.
package tools

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/chatrecall/internal/store"
	"github.com/HendryAvila/chatrecall/internal/textutil"
)

// Limits bounds the result counts the search tools accept.
type Limits struct {
	DefaultTopK int
	MaxTopK     int
}

// topK reads "top_k", falling back to the default for missing or
// non-positive values and capping at MaxTopK.
func (l Limits) topK(req mcp.CallToolRequest) int {
	k := intArg(req, "top_k", l.DefaultTopK)
	if k <= 0 {
		k = l.DefaultTopK
	}
	if l.MaxTopK > 0 && k > l.MaxTopK {
		k = l.MaxTopK
	}
	return k
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// filterOptions declares the shared filter parameters.
func filterOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("conversation_id",
			mcp.Description("Only search inside this conversation"),
		),
		mcp.WithString("role",
			mcp.Description("Only search messages with this role"),
			mcp.Enum(textutil.RoleValues()...),
		),
		mcp.WithString("date_from",
			mcp.Description("Only messages created at or after this ISO-8601 timestamp"),
		),
		mcp.WithString("date_to",
			mcp.Description("Only messages created at or before this ISO-8601 timestamp"),
		),
	}
}

// filtersArg reads the shared filter parameters.
func filtersArg(req mcp.CallToolRequest) (store.Filters, error) {
	f := store.Filters{
		ConversationID: req.GetString("conversation_id", ""),
		Role:           req.GetString("role", ""),
		DateFrom:       req.GetString("date_from", ""),
		DateTo:         req.GetString("date_to", ""),
	}
	if f.Role != "" && !slices.Contains(textutil.RoleValues(), f.Role) {
		return store.Filters{}, fmt.Errorf("unknown role %q", f.Role)
	}
	return f, nil
}

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
