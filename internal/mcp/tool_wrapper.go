// Package mcp provides Model Context Protocol (MCP) client functionality.
package mcp

import (
	"context"
	"encoding/json"
)

// ExternalTools exposes MCP-discovered tools as an optional fallback
// source for internal/dispatch: tool names the built-in dispatcher
// doesn't recognize (search_memories, save_memory, perform_research, ...)
// are tried against any connected MCP server before the dispatcher gives
// up.
type ExternalTools struct {
	client *Client
}

// NewExternalTools wraps an MCP client as a dispatch.ExternalTools source.
// A nil client is valid and behaves as an empty source.
func NewExternalTools(client *Client) *ExternalTools {
	return &ExternalTools{client: client}
}

// Has reports whether toolName matches a tool exposed by any connected MCP
// server.
func (e *ExternalTools) Has(toolName string) bool {
	if e == nil || e.client == nil {
		return false
	}
	for _, t := range e.client.Tools() {
		if t.Name == toolName {
			return true
		}
	}
	return false
}

// Execute runs toolName via the MCP client and returns its textual result.
func (e *ExternalTools) Execute(ctx context.Context, toolName string, args json.RawMessage) (string, error) {
	return e.client.ExecuteTool(ctx, toolName, args)
}
