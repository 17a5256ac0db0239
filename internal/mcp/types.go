// Package mcp provides Model Context Protocol (MCP) client functionality
// using the official MCP Go SDK.
package mcp

import (
	"encoding/json"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Config defines MCP server configuration.
type Config struct {
	Enabled     bool              `json:"enabled"`
	Type        TransportType     `json:"type"`
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Command     []string          `json:"command,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Timeout     int               `json:"timeout,omitempty"` // milliseconds
}

// TransportType represents the type of MCP transport.
type TransportType string

const (
	TransportTypeRemote TransportType = "remote"
	TransportTypeLocal  TransportType = "local"
	TransportTypeStdio  TransportType = "stdio"
)

// Tool represents an MCP tool - wrapping SDK type with JSON marshaling support.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// FromSDKTool converts an SDK tool to our Tool type.
func FromSDKTool(t *sdkmcp.Tool) Tool {
	var schema json.RawMessage
	if t.InputSchema != nil {
		schema, _ = json.Marshal(t.InputSchema)
	}
	return Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}
}

// Status represents the connection status.
type Status string

const (
	StatusConnected  Status = "connected"
	StatusDisabled   Status = "disabled"
	StatusFailed     Status = "failed"
	StatusConnecting Status = "connecting"
)
