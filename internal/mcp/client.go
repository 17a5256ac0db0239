package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Client manages MCP server connections using the official MCP SDK. Its
// surface is what the tool-dispatch fallback needs: connect configured
// servers at startup, list their tools, execute one by name, close.
type Client struct {
	mu        sync.RWMutex
	servers   map[string]*mcpServer
	sdkClient *sdkmcp.Client
}

// mcpServer represents a connected MCP server.
type mcpServer struct {
	name    string
	config  *Config
	session *sdkmcp.ClientSession
	tools   []Tool
	status  Status
	error   string
}

// NewClient creates a new MCP client.
func NewClient() *Client {
	sdkClient := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "vico",
		Version: "1.0.0",
	}, nil)

	return &Client{
		servers:   make(map[string]*mcpServer),
		sdkClient: sdkClient,
	}
}

// AddServer adds and connects to an MCP server.
func (c *Client) AddServer(ctx context.Context, name string, config *Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.servers[name]; ok {
		return fmt.Errorf("server already exists: %s", name)
	}

	if !config.Enabled {
		c.servers[name] = &mcpServer{
			name:   name,
			config: config,
			status: StatusDisabled,
		}
		return nil
	}

	server, err := c.connectServer(ctx, name, config)
	if err != nil {
		c.servers[name] = &mcpServer{
			name:   name,
			config: config,
			status: StatusFailed,
			error:  err.Error(),
		}
		return err
	}

	c.servers[name] = server
	return nil
}

// connectServer establishes connection to an MCP server using the SDK.
func (c *Client) connectServer(ctx context.Context, name string, config *Config) (*mcpServer, error) {
	timeout := time.Duration(config.Timeout) * time.Millisecond
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var transport sdkmcp.Transport

	switch config.Type {
	case TransportTypeRemote:
		httpClient := &http.Client{Timeout: timeout}
		transport = &sdkmcp.SSEClientTransport{
			Endpoint:   config.URL,
			HTTPClient: httpClient,
		}

	case TransportTypeLocal, TransportTypeStdio:
		if len(config.Command) == 0 {
			return nil, fmt.Errorf("empty command")
		}

		cmd := exec.Command(config.Command[0], config.Command[1:]...)
		cmd.Env = os.Environ()
		for k, v := range config.Environment {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}

		transport = &sdkmcp.CommandTransport{Command: cmd}

	default:
		return nil, fmt.Errorf("unknown transport type: %s", config.Type)
	}

	server := &mcpServer{
		name:   name,
		config: config,
		status: StatusConnecting,
	}

	session, err := c.sdkClient.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	server.session = session

	// Non-fatal: a server without tools still connects.
	if err := server.listTools(ctx); err != nil {
		server.tools = []Tool{}
	}

	server.status = StatusConnected
	return server, nil
}

// listTools lists available tools from the server using the SDK.
func (s *mcpServer) listTools(ctx context.Context) error {
	if s.session == nil {
		return fmt.Errorf("not connected")
	}

	result, err := s.session.ListTools(ctx, nil)
	if err != nil {
		return err
	}

	s.tools = make([]Tool, len(result.Tools))
	for i, t := range result.Tools {
		s.tools[i] = FromSDKTool(t)
	}

	return nil
}

// Tools returns all tools from all connected servers, each name prefixed
// with its server's name so two servers exposing the same tool don't
// collide.
func (c *Client) Tools() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var allTools []Tool
	for name, server := range c.servers {
		if server.status != StatusConnected {
			continue
		}

		for _, tool := range server.tools {
			allTools = append(allTools, Tool{
				Name:        sanitizeToolName(name) + "_" + sanitizeToolName(tool.Name),
				Description: tool.Description,
				InputSchema: tool.InputSchema,
			})
		}
	}

	return allTools
}

// ExecuteTool executes a tool on the appropriate server.
func (c *Client) ExecuteTool(ctx context.Context, toolName string, args json.RawMessage) (string, error) {
	c.mu.RLock()

	var targetServer *mcpServer
	var originalToolName string

	for name, server := range c.servers {
		if server.status != StatusConnected {
			continue
		}

		prefix := sanitizeToolName(name) + "_"
		if strings.HasPrefix(toolName, prefix) {
			targetServer = server
			originalToolName = strings.TrimPrefix(toolName, prefix)
			// Undo the sanitization to recover the server's own name.
			for _, t := range server.tools {
				if sanitizeToolName(t.Name) == originalToolName {
					originalToolName = t.Name
					break
				}
			}
			break
		}
	}
	c.mu.RUnlock()

	if targetServer == nil {
		return "", fmt.Errorf("no server found for tool: %s", toolName)
	}

	if targetServer.session == nil {
		return "", fmt.Errorf("server not connected: %s", targetServer.name)
	}

	var argsMap map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argsMap); err != nil {
			return "", fmt.Errorf("failed to parse arguments: %w", err)
		}
	}

	params := &sdkmcp.CallToolParams{
		Name:      originalToolName,
		Arguments: argsMap,
	}

	result, err := targetServer.session.CallTool(ctx, params)
	if err != nil {
		return "", err
	}

	if result.IsError {
		for _, content := range result.Content {
			if textContent, ok := content.(*sdkmcp.TextContent); ok {
				return "", fmt.Errorf("tool error: %s", textContent.Text)
			}
		}
		return "", fmt.Errorf("tool execution failed")
	}

	var output strings.Builder
	for _, content := range result.Content {
		if textContent, ok := content.(*sdkmcp.TextContent); ok {
			output.WriteString(textContent.Text)
		}
	}

	return output.String(), nil
}

// Close disconnects all servers.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, server := range c.servers {
		if server.session != nil {
			server.session.Close()
		}
	}

	c.servers = make(map[string]*mcpServer)
	return nil
}

// sanitizeToolName replaces non-alphanumeric chars with underscore.
func sanitizeToolName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			result.WriteRune(r)
		} else {
			result.WriteRune('_')
		}
	}
	return result.String()
}
