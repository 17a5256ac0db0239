// Package mcp provides Model Context Protocol (MCP) client functionality for
// integrating with MCP servers using the official MCP Go SDK.
//
// The Model Context Protocol (MCP) is an open standard that enables secure
// connections between host applications and external data sources and
// tools. This package implements the slice of it Vico needs: connect the
// servers named in the configuration overlay at startup, list their tools,
// and execute one by name when the tool dispatcher is asked for a tool no
// built-in recognizes.
//
// # Transport Types
//
// The package accepts three transport types, all provided by the SDK:
//
//	TransportTypeStdio  - Communication via stdin/stdout with a subprocess
//	TransportTypeLocal  - Handled exactly like stdio (a subprocess over stdin/stdout)
//	TransportTypeRemote - HTTP (SSE) communication with remote servers
//
// # Basic Usage
//
//	// Create a new MCP client
//	client := mcp.NewClient()
//
//	// Configure a server connection
//	config := &mcp.Config{
//		Enabled: true,
//		Type:    mcp.TransportTypeStdio,
//		Command: []string{"python", "-m", "my_mcp_server"},
//		Timeout: 5000, // 5 seconds
//	}
//
//	// Add and connect to the server
//	err := client.AddServer(ctx, "my-server", config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// List available tools (names are prefixed with the sanitized server name)
//	tools := client.Tools()
//	for _, tool := range tools {
//		fmt.Printf("Tool: %s - %s\n", tool.Name, tool.Description)
//	}
//
//	// Execute a tool
//	args := json.RawMessage(`{"query": "example"}`)
//	result, err := client.ExecuteTool(ctx, "my_server_search", args)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println("Result:", result)
//
// # Tool Integration
//
// Connected MCP servers' tools are exposed to internal/dispatch as an
// optional fallback source, tried when a tool call names something none
// of the built-in tools recognize:
//
//	external := mcp.NewExternalTools(client)
//	if external.Has(toolName) {
//		result, err := external.Execute(ctx, toolName, args)
//	}
//
// A server whose connection fails at startup is recorded with its error
// and simply contributes no tools; Close disconnects every server.
//
// All client operations are safe for concurrent use.
package mcp
