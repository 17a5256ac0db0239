// Package provider provides Vico's LLM provider abstraction layer.
//
// This package implements a unified interface over the Eino framework for
// the three backends Vico can be configured against: Anthropic Claude,
// OpenAI GPT, and Volcengine ARK. Unlike a general-purpose provider
// catalog, Vico never lets a caller pick an arbitrary model string — every
// lookup goes through one of Vico's three fixed roles
// (CHAT_MODEL_NAME, AGENTIC_MODEL_NAME, IMAGE_MODEL_NAME), and each
// catalog entry is tagged (vicoRoles, in provider.go) with which of those
// roles it can serve.
//
// # Core Components
//
//   - Provider: the interface each of the three backends implements
//   - Registry: resolves a role ("chat"/"agentic"/"image") to a
//     role-suitable *types.Model, falling back across registered
//     providers when the configured model string isn't available
//   - CompletionRequest/CompletionStream: streaming chat completions
//   - Tool conversion utilities for function calling
//
// # Supported Providers
//
// ## Anthropic (Claude)
//
// Direct API access or AWS Bedrock, extended thinking, prompt caching,
// vision and tool calling:
//
//	provider, err := NewAnthropicProvider(ctx, &AnthropicConfig{
//	    ID:        "anthropic",
//	    APIKey:    "sk-...",
//	    Model:     "claude-sonnet-4-20250514",
//	    MaxTokens: 8192,
//	})
//
// ## OpenAI (GPT)
//
// Native OpenAI API, Azure OpenAI, and OpenAI-compatible endpoints:
//
//	provider, err := NewOpenAIProvider(ctx, &OpenAIConfig{
//	    ID:        "openai",
//	    APIKey:    "sk-...",
//	    Model:     "gpt-4o",
//	    MaxTokens: 4096,
//	})
//
// ## Volcengine ARK
//
// One model per deployment, addressed by endpoint ID rather than a fixed
// model name:
//
//	provider, err := NewArkProvider(ctx, &ArkConfig{
//	    APIKey:    "...",
//	    Model:     "endpoint-id",
//	    MaxTokens: 4096,
//	})
//
// # Registry Usage
//
// InitializeProviders (registry.go) constructs and registers whichever of
// the three providers has credentials in the loaded config, then records
// the three role model strings for lookup:
//
//	registry, err := InitializeProviders(ctx, cfg)
//
//	// Resolve the model bound to a role, falling back to a role-suitable
//	// model if the configured string isn't registered.
//	model, err := registry.ModelForRole("agentic")
//
//	// Direct provider/model lookups remain available.
//	provider, err := registry.Get("anthropic")
//	model, err = registry.GetModel("anthropic", "claude-sonnet-4-20250514")
//	models := registry.AllModels()
//
// # Streaming Completions
//
//	stream, err := provider.CreateCompletion(ctx, &CompletionRequest{
//	    Model:     "claude-sonnet-4-20250514",
//	    Messages:  messages,
//	    Tools:     tools,
//	    MaxTokens: 4096,
//	})
//
//	for {
//	    msg, err := stream.Recv()
//	    if err != nil {
//	        break
//	    }
//	    // Process message chunk
//	}
//	stream.Close()
//
// # Tool Calling
//
//	// Convert internal tool definitions to Eino format
//	einoTools := ConvertToEinoTools(tools)
//
//	// Convert a rendered turn list into Eino chat messages
//	einoMessages := TurnsToEinoMessages(turns)
//
// # Error Handling
//
// The package uses Go's standard error handling patterns. Common error
// scenarios: missing API keys or credentials, invalid model
// configurations, network connectivity issues, provider-specific API
// errors.
//
// # Integration with Eino
//
// Built on github.com/cloudwego/eino, which supplies the standardized
// ToolCallingChatModel interface, tool calling, streaming, and message
// schema definitions each of the three backends above implements.
package provider
