// Package provider provides LLM provider abstraction using Eino framework.
package provider

import (
	"context"
	"encoding/json"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/vico-ai/vico/pkg/types"
)

// Provider represents an LLM provider with Eino ChatModel.
type Provider interface {
	// ID returns the provider identifier.
	ID() string

	// Name returns the human-readable provider name.
	Name() string

	// Models returns the list of available models.
	Models() []types.Model

	// ChatModel returns the Eino ChatModel for this provider.
	ChatModel() model.ToolCallingChatModel

	// CreateCompletion creates a streaming completion.
	CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error)
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	Tools       []*schema.ToolInfo `json:"tools,omitempty"`
	MaxTokens   int               `json:"maxTokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
	TopP        float64           `json:"topP,omitempty"`
	StopWords   []string          `json:"stopWords,omitempty"`
}

// CompletionStream wraps an Eino stream reader.
type CompletionStream struct {
	reader *schema.StreamReader[*schema.Message]
}

// NewCompletionStream creates a new completion stream.
func NewCompletionStream(reader *schema.StreamReader[*schema.Message]) *CompletionStream {
	return &CompletionStream{reader: reader}
}

// Recv receives the next message chunk from the stream.
func (s *CompletionStream) Recv() (*schema.Message, error) {
	return s.reader.Recv()
}

// Close closes the stream.
func (s *CompletionStream) Close() {
	s.reader.Close()
}

// ToolInfo represents a tool definition for the LLM.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// ConvertToEinoTools converts internal tool definitions to Eino format.
func ConvertToEinoTools(tools []ToolInfo) []*schema.ToolInfo {
	result := make([]*schema.ToolInfo, len(tools))
	for i, t := range tools {
		// Parse parameters from JSON schema
		var params map[string]*schema.ParameterInfo
		if len(t.Parameters) > 0 {
			params = parseJSONSchemaToParams(t.Parameters)
		}

		result[i] = &schema.ToolInfo{
			Name: t.Name,
			Desc: t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		}
	}
	return result
}

// parseJSONSchemaToParams converts JSON Schema to Eino ParameterInfo.
func parseJSONSchemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var jsonSchema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}

	if err := json.Unmarshal(schemaJSON, &jsonSchema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool)
	for _, r := range jsonSchema.Required {
		requiredSet[r] = true
	}

	params := make(map[string]*schema.ParameterInfo)
	for name, prop := range jsonSchema.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}

		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: requiredSet[name],
		}
	}

	return params
}

// Turn-to-message conversion lives in generator.go's TurnsToEinoMessages:
// this package's domain is turn.Turn (internal/orchestrator/turn), not the
// session/message/part transcript model ConvertFromEinoMessage and
// ConvertToEinoMessages used to serve.

// vicoRoles tags a catalog entry with the roles (CHAT_MODEL_NAME,
// AGENTIC_MODEL_NAME, IMAGE_MODEL_NAME) it is fit to serve. The
// orchestrator only ever binds a provider's ChatModel for the
// agentic loop (registry.go's InitializeProviders), so tool calling is
// the bar for the chat/agentic roles; the image role additionally needs
// vision so the vision.Captioner path (see internal/vision) can delegate
// to it.
func vicoRoles(supportsTools, supportsVision bool) []string {
	var roles []string
	if supportsTools {
		roles = append(roles, "chat", "agentic")
	}
	if supportsVision {
		roles = append(roles, "image")
	}
	return roles
}
