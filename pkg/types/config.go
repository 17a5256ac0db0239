package types

// Model represents an LLM model available from a provider.
type Model struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	ProviderID        string       `json:"providerID"`
	ContextLength     int          `json:"contextLength"`
	MaxOutputTokens   int          `json:"maxOutputTokens,omitempty"`
	SupportsTools     bool         `json:"supportsTools"`
	SupportsVision    bool         `json:"supportsVision"`
	SupportsReasoning bool         `json:"supportsReasoning,omitempty"`
	InputPrice        float64      `json:"inputPrice,omitempty"`  // per 1M tokens
	OutputPrice       float64      `json:"outputPrice,omitempty"` // per 1M tokens
	Options           ModelOptions `json:"options,omitempty"`

	// Roles lists which of Vico's three model roles ("chat", "agentic",
	// "image") this model is fit to serve, derived from
	// SupportsTools/SupportsVision at catalog construction time.
	Roles []string `json:"roles,omitempty"`
}

// ModelOptions contains model-specific options.
type ModelOptions struct {
	Temperature    *float64 `json:"temperature,omitempty"`
	TopP           *float64 `json:"topP,omitempty"`
	PromptCaching  bool     `json:"promptCaching,omitempty"`
	ExtendedOutput bool     `json:"extendedOutput,omitempty"`
}
