package orchestrator

import (
	"context"

	"github.com/vico-ai/vico/internal/orchestrator/turn"
)

// SamplerParams are the per-request sampling parameters, sourced from the
// AGENTIC_*/IMAGE_* environment variables.
type SamplerParams struct {
	Temperature           float64
	TopP                  float64
	TopK                  int
	MinP                  float64
	RepetitionPenalty     float64
	RepetitionContextSize int
	MaxTokens             int
	MaxKVSize             int
}

// GenerateRequest is everything the Generator needs to produce one
// completion: the fully re-rendered turn list, the cache key whose KV state
// should accelerate the common prefix, and sampler parameters.
type GenerateRequest struct {
	Turns    []turn.Turn
	CacheKey string
	Sampler  SamplerParams

	// Images carries raw image bytes to attach to the final user turn, used
	// by the vision-captioning path. How they are encoded onto the wire is a
	// provider concern (internal/provider attaches them as multimodal
	// message parts).
	Images [][]byte
}

// TokenStream yields raw text chunks from a single generation. Next returns
// io.EOF once the model has finished producing this turn.
type TokenStream interface {
	Next(ctx context.Context) (string, error)
	// FinishReason is valid only after Next has returned io.EOF.
	FinishReason() string
	Close()
}

// Finish reasons the loop switches on.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
	FinishMaxTokens = "max_tokens"
	FinishError     = "error"
)

// Generator drives token generation against the external inference
// engine. The concrete implementation lives in internal/provider and
// wraps an Eino ChatModel.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (TokenStream, error)
	// ModelID identifies the backing model, used to derive cache keys.
	ModelID() string
	// InjectThinkIfMissing reports whether this model omits the opening
	// <think> tag and relies on </think> alone to end reasoning.
	InjectThinkIfMissing() bool
}
