// Package dispatch implements the direct tool handler: it resolves a
// parsed tool call into a ToolOutcome without recursing into a nested
// orchestrator run. Sub-agent orchestrators (recursion depth >= 1) are
// always constructed with this handler, which is what caps tool-call
// recursion at one level.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vico-ai/vico/internal/cache"
	"github.com/vico-ai/vico/internal/event"
	"github.com/vico-ai/vico/internal/logging"
	"github.com/vico-ai/vico/internal/orchestrator"
)

// MemoryRecord is one stored memory as the dispatcher sees it.
type MemoryRecord struct {
	ID        string
	Text      string
	HasImage  bool
	CreatedAt string
}

// MemoryStore is the collaborator backing save_memory/edit_memory/
// search_memories, implemented by internal/memory.
type MemoryStore interface {
	Save(ctx context.Context, text string) (id string, err error)
	Edit(ctx context.Context, id, newText string) error
	Search(ctx context.Context, terms []string) ([]MemoryRecord, error)
}

// ResearchCorpus is the collaborator backing perform_research/
// get_full_topic_details, implemented by internal/research.
type ResearchCorpus interface {
	FulltextSearch(ctx context.Context, terms []string) (string, error)
	FullTopicDetails(ctx context.Context, topicIDs []string) (string, error)
}

// VoiceSpeaker is the collaborator backing voice_response. No
// implementation ships in this repository; with a nil VoiceSpeaker,
// voice_response only logs the text and reports success.
type VoiceSpeaker interface {
	Speak(ctx context.Context, text string) error
}

// ExternalTools is an optional fallback tool source for names none of the
// seven built-in tools recognize, implemented by internal/mcp's
// ExternalTools (connected Model Context Protocol servers).
type ExternalTools interface {
	Has(toolName string) bool
	Execute(ctx context.Context, toolName string, args json.RawMessage) (string, error)
}

// Handler holds the dispatcher's collaborators and exposes Handle as an
// orchestrator.ToolCallHandler.
type Handler struct {
	Memory   MemoryStore
	Research ResearchCorpus
	Voice    VoiceSpeaker
	External ExternalTools
	Cache    *cache.Registry
	ModelID  string
}

// New constructs a Handler.
func New(memory MemoryStore, research ResearchCorpus, voice VoiceSpeaker, cacheReg *cache.Registry, modelID string) *Handler {
	return &Handler{Memory: memory, Research: research, Voice: voice, Cache: cacheReg, ModelID: modelID}
}

// Handle resolves one tool call synchronously and returns it wrapped in a
// ToolOutcome whose Result is already computed; dispatch never streams
// inline events, so Stream is always nil. Each resolution is published as
// a tool.dispatched event; the standing observers registered at startup
// turn those into metrics.
func (h *Handler) Handle(ctx context.Context, call orchestrator.ToolCall) (orchestrator.ToolOutcome, error) {
	text, err := h.dispatch(ctx, call)
	event.Publish(event.Event{Type: event.ToolDispatched, Data: event.ToolDispatchedData{Name: call.Name, Success: err == nil}})

	return orchestrator.ToolOutcome{
		Result: func(context.Context) (string, error) { return text, err },
	}, nil
}

func (h *Handler) dispatch(ctx context.Context, call orchestrator.ToolCall) (string, error) {
	switch call.Name {
	case "voice_response":
		return h.voiceResponse(ctx, call.Arguments)
	case "save_memory":
		return h.saveMemory(ctx, call.Arguments)
	case "edit_memory":
		return h.editMemory(ctx, call.Arguments)
	case "search_memories":
		return h.searchMemories(ctx, call.Arguments)
	case "perform_research":
		return h.performResearch(ctx, call.Arguments)
	case "get_full_topic_details":
		return h.fullTopicDetails(ctx, call.Arguments)
	case "terminal_command":
		return h.terminalCommand(ctx, call.Arguments)
	default:
		if h.External != nil && h.External.Has(call.Name) {
			return h.externalTool(ctx, call.Name, call.Arguments)
		}
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}
}

func (h *Handler) externalTool(ctx context.Context, name string, args map[string]any) (string, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode arguments for external tool %q: %w", name, err)
	}
	result, err := h.External.Execute(ctx, name, raw)
	if err != nil {
		return "", fmt.Errorf("external tool %q: %w", name, err)
	}
	return result, nil
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (h *Handler) voiceResponse(ctx context.Context, args map[string]any) (string, error) {
	text := stringArg(args, "text")
	if text == "" {
		return "", nil
	}
	logging.Info().Int("chars", len(text)).Msg("dispatch: voice_response")
	if h.Voice == nil {
		return "Voice response was successful.", nil
	}
	if err := h.Voice.Speak(ctx, text); err != nil {
		return "", fmt.Errorf("voice response failed: %w", err)
	}
	return "Voice response was successful.", nil
}

func (h *Handler) saveMemory(ctx context.Context, args map[string]any) (string, error) {
	memoryText := stringArg(args, "memory_text")
	if _, err := h.Memory.Save(ctx, memoryText); err != nil {
		return "", fmt.Errorf("save memory: %w", err)
	}
	h.invalidateMemoryCaches(ctx, "save")
	return "Memory saved.", nil
}

func (h *Handler) editMemory(ctx context.Context, args map[string]any) (string, error) {
	memoryID := stringArg(args, "memory_id")
	newText := stringArg(args, "new_memory_text")
	if err := h.Memory.Edit(ctx, memoryID, newText); err != nil {
		return "", fmt.Errorf("edit memory %q: %w", memoryID, err)
	}
	h.invalidateMemoryCaches(ctx, "edit")
	return fmt.Sprintf("Memory `%s` edited with new memory text.", memoryID), nil
}

func (h *Handler) invalidateMemoryCaches(ctx context.Context, op string) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.InvalidateMemoryCaches(ctx); err != nil {
		logging.Warn().Err(err).Str("op", op).Msg("dispatch: invalidate memory caches failed")
		return
	}
	event.Publish(event.Event{Type: event.CacheInvalidated})
}

func (h *Handler) searchMemories(ctx context.Context, args map[string]any) (string, error) {
	terms := stringSliceArg(args, "terms")
	records, err := h.Memory.Search(ctx, terms)
	if err != nil {
		return "", fmt.Errorf("search memories: %w", err)
	}
	if len(records) == 0 {
		return "No memories found, try different keywords.", nil
	}

	var result string
	for _, m := range records {
		result += fmt.Sprintf("\nMemory ID: %s\n", m.ID)
		result += fmt.Sprintf("Created: %s\n", m.CreatedAt)
		result += fmt.Sprintf("Content: %s\n", m.Text)
		if m.HasImage {
			result += "[Contains image]\n"
		}
		result += "----------------------------------------\n"
	}
	return result, nil
}

func (h *Handler) performResearch(ctx context.Context, args map[string]any) (string, error) {
	terms := stringSliceArg(args, "terms")
	result, err := h.Research.FulltextSearch(ctx, terms)
	if err != nil {
		return "", fmt.Errorf("perform research: %w", err)
	}
	if result == "" {
		return "No results found, try different keywords.", nil
	}
	result += "\n\nTo unlock full topic details, use the `get_full_topic_details(['topic_id'])` tool for up to 5 of the above topics.\n\nIf these matches aren't useful, simply attempt different keywords in a new `perform_research` tool call.\n"
	return result, nil
}

func (h *Handler) fullTopicDetails(ctx context.Context, args map[string]any) (string, error) {
	topicIDs := stringSliceArg(args, "topic_ids")
	result, err := h.Research.FullTopicDetails(ctx, topicIDs)
	if err != nil {
		return "", fmt.Errorf("get full topic details: %w", err)
	}
	if result == "" {
		return "", nil
	}
	result += fmt.Sprintf("\n\nRetrieved full topic details for %v\n", topicIDs)
	return result, nil
}
