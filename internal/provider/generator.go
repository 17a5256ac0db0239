package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/vico-ai/vico/internal/orchestrator"
	"github.com/vico-ai/vico/internal/orchestrator/turn"
)

// EinoGenerator adapts a Provider (an Eino ChatModel wrapper) to the
// orchestrator.Generator collaborator interface. It is the seam between
// the text-marker-based agentic loop and Eino's structured message
// protocol: turns go out as []*schema.Message, and any separated
// ReasoningContent the backend returns comes back synthesized into the
// <think>...</think> markers internal/splitter already knows how to
// strip, so the rest of the orchestrator never has to know a given
// backend separates reasoning from plain content at the wire level.
type EinoGenerator struct {
	Provider  Provider
	ModelName string
	MaxTokens int
}

// NewEinoGenerator constructs an EinoGenerator wrapping an already-configured
// Provider (anthropic.go/openai.go/ark.go's NewXProvider).
func NewEinoGenerator(p Provider, modelName string) *EinoGenerator {
	return &EinoGenerator{Provider: p, ModelName: modelName}
}

// ModelID identifies the backing model, used to derive cache keys.
func (g *EinoGenerator) ModelID() string { return g.ModelName }

// InjectThinkIfMissing is always false here: Generate always emits its own
// opening <think> tag up front when reasoning content starts, so the
// splitter never needs to infer one.
func (g *EinoGenerator) InjectThinkIfMissing() bool { return false }

// Generate renders req.Turns into Eino messages and starts a completion
// stream against the wrapped Provider. No tool schemas are bound: tool
// invocation in this system is a text convention the model is taught via the
// system prompt's tool catalog (internal/prompt), not Eino/OpenAI-native
// function calling, so CompletionRequest.Tools is left empty.
func (g *EinoGenerator) Generate(ctx context.Context, req orchestrator.GenerateRequest) (orchestrator.TokenStream, error) {
	messages := TurnsToEinoMessages(req.Turns)
	if len(req.Images) > 0 {
		attachImages(messages, req.Images)
	}

	compReq := &CompletionRequest{
		Model:       g.ModelName,
		Messages:    messages,
		MaxTokens:   req.Sampler.MaxTokens,
		Temperature: req.Sampler.Temperature,
		TopP:        req.Sampler.TopP,
	}

	stream, err := g.Provider.CreateCompletion(ctx, compReq)
	if err != nil {
		return nil, fmt.Errorf("generate via provider %s: %w", g.Provider.ID(), err)
	}
	return &einoTokenStream{stream: stream}, nil
}

// TurnsToEinoMessages converts a rendered turn list into Eino chat
// messages. Tool-role turns (the <tool_call_results> wrapping injected
// back into the conversation after a dispatch) keep the "tool" role,
// using the turn's tool name as a synthetic ToolCallID since this
// protocol never hands the model a native tool_calls entry to correlate
// against.
func TurnsToEinoMessages(turns []turn.Turn) []*schema.Message {
	messages := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		msg := &schema.Message{Content: t.Text}
		switch t.Role {
		case turn.RoleSystem:
			msg.Role = schema.System
		case turn.RoleUser:
			msg.Role = schema.User
		case turn.RoleAssistant:
			msg.Role = schema.Assistant
		case turn.RoleTool:
			msg.Role = schema.Tool
			msg.ToolCallID = t.ToolName
			msg.Name = t.ToolName
		default:
			msg.Role = schema.User
		}
		messages = append(messages, msg)
	}
	return messages
}

// attachImages rewrites the last user message into multimodal parts, each
// image carried as a base64 data URL (the encoding Eino's model adapters
// accept for inline image content). The vision-captioning path is the only
// producer of req.Images today.
func attachImages(messages []*schema.Message, images [][]byte) {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role != schema.User {
			continue
		}

		parts := []schema.ChatMessagePart{{Type: schema.ChatMessagePartTypeText, Text: msg.Content}}
		for _, img := range images {
			mime := http.DetectContentType(img)
			parts = append(parts, schema.ChatMessagePart{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL:      fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(img)),
					MIMEType: mime,
				},
			})
		}
		msg.Content = ""
		msg.MultiContent = parts
		return
	}
}

// einoTokenStream adapts *CompletionStream's Recv()-based consumption to
// orchestrator.TokenStream's Next/FinishReason/Close contract, re-injecting
// <think>/</think> markers around any delta carried in a chunk's separated
// ReasoningContent field.
type einoTokenStream struct {
	stream     *CompletionStream
	finish     string
	thinkOpen  bool
	eofPending bool
}

func (s *einoTokenStream) Next(ctx context.Context) (string, error) {
	if s.eofPending {
		if s.thinkOpen {
			s.thinkOpen = false
			return "</think>", nil
		}
		return "", io.EOF
	}

	msg, err := s.stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.eofPending = true
			if s.thinkOpen {
				s.thinkOpen = false
				return "</think>", nil
			}
			return "", io.EOF
		}
		return "", err
	}

	if msg.ResponseMeta != nil && msg.ResponseMeta.FinishReason != "" {
		s.finish = mapFinishReason(msg.ResponseMeta.FinishReason)
	}
	if len(msg.ToolCalls) > 0 {
		s.finish = orchestrator.FinishToolCalls
	}

	var out strings.Builder
	if msg.ReasoningContent != "" {
		if !s.thinkOpen {
			out.WriteString("<think>")
			s.thinkOpen = true
		}
		out.WriteString(msg.ReasoningContent)
	} else if s.thinkOpen && msg.Content != "" {
		out.WriteString("</think>")
		s.thinkOpen = false
	}
	out.WriteString(msg.Content)

	return out.String(), nil
}

func (s *einoTokenStream) FinishReason() string {
	if s.finish == "" {
		return orchestrator.FinishStop
	}
	return s.finish
}

func (s *einoTokenStream) Close() { s.stream.Close() }

func mapFinishReason(reason string) string {
	switch reason {
	case "tool_calls":
		return orchestrator.FinishToolCalls
	case "length":
		return orchestrator.FinishMaxTokens
	case "stop", "end_turn", "":
		return orchestrator.FinishStop
	default:
		return orchestrator.FinishStop
	}
}
