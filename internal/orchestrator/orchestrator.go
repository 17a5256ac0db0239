// Package orchestrator implements the agentic streaming loop: it drives
// generation, splits reasoning from plain text, parses tool calls out of
// the accumulated text, dispatches them, appends the results as tool
// turns, and re-enters generation until the model produces a final
// response with no tool call.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vico-ai/vico/internal/cache"
	"github.com/vico-ai/vico/internal/envelope"
	"github.com/vico-ai/vico/internal/metrics"
	"github.com/vico-ai/vico/internal/orchestrator/turn"
	"github.com/vico-ai/vico/internal/prompt"
	"github.com/vico-ai/vico/internal/splitter"
	"github.com/vico-ai/vico/internal/toolcall"
)

// Generation retry policy.
const (
	MaxSteps             = 50
	MaxRetries           = 3
	RetryInitialInterval = time.Second
	RetryMaxInterval     = 30 * time.Second
	RetryMaxElapsedTime  = 2 * time.Minute
)

// Mode selects whether the loop emits envelopes to a client (Streaming) or
// only records the final text (Collect, used by the sub-agent runner).
type Mode int

const (
	Streaming Mode = iota
	Collect
)

// ToolCall is what the loop hands to the configured ToolCallHandler.
type ToolCall struct {
	Name      string
	Arguments map[string]any
	CleanText string
}

// ToolOutcome is the result of dispatching one tool call. Stream, when
// non-nil, carries inline envelopes (sub-agent token/tool-call events) that
// must be drained before Result is read. Result blocks until the
// underlying work (direct call or sub-agent worker) completes.
type ToolOutcome struct {
	Stream <-chan envelope.Envelope
	Result func(ctx context.Context) (string, error)
}

// ToolCallHandler resolves one parsed tool call into an outcome. The
// top-level assistant orchestrator is constructed with the sub-agent
// handler (internal/subagent); sub-agent orchestrators (recursion depth >=
// 1) are constructed with the direct handler (internal/dispatch), which
// caps recursion at depth 1.
type ToolCallHandler func(ctx context.Context, call ToolCall) (ToolOutcome, error)

// EmitFunc delivers one envelope to the consumer. Returning an error (e.g.
// client disconnected) aborts the loop.
type EmitFunc func(envelope.Envelope) error

// EventPrefix selects which event-type vocabulary (assistant_* vs
// subagent_*) a loop instance emits with.
type EventPrefix struct {
	Token            string
	ThinkingToken    string
	ThinkingComplete string
	ToolCallStart    string
	ToolCallEnd      string
}

// AssistantEvents is the top-level event-type vocabulary.
var AssistantEvents = EventPrefix{
	Token:            envelope.AssistantToken,
	ThinkingToken:    envelope.ThinkingToken,
	ThinkingComplete: envelope.ThinkingComplete,
	ToolCallStart:    envelope.AssistantToolCallStart,
	ToolCallEnd:      envelope.AssistantToolCallEnd,
}

// SubagentEvents is the vocabulary used by a nested sub-agent's own
// deltas and tool-call boundaries, so the parent stream can tell them
// apart from its own.
var SubagentEvents = EventPrefix{
	Token:            envelope.SubagentToken,
	ThinkingToken:    envelope.SubagentThinkingToken,
	ThinkingComplete: envelope.SubagentThinkingComplete,
	ToolCallStart:    envelope.SubagentToolCallStart,
	ToolCallEnd:      envelope.SubagentToolCallEnd,
}

// Orchestrator runs the agentic loop for one agent role (assistant or
// sub-agent). Depth caps recursion: depth 0 is the assistant, depth 1 is a
// sub-agent; the Handler at depth 1 MUST be a direct (non-recursing)
// handler.
type Orchestrator struct {
	Generator Generator
	Handler   ToolCallHandler
	Cache     *cache.Registry
	Prompt    *prompt.Assembler
	Events    EventPrefix
	MaxSteps  int
	Purpose   string // cache-key purpose label, e.g. "assistant" or "subagent"
	Depth     int

	// Sampler is forwarded on every GenerateRequest, sourced from the
	// AGENTIC_* environment variables. The zero value defers to the
	// backing model's own defaults.
	Sampler SamplerParams

	// emitEnd gates whether Run emits the terminal "end" envelope on a
	// normal final response. Only the depth-0 assistant orchestrator owns
	// the single "end" envelope that must trail the whole response;
	// nested sub-agent orchestrators never emit it. Their completion is
	// observed by the sub-agent runner joining the worker.
	emitEnd bool
}

// New constructs an Orchestrator. depth 0 is the top-level assistant
// orchestrator; depth 1 is a sub-agent, and recursion is capped there.
func New(gen Generator, handler ToolCallHandler, cacheReg *cache.Registry, asm *prompt.Assembler, events EventPrefix, purpose string, depth int) *Orchestrator {
	return &Orchestrator{
		Generator: gen,
		Handler:   handler,
		Cache:     cacheReg,
		Prompt:    asm,
		Events:    events,
		MaxSteps:  MaxSteps,
		Purpose:   purpose,
		Depth:     depth,
		emitEnd:   depth == 0,
	}
}

// ErrAborted is returned when emit fails (client disconnect) or ctx is
// cancelled mid-loop.
var ErrAborted = errors.New("orchestrator: aborted")

// Run executes the agentic loop against turns, returning the final
// assistant text. In Streaming mode it calls emit for every envelope
// produced; emit may be nil in Collect mode.
func (o *Orchestrator) Run(ctx context.Context, mode Mode, turns []turn.Turn, emit EmitFunc) (string, error) {
	cacheKey := cache.Key(o.Generator.ModelID(), o.Purpose, "")
	entry, err := o.Cache.Acquire(ctx, cacheKey)
	if err != nil {
		return "", fmt.Errorf("acquire cache: %w", err)
	}
	metrics.CacheHits.WithLabelValues(stateLabel(entry.State)).Inc()
	// A sub-agent's cache is scoped to one tool invocation (Depth > 0)
	// and must be gone from disk, not just dropped from memory, once that
	// invocation completes; otherwise repeated calls to the same tool
	// leave stale cache files accumulating forever. The depth-0 assistant
	// cache is long-lived across the whole conversation and is only ever
	// invalidated explicitly (memory mutation), never on every Run.
	defer o.Cache.Release(ctx, cacheKey, o.Depth > 0)

	var finalText string
	for step := 0; step < o.MaxSteps; step++ {
		select {
		case <-ctx.Done():
			return finalText, ctx.Err()
		default:
		}

		renderedTurns := o.Prompt.Render(turns)
		req := GenerateRequest{Turns: renderedTurns, CacheKey: cacheKey, Sampler: o.Sampler}

		responseText, finishReason, err := o.generateStep(ctx, req, mode, emit)
		if err != nil {
			metrics.OrchestratorSteps.WithLabelValues(modeLabel(mode), "error").Inc()
			if mode == Streaming && emit != nil {
				_ = emit(envelope.ErrorEnvelope(err))
			}
			return finalText, err
		}

		finalText = responseText
		if finishReason == FinishMaxTokens {
			metrics.OrchestratorSteps.WithLabelValues(modeLabel(mode), "max_tokens").Inc()
			err := fmt.Errorf("generation stopped: max tokens exceeded")
			if mode == Streaming && emit != nil {
				_ = emit(envelope.ErrorEnvelope(err))
			}
			return finalText, err
		}

		if !toolcall.HasToolCall(responseText) {
			metrics.OrchestratorSteps.WithLabelValues(modeLabel(mode), "final").Inc()
			o.Cache.MarkInitialized(cacheKey)
			_ = o.Cache.Save(ctx, cacheKey, []byte(fmt.Sprintf("turns=%d", len(turns))))
			if mode == Streaming && emit != nil && o.emitEnd {
				_ = emit(envelope.Plain(envelope.End, nil))
			}
			return finalText, nil
		}

		if !toolcall.HasOpenTag(responseText) {
			turns = append(turns, turn.NewTool("error", prompt.WrapToolResult("syntax: opening tag missing")))
			metrics.OrchestratorSteps.WithLabelValues(modeLabel(mode), "tool_call").Inc()
			continue
		}

		inv := toolcall.Parse(responseText)
		if inv.Name == "" {
			turns = append(turns, turn.NewTool("error", prompt.WrapToolResult("parsing failed")))
			continue
		}

		if mode == Streaming && emit != nil {
			if err := emit(envelope.Plain(o.Events.ToolCallStart, map[string]any{"tool_name": inv.Name})); err != nil {
				return finalText, ErrAborted
			}
		}

		outcome, err := o.Handler(ctx, ToolCall{Name: inv.Name, Arguments: inv.Arguments, CleanText: responseText})
		if err != nil {
			turns = append(turns, turn.NewTool("error", prompt.WrapToolResult(err.Error())))
			continue
		}

		if outcome.Stream != nil {
			if mode == Streaming && emit != nil {
				for ev := range outcome.Stream {
					if err := emit(ev); err != nil {
						return finalText, ErrAborted
					}
				}
			} else {
				for range outcome.Stream {
				}
			}
		}

		if outcome.Result == nil {
			return finalText, fmt.Errorf("tool %q returned a nil result supplier", inv.Name)
		}
		resultText, err := outcome.Result(ctx)
		if err != nil {
			resultText = fmt.Sprintf("Error: %v", err)
		}

		if mode == Streaming && emit != nil {
			if err := emit(envelope.Plain(o.Events.ToolCallEnd, map[string]any{"tool_name": inv.Name})); err != nil {
				return finalText, ErrAborted
			}
		}

		turns = append(turns, turn.NewTool(inv.Name, prompt.WrapToolResult(resultText)))
		metrics.OrchestratorSteps.WithLabelValues(modeLabel(mode), "tool_call").Inc()
	}

	return finalText, fmt.Errorf("exceeded max steps (%d)", o.MaxSteps)
}

// generateStep runs one generate-split-encode-accumulate cycle, with
// backoff retry on generation errors. The returned text carries plain
// content only; reasoning deltas are emitted but never accumulated.
func (o *Orchestrator) generateStep(ctx context.Context, req GenerateRequest, mode Mode, emit EmitFunc) (string, string, error) {
	var responseText string
	var finishReason string

	operation := func() error {
		stream, err := o.Generator.Generate(ctx, req)
		if err != nil {
			return err
		}
		defer stream.Close()

		split := splitter.New(o.Generator.InjectThinkIfMissing())
		responseText = ""

		for {
			chunk, err := stream.Next(ctx)
			if err != nil {
				if err == io.EOF {
					break
				}
				return err
			}

			for _, item := range split.Feed(chunk) {
				if err := o.emitItem(item, mode, emit); err != nil {
					return backoff.Permanent(ErrAborted)
				}
				// Only plain content accumulates: the splitter drops the
				// tags themselves, so folding ThinkDelta in here would bake
				// reasoning into the text the tool-call parser and the
				// final (sub-agent result) text are read from.
				if item.Kind == splitter.PlainDelta {
					responseText += item.Text
				}
			}
		}

		for _, item := range split.Close() {
			if err := o.emitItem(item, mode, emit); err != nil {
				return backoff.Permanent(ErrAborted)
			}
			if item.Kind == splitter.PlainDelta {
				responseText += item.Text
			}
		}

		finishReason = stream.FinishReason()
		return nil
	}

	b := newRetryBackoff(ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return responseText, finishReason, err
	}
	return responseText, finishReason, nil
}

func (o *Orchestrator) emitItem(item splitter.Item, mode Mode, emit EmitFunc) error {
	if mode != Streaming || emit == nil {
		return nil
	}
	switch item.Kind {
	case splitter.PlainDelta:
		return emit(envelope.Token(o.Events.Token, item.Text))
	case splitter.ThinkDelta:
		return emit(envelope.Token(o.Events.ThinkingToken, item.Text))
	case splitter.ThinkComplete:
		return emit(envelope.Plain(o.Events.ThinkingComplete, nil))
	case splitter.PassthroughEvent:
		return emit(envelope.Plain(item.EventType, item.Payload))
	}
	return nil
}

// newRetryBackoff builds the exponential retry policy for generateStep.
func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.MaxInterval = RetryMaxInterval
	b.MaxElapsedTime = RetryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx)
}

func modeLabel(m Mode) string {
	if m == Streaming {
		return "streaming"
	}
	return "collect"
}

func stateLabel(s cache.State) string {
	switch s {
	case cache.Fresh:
		return "fresh"
	case cache.Initialized:
		return "initialized"
	case cache.Persisted:
		return "persisted"
	default:
		return "absent"
	}
}
