// Package subagent implements the sub-agent runner: the handler the
// top-level assistant orchestrator is constructed with, which turns every
// delegable tool call into its own nested orchestrator run rather than
// dispatching it inline. The nested run shares the parent's generator and
// a distinct, tool-scoped cache key, and is always constructed at depth 1
// with the direct dispatch handler, so recursion cannot go deeper.
package subagent

import (
	"context"
	"fmt"

	"github.com/vico-ai/vico/internal/cache"
	"github.com/vico-ai/vico/internal/envelope"
	"github.com/vico-ai/vico/internal/metrics"
	"github.com/vico-ai/vico/internal/orchestrator"
	"github.com/vico-ai/vico/internal/orchestrator/turn"
	"github.com/vico-ai/vico/internal/prompt"
	"github.com/vico-ai/vico/internal/toolcall"
)

// streamBuffer bounds how far the worker can run ahead of the consumer
// draining outcome.Stream before it blocks.
const streamBuffer = 32

// Runner spawns one nested orchestrator per delegable tool call.
type Runner struct {
	Generator orchestrator.Generator
	Direct    orchestrator.ToolCallHandler
	Cache     *cache.Registry
	Prompt    *prompt.Assembler

	// Sampler is forwarded to every nested orchestrator, so sub-agent
	// generations sample with the same AGENTIC_* parameters as the parent.
	Sampler orchestrator.SamplerParams
}

// New constructs a Runner. direct is the handler nested (depth-1)
// orchestrators dispatch tool calls through; it must not itself recurse
// into Runner.Handle.
func New(gen orchestrator.Generator, direct orchestrator.ToolCallHandler, cacheReg *cache.Registry, asm *prompt.Assembler) *Runner {
	return &Runner{Generator: gen, Direct: direct, Cache: cacheReg, Prompt: asm}
}

type result struct {
	text string
	err  error
}

// Handle implements orchestrator.ToolCallHandler. It is installed as the
// Handler of the depth-0 assistant Orchestrator.
func (r *Runner) Handle(ctx context.Context, call orchestrator.ToolCall) (orchestrator.ToolOutcome, error) {
	worker := orchestrator.New(r.Generator, r.Direct, r.Cache, r.Prompt, orchestrator.SubagentEvents, subagentPurpose(call.Name), 1)
	worker.Sampler = r.Sampler

	seed := []turn.Turn{turn.New(turn.RoleUser, taskPrompt(call))}

	stream := make(chan envelope.Envelope, streamBuffer)
	resultCh := make(chan result, 1)

	go func() {
		defer close(stream)
		defer close(resultCh)

		text, err := worker.Run(ctx, orchestrator.Streaming, seed, func(ev envelope.Envelope) error {
			select {
			case stream <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.SubagentRuns.WithLabelValues(outcome).Inc()

		resultCh <- result{text: text, err: err}
	}()

	return orchestrator.ToolOutcome{
		Stream: stream,
		Result: func(ctx context.Context) (string, error) {
			select {
			case res, ok := <-resultCh:
				if !ok {
					return "", fmt.Errorf("subagent %q: worker exited without a result", call.Name)
				}
				return res.text, res.err
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	}, nil
}

// subagentPurpose derives a cache-key purpose label that embeds the tool
// name, so the sub-agent's prompt state never collides with the parent's
// or with another tool's sub-agent run.
func subagentPurpose(toolName string) string {
	return "subagent_" + toolName
}

// taskPrompt frames a parsed tool call as a self-contained task
// description for the nested agent to carry out end-to-end. It re-encodes
// the already parsed name/arguments rather than reusing call.CleanText,
// which carries the assistant's full response and would duplicate the
// tool_call markers.
func taskPrompt(call orchestrator.ToolCall) string {
	block := toolcall.Format(toolcall.Invocation{Name: call.Name, Arguments: call.Arguments})
	return fmt.Sprintf("Carry out the following tool request and report back with its result.\n\n%s", block)
}
