package subagent

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vico-ai/vico/internal/cache"
	"github.com/vico-ai/vico/internal/envelope"
	"github.com/vico-ai/vico/internal/orchestrator"
	"github.com/vico-ai/vico/internal/prompt"
	"github.com/vico-ai/vico/internal/storage"
)

// fakeStream yields the chunks of a single canned response then io.EOF.
type fakeStream struct {
	chunks []string
	i      int
}

func (f *fakeStream) Next(ctx context.Context) (string, error) {
	if f.i >= len(f.chunks) {
		return "", io.EOF
	}
	c := f.chunks[f.i]
	f.i++
	return c, nil
}

func (f *fakeStream) FinishReason() string { return orchestrator.FinishStop }
func (f *fakeStream) Close()               {}

// fakeGenerator returns one fixed final-answer response regardless of the
// request, enough to drive the nested orchestrator to completion in a
// single step.
type fakeGenerator struct {
	response string
}

func (g *fakeGenerator) Generate(ctx context.Context, req orchestrator.GenerateRequest) (orchestrator.TokenStream, error) {
	return &fakeStream{chunks: []string{g.response}}, nil
}

func (g *fakeGenerator) ModelID() string           { return "fake-model" }
func (g *fakeGenerator) InjectThinkIfMissing() bool { return false }

func directHandlerStub(ctx context.Context, call orchestrator.ToolCall) (orchestrator.ToolOutcome, error) {
	return orchestrator.ToolOutcome{
		Result: func(context.Context) (string, error) { return "stubbed result", nil },
	}, nil
}

func TestRunnerStreamsSubagentEventsAndJoinsResult(t *testing.T) {
	gen := &fakeGenerator{response: "The task is complete."}
	store := storage.New(t.TempDir())
	cacheReg := cache.New(store)
	asm := prompt.NewAssembler("vico", nil)

	runner := New(gen, directHandlerStub, cacheReg, asm)

	outcome, err := runner.Handle(context.Background(), orchestrator.ToolCall{
		Name:      "perform_research",
		Arguments: map[string]any{"terms": []any{"cats"}},
	})
	require.NoError(t, err)

	var events []envelope.Envelope
	for ev := range outcome.Stream {
		events = append(events, ev)
	}
	require.NotEmpty(t, events)
	assert.Equal(t, envelope.SubagentToken, events[0].Type)

	text, err := outcome.Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "The task is complete.", text)
}
