// Package vision is the vision-captioning call path: it turns a saved
// image into a text description that becomes (part of) a memory's stored
// text. It reuses the orchestrator.Generator collaborator interface
// rather than a separate model client, since captioning is a single
// non-agentic generation call against the same inference engine.
package vision

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/vico-ai/vico/internal/orchestrator"
	"github.com/vico-ai/vico/internal/orchestrator/turn"
	"github.com/vico-ai/vico/internal/splitter"
)

// Captioner turns image bytes (plus optional existing memory text used as
// context) into a textual description.
type Captioner interface {
	Describe(ctx context.Context, image []byte, memoryContext string) (string, error)
}

// GeneratorCaptioner is the default Captioner, delegating to a Generator
// configured with the image-captioning model/sampler (IMAGE_MODEL_NAME,
// IMAGE_MAX_TOKENS, IMAGE_TEMP).
type GeneratorCaptioner struct {
	Generator orchestrator.Generator
	MaxTokens int
	Temp      float64
}

// NewGeneratorCaptioner constructs a GeneratorCaptioner with the IMAGE_*
// environment defaults.
func NewGeneratorCaptioner(gen orchestrator.Generator) *GeneratorCaptioner {
	return &GeneratorCaptioner{Generator: gen, MaxTokens: 100000, Temp: 0.7}
}

// Describe runs one captioning generation: a system turn instructing
// exhaustive description, a user turn carrying the base prompt plus an
// <image_context> block when memoryContext is non-empty. The image bytes
// travel on the request's Images field; how they are encoded onto the
// wire (a multimodal message part) is a provider concern
// (internal/provider).
func (c *GeneratorCaptioner) Describe(ctx context.Context, image []byte, memoryContext string) (string, error) {
	systemText := fmt.Sprintf(
		"You are an expert at describing images in the fullest of detail, replacing vision for those who have lost it. "+
			"Entire paragraphs explaining scenery, observations, annotations, and transcriptions are all desirable - "+
			"longer descriptions are usually more helpful! The current date is %s.",
		time.Now().Format("2006-01-02"),
	)

	userText := "Describe the image in the fullest of detail, per your instructions. In your final answer, include the summary of your observations."
	if memoryContext != "" {
		userText += fmt.Sprintf("\n\n<image_context>\n\t%s\n</image_context>\n\n", memoryContext)
	}

	turns := []turn.Turn{
		turn.New(turn.RoleSystem, systemText),
		turn.New(turn.RoleUser, userText),
	}

	req := orchestrator.GenerateRequest{
		Turns:  turns,
		Images: [][]byte{image},
		Sampler: orchestrator.SamplerParams{
			Temperature: c.Temp,
			MaxTokens:   c.MaxTokens,
		},
	}

	stream, err := c.Generator.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("describe image: %w", err)
	}
	defer stream.Close()

	split := splitter.New(c.Generator.InjectThinkIfMissing())
	var description string
	for {
		chunk, err := stream.Next(ctx)
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("describe image: %w", err)
		}
		for _, item := range split.Feed(chunk) {
			if item.Kind == splitter.PlainDelta {
				description += item.Text
			}
		}
	}
	for _, item := range split.Close() {
		if item.Kind == splitter.PlainDelta {
			description += item.Text
		}
	}

	return description, nil
}
