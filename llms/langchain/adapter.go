// Package langchain adapts a langchaingo llms.Model to the ragduel LLM
// interface, so any backend langchaingo supports (Ollama, Anthropic, Google,
// local models) can drive the pipeline.
package langchain

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/ragduel"
)

// Adapter wraps a langchaingo model.
type Adapter struct {
	model       llms.Model
	temperature float64
	maxTokens   int
}

var _ ragduel.LLM = (*Adapter)(nil)

// Option configures the adapter.
type Option func(*Adapter)

// WithTemperature sets the free-form generation temperature.
func WithTemperature(t float64) Option {
	return func(a *Adapter) { a.temperature = t }
}

// WithMaxTokens caps response length.
func WithMaxTokens(n int) Option {
	return func(a *Adapter) { a.maxTokens = n }
}

// New creates an adapter around the given model.
func New(model llms.Model, opts ...Option) *Adapter {
	a := &Adapter{
		model:       model,
		temperature: 0.7,
		maxTokens:   500,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Generate produces text from a bare prompt.
func (a *Adapter) Generate(ctx context.Context, prompt string) (string, error) {
	return a.generate(ctx, "", prompt, a.temperature)
}

// GenerateWithSystem produces text with a system instruction.
func (a *Adapter) GenerateWithSystem(ctx context.Context, system, prompt string) (string, error) {
	return a.generate(ctx, system, prompt, a.temperature)
}

// GenerateStructured produces machine-parsable output at temperature 0.
func (a *Adapter) GenerateStructured(ctx context.Context, system, prompt string) (string, error) {
	return a.generate(ctx, system, prompt, 0)
}

func (a *Adapter) generate(ctx context.Context, system, prompt string, temperature float64) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	resp, err := a.model.GenerateContent(ctx, messages,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(a.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("langchain: generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("langchain: empty response")
	}
	return resp.Choices[0].Content, nil
}
