// Package openai implements the ragduel LLM and Embedder interfaces on the
// OpenAI chat completion and embedding APIs.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/smallnest/ragduel"
)

// Config holds client configuration.
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for a compatible proxy.
	BaseURL string
	// Model is the chat model, gpt-4o-mini by default.
	Model string
	// EmbeddingModel defaults to text-embedding-3-small.
	EmbeddingModel string
	// Dimension of the embedding model's vectors.
	Dimension int
	// Temperature for free-form generation. Structured generation always
	// runs at temperature 0 with a fixed seed.
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultConfig returns a config matching the evaluation setup: gpt-4o-mini
// for generation and text-embedding-3-small (1536 dimensions) for retrieval.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:         apiKey,
		Model:          openai.GPT4oMini,
		EmbeddingModel: string(openai.SmallEmbedding3),
		Dimension:      1536,
		Temperature:    0.7,
		MaxTokens:      500,
		Timeout:        60 * time.Second,
	}
}

// structuredSeed pins structured generations so scoring is as repeatable as
// the backend allows.
const structuredSeed = 42

// Client implements ragduel.LLM and ragduel.Embedder.
type Client struct {
	api *openai.Client
	cfg Config
}

var (
	_ ragduel.LLM      = (*Client)(nil)
	_ ragduel.Embedder = (*Client)(nil)
)

// New creates a client from the given config.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = string(openai.SmallEmbedding3)
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		api: openai.NewClientWithConfig(clientConfig),
		cfg: cfg,
	}, nil
}

// Generate produces text from a bare prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.chat(ctx, "", prompt, false)
}

// GenerateWithSystem produces text with a system instruction.
func (c *Client) GenerateWithSystem(ctx context.Context, system, prompt string) (string, error) {
	return c.chat(ctx, system, prompt, false)
}

// GenerateStructured produces machine-parsable output: temperature 0 and a
// fixed seed, relying on the system instruction to suppress any preamble.
func (c *Client) GenerateStructured(ctx context.Context, system, prompt string) (string, error) {
	return c.chat(ctx, system, prompt, true)
}

func (c *Client) chat(ctx context.Context, system, prompt string, structured bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if structured {
		seed := structuredSeed
		req.Temperature = 0
		req.Seed = &seed
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// EmbedDocument embeds a single text.
func (c *Client) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments embeds a batch of texts in one API call.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: embedding failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// GetDimension returns the embedding dimension.
func (c *Client) GetDimension() int {
	return c.cfg.Dimension
}
