// Package llm wraps the external chat and embedding capabilities behind
// small interfaces so the pipeline stages can be tested without a model
// server.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

// DefaultHost is the Ollama server used when none is configured.
const DefaultHost = "http://localhost:11434"

// Default model names, matching what the corpus was built and evaluated with.
const (
	DefaultChatModel     = "qwen3:latest"
	DefaultBaselineModel = "koesn/llama3-openbiollm-8b:latest"
	DefaultEmbedModel    = "bge-m3:567m"
)

// Generator produces a chat completion for a system instruction, prior
// conversation turns, and the latest user input.
type Generator interface {
	Generate(ctx context.Context, system string, history []schema.ChatMessage, input string) (string, error)
}

// Embedder turns texts into fixed-length embedding vectors.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// OllamaChat is a Generator backed by an Ollama chat model.
type OllamaChat struct {
	model llms.Model
}

// NewOllamaChat connects to an Ollama server and returns a chat generator
// for the named model.
func NewOllamaChat(serverURL, model string) (*OllamaChat, error) {
	if serverURL == "" {
		serverURL = DefaultHost
	}
	if model == "" {
		model = DefaultChatModel
	}

	client, err := ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama chat client: %w", err)
	}
	return &OllamaChat{model: client}, nil
}

// Generate sends system + history + input as one chat exchange and returns
// the model's reply verbatim.
func (c *OllamaChat) Generate(ctx context.Context, system string, history []schema.ChatMessage, input string) (string, error) {
	msgs := make([]llms.MessageContent, 0, len(history)+2)
	msgs = append(msgs, llms.TextParts(schema.ChatMessageTypeSystem, system))
	for _, m := range history {
		msgs = append(msgs, llms.TextParts(m.GetType(), m.GetContent()))
	}
	msgs = append(msgs, llms.TextParts(schema.ChatMessageTypeHuman, input))

	resp, err := c.model.GenerateContent(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// NewOllamaEmbedder connects to an Ollama server and returns an embedder for
// the named embedding model.
func NewOllamaEmbedder(serverURL, model string) (Embedder, error) {
	if serverURL == "" {
		serverURL = DefaultHost
	}
	if model == "" {
		model = DefaultEmbedModel
	}

	client, err := ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}
