// Package rag implements the per-question answering chain: history-aware
// query reformulation, top-K retrieval, context assembly, and answer
// generation.
package rag

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/schema"

	"github.com/DearAJ/HuaAgent/pkg/llm"
	"github.com/DearAJ/HuaAgent/pkg/store"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 3

// Retriever returns the chunks most similar to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]store.Chunk, error)
}

// StoreRetriever embeds the query and searches a corpus store.
type StoreRetriever struct {
	Store    *store.Store
	Embedder llm.Embedder
}

func (r *StoreRetriever) Retrieve(ctx context.Context, query string, k int) ([]store.Chunk, error) {
	vec, err := r.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.Store.Search(vec, k)
}

// Result is the outcome of answering one question.
type Result struct {
	Query  string
	Chunks []store.Chunk
	Answer string
}

// Chain answers questions against a retrieval corpus.
type Chain struct {
	Generator llm.Generator
	Retriever Retriever
	K         int
}

// Answer runs the full chain for one question. With a non-empty history the
// question is first rewritten into a standalone form; with an empty history
// no reformulation call is made. A retrieval failure degrades to an empty
// context rather than failing the question.
func (c *Chain) Answer(ctx context.Context, question string, history []schema.ChatMessage) (*Result, error) {
	query := question
	if len(history) > 0 {
		rewritten, err := c.Generator.Generate(ctx, contextualizeSystemPrompt, history, question)
		if err != nil {
			return nil, fmt.Errorf("reformulate question: %w", err)
		}
		if rewritten = StripThink(rewritten); rewritten != "" {
			query = rewritten
		}
	}

	k := c.K
	if k <= 0 {
		k = DefaultTopK
	}

	var chunks []store.Chunk
	if c.Retriever != nil {
		// a failed or missing store degrades to an empty context
		retrieved, err := c.Retriever.Retrieve(ctx, query, k)
		if err == nil {
			chunks = retrieved
		}
	}

	answer, err := c.Generator.Generate(ctx, qaSystemPrompt(AssembleContext(chunks)), history, question)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &Result{
		Query:  query,
		Chunks: chunks,
		Answer: StripThink(answer),
	}, nil
}

// Direct answers questions from the model's own knowledge, without
// retrieval.
type Direct struct {
	Generator llm.Generator
}

func (d *Direct) Answer(ctx context.Context, question string, history []schema.ChatMessage) (string, error) {
	answer, err := d.Generator.Generate(ctx, BaselineSystemPrompt, history, question)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return StripThink(answer), nil
}

// AssembleContext joins retrieved chunk texts, in retrieval order, into one
// context block. No truncation happens here; the bound comes from K and the
// chunk size.
func AssembleContext(chunks []store.Chunk) string {
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Text)
	}
	return strings.Join(texts, "\n\n")
}

var thinkRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThink removes <think> reasoning spans that some models emit before
// their actual answer.
func StripThink(s string) string {
	return strings.TrimSpace(thinkRegex.ReplaceAllString(s, ""))
}
