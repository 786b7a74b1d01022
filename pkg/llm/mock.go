package llm

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/tmc/langchaingo/schema"
)

// MockCall records one Generate invocation.
type MockCall struct {
	System string
	Input  string
	Turns  int
}

// MockGenerator is an in-process Generator for tests. Reply, when set,
// decides the response per call; otherwise every call returns Response.
type MockGenerator struct {
	mu       sync.Mutex
	Response string
	Reply    func(system, input string) (string, error)
	Calls    []MockCall
}

func (m *MockGenerator) Generate(_ context.Context, system string, history []schema.ChatMessage, input string) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{System: system, Input: input, Turns: len(history)})
	m.mu.Unlock()

	if m.Reply != nil {
		return m.Reply(system, input)
	}
	return m.Response, nil
}

// CallCount returns how many times Generate has been invoked.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockEmbedder produces deterministic vectors derived from the text alone,
// so equal texts always embed identically.
type MockEmbedder struct {
	Dim int
}

func (m *MockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (m *MockEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	dim := m.Dim
	if dim <= 0 {
		dim = 8
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dim)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(seed%1000)/1000.0 - 0.5
	}
	return vec, nil
}
