package rag

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"

	"github.com/DearAJ/HuaAgent/pkg/llm"
	"github.com/DearAJ/HuaAgent/pkg/store"
)

type fakeRetriever struct {
	chunks  []store.Chunk
	err     error
	queries []string
}

func (r *fakeRetriever) Retrieve(_ context.Context, query string, _ int) ([]store.Chunk, error) {
	r.queries = append(r.queries, query)
	return r.chunks, r.err
}

func TestAnswerWithoutHistorySkipsReformulation(t *testing.T) {
	gen := &llm.MockGenerator{Response: "多喝水并休息"}
	retr := &fakeRetriever{chunks: []store.Chunk{{Text: "Q: 感冒怎么办\nA: 多喝水"}}}
	chain := &Chain{Generator: gen, Retriever: retr}

	result, err := chain.Answer(context.Background(), "感冒怎么办", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, gen.CallCount())
	assert.Equal(t, "感冒怎么办", result.Query)
	assert.Equal(t, "多喝水并休息", result.Answer)
	assert.Equal(t, []string{"感冒怎么办"}, retr.queries)
}

func TestAnswerWithHistoryReformulatesFirst(t *testing.T) {
	gen := &llm.MockGenerator{
		Reply: func(system, input string) (string, error) {
			if system == contextualizeSystemPrompt {
				return "小孩感冒吃什么药", nil
			}
			return "请遵医嘱服用儿童剂型", nil
		},
	}
	retr := &fakeRetriever{}
	chain := &Chain{Generator: gen, Retriever: retr}

	history := []schema.ChatMessage{
		schema.HumanChatMessage{Content: "小孩感冒怎么办"},
		schema.AIChatMessage{Content: "注意保暖多喝水"},
	}
	result, err := chain.Answer(context.Background(), "吃什么药", history)
	require.NoError(t, err)

	assert.Equal(t, 2, gen.CallCount())
	// retrieval sees the standalone question, generation the original one
	assert.Equal(t, []string{"小孩感冒吃什么药"}, retr.queries)
	assert.Equal(t, "小孩感冒吃什么药", result.Query)
	assert.Equal(t, "吃什么药", gen.Calls[1].Input)
	assert.Equal(t, 2, gen.Calls[1].Turns)
}

func TestAnswerEmptyReformulationFallsBack(t *testing.T) {
	gen := &llm.MockGenerator{
		Reply: func(system, input string) (string, error) {
			if system == contextualizeSystemPrompt {
				return "<think>无需改写</think>", nil
			}
			return "好的", nil
		},
	}
	retr := &fakeRetriever{}
	chain := &Chain{Generator: gen, Retriever: retr}

	history := []schema.ChatMessage{schema.HumanChatMessage{Content: "你好"}}
	result, err := chain.Answer(context.Background(), "谢谢", history)
	require.NoError(t, err)

	assert.Equal(t, "谢谢", result.Query)
	assert.Equal(t, []string{"谢谢"}, retr.queries)
}

func TestAnswerContextReachesPrompt(t *testing.T) {
	gen := &llm.MockGenerator{Response: "答"}
	retr := &fakeRetriever{chunks: []store.Chunk{
		{Text: "Q: 发烧怎么办\nA: 物理降温"},
		{Text: "Q: 头痛怎么办\nA: 先休息"},
	}}
	chain := &Chain{Generator: gen, Retriever: retr}

	_, err := chain.Answer(context.Background(), "发烧怎么办", nil)
	require.NoError(t, err)

	require.Equal(t, 1, gen.CallCount())
	system := gen.Calls[0].System
	assert.True(t, strings.HasPrefix(system, qaSystemPromptPrefix))
	assert.Contains(t, system, "Q: 发烧怎么办\nA: 物理降温\n\nQ: 头痛怎么办\nA: 先休息")
}

func TestAnswerRetrievalFailureDegrades(t *testing.T) {
	gen := &llm.MockGenerator{Response: "仅凭已有知识作答"}
	retr := &fakeRetriever{err: errors.New("store gone")}
	chain := &Chain{Generator: gen, Retriever: retr}

	result, err := chain.Answer(context.Background(), "发烧怎么办", nil)
	require.NoError(t, err)

	assert.Empty(t, result.Chunks)
	assert.Equal(t, "仅凭已有知识作答", result.Answer)
}

func TestAnswerNilRetriever(t *testing.T) {
	gen := &llm.MockGenerator{Response: "答"}
	chain := &Chain{Generator: gen}

	result, err := chain.Answer(context.Background(), "发烧怎么办", nil)
	require.NoError(t, err)
	assert.Empty(t, result.Chunks)
}

func TestAnswerGeneratorError(t *testing.T) {
	gen := &llm.MockGenerator{
		Reply: func(string, string) (string, error) {
			return "", errors.New("model unavailable")
		},
	}
	chain := &Chain{Generator: gen}

	_, err := chain.Answer(context.Background(), "发烧怎么办", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestStoreRetriever(t *testing.T) {
	s, err := store.Create(filepath.Join(t.TempDir(), "corpus.db"))
	require.NoError(t, err)
	defer s.Close()

	embedder := &llm.MockEmbedder{}
	vec, err := embedder.EmbedQuery(context.Background(), "发烧怎么办")
	require.NoError(t, err)
	require.NoError(t, s.InsertChunks([]store.Chunk{
		{Text: "Q: 发烧怎么办\nA: 物理降温", Embedding: vec},
	}))

	retr := &StoreRetriever{Store: s, Embedder: embedder}
	chunks, err := retr.Retrieve(context.Background(), "发烧怎么办", 1)
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Q: 发烧怎么办\nA: 物理降温", chunks[0].Text)
	assert.InDelta(t, 1.0, chunks[0].Score, 1e-6)
}

func TestDirect(t *testing.T) {
	gen := &llm.MockGenerator{Response: "<think>思考</think>答案"}
	direct := &Direct{Generator: gen}

	answer, err := direct.Answer(context.Background(), "发烧怎么办", nil)
	require.NoError(t, err)

	assert.Equal(t, "答案", answer)
	require.Equal(t, 1, gen.CallCount())
	assert.Equal(t, BaselineSystemPrompt, gen.Calls[0].System)
}

func TestAssembleContext(t *testing.T) {
	assert.Empty(t, AssembleContext(nil))
	assert.Equal(t, "a\n\nb", AssembleContext([]store.Chunk{{Text: "a"}, {Text: "b"}}))
}

func TestStripThink(t *testing.T) {
	assert.Equal(t, "答案", StripThink("<think>推理\n多行</think>\n答案"))
	assert.Equal(t, "前 后", StripThink("前 <think>x</think>后"))
	assert.Equal(t, "无标签", StripThink("无标签"))
	assert.Empty(t, StripThink("<think>只有思考</think>"))
}
