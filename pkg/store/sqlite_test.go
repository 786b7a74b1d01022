package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Create(filepath.Join(t.TempDir(), "db", "corpus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.db")
	assert.False(t, Exists(path))

	s, err := Create(path)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, Exists(path))
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}

func TestInsertAndCount(t *testing.T) {
	s := newTestStore(t)

	err := s.InsertChunks([]Chunk{
		{Text: "Q: 发烧怎么办\nA: 及时就医并退烧", Metadata: map[string]any{"row_index": 0}, Embedding: []float32{1, 0}},
		{Text: "Q: 头痛怎么办\nA: 先休息", Metadata: map[string]any{"row_index": 1}, Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestInsertChunksEmpty(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.InsertChunks(nil))

	count, err := s.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSearchOrdersBySimilarity(t *testing.T) {
	s := newTestStore(t)

	err := s.InsertChunks([]Chunk{
		{Text: "exact", Embedding: []float32{1, 0}},
		{Text: "orthogonal", Embedding: []float32{0, 1}},
		{Text: "close", Embedding: []float32{0.9, 0.1}},
	})
	require.NoError(t, err)

	results, err := s.Search([]float32{1, 0}, 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Text)
	assert.Equal(t, "close", results[1].Text)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	s := newTestStore(t)

	err := s.InsertChunks([]Chunk{
		{Text: "first", Embedding: []float32{1, 0}},
		{Text: "second", Embedding: []float32{2, 0}},
	})
	require.NoError(t, err)

	results, err := s.Search([]float32{1, 0}, 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Text)
	assert.Equal(t, "second", results[1].Text)
}

func TestSearchEmptyStore(t *testing.T) {
	s := newTestStore(t)

	results, err := s.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)

	err := s.InsertChunks([]Chunk{{
		Text: "Q: 发烧怎么办\nA: 及时就医并退烧",
		Metadata: map[string]any{
			"question":       "发烧怎么办",
			"answer":         "及时就医并退烧",
			"has_correction": true,
		},
		Embedding: []float32{1, 0},
	}})
	require.NoError(t, err)

	results, err := s.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "发烧怎么办", results[0].Metadata["question"])
	assert.Equal(t, "及时就医并退烧", results[0].Metadata["answer"])
	assert.Equal(t, true, results[0].Metadata["has_correction"])
}

func TestCosineSimilarity(t *testing.T) {
	exact, err := CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, exact, 1e-9)

	orthogonal, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, orthogonal, 1e-9)

	zero, err := CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Zero(t, zero)

	_, err = CosineSimilarity([]float32{1}, []float32{1, 2})
	assert.Error(t, err)
}
