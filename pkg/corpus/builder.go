package corpus

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/tmc/langchaingo/schema"

	"github.com/DearAJ/HuaAgent/pkg/store"
	"github.com/DearAJ/HuaAgent/pkg/textproc"
)

// Embedder turns chunk texts into embedding vectors.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Builder turns a spreadsheet of QA rows into a persisted, embedded corpus.
type Builder struct {
	ChunkSize    int
	ChunkOverlap int
	Embedder     Embedder
	Progress     func(completed, total int)
}

// BuildResult summarizes one corpus build.
type BuildResult struct {
	Skipped   bool
	Records   int
	Chunks    int
	Reviewed  int
	Corrected int
}

// Documents formats retained records and splits them into chunks. Every
// chunk carries the full metadata of its originating record.
func Documents(records []QARecord, source string, chunkSize, chunkOverlap int) []schema.Document {
	docs := make([]schema.Document, 0, len(records))
	for _, r := range records {
		docs = append(docs, schema.Document{
			PageContent: r.Content(),
			Metadata:    r.Metadata(source),
		})
	}

	splitter := textproc.NewSplitter(
		textproc.WithChunkSize(chunkSize),
		textproc.WithChunkOverlap(chunkOverlap),
	)
	return textproc.SplitDocuments(splitter, docs)
}

// Build reads the source spreadsheet and persists an embedded corpus at
// corpusPath. When a corpus already exists there the build is skipped
// entirely; existence of the path is the only signal checked.
func (b *Builder) Build(ctx context.Context, corpusPath, sourcePath string, roles Roles) (*BuildResult, error) {
	if store.Exists(corpusPath) {
		return &BuildResult{Skipped: true}, nil
	}

	header, rows, err := ReadTable(sourcePath)
	if err != nil {
		return nil, err
	}
	cols, err := ResolveColumns(header, roles)
	if err != nil {
		return nil, err
	}

	records := Records(rows, cols)
	result := &BuildResult{Records: len(records)}
	for _, r := range records {
		if r.Status == StatusReviewed {
			result.Reviewed++
		}
		if r.HasCorrection {
			result.Corrected++
		}
	}

	docs := Documents(records, filepath.Base(sourcePath), b.ChunkSize, b.ChunkOverlap)
	result.Chunks = len(docs)

	chunks := make([]store.Chunk, 0, len(docs))
	for i, doc := range docs {
		vecs, err := b.Embedder.EmbedDocuments(ctx, []string{doc.PageContent})
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d: %w", i, err)
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("embed chunk %d: empty embedding batch", i)
		}
		chunks = append(chunks, store.Chunk{
			Text:      doc.PageContent,
			Metadata:  doc.Metadata,
			Embedding: vecs[0],
		})
		if b.Progress != nil {
			b.Progress(i+1, len(docs))
		}
	}

	db, err := store.Create(corpusPath)
	if err != nil {
		return nil, fmt.Errorf("create corpus: %w", err)
	}
	defer db.Close()

	if err := db.InsertChunks(chunks); err != nil {
		return nil, fmt.Errorf("persist chunks: %w", err)
	}

	return result, nil
}
