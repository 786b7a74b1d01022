package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/mattn/go-sqlite3"
)

// Chunk is one retrievable unit of a corpus. Score is only populated on
// chunks returned from Search.
type Chunk struct {
	ID        int
	Text      string
	Metadata  map[string]any
	Embedding []float32
	Score     float64
}

// Store is a named, file-backed vector index over SQLite. It is written once
// at build time and read-only afterwards.
type Store struct {
	conn *sql.DB
	path string
}

// Exists reports whether a corpus has already been built at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Create initializes a new corpus database at path.
func Create(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create corpus directory: %w", err)
		}
	}

	s, err := open(path)
	if err != nil {
		return nil, err
	}
	if err := s.setupTables(); err != nil {
		s.conn.Close()
		return nil, fmt.Errorf("failed to setup corpus tables: %w", err)
	}
	return s, nil
}

// Open opens an existing corpus database.
func Open(path string) (*Store, error) {
	if !Exists(path) {
		return nil, fmt.Errorf("corpus does not exist at %s", path)
	}
	return open(path)
}

func open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus database: %w", err)
	}
	return &Store{conn: conn, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the corpus database location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) setupTables() error {
	query := `CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL,
		metadata TEXT NOT NULL,
		embedding TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := s.conn.Exec(query); err != nil {
		return fmt.Errorf("failed to execute query: %s, error: %w", query, err)
	}
	return nil
}

// InsertChunks stores chunks in a single transaction, preserving their order.
func (s *Store) InsertChunks(chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO chunks (text, metadata, embedding) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for chunk %d: %w", i, err)
		}
		embeddingJSON, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding for chunk %d: %w", i, err)
		}
		if _, err := stmt.Exec(chunk.Text, string(metadataJSON), string(embeddingJSON)); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Search returns up to k chunks ordered by descending cosine similarity to
// queryVec. Ties keep insertion order. An empty store yields an empty result.
func (s *Store) Search(queryVec []float32, k int) ([]Chunk, error) {
	chunks, err := s.allChunks()
	if err != nil {
		return nil, err
	}

	for i := range chunks {
		score, err := CosineSimilarity(queryVec, chunks[i].Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to score chunk %d: %w", chunks[i].ID, err)
		}
		chunks[i].Score = score
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})

	if k > 0 && len(chunks) > k {
		chunks = chunks[:k]
	}
	return chunks, nil
}

func (s *Store) allChunks() ([]Chunk, error) {
	rows, err := s.conn.Query(`SELECT id, text, metadata, embedding FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var chunk Chunk
		var metadataJSON, embeddingJSON string

		if err := rows.Scan(&chunk.ID, &chunk.Text, &metadataJSON, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata for chunk %d: %w", chunk.ID, err)
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &chunk.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding for chunk %d: %w", chunk.ID, err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return chunks, nil
}
