package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Record is one line of the answer log. RetrievedContexts carries the
// ground-truth answer the scoring stage reads as its reference, not the
// chunks that were retrieved; the field name is kept for compatibility with
// existing logs.
type Record struct {
	UserInput         string `json:"user_input"`
	Response          string `json:"response"`
	RetrievedContexts string `json:"retrieved_contexts"`
}

// Writer appends records as newline-delimited JSON, syncing after every
// record so an interrupted run still leaves a readable log.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// NewWriter opens the log file at path for appending, creating it if it does
// not exist. Records from a previous run are kept.
func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output log: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &Writer{f: f, enc: enc}, nil
}

// Write appends one record and flushes it to disk.
func (w *Writer) Write(record Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(record); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return w.f.Sync()
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.f.Close()
}
