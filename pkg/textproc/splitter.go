package textproc

import (
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/schema"
)

// DefaultChunkSize is the default maximum chunk length in characters.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the default number of characters shared between
// consecutive chunks of the same document.
const DefaultChunkOverlap = 50

// DefaultSeparators lists split boundaries from most to least preferred:
// paragraph break, line break, sentence-ending punctuation, then generic
// punctuation. The trailing empty string is a hard character-level cut of
// last resort.
var DefaultSeparators = []string{"\n\n", "\n", "。", "!", "?", ";", ",", "、", ""}

// Splitter splits text into bounded, overlapping chunks. It walks the
// separator list in order and recurses with the remaining separators on any
// piece that is still too long.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithChunkOverlap sets the overlap between consecutive chunks in characters.
func WithChunkOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.chunkOverlap = overlap
		}
	}
}

// WithSeparators replaces the separator preference list.
func WithSeparators(separators []string) Option {
	return func(s *Splitter) {
		if len(separators) > 0 {
			s.separators = separators
		}
	}
}

// NewSplitter creates a Splitter with the given options.
func NewSplitter(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		separators:   DefaultSeparators,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Overlap must leave room for the chunk to advance
	if s.chunkOverlap >= s.chunkSize {
		s.chunkOverlap = s.chunkSize / 4
	}

	return s
}

// Split breaks text into chunks of at most the configured size. A piece that
// contains none of the separators is returned whole even when it exceeds the
// limit.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	return s.split(text, s.separators)
}

// SplitDocuments splits each document's content and copies the full source
// metadata onto every resulting chunk.
func SplitDocuments(s *Splitter, docs []schema.Document) []schema.Document {
	var out []schema.Document
	for _, doc := range docs {
		for _, piece := range s.Split(doc.PageContent) {
			meta := make(map[string]any, len(doc.Metadata))
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			out = append(out, schema.Document{
				PageContent: piece,
				Metadata:    meta,
			})
		}
	}
	return out
}

func (s *Splitter) split(text string, separators []string) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}

	sepIdx := -1
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			sepIdx = i
			break
		}
	}

	if sepIdx == -1 {
		// indivisible unit, emit whole
		return []string{text}
	}
	if separators[sepIdx] == "" {
		return s.hardSplit(text)
	}

	sep := separators[sepIdx]
	rest := separators[sepIdx+1:]

	var final []string
	var pending []string
	for _, part := range splitKeep(text, sep) {
		if utf8.RuneCountInString(part) > s.chunkSize {
			if len(pending) > 0 {
				final = append(final, s.merge(pending)...)
				pending = nil
			}
			final = append(final, s.split(part, rest)...)
			continue
		}
		pending = append(pending, part)
	}
	if len(pending) > 0 {
		final = append(final, s.merge(pending)...)
	}
	return final
}

// merge greedily joins parts into chunks up to chunkSize, carrying the tail
// of each emitted chunk into the next one as overlap.
func (s *Splitter) merge(parts []string) []string {
	var out []string
	var window []string
	total := 0

	for _, part := range parts {
		n := utf8.RuneCountInString(part)
		if total+n > s.chunkSize && len(window) > 0 {
			out = append(out, strings.Join(window, ""))
			for len(window) > 0 && (total > s.chunkOverlap || total+n > s.chunkSize) {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}
		window = append(window, part)
		total += n
	}

	if len(window) > 0 {
		out = append(out, strings.Join(window, ""))
	}
	return out
}

// hardSplit cuts text into chunkSize-rune windows stepping by
// chunkSize-chunkOverlap. Used only when the empty separator is reached.
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	step := s.chunkSize - s.chunkOverlap
	if step <= 0 {
		step = s.chunkSize
	}

	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// splitKeep splits text on sep, keeping the separator attached to the
// preceding piece so that joining the pieces reproduces the input exactly.
func splitKeep(text, sep string) []string {
	var parts []string
	for {
		i := strings.Index(text, sep)
		if i < 0 {
			break
		}
		parts = append(parts, text[:i+len(sep)])
		text = text[i+len(sep):]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
