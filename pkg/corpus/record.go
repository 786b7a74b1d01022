package corpus

import (
	"fmt"
	"strconv"
	"strings"
)

// StatusReviewed marks a row whose answer has been reviewed by a doctor.
const StatusReviewed = 1

// QARecord is one normalized question-answer unit taken from a source row.
type QARecord struct {
	ID             int
	Question       string
	Answer         string
	Status         int
	HasCorrection  bool
	SourceRowIndex int
}

// Content renders the record in the conversational form the corpus is
// embedded and retrieved in.
func (r QARecord) Content() string {
	return fmt.Sprintf("Q: %s\nA: %s", r.Question, r.Answer)
}

// Metadata returns the record's full metadata as stored on every chunk
// derived from it.
func (r QARecord) Metadata(source string) map[string]any {
	return map[string]any{
		"source":         source,
		"row_index":      r.SourceRowIndex,
		"question":       r.Question,
		"answer":         r.Answer,
		"status":         r.Status,
		"has_correction": r.HasCorrection,
	}
}

// Records converts raw rows into retained QARecords. Rows with an empty
// question or answer after trimming are dropped. When a row is reviewed and
// carries a non-empty corrected answer, the corrected answer replaces the
// original one.
func Records(rows [][]string, cols Columns) []QARecord {
	var records []QARecord
	for i, row := range rows {
		question := strings.TrimSpace(cell(row, cols.Question))
		answer := strings.TrimSpace(cell(row, cols.Answer))
		if question == "" || answer == "" {
			continue
		}

		status := parseStatus(cell(row, cols.Status))
		corrected := ""
		if cols.Corrected >= 0 {
			corrected = strings.TrimSpace(cell(row, cols.Corrected))
		}
		if status == StatusReviewed && corrected != "" {
			answer = corrected
		}

		records = append(records, QARecord{
			ID:             i + 1,
			Question:       question,
			Answer:         answer,
			Status:         status,
			HasCorrection:  corrected != "",
			SourceRowIndex: i,
		})
	}
	return records
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// parseStatus reads the review status flag. Anything that does not parse to
// an integer counts as unreviewed.
func parseStatus(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return int(f)
	}
	return 0
}
