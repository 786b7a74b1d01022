package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// QAPair is one entry of the intermediate QA dataset file.
type QAPair struct {
	ID       int            `json:"id"`
	Question string         `json:"question"`
	Answer   string         `json:"answer"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Dataset is the intermediate JSON document consumed by the answering and
// baseline stages.
type Dataset struct {
	Metadata map[string]any `json:"metadata"`
	QAPairs  []QAPair       `json:"qa_pairs"`
}

// DatasetFromRecords packages retained records into a dataset document.
func DatasetFromRecords(records []QARecord, source string) *Dataset {
	pairs := make([]QAPair, 0, len(records))
	for _, r := range records {
		pairs = append(pairs, QAPair{
			ID:       r.ID,
			Question: r.Question,
			Answer:   r.Answer,
			Metadata: map[string]any{
				"row_index":      r.SourceRowIndex,
				"status":         r.Status,
				"has_correction": r.HasCorrection,
			},
		})
	}

	return &Dataset{
		Metadata: map[string]any{
			"source":      filepath.Base(source),
			"created_at":  time.Now().Format(time.RFC3339),
			"total_pairs": len(pairs),
		},
		QAPairs: pairs,
	}
}

// LoadDataset reads a dataset document from disk.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &ds, nil
}

// Save writes the dataset document as indented JSON.
func (d *Dataset) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}
