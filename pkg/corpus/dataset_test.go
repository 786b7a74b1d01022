package corpus

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetRoundTrip(t *testing.T) {
	records := []QARecord{
		{ID: 2, Question: "发烧怎么办", Answer: "及时就医并退烧", Status: 1, HasCorrection: true, SourceRowIndex: 1},
		{ID: 5, Question: "头痛怎么办", Answer: "先休息", SourceRowIndex: 4},
	}

	dataset := DatasetFromRecords(records, "/data/智能辅助回答审核.xlsx")
	assert.Equal(t, "智能辅助回答审核.xlsx", dataset.Metadata["source"])
	assert.Equal(t, 2, dataset.Metadata["total_pairs"])
	require.Len(t, dataset.QAPairs, 2)
	// ids stay traceable to the source rows even when earlier rows were dropped
	assert.Equal(t, 2, dataset.QAPairs[0].ID)
	assert.Equal(t, 5, dataset.QAPairs[1].ID)

	path := filepath.Join(t.TempDir(), "qa_data.json")
	require.NoError(t, dataset.Save(path))

	loaded, err := LoadDataset(path)
	require.NoError(t, err)
	require.Len(t, loaded.QAPairs, 2)
	assert.Equal(t, "发烧怎么办", loaded.QAPairs[0].Question)
	assert.Equal(t, "及时就医并退烧", loaded.QAPairs[0].Answer)
}

func TestDatasetIDsSurviveRowFiltering(t *testing.T) {
	rows := [][]string{
		{"  ", "无"},
		{"发烧怎么办", "多喝水"},
	}
	records := Records(rows, Columns{Question: 0, Answer: 1, Status: -1, Corrected: -1})
	require.Len(t, records, 1)

	dataset := DatasetFromRecords(records, "qa.xlsx")
	require.Len(t, dataset.QAPairs, 1)
	assert.Equal(t, 2, dataset.QAPairs[0].ID)
	assert.Equal(t, 1, dataset.QAPairs[0].Metadata["row_index"])
}

func TestDatasetSaveKeepsExpectedShape(t *testing.T) {
	dataset := DatasetFromRecords([]QARecord{{ID: 1, Question: "q", Answer: "a"}}, "qa.xlsx")

	path := filepath.Join(t.TempDir(), "qa_data.json")
	require.NoError(t, dataset.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "metadata")
	assert.Contains(t, doc, "qa_pairs")
}

func TestLoadDatasetMissing(t *testing.T) {
	_, err := LoadDataset(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadDatasetCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadDataset(path)
	assert.ErrorIs(t, err, ErrParse)
}
