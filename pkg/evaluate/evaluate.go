package evaluate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LogSuffix is the answer-log naming convention; the model name is the part
// before it.
const LogSuffix = "_return.jsonl"

// Sample pairs one generated response with its reference answer.
type Sample struct {
	Response  string
	Reference string
}

// ModelScore is the aggregate result for one answer log.
type ModelScore struct {
	Model                 string  `json:"model"`
	BleuScore             float64 `json:"bleu_score"`
	RougeScore            float64 `json:"rouge_score"`
	StringSimilarityScore float64 `json:"string_similarity_score"`
}

type logLine struct {
	UserInput         string `json:"user_input"`
	Response          string `json:"response"`
	Reference         string `json:"reference"`
	RetrievedContexts string `json:"retrieved_contexts"`
}

// LoadSamples reads a JSONL answer log. The reference is taken from the
// "reference" field when present, falling back to "retrieved_contexts",
// which carries the ground-truth answer by convention.
func LoadSamples(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open answer log: %w", err)
	}
	defer f.Close()

	var samples []Sample
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var line logLine
		if err := json.Unmarshal([]byte(text), &line); err != nil {
			return nil, fmt.Errorf("parse line %d of %s: %w", lineNo, path, err)
		}

		reference := line.Reference
		if reference == "" {
			reference = line.RetrievedContexts
		}
		samples = append(samples, Sample{Response: line.Response, Reference: reference})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read answer log: %w", err)
	}
	return samples, nil
}

// EvaluateFile scores one answer log. Each metric is the mean over all
// samples; a sample that cannot be scored contributes 0.
func EvaluateFile(path string) (*ModelScore, error) {
	samples, err := LoadSamples(path)
	if err != nil {
		return nil, err
	}

	score := &ModelScore{Model: modelName(path)}
	if len(samples) == 0 {
		return score, nil
	}

	var bleu, rouge, stringSim float64
	for _, s := range samples {
		bleu += BLEU(s.Response, s.Reference)
		rouge += RougeL(s.Response, s.Reference)
		stringSim += StringSimilarity(s.Response, s.Reference)
	}

	n := float64(len(samples))
	score.BleuScore = bleu / n
	score.RougeScore = rouge / n
	score.StringSimilarityScore = stringSim / n
	return score, nil
}

// EvaluateDir scores every answer log in dir, sorted by file name.
func EvaluateDir(dir string) ([]ModelScore, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+LogSuffix))
	if err != nil {
		return nil, fmt.Errorf("glob answer logs: %w", err)
	}
	sort.Strings(paths)

	scores := make([]ModelScore, 0, len(paths))
	for _, path := range paths {
		score, err := EvaluateFile(path)
		if err != nil {
			return nil, err
		}
		scores = append(scores, *score)
	}
	return scores, nil
}

// WriteReport saves the aggregate scores as an indented JSON array.
func WriteReport(scores []ModelScore, path string) error {
	data, err := json.MarshalIndent(scores, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func modelName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), LogSuffix)
}
