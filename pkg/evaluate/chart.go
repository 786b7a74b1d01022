package evaluate

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderChart writes an HTML line chart comparing models across the three
// metrics.
func RenderChart(scores []ModelScore, path string) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Model Performance on Traditional NLP Metrics",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "Score",
			Min:  0,
			Max:  1,
		}),
	)

	models := make([]string, 0, len(scores))
	bleu := make([]opts.LineData, 0, len(scores))
	rouge := make([]opts.LineData, 0, len(scores))
	stringSim := make([]opts.LineData, 0, len(scores))
	for _, s := range scores {
		models = append(models, s.Model)
		bleu = append(bleu, opts.LineData{Value: s.BleuScore})
		rouge = append(rouge, opts.LineData{Value: s.RougeScore})
		stringSim = append(stringSim, opts.LineData{Value: s.StringSimilarityScore})
	}

	line.SetXAxis(models).
		AddSeries("BLEU", bleu).
		AddSeries("ROUGE", rouge).
		AddSeries("String Similarity", stringSim)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	if err := line.Render(f); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
