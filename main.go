package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/schema"

	"github.com/DearAJ/HuaAgent/pkg/batch"
	"github.com/DearAJ/HuaAgent/pkg/corpus"
	"github.com/DearAJ/HuaAgent/pkg/evaluate"
	"github.com/DearAJ/HuaAgent/pkg/llm"
	"github.com/DearAJ/HuaAgent/pkg/rag"
	"github.com/DearAJ/HuaAgent/pkg/store"
	"github.com/DearAJ/HuaAgent/pkg/textproc"
)

func main() {
	// .env is optional; flags and real env vars win
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "huaagent",
		Short: "Medical QA evaluation pipeline over a retrieval corpus",
		Long: "A CLI tool that builds a retrieval corpus from reviewed medical Q&A spreadsheets, " +
			"answers questions either directly or with retrieval-augmented generation via Ollama, " +
			"and scores the answers against ground truth with classical NLP metrics.",
	}

	rootCmd.AddCommand(createExtractCommand())
	rootCmd.AddCommand(createBuildCommand())
	rootCmd.AddCommand(createAnswerCommand())
	rootCmd.AddCommand(createBaselineCommand())
	rootCmd.AddCommand(createChatCommand())
	rootCmd.AddCommand(createEvaluateCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func defaultOllamaHost() string {
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		return host
	}
	return llm.DefaultHost
}

// modelTag reduces a model name like "koesn/llama3-openbiollm-8b:latest" to
// a token usable in a file name.
func modelTag(model string) string {
	tag := strings.SplitN(model, ":", 2)[0]
	return strings.ReplaceAll(tag, "/", "-")
}

func addRoleFlags(cmd *cobra.Command, roles *corpus.Roles) {
	cmd.Flags().StringVar(&roles.Question, "question-col", "", "Header name of the question column (default: column 1)")
	cmd.Flags().StringVar(&roles.Answer, "answer-col", "", "Header name of the answer column (default: column 2)")
	cmd.Flags().StringVar(&roles.Status, "status-col", "", "Header name of the review status column (default: column 3)")
	cmd.Flags().StringVar(&roles.Corrected, "corrected-col", "", "Header name of the corrected answer column (default: column 4)")
}

func createExtractCommand() *cobra.Command {
	var inputFile, outputFile string
	var maxRows int
	var roles corpus.Roles

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract QA pairs from a spreadsheet into a JSON dataset",
		Long:  "Read question/answer columns from an xlsx file and write them as a qa_data.json dataset for the answering stages.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(inputFile, outputFile, maxRows, roles)
		},
	}

	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "Input spreadsheet (.xlsx)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "qa_data.json", "Output dataset file")
	cmd.Flags().IntVar(&maxRows, "rows", 200, "Maximum number of data rows to extract (0 = all)")
	addRoleFlags(cmd, &roles)
	cmd.MarkFlagRequired("file")

	return cmd
}

func runExtract(inputFile, outputFile string, maxRows int, roles corpus.Roles) error {
	header, rows, err := corpus.ReadTable(inputFile)
	if err != nil {
		return err
	}
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	cols, err := corpus.ResolveColumns(header, roles)
	if err != nil {
		return err
	}

	records := corpus.Records(rows, cols)
	dataset := corpus.DatasetFromRecords(records, inputFile)
	if err := dataset.Save(outputFile); err != nil {
		return err
	}

	fmt.Printf("Extracted %d QA pairs to %s\n", len(records), outputFile)
	printDatasetStats(records)
	return nil
}

func printDatasetStats(records []corpus.QARecord) {
	if len(records) == 0 {
		return
	}

	var questionChars, answerChars int
	for _, r := range records {
		questionChars += len([]rune(r.Question))
		answerChars += len([]rune(r.Answer))
	}

	fmt.Printf("Average question length: %.1f characters\n", float64(questionChars)/float64(len(records)))
	fmt.Printf("Average answer length: %.1f characters\n", float64(answerChars)/float64(len(records)))
}

func createBuildCommand() *cobra.Command {
	var inputFile, corpusPath, embedModel, ollamaHost string
	var chunkSize, chunkOverlap int
	var roles corpus.Roles

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the retrieval corpus from a spreadsheet",
		Long: "Normalize QA rows, split them into overlapping chunks, generate embeddings and persist " +
			"the corpus. Skipped entirely when the corpus already exists.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(inputFile, corpusPath, embedModel, ollamaHost, chunkSize, chunkOverlap, roles)
		},
	}

	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "Input spreadsheet (.xlsx)")
	cmd.Flags().StringVarP(&corpusPath, "corpus", "c", "db/corpus_excel.db", "Corpus database path")
	cmd.Flags().StringVar(&embedModel, "embed-model", llm.DefaultEmbedModel, "Ollama embedding model")
	cmd.Flags().StringVar(&ollamaHost, "ollama-host", defaultOllamaHost(), "Ollama server host and port")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", textproc.DefaultChunkSize, "Maximum chunk length in characters")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", textproc.DefaultChunkOverlap, "Overlap between consecutive chunks in characters")
	addRoleFlags(cmd, &roles)
	cmd.MarkFlagRequired("file")

	return cmd
}

func runBuild(inputFile, corpusPath, embedModel, ollamaHost string, chunkSize, chunkOverlap int, roles corpus.Roles) error {
	embedder, err := llm.NewOllamaEmbedder(ollamaHost, embedModel)
	if err != nil {
		return err
	}

	builder := &corpus.Builder{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Embedder:     embedder,
		Progress: func(completed, total int) {
			printProgressBar("Embeddings", completed, total)
		},
	}

	result, err := builder.Build(context.Background(), corpusPath, inputFile, roles)
	if err != nil {
		return err
	}
	if result.Skipped {
		fmt.Println("Corpus already exists. No need to initialize.")
		return nil
	}

	fmt.Println()
	fmt.Printf("Created %d chunks from %d QA pairs in %s\n", result.Chunks, result.Records, corpusPath)
	fmt.Printf("Reviewed QA pairs: %d\n", result.Reviewed)
	fmt.Printf("QA pairs with corrections: %d\n", result.Corrected)
	return nil
}

func createAnswerCommand() *cobra.Command {
	var dataFile, corpusPath, outputFile, chatModel, embedModel, ollamaHost string
	var workers, topK int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "answer",
		Short: "Answer the dataset questions with retrieval-augmented generation",
		Long: "Answer every question in the dataset by retrieving the most similar corpus chunks " +
			"and generating from that context, writing one JSONL record per question.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputFile == "" {
				outputFile = fmt.Sprintf("%s_%s%s", modelTag(chatModel), modelTag(embedModel), evaluate.LogSuffix)
			}
			return runAnswer(dataFile, corpusPath, outputFile, chatModel, embedModel, ollamaHost, workers, topK, timeout)
		},
	}

	cmd.Flags().StringVarP(&dataFile, "data", "d", "qa_data.json", "QA dataset file")
	cmd.Flags().StringVarP(&corpusPath, "corpus", "c", "db/corpus_excel.db", "Corpus database path")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output answer log (default <chat>_<embed>_return.jsonl)")
	cmd.Flags().StringVarP(&chatModel, "model", "m", llm.DefaultChatModel, "Ollama chat model")
	cmd.Flags().StringVar(&embedModel, "embed-model", llm.DefaultEmbedModel, "Ollama embedding model")
	cmd.Flags().StringVar(&ollamaHost, "ollama-host", defaultOllamaHost(), "Ollama server host and port")
	cmd.Flags().IntVarP(&workers, "workers", "w", batch.DefaultWorkers, "Maximum number of concurrent workers")
	cmd.Flags().IntVarP(&topK, "top-k", "k", rag.DefaultTopK, "Number of chunks to retrieve per question")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-question generation timeout (0 = none)")

	return cmd
}

func runAnswer(dataFile, corpusPath, outputFile, chatModel, embedModel, ollamaHost string, workers, topK int, timeout time.Duration) error {
	dataset, err := corpus.LoadDataset(dataFile)
	if err != nil {
		return err
	}

	generator, err := llm.NewOllamaChat(ollamaHost, chatModel)
	if err != nil {
		return err
	}

	chain := &rag.Chain{Generator: generator, K: topK}
	if store.Exists(corpusPath) {
		db, err := store.Open(corpusPath)
		if err != nil {
			return err
		}
		defer db.Close()

		embedder, err := llm.NewOllamaEmbedder(ollamaHost, embedModel)
		if err != nil {
			return err
		}
		chain.Retriever = &rag.StoreRetriever{Store: db, Embedder: embedder}
	} else {
		fmt.Printf("Warning: corpus %s does not exist, answering with empty context\n", corpusPath)
	}

	answer := func(ctx context.Context, question string) (string, error) {
		result, err := chain.Answer(ctx, question, nil)
		if err != nil {
			return "", err
		}
		return result.Answer, nil
	}

	return runBatch(dataset, outputFile, workers, timeout, answer)
}

func createBaselineCommand() *cobra.Command {
	var dataFile, outputFile, chatModel, ollamaHost string
	var workers int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Answer the dataset questions directly, without retrieval",
		Long:  "Answer every question from the model's own knowledge, producing a baseline answer log for comparison.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputFile == "" {
				outputFile = modelTag(chatModel) + evaluate.LogSuffix
			}
			return runBaseline(dataFile, outputFile, chatModel, ollamaHost, workers, timeout)
		},
	}

	cmd.Flags().StringVarP(&dataFile, "data", "d", "qa_data.json", "QA dataset file")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output answer log (default <model>_return.jsonl)")
	cmd.Flags().StringVarP(&chatModel, "model", "m", llm.DefaultBaselineModel, "Ollama chat model")
	cmd.Flags().StringVar(&ollamaHost, "ollama-host", defaultOllamaHost(), "Ollama server host and port")
	cmd.Flags().IntVarP(&workers, "workers", "w", batch.DefaultWorkers, "Maximum number of concurrent workers")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-question generation timeout (0 = none)")

	return cmd
}

func runBaseline(dataFile, outputFile, chatModel, ollamaHost string, workers int, timeout time.Duration) error {
	dataset, err := corpus.LoadDataset(dataFile)
	if err != nil {
		return err
	}

	generator, err := llm.NewOllamaChat(ollamaHost, chatModel)
	if err != nil {
		return err
	}
	direct := &rag.Direct{Generator: generator}

	answer := func(ctx context.Context, question string) (string, error) {
		return direct.Answer(ctx, question, nil)
	}

	return runBatch(dataset, outputFile, workers, timeout, answer)
}

func runBatch(dataset *corpus.Dataset, outputFile string, workers int, timeout time.Duration, answer batch.AnswerFunc) error {
	tasks := make([]batch.Task, 0, len(dataset.QAPairs))
	for _, pair := range dataset.QAPairs {
		tasks = append(tasks, batch.Task{Question: pair.Question, GroundTruth: pair.Answer})
	}

	writer, err := batch.NewWriter(outputFile)
	if err != nil {
		return err
	}
	defer writer.Close()

	fmt.Printf("Answering %d questions with %d workers...\n", len(tasks), workers)

	runner := &batch.Runner{
		Workers: workers,
		Timeout: timeout,
		Progress: func(completed, total int) {
			printProgressBar("Answers", completed, total)
		},
	}
	if err := runner.Run(context.Background(), tasks, answer, writer); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Results saved to %s\n", outputFile)
	return nil
}

func createChatCommand() *cobra.Command {
	var corpusPath, chatModel, embedModel, ollamaHost string
	var topK int

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively against the corpus",
		Long:  "Multi-turn question answering over the retrieval corpus; follow-up questions are rewritten using the chat history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(corpusPath, chatModel, embedModel, ollamaHost, topK)
		},
	}

	cmd.Flags().StringVarP(&corpusPath, "corpus", "c", "db/corpus_excel.db", "Corpus database path")
	cmd.Flags().StringVarP(&chatModel, "model", "m", llm.DefaultChatModel, "Ollama chat model")
	cmd.Flags().StringVar(&embedModel, "embed-model", llm.DefaultEmbedModel, "Ollama embedding model")
	cmd.Flags().StringVar(&ollamaHost, "ollama-host", defaultOllamaHost(), "Ollama server host and port")
	cmd.Flags().IntVarP(&topK, "top-k", "k", rag.DefaultTopK, "Number of chunks to retrieve per question")

	return cmd
}

func runChat(corpusPath, chatModel, embedModel, ollamaHost string, topK int) error {
	db, err := store.Open(corpusPath)
	if err != nil {
		return err
	}
	defer db.Close()

	generator, err := llm.NewOllamaChat(ollamaHost, chatModel)
	if err != nil {
		return err
	}
	embedder, err := llm.NewOllamaEmbedder(ollamaHost, embedModel)
	if err != nil {
		return err
	}

	chain := &rag.Chain{
		Generator: generator,
		Retriever: &rag.StoreRetriever{Store: db, Embedder: embedder},
		K:         topK,
	}

	fmt.Println("你好，我是医疗问答AI! 请输入你的问题。(输入 exit 退出)")

	var history []schema.ChatMessage
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("你: ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "退出" {
			break
		}

		result, err := chain.Answer(context.Background(), question, history)
		if err != nil {
			fmt.Printf("AI: 抱歉，处理您的问题时出现了错误: %v\n", err)
			continue
		}

		fmt.Printf("AI: %s\n", result.Answer)
		history = append(history,
			schema.HumanChatMessage{Content: question},
			schema.AIChatMessage{Content: result.Answer},
		)
	}
	return scanner.Err()
}

func createEvaluateCommand() *cobra.Command {
	var inputDir, outputFile, chartFile string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score answer logs against their reference answers",
		Long: "Compute BLEU, ROUGE and string similarity for every *_return.jsonl log in a directory " +
			"and write an aggregate report plus a comparison chart.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(inputDir, outputFile, chartFile)
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input", "i", ".", "Directory containing *_return.jsonl answer logs")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "llm_tradition_nlp.json", "Aggregate report file")
	cmd.Flags().StringVar(&chartFile, "chart", "model_comparison.html", "Comparison chart file")

	return cmd
}

func runEvaluate(inputDir, outputFile, chartFile string) error {
	scores, err := evaluate.EvaluateDir(inputDir)
	if err != nil {
		return err
	}
	if len(scores) == 0 {
		fmt.Printf("No %s logs found in %s\n", "*"+evaluate.LogSuffix, inputDir)
		return nil
	}

	for _, s := range scores {
		fmt.Printf("%s: bleu=%.4f rouge=%.4f string_similarity=%.4f\n",
			s.Model, s.BleuScore, s.RougeScore, s.StringSimilarityScore)
	}

	if err := evaluate.WriteReport(scores, outputFile); err != nil {
		return err
	}
	if err := evaluate.RenderChart(scores, chartFile); err != nil {
		return err
	}

	fmt.Printf("Report saved to %s, chart saved to %s\n", outputFile, chartFile)
	return nil
}

func printProgressBar(prefix string, completed, total int) {
	width := 50
	percentage := float64(completed) / float64(total)
	filled := int(percentage * float64(width))

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	fmt.Printf("\r%s: [%s] %d/%d (%.1f%%)",
		prefix, bar, completed, total, percentage*100)
}
