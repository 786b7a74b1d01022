// Package batch fans independent question-answering tasks out over a
// bounded worker pool and streams each result to an append-only JSONL log
// as it completes.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultWorkers is the worker-pool ceiling used when none is configured.
const DefaultWorkers = 32

// Task is one question to answer, paired with the ground-truth answer the
// scoring stage compares against.
type Task struct {
	Question    string
	GroundTruth string
}

// AnswerFunc produces the answer for one question.
type AnswerFunc func(ctx context.Context, question string) (string, error)

// Runner dispatches tasks across a fixed pool of workers. A failed task is
// converted into an error record; it never blocks or cancels sibling work.
type Runner struct {
	Workers  int
	Timeout  time.Duration
	Progress func(completed, total int)
}

// Run answers every task and writes exactly one record per task to w, in
// completion order. The returned error reports writer failures only;
// per-task generation failures are recorded inline.
func (r *Runner) Run(ctx context.Context, tasks []Task, answer AnswerFunc, w *Writer) error {
	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(tasks) && len(tasks) > 0 {
		workers = len(tasks)
	}

	jobs := make(chan Task, len(tasks))
	results := make(chan Record, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				results <- r.process(ctx, task, answer)
			}
		}()
	}

	for _, task := range tasks {
		jobs <- task
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var writeErr error
	completed := 0
	total := len(tasks)

	for record := range results {
		if err := w.Write(record); err != nil && writeErr == nil {
			writeErr = fmt.Errorf("write record: %w", err)
		}
		completed++
		if r.Progress != nil {
			r.Progress(completed, total)
		}
	}
	return writeErr
}

func (r *Runner) process(ctx context.Context, task Task, answer AnswerFunc) Record {
	callCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	response, err := answer(callCtx, task.Question)
	if err != nil {
		response = fmt.Sprintf("Error: %v", err)
	}

	return Record{
		UserInput:         task.Question,
		Response:          response,
		RetrievedContexts: task.GroundTruth,
	}
}
