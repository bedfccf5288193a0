package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tkuroda/mail-digest/internal/mailbox"
	"github.com/tkuroda/mail-digest/internal/summarize"
)

// Store persists the result of one pipeline run.
type Store interface {
	SaveRun(ctx context.Context, result *RunResult) error
}

// RunResult is the final output of one pipeline execution: the ordered
// fetched messages, a summary for every one of them, and counts.
type RunResult struct {
	Messages        []mailbox.Message
	Summaries       summarize.SummaryMap
	TotalMessages   int
	SummarizedCount int // genuine summaries, fallbacks excluded
}

// Runner orchestrates the fetch -> batch -> summarize -> persist
// pipeline. Batches are processed strictly in order with one generation
// call outstanding at a time, as a throttle against upstream rate
// limits.
type Runner struct {
	fetcher         mailbox.Fetcher
	generator       summarize.Generator
	parser          *summarize.Parser
	store           Store
	batchSize       int
	pace            time.Duration
	promptBodyLimit int
}

func New(f mailbox.Fetcher, g summarize.Generator, p *summarize.Parser, store Store, batchSize int, pace time.Duration, promptBodyLimit int) *Runner {
	return &Runner{
		fetcher:         f,
		generator:       g,
		parser:          p,
		store:           store,
		batchSize:       batchSize,
		pace:            pace,
		promptBodyLimit: promptBodyLimit,
	}
}

// Run executes the full pipeline once. A mailbox failure completes the
// run trivially with zero messages; a failed generation call marks its
// whole batch with the generation fallback and the run continues. The
// returned result always covers every fetched message.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	log.Printf("runner: starting pipeline (batch_size=%d)", r.batchSize)

	msgs, err := r.fetcher.Fetch(ctx)
	if err != nil {
		log.Printf("runner: fetch failed, completing with no messages: %v", err)
		msgs = nil
	}

	if len(msgs) == 0 {
		log.Println("runner: no messages in window, nothing to summarize")
		return &RunResult{Summaries: summarize.SummaryMap{}}, nil
	}

	batches := summarize.Split(msgs, r.batchSize)
	log.Printf("runner: summarizing %d messages in %d batches", len(msgs), len(batches))

	summaries := make(summarize.SummaryMap, len(msgs))
	for i, b := range batches {
		r.runBatch(ctx, b, summaries)

		if i < len(batches)-1 && r.pace > 0 {
			time.Sleep(r.pace)
		}
	}

	result := &RunResult{
		Messages:        msgs,
		Summaries:       summaries,
		TotalMessages:   len(msgs),
		SummarizedCount: countGenuine(summaries),
	}
	log.Printf("runner: pipeline done, %d/%d messages summarized", result.SummarizedCount, result.TotalMessages)

	if r.store != nil {
		if err := r.store.SaveRun(ctx, result); err != nil {
			return result, fmt.Errorf("runner: persisting run failed: %w", err)
		}
	}

	return result, nil
}

// runBatch summarizes one batch and merges its fragment into the global
// map. The merge is keyed by absolute position and never overwrites an
// entry another batch already produced.
func (r *Runner) runBatch(ctx context.Context, b summarize.Batch, summaries summarize.SummaryMap) {
	first, last := b.Start+1, b.Start+len(b.Messages)

	prompt := summarize.BuildPrompt(b, r.promptBodyLimit)

	raw, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		log.Printf("runner: batch %d-%d generation failed: %v", first, last, err)
		for n := first; n <= last; n++ {
			if _, ok := summaries[n]; !ok {
				summaries[n] = summarize.FallbackGenerationFailed
			}
		}
		return
	}

	fragment := r.parser.Parse(raw, b.Start, len(b.Messages))
	for n, s := range fragment {
		if _, ok := summaries[n]; !ok {
			summaries[n] = s
		}
	}
	log.Printf("runner: batch %d-%d summarized", first, last)
}

func countGenuine(summaries summarize.SummaryMap) int {
	count := 0
	for _, s := range summaries {
		if s != summarize.FallbackGenerationFailed && s != summarize.FallbackNotParsed {
			count++
		}
	}
	return count
}
