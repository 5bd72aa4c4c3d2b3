// Package compare orchestrates the duel: run both answerers on the same
// question, join their answers, and pass the pair to the judge. The first
// answer is always the retrieval one and the second the structured one.
package compare

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/smallnest/ragduel"
	"github.com/smallnest/ragduel/log"
)

// Orchestrator runs single comparisons and batches. An answerer failure
// degrades that side; only a judging failure fails the question.
type Orchestrator struct {
	retrieval  ragduel.Answerer
	structured ragduel.Answerer
	judge      ragduel.Judge
	cfg        ragduel.Config
	limiter    *rate.Limiter
}

// New creates an orchestrator. Config.RateLimit > 0 installs a shared rate
// limiter over batch comparisons.
func New(retrieval, structured ragduel.Answerer, judge ragduel.Judge, cfg ragduel.Config) *Orchestrator {
	o := &Orchestrator{
		retrieval:  retrieval,
		structured: structured,
		judge:      judge,
		cfg:        cfg,
	}
	if cfg.RateLimit > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return o
}

// Compare answers the question both ways in parallel and judges the pair.
// A side that fails outright is replaced by an explicit no-answer marker;
// the comparison still completes. A judging failure or context cancellation
// returns an error and no record.
func (o *Orchestrator) Compare(ctx context.Context, question string) (*ragduel.ComparisonRecord, error) {
	record, err := o.compare(ctx, question)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// compare also returns a Failed-marked record alongside a judging error, so
// batch mode can keep the answers that were already computed.
func (o *Orchestrator) compare(ctx context.Context, question string) (*ragduel.ComparisonRecord, error) {
	start := time.Now()

	var first, second *ragduel.Answer
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		first = o.answerSide(gctx, o.retrieval, ragduel.MethodRetrieval, question)
		return nil
	})
	g.Go(func() error {
		second = o.answerSide(gctx, o.structured, ragduel.MethodStructured, question)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record := &ragduel.ComparisonRecord{
		ID:         uuid.NewString(),
		Question:   question,
		Retrieval:  first,
		Structured: second,
		CreatedAt:  time.Now(),
	}

	verdict, err := o.judge.Judge(ctx, question, first, second)
	if err != nil {
		record.Failed = true
		record.FailureReason = err.Error()
		record.Elapsed = time.Since(start)
		return record, err
	}

	record.Verdict = verdict
	record.Elapsed = time.Since(start)
	return record, nil
}

// answerSide never returns nil: an answerer error becomes the no-answer
// marker so the other side and the judge proceed regardless.
func (o *Orchestrator) answerSide(ctx context.Context, answerer ragduel.Answerer, method ragduel.Method, question string) *ragduel.Answer {
	answer, err := answerer.Answer(ctx, question)
	if err != nil {
		log.Warn("%s answerer failed for %q: %v", method, question, err)
		return ragduel.NoAnswer(method, err.Error())
	}
	if answer == nil {
		return ragduel.NoAnswer(method, "answerer returned no answer")
	}
	return answer
}

// CompareMany compares every question over a bounded worker pool and yields
// records in input order. The sequence is lazy: records are yielded as soon
// as their turn arrives while later questions are still being compared, and
// breaking out of the range stops the remaining work. Ranging over the
// sequence again restarts the batch.
//
// A question whose judging fails yields a record marked Failed; cancellation
// ends the sequence without a partial record.
func (o *Orchestrator) CompareMany(ctx context.Context, questions []string) iter.Seq[*ragduel.ComparisonRecord] {
	return func(yield func(*ragduel.ComparisonRecord) bool) {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		results := make([]chan *ragduel.ComparisonRecord, len(questions))
		for i := range results {
			results[i] = make(chan *ragduel.ComparisonRecord, 1)
		}

		workers := o.cfg.MaxConcurrent
		if workers < 1 {
			workers = 1
		}
		var g errgroup.Group
		g.SetLimit(workers)

		go func() {
			defer g.Wait()
			for i, question := range questions {
				if o.limiter != nil {
					if err := o.limiter.Wait(runCtx); err != nil {
						close(results[i])
						continue
					}
				}
				ch, q := results[i], question
				g.Go(func() error {
					record, err := o.compare(runCtx, q)
					if err != nil && (record == nil || runCtx.Err() != nil) {
						// Cancelled; no partial record.
						close(ch)
						return nil
					}
					ch <- record
					return nil
				})
			}
		}()

		for i := range results {
			select {
			case record, ok := <-results[i]:
				if !ok || !yield(record) {
					return
				}
			case <-runCtx.Done():
				return
			}
		}
	}
}
