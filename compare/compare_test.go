package compare

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/ragduel"
)

type stubAnswerer struct {
	method ragduel.Method
	err    error
	delay  time.Duration
	// failFor degrades specific questions.
	failFor map[string]error

	mu    sync.Mutex
	calls []string
}

func (s *stubAnswerer) Answer(ctx context.Context, question string) (*ragduel.Answer, error) {
	s.mu.Lock()
	s.calls = append(s.calls, question)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if err, ok := s.failFor[question]; ok {
		return nil, err
	}
	return &ragduel.Answer{
		Method: s.method,
		Text:   fmt.Sprintf("%s answer to %q", s.method, question),
		Provenance: ragduel.Provenance{
			DocumentIDs: docIDsFor(s.method),
			Query:       queryFor(s.method),
		},
	}, nil
}

func docIDsFor(m ragduel.Method) []string {
	if m == ragduel.MethodRetrieval {
		return []string{"d1"}
	}
	return nil
}

func queryFor(m ragduel.Method) string {
	if m == ragduel.MethodStructured {
		return "MATCH (n) RETURN n.name"
	}
	return ""
}

type stubJudge struct {
	verdict *ragduel.Verdict
	err     error
	errFor  map[string]error

	mu   sync.Mutex
	seen []judgedPair
}

type judgedPair struct {
	question      string
	first, second *ragduel.Answer
}

func (j *stubJudge) Judge(ctx context.Context, question string, first, second *ragduel.Answer) (*ragduel.Verdict, error) {
	j.mu.Lock()
	j.seen = append(j.seen, judgedPair{question, first, second})
	j.mu.Unlock()

	if err, ok := j.errFor[question]; ok {
		return nil, err
	}
	if j.err != nil {
		return nil, j.err
	}
	if j.verdict != nil {
		return j.verdict, nil
	}
	return &ragduel.Verdict{Winner: ragduel.WinnerTie, Confidence: ragduel.ConfidenceLow}, nil
}

func newOrchestrator(judge ragduel.Judge, cfg ragduel.Config) (*Orchestrator, *stubAnswerer, *stubAnswerer) {
	retrieval := &stubAnswerer{method: ragduel.MethodRetrieval}
	structured := &stubAnswerer{method: ragduel.MethodStructured}
	return New(retrieval, structured, judge, cfg), retrieval, structured
}

func TestCompareJoinsBothAnswers(t *testing.T) {
	judge := &stubJudge{verdict: &ragduel.Verdict{Winner: ragduel.WinnerSecond, Confidence: ragduel.ConfidenceHigh}}
	o, _, _ := newOrchestrator(judge, ragduel.DefaultConfig())

	record, err := o.Compare(context.Background(), "who collaborated?")
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "who collaborated?", record.Question)
	assert.Equal(t, ragduel.MethodRetrieval, record.Retrieval.Method)
	assert.Equal(t, ragduel.MethodStructured, record.Structured.Method)
	assert.Equal(t, ragduel.WinnerSecond, record.Verdict.Winner)
	assert.False(t, record.Failed)
	assert.False(t, record.CreatedAt.IsZero())

	// Each answer's provenance belongs to its own method.
	assert.Equal(t, []string{"d1"}, record.Retrieval.Provenance.DocumentIDs)
	assert.Empty(t, record.Retrieval.Provenance.Query)
	assert.Equal(t, "MATCH (n) RETURN n.name", record.Structured.Provenance.Query)
	assert.Empty(t, record.Structured.Provenance.DocumentIDs)
}

func TestCompareDegradesFailedSide(t *testing.T) {
	judge := &stubJudge{}
	retrieval := &stubAnswerer{method: ragduel.MethodRetrieval}
	structured := &stubAnswerer{method: ragduel.MethodStructured, err: errors.New("graph down")}
	o := New(retrieval, structured, judge, ragduel.DefaultConfig())

	record, err := o.Compare(context.Background(), "q")
	require.NoError(t, err)

	require.Len(t, judge.seen, 1)
	assert.True(t, judge.seen[0].second.Degraded)
	assert.Equal(t, "graph down", judge.seen[0].second.FailureReason)
	assert.True(t, record.Retrieval.HasText())
}

func TestCompareJudgingFailure(t *testing.T) {
	judge := &stubJudge{err: &ragduel.JudgingError{Attempts: 3, Err: errors.New("nope")}}
	o, _, _ := newOrchestrator(judge, ragduel.DefaultConfig())

	record, err := o.Compare(context.Background(), "q")
	assert.Nil(t, record)

	var jerr *ragduel.JudgingError
	require.ErrorAs(t, err, &jerr)
}

func TestCompareHonorsCancellation(t *testing.T) {
	judge := &stubJudge{}
	retrieval := &stubAnswerer{method: ragduel.MethodRetrieval, delay: time.Second}
	structured := &stubAnswerer{method: ragduel.MethodStructured, delay: time.Second}
	o := New(retrieval, structured, judge, ragduel.DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	record, err := o.Compare(ctx, "q")
	assert.Nil(t, record)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, judge.seen)
}

func TestCompareManyPreservesOrder(t *testing.T) {
	judge := &stubJudge{}
	cfg := ragduel.DefaultConfig()
	cfg.MaxConcurrent = 4

	retrieval := &stubAnswerer{method: ragduel.MethodRetrieval, delay: 5 * time.Millisecond}
	structured := &stubAnswerer{method: ragduel.MethodStructured}
	o := New(retrieval, structured, judge, cfg)

	questions := []string{"q0", "q1", "q2", "q3", "q4", "q5", "q6", "q7"}
	var got []string
	for record := range o.CompareMany(context.Background(), questions) {
		got = append(got, record.Question)
	}
	assert.Equal(t, questions, got)
}

func TestCompareManyIsolatesFailures(t *testing.T) {
	judge := &stubJudge{errFor: map[string]error{
		"q1": &ragduel.JudgingError{Attempts: 3, Err: errors.New("unparsable")},
	}}
	o, _, _ := newOrchestrator(judge, ragduel.DefaultConfig())

	var records []*ragduel.ComparisonRecord
	for record := range o.CompareMany(context.Background(), []string{"q0", "q1", "q2"}) {
		records = append(records, record)
	}

	require.Len(t, records, 3)
	assert.False(t, records[0].Failed)
	assert.True(t, records[1].Failed)
	assert.Contains(t, records[1].FailureReason, "judging failed")
	// The failed record still carries both computed answers.
	assert.NotNil(t, records[1].Retrieval)
	assert.NotNil(t, records[1].Structured)
	assert.Nil(t, records[1].Verdict)
	assert.False(t, records[2].Failed)
}

func TestCompareManyIsLazyAndStoppable(t *testing.T) {
	judge := &stubJudge{}
	cfg := ragduel.DefaultConfig()
	cfg.MaxConcurrent = 1

	retrieval := &stubAnswerer{method: ragduel.MethodRetrieval}
	structured := &stubAnswerer{method: ragduel.MethodStructured}
	o := New(retrieval, structured, judge, cfg)

	count := 0
	for range o.CompareMany(context.Background(), []string{"q0", "q1", "q2", "q3"}) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestCompareManyIsRestartable(t *testing.T) {
	judge := &stubJudge{}
	o, retrieval, _ := newOrchestrator(judge, ragduel.DefaultConfig())

	seq := o.CompareMany(context.Background(), []string{"q0", "q1"})
	for range seq {
	}
	for range seq {
	}

	retrieval.mu.Lock()
	defer retrieval.mu.Unlock()
	assert.Len(t, retrieval.calls, 4)
}

func TestCompareManyRespectsConcurrencyBound(t *testing.T) {
	var active, peak atomic.Int32
	judge := &stubJudge{}
	cfg := ragduel.DefaultConfig()
	cfg.MaxConcurrent = 2

	gate := &gatedAnswerer{method: ragduel.MethodRetrieval, active: &active, peak: &peak}
	structured := &stubAnswerer{method: ragduel.MethodStructured}
	o := New(gate, structured, judge, cfg)

	for range o.CompareMany(context.Background(), []string{"a", "b", "c", "d", "e", "f"}) {
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

type gatedAnswerer struct {
	method ragduel.Method
	active *atomic.Int32
	peak   *atomic.Int32
}

func (g *gatedAnswerer) Answer(ctx context.Context, question string) (*ragduel.Answer, error) {
	n := g.active.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	g.active.Add(-1)
	return &ragduel.Answer{Method: g.method, Text: "x"}, nil
}

func TestCollectStats(t *testing.T) {
	verdict := func(first, second int, winner ragduel.Winner) *ragduel.Verdict {
		return &ragduel.Verdict{
			Winner: winner,
			First:  ragduel.CriterionScores{Accuracy: first, Completeness: first, Precision: first, Verifiability: first},
			Second: ragduel.CriterionScores{Accuracy: second, Completeness: second, Precision: second, Verifiability: second},
		}
	}
	// A degraded-side shortcut verdict: the winner is decided but no criterion
	// scoring happened, so it must count as a win without diluting the means.
	shortcut := &ragduel.ComparisonRecord{
		Retrieval:  &ragduel.Answer{Method: ragduel.MethodRetrieval, Text: "x"},
		Structured: ragduel.NoAnswer(ragduel.MethodStructured, "graph down"),
		Verdict:    &ragduel.Verdict{Winner: ragduel.WinnerFirst, Confidence: ragduel.ConfidenceHigh},
		Elapsed:    time.Second,
	}
	records := []*ragduel.ComparisonRecord{
		{Verdict: verdict(8, 4, ragduel.WinnerFirst), Elapsed: time.Second},
		{Verdict: verdict(4, 8, ragduel.WinnerSecond), Elapsed: time.Second},
		{Verdict: verdict(6, 6, ragduel.WinnerTie), Elapsed: time.Second},
		{Failed: true, FailureReason: "judging failed"},
		shortcut,
	}

	stats := CollectStats(func(yield func(*ragduel.ComparisonRecord) bool) {
		for _, r := range records {
			if !yield(r) {
				return
			}
		}
	})

	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.RetrievalWins)
	assert.Equal(t, 1, stats.StructuredWins)
	assert.Equal(t, 1, stats.Ties)
	// Means cover only the three fully scored questions.
	assert.InDelta(t, 6.0, stats.MeanRetrieval.Accuracy, 1e-9)
	assert.InDelta(t, 6.0, stats.MeanStructured.Accuracy, 1e-9)
	// Gaps 16, 16, 0 over three scored questions.
	assert.InDelta(t, 32.0/3.0, stats.MeanGap, 1e-9)
	assert.Equal(t, 4*time.Second, stats.TotalElapsed)
	assert.Contains(t, stats.String(), "retrieval 2, structured 1, ties 1")
}
