// Package arbiter implements the judging step: score two answers to the same
// question on fixed criteria and adjudicate. The winner and the confidence
// are computed locally from the scores, never taken from the judge's
// self-report, so verdicts are comparable across invocations.
package arbiter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/smallnest/ragduel"
	"github.com/smallnest/ragduel/log"
)

const judgeSystemPrompt = "You are an expert AI judge evaluating different question-answering systems. Be objective, thorough, and fair in your evaluations."

// highConfidenceGap is the aggregate score gap above which a verdict is high
// confidence. Gaps above TieThreshold but at most this are medium.
const highConfidenceGap = 6

// Arbiter scores answer pairs with an LLM and derives the verdict. Judging
// calls are retried with exponential backoff; once the attempts run out the
// question fails with a JudgingError rather than a fabricated verdict.
type Arbiter struct {
	llm ragduel.LLM
	cfg ragduel.Config
}

var _ ragduel.Judge = (*Arbiter)(nil)

// New creates an arbiter.
func New(llm ragduel.LLM, cfg ragduel.Config) *Arbiter {
	return &Arbiter{llm: llm, cfg: cfg}
}

// judgment is the JSON shape elicited from the judge. Winner and confidence
// are deliberately absent; they are derived from the scores.
type judgment struct {
	First            ragduel.CriterionScores `json:"first"`
	Second           ragduel.CriterionScores `json:"second"`
	Reasoning        string                  `json:"reasoning"`
	StrengthsFirst   []string                `json:"strengths_first"`
	StrengthsSecond  []string                `json:"strengths_second"`
	WeaknessesFirst  []string                `json:"weaknesses_first"`
	WeaknessesSecond []string                `json:"weaknesses_second"`
	Recommendation   string                  `json:"recommendation"`
}

// Judge scores both answers and adjudicates. When a side carries the
// no-answer marker the verdict is decided without an LLM call: the usable
// side wins, and two unusable sides tie.
func (a *Arbiter) Judge(ctx context.Context, question string, first, second *ragduel.Answer) (*ragduel.Verdict, error) {
	if verdict, decided := a.degradedShortcut(first, second); decided {
		return verdict, nil
	}

	attempts := a.cfg.JudgeMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := a.cfg.JudgeInitialBackoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, &ragduel.JudgingError{Attempts: attempt - 1, Err: ctx.Err()}
		default:
		}

		j, err := a.judgeOnce(ctx, question, first, second)
		if err == nil {
			return a.verdictFrom(j), nil
		}
		lastErr = err
		log.Warn("judging attempt %d/%d failed: %v", attempt, attempts, err)

		if attempt < attempts {
			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return nil, &ragduel.JudgingError{Attempts: attempt, Err: ctx.Err()}
			}
		}
	}
	return nil, &ragduel.JudgingError{Attempts: attempts, Err: lastErr}
}

func (a *Arbiter) degradedShortcut(first, second *ragduel.Answer) (*ragduel.Verdict, bool) {
	firstUsable, secondUsable := first.HasText(), second.HasText()
	switch {
	case firstUsable && secondUsable:
		return nil, false
	case firstUsable:
		return &ragduel.Verdict{
			Winner:     ragduel.WinnerFirst,
			Confidence: ragduel.ConfidenceHigh,
			Reasoning:  fmt.Sprintf("the %s answerer produced no usable answer: %s", second.Method, second.FailureReason),
		}, true
	case secondUsable:
		return &ragduel.Verdict{
			Winner:     ragduel.WinnerSecond,
			Confidence: ragduel.ConfidenceHigh,
			Reasoning:  fmt.Sprintf("the %s answerer produced no usable answer: %s", first.Method, first.FailureReason),
		}, true
	default:
		return &ragduel.Verdict{
			Winner:     ragduel.WinnerTie,
			Confidence: ragduel.ConfidenceLow,
			Reasoning:  "neither answerer produced a usable answer",
		}, true
	}
}

func (a *Arbiter) judgeOnce(ctx context.Context, question string, first, second *ragduel.Answer) (*judgment, error) {
	callCtx := ctx
	if a.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.cfg.CallTimeout)
		defer cancel()
	}

	raw, err := a.llm.GenerateStructured(callCtx, judgeSystemPrompt, a.prompt(question, first, second))
	if err != nil {
		return nil, fmt.Errorf("judge call failed: %w", err)
	}

	var j judgment
	if err := json.Unmarshal([]byte(stripJSONFences(raw)), &j); err != nil {
		return nil, fmt.Errorf("judge output is not valid JSON: %w", err)
	}
	for _, scores := range []ragduel.CriterionScores{j.First, j.Second} {
		for _, s := range []int{scores.Accuracy, scores.Completeness, scores.Precision, scores.Verifiability} {
			if s < 0 || s > 10 {
				return nil, fmt.Errorf("judge score %d is outside 0-10", s)
			}
		}
	}
	return &j, nil
}

func (a *Arbiter) prompt(question string, first, second *ragduel.Answer) string {
	return fmt.Sprintf(`You are an expert judge evaluating two AI systems answering the same question.

Question: %q

ANSWER 1 (retrieval over documents):
%s
Method: retrieved %d relevant documents and synthesized an answer

ANSWER 2 (structured graph query):
Query used: %s
%s
Method: translated the question into a database query and composed the exact results

Evaluation Criteria, each scored 0-10:
1. accuracy: which answer is more factually correct?
2. completeness: which answer provides more complete information?
3. precision: which answer is more specific and exact?
4. verifiability: which answer can be verified against its sources?

Respond with ONLY the following JSON, no other text:
{
    "first": {"accuracy": 0, "completeness": 0, "precision": 0, "verifiability": 0},
    "second": {"accuracy": 0, "completeness": 0, "precision": 0, "verifiability": 0},
    "reasoning": "detailed explanation of your judgment",
    "strengths_first": ["..."],
    "strengths_second": ["..."],
    "weaknesses_first": ["..."],
    "weaknesses_second": ["..."],
    "recommendation": "when to use each method for this type of question"
}

Be objective and thorough in your analysis.`,
		question,
		first.Text, len(first.Provenance.DocumentIDs),
		second.Provenance.Query, second.Text)
}

// verdictFrom derives winner and confidence from the aggregate scores: gaps
// at or under the tie threshold tie, larger gaps pick the higher side, and
// confidence follows the gap magnitude.
func (a *Arbiter) verdictFrom(j *judgment) *ragduel.Verdict {
	v := &ragduel.Verdict{
		First:            j.First,
		Second:           j.Second,
		Reasoning:        j.Reasoning,
		StrengthsFirst:   j.StrengthsFirst,
		StrengthsSecond:  j.StrengthsSecond,
		WeaknessesFirst:  j.WeaknessesFirst,
		WeaknessesSecond: j.WeaknessesSecond,
		Recommendation:   j.Recommendation,
	}

	gap := v.Gap()
	switch {
	case gap <= a.cfg.TieThreshold:
		v.Winner = ragduel.WinnerTie
	case j.First.Total() > j.Second.Total():
		v.Winner = ragduel.WinnerFirst
	default:
		v.Winner = ragduel.WinnerSecond
	}

	switch {
	case gap > highConfidenceGap:
		v.Confidence = ragduel.ConfidenceHigh
	case gap > a.cfg.TieThreshold:
		v.Confidence = ragduel.ConfidenceMedium
	default:
		v.Confidence = ragduel.ConfidenceLow
	}
	return v
}

func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[3:]
	}
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
