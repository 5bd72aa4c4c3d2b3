package ragduel

import "time"

// Config holds the tunables of the comparison pipeline.
type Config struct {
	// TopK is the number of documents the retrieval answerer consults.
	TopK int
	// ScoreThreshold is the minimum similarity score for a retrieved
	// document to count as relevant. Only applied to vector search.
	ScoreThreshold float64
	// UseVectorSearch selects embedding similarity retrieval; when false the
	// retrieval key is the question's keyword set.
	UseVectorSearch bool

	// TranslationRetries is how many times a failed translation is retried
	// with the error message appended as additional context.
	TranslationRetries int
	// MaxResultRows caps how many result rows are rendered into the
	// structured answer text.
	MaxResultRows int

	// TieThreshold is the maximum aggregate score gap (sum of four 0-10
	// criteria per answer, so 0-40) still declared a tie. The default of 2
	// avoids spurious decisiveness from a noisy scoring step; setting it to
	// 0 means only exact-equal aggregates tie.
	TieThreshold int
	// JudgeMaxAttempts bounds arbiter retries on failed or unparsable
	// judging calls.
	JudgeMaxAttempts int
	// JudgeInitialBackoff is the first retry delay; it doubles per attempt.
	JudgeInitialBackoff time.Duration

	// CallTimeout applies per external call (translation, execution,
	// judging, synthesis).
	CallTimeout time.Duration

	// MaxConcurrent bounds the batch worker pool.
	MaxConcurrent int
	// RateLimit caps comparisons started per second in batch mode; zero
	// disables rate limiting.
	RateLimit float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		TopK:                5,
		ScoreThreshold:      0.5,
		UseVectorSearch:     false,
		TranslationRetries:  1,
		MaxResultRows:       20,
		TieThreshold:        2,
		JudgeMaxAttempts:    3,
		JudgeInitialBackoff: 500 * time.Millisecond,
		CallTimeout:         60 * time.Second,
		MaxConcurrent:       4,
	}
}
