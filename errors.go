package ragduel

import (
	"errors"
	"fmt"
)

// ErrRetrievalEmpty is returned by document search when no document meets the
// relevance threshold. The retrieval answerer converts it into a degraded
// answer; it is never pipeline-fatal.
var ErrRetrievalEmpty = errors.New("no documents met the relevance threshold")

// ErrMutationBlocked is returned by the mutation guard when a generated query
// would write to the graph. The query is never executed.
var ErrMutationBlocked = errors.New("generated query would mutate the graph")

// TranslationError means the generation step did not produce a usable
// structured query, even after the bounded retry with error feedback.
type TranslationError struct {
	Attempts int
	Err      error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("query translation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// ExecutionError means a structured query was rejected or errored at
// execution time. It surfaces as a degraded structured answer.
type ExecutionError struct {
	Query string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("graph query execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// JudgingError means the arbiter's underlying call failed or returned
// unparsable output after all retries. It fails the single question it
// belongs to; batch evaluation continues with the remaining questions.
type JudgingError struct {
	Attempts int
	Err      error
}

func (e *JudgingError) Error() string {
	return fmt.Sprintf("judging failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *JudgingError) Unwrap() error { return e.Err }
