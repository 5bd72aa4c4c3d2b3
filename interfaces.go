package ragduel

import "context"

// LLM is the language-generation collaborator. Implementations live under
// llms/.
type LLM interface {
	// Generate produces text from a bare prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// GenerateWithSystem produces text with a system instruction.
	GenerateWithSystem(ctx context.Context, system, prompt string) (string, error)
	// GenerateStructured produces machine-parsable output only: low
	// temperature, deterministic where the backend supports it, no
	// natural-language preamble. Used for query translation and scoring.
	GenerateStructured(ctx context.Context, system, prompt string) (string, error)
}

// Embedder converts text into vectors for similarity search.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	GetDimension() int
}

// DocumentStore is the document/index side of the fact store.
type DocumentStore interface {
	Add(ctx context.Context, docs []Document) error
	// Search ranks documents by vector similarity.
	Search(ctx context.Context, queryEmbedding []float32, k int) ([]DocumentSearchResult, error)
	// KeywordSearch ranks documents by keyword hits. Ties are broken by
	// document ID so results are deterministic for a fixed corpus.
	KeywordSearch(ctx context.Context, keywords []string, k int) ([]DocumentSearchResult, error)
}

// GraphStore executes structured queries against the graph side of the fact
// store. The store enforces its own query-language syntax; callers only
// validate operation type (read vs write) before submission.
type GraphStore interface {
	Execute(ctx context.Context, query string) (*GraphResult, error)
	DescribeSchema(ctx context.Context) (*GraphSchema, error)
	Close() error
}

// GraphWriter is the load-time write surface of a graph store. The
// comparison core never writes; only the fact store loader does.
type GraphWriter interface {
	AddEntity(ctx context.Context, e *Entity) error
	AddRelationship(ctx context.Context, r *Relationship) error
}

// EntityResolver maps raw result values (names, titles) back to the graph
// elements they denote, for provenance.
type EntityResolver interface {
	ResolveEntities(ctx context.Context, values []string) ([]Entity, error)
}

// Answerer produces an Answer for a question. Both the retrieval and the
// structured answerer satisfy it.
type Answerer interface {
	Answer(ctx context.Context, question string) (*Answer, error)
}

// Judge scores two answers to the same question and adjudicates.
type Judge interface {
	Judge(ctx context.Context, question string, first, second *Answer) (*Verdict, error)
}
