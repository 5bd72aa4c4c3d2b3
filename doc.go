// Package ragduel compares two question-answering strategies over the same
// fact base: retrieval-augmented generation over unstructured documents, and
// structured graph queries translated from natural language. A third
// judgment step scores both answers on fixed criteria and adjudicates.
//
// The fact store holds the dataset in two forms built from one load: a
// document collection for retrieval and a labeled property graph for
// structured query. Per question, the compare package runs both answerers
// independently, joins their answers, and passes the pair to the arbiter,
// which returns a verdict with per-criterion scores, a winner or tie, and a
// confidence level derived from the score gap.
//
// This root package defines the shared vocabulary: the data model (Document,
// Entity, Relationship, Answer, Verdict, ComparisonRecord), the failure
// taxonomy, the configuration, and the collaborator interfaces (LLM,
// Embedder, DocumentStore, GraphStore). Implementations live in the
// subpackages:
//
//   - factstore: dual-representation fact store and loaders
//   - retrieval: the retrieval answerer
//   - structured: the text-to-query answerer with its mutation guard
//   - arbiter: the judging step
//   - compare: the orchestrator and batch evaluation
//   - llms: LLM backends (OpenAI, langchaingo adapter)
//   - store: document and graph store implementations
//   - runlog: persistence of batch results
//
// # Quick Start
//
//	llm, _ := openai.New(openai.DefaultConfig(os.Getenv("OPENAI_API_KEY")))
//	fs := factstore.New(store.NewInMemoryVectorStore(llm), store.NewMemoryGraph())
//	_ = fs.Load(ctx, rows)
//
//	cfg := ragduel.DefaultConfig()
//	orch := compare.New(
//		retrieval.New(llm, llm, fs.Documents(), cfg),
//		structured.New(llm, fs.GraphStore(), fs, cfg),
//		arbiter.New(llm, cfg),
//		cfg,
//	)
//	record, err := orch.Compare(ctx, "Who are the collaborators of Emily Chen?")
package ragduel // import "github.com/smallnest/ragduel"
