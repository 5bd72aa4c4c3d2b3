package ragduel

import (
	"fmt"
	"strings"
	"time"
)

// Method identifies which answerer produced an Answer.
type Method string

const (
	// MethodRetrieval marks answers synthesized from retrieved documents.
	MethodRetrieval Method = "retrieval"
	// MethodStructured marks answers composed from graph query results.
	MethodStructured Method = "structured"
)

// Document is an unstructured record in the fact store. Documents are
// immutable once loaded.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Embedding []float32
}

// DocumentSearchResult pairs a document with its relevance score.
type DocumentSearchResult struct {
	Document Document
	Score    float64
}

// Entity is a typed node in the graph representation of the fact store.
type Entity struct {
	ID         string
	Type       string
	Name       string
	Properties map[string]any
}

// Relationship is a labeled edge between two entities.
type Relationship struct {
	ID         string
	Type       string
	Source     string
	Target     string
	Properties map[string]any
}

// EntityType describes one node label and its properties.
type EntityType struct {
	Name       string
	Properties []string
}

// RelationshipType describes one edge label and the node labels it connects.
type RelationshipType struct {
	Name   string
	Source string
	Target string
}

// GraphSchema describes the graph's entity and relationship types. It is
// embedded into translation prompts so the generation step knows what it can
// query.
type GraphSchema struct {
	Entities      []EntityType
	Relationships []RelationshipType
	// Samples holds a few example triples from the live graph, e.g.
	// "Emily Chen -[PUBLISHED]-> AI in Healthcare".
	Samples []string
}

// Describe renders the schema as prompt text.
func (s *GraphSchema) Describe() string {
	var b strings.Builder
	b.WriteString("Graph Database Schema\n\nNode Types:\n")
	for i, e := range s.Entities {
		b.WriteString(fmt.Sprintf("%d. %s\n   Properties: %s\n", i+1, e.Name, strings.Join(e.Properties, ", ")))
	}
	b.WriteString("\nRelationships:\n")
	for i, r := range s.Relationships {
		b.WriteString(fmt.Sprintf("%d. (%s)-[:%s]->(%s)\n", i+1, r.Source, r.Name, r.Target))
	}
	if len(s.Samples) > 0 {
		b.WriteString("\nSample Data:\n")
		for _, sample := range s.Samples {
			b.WriteString("- " + sample + "\n")
		}
	}
	return b.String()
}

// GraphResult is the tabular result of a graph query.
type GraphResult struct {
	Columns []string
	Rows    [][]any
}

// Empty reports whether the query returned no rows.
func (r *GraphResult) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// Provenance records which parts of the fact store an answer was derived
// from. Exactly one of the document and graph sides is populated, depending
// on the answer's method.
type Provenance struct {
	// DocumentIDs lists the retrieved documents (retrieval method).
	DocumentIDs []string
	// Query is the exact graph query string executed (structured method).
	Query string
	// EntityIDs lists graph elements touched by the query's results
	// (structured method).
	EntityIDs []string
}

// Answer is the output of one answerer. Immutable once produced.
type Answer struct {
	Method     Method
	Text       string
	Provenance Provenance
	// Degraded marks an answer produced without usable underlying data:
	// empty retrieval, failed translation, failed execution. A degraded
	// answer is still a valid Answer; it never crashes the pipeline.
	Degraded bool
	// FailureReason explains a degraded answer in human-readable form.
	FailureReason string
	Elapsed       time.Duration
}

// NoAnswer builds the explicit "no answer" marker the orchestrator passes to
// the arbiter when one answerer fails irrecoverably.
func NoAnswer(method Method, reason string) *Answer {
	return &Answer{
		Method:        method,
		Degraded:      true,
		FailureReason: reason,
	}
}

// HasText reports whether the answer carries usable text.
func (a *Answer) HasText() bool {
	return a != nil && !a.Degraded && strings.TrimSpace(a.Text) != ""
}

// CriterionScores holds the arbiter's per-criterion scores for one answer,
// each on a 0-10 scale.
type CriterionScores struct {
	Accuracy      int `json:"accuracy"`
	Completeness  int `json:"completeness"`
	Precision     int `json:"precision"`
	Verifiability int `json:"verifiability"`
}

// Total returns the aggregate score (0-40).
func (s CriterionScores) Total() int {
	return s.Accuracy + s.Completeness + s.Precision + s.Verifiability
}

// Winner identifies the arbiter's decision.
type Winner string

const (
	WinnerFirst  Winner = "first"
	WinnerSecond Winner = "second"
	WinnerTie    Winner = "tie"
)

// Confidence is derived from the aggregate score gap, not from the judge's
// self-report, so it is comparable across invocations.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Verdict is the arbiter's judgment over a (question, answer, answer)
// triple. Immutable once produced.
type Verdict struct {
	Winner     Winner
	Confidence Confidence
	First      CriterionScores
	Second     CriterionScores
	Reasoning  string

	StrengthsFirst   []string
	StrengthsSecond  []string
	WeaknessesFirst  []string
	WeaknessesSecond []string
	Recommendation   string
}

// Gap returns the absolute aggregate score difference.
func (v *Verdict) Gap() int {
	gap := v.First.Total() - v.Second.Total()
	if gap < 0 {
		gap = -gap
	}
	return gap
}

// ComparisonRecord aggregates a question, both answers, and the verdict. It
// either carries a full Verdict or an explicit failure marker, never an
// ambiguous partial result.
type ComparisonRecord struct {
	ID         string
	Question   string
	Retrieval  *Answer
	Structured *Answer
	Verdict    *Verdict
	// Failed marks a record whose judging step failed after retries. Failed
	// records carry both answers but no verdict.
	Failed        bool
	FailureReason string
	Elapsed       time.Duration
	CreatedAt     time.Time
}
