// Package structured implements the structured answerer: translate the
// question into a graph query, execute it read-only, and compose an answer
// that quotes the execution results verbatim.
package structured

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallnest/ragduel"
	"github.com/smallnest/ragduel/log"
)

const (
	translationSystemPrompt = "You are a Cypher query expert. Generate only valid, executable, read-only Cypher queries. Be precise with syntax."
	compositionSystemPrompt = "You are a helpful assistant that explains database query results clearly and accurately."
)

// Answerer translates questions to Cypher, guards and executes them, and
// composes the result into an answer. Translation and execution failures
// degrade the answer; they never abort the comparison.
type Answerer struct {
	llm      ragduel.LLM
	graph    ragduel.GraphStore
	resolver ragduel.EntityResolver
	cfg      ragduel.Config
}

var _ ragduel.Answerer = (*Answerer)(nil)

// New creates a structured answerer. resolver may be nil; provenance then
// carries the query but no entity IDs.
func New(llm ragduel.LLM, graph ragduel.GraphStore, resolver ragduel.EntityResolver, cfg ragduel.Config) *Answerer {
	return &Answerer{llm: llm, graph: graph, resolver: resolver, cfg: cfg}
}

// Answer runs the three stages: translate, execute, compose.
func (a *Answerer) Answer(ctx context.Context, question string) (*ragduel.Answer, error) {
	start := time.Now()

	schema, err := a.graph.DescribeSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to describe graph schema: %w", err)
	}

	query, result, stageErr := a.translateAndExecute(ctx, schema.Describe(), question)
	if stageErr != nil {
		log.Warn("structured answer degraded for %q: %v", question, stageErr)
		answer := ragduel.NoAnswer(ragduel.MethodStructured, stageErr.Error())
		answer.Provenance.Query = query
		answer.Elapsed = time.Since(start)
		return answer, nil
	}

	text, err := a.compose(ctx, question, query, result)
	if err != nil {
		return nil, fmt.Errorf("answer composition failed: %w", err)
	}

	return &ragduel.Answer{
		Method: ragduel.MethodStructured,
		Text:   text,
		Provenance: ragduel.Provenance{
			Query:     query,
			EntityIDs: a.resolveProvenance(ctx, result),
		},
		Elapsed: time.Since(start),
	}, nil
}

// translateAndExecute runs the bounded translate-guard-execute loop. A failed
// attempt, including one whose query ran but matched nothing, feeds its error
// into the next translation prompt. The returned query is the last one
// attempted, set even on failure for diagnostics.
func (a *Answerer) translateAndExecute(ctx context.Context, schemaText, question string) (string, *ragduel.GraphResult, error) {
	attempts := 1 + a.cfg.TranslationRetries
	if attempts < 1 {
		attempts = 1
	}

	var query string
	var lastErr error
	translated := false

	for attempt := 1; attempt <= attempts; attempt++ {
		q, err := a.translate(ctx, schemaText, question, lastErr)
		if err != nil {
			lastErr = err
			continue
		}
		translated = true
		query = q

		if err := GuardQuery(q); err != nil {
			log.Warn("mutation guard blocked query %q", q)
			lastErr = &ragduel.ExecutionError{Query: q, Err: err}
			continue
		}

		result, err := a.execute(ctx, q)
		if err != nil {
			lastErr = &ragduel.ExecutionError{Query: q, Err: err}
			continue
		}
		if result.Empty() {
			lastErr = &ragduel.ExecutionError{Query: q, Err: errors.New("query returned no rows")}
			continue
		}
		return q, result, nil
	}

	if !translated {
		return query, nil, &ragduel.TranslationError{Attempts: attempts, Err: lastErr}
	}
	return query, nil, lastErr
}

func (a *Answerer) translate(ctx context.Context, schemaText, question string, priorErr error) (string, error) {
	var feedback string
	if priorErr != nil {
		feedback = fmt.Sprintf("\nYour previous query failed: %s\nFix the problem and try again.\n", priorErr)
	}

	prompt := fmt.Sprintf(`%s

Task: Convert the following natural language question into a valid Cypher query.

Rules:
1. Return ONLY the Cypher query, no explanations
2. Use MATCH for finding patterns, WHERE for filtering, RETURN to specify output
3. The query must be read-only: never use CREATE, MERGE, DELETE, SET, REMOVE, or DROP
4. Limit results to %d unless asked otherwise
5. For "collaborators", find researchers who published the SAME article
6. For counting, use the count() function
7. For finding by name, use WHERE node.name = 'exact name' or CONTAINS for partial match

Common Query Patterns:
- Find collaborators: MATCH (r1:Researcher)-[:PUBLISHED]->(a:Article)<-[:PUBLISHED]-(r2:Researcher)
- Count articles: MATCH (r:Researcher)-[:PUBLISHED]->(a) RETURN r.name, count(a)
- Find researcher's work: MATCH (r:Researcher {name: 'Name'})-[:PUBLISHED]->(a) RETURN a.name
%s
Question: "%s"

Cypher Query:`, schemaText, a.cfg.MaxResultRows, feedback, question)

	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	raw, err := a.llm.GenerateStructured(callCtx, translationSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("query generation failed: %w", err)
	}
	query := StripFences(raw)
	if query == "" {
		return "", errors.New("query generation returned empty output")
	}
	return query, nil
}

func (a *Answerer) execute(ctx context.Context, query string) (*ragduel.GraphResult, error) {
	callCtx, cancel := a.callContext(ctx)
	defer cancel()
	return a.graph.Execute(callCtx, query)
}

// compose renders the rows verbatim and asks the LLM for a gloss over them.
// The verbatim block is always part of the answer text, so exact execution
// values survive whatever the gloss paraphrases.
func (a *Answerer) compose(ctx context.Context, question, query string, result *ragduel.GraphResult) (string, error) {
	formatted := FormatResult(result, a.cfg.MaxResultRows)

	prompt := fmt.Sprintf(`You are explaining database query results to a user.

Question: %s

Cypher Query Used:
%s

Query Results:
%s

Provide a clear, natural language answer based on these EXACT results. Be specific with numbers and names from the data. If there are no results, say so clearly.

Answer:`, question, query, formatted)

	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	gloss, err := a.llm.GenerateWithSystem(callCtx, compositionSystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(gloss) + "\n\nQuery results:\n" + formatted, nil
}

func (a *Answerer) resolveProvenance(ctx context.Context, result *ragduel.GraphResult) []string {
	if a.resolver == nil || result.Empty() {
		return nil
	}

	seen := make(map[string]bool)
	var values []string
	for _, row := range result.Rows {
		for _, v := range row {
			s, ok := v.(string)
			if !ok || s == "" || seen[s] {
				continue
			}
			seen[s] = true
			values = append(values, s)
		}
		if len(values) >= 20 {
			break
		}
	}

	entities, err := a.resolver.ResolveEntities(ctx, values)
	if err != nil {
		log.Warn("entity resolution failed: %v", err)
		return nil
	}
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return ids
}

func (a *Answerer) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, a.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// StripFences removes a markdown code fence around a generated query.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 && !strings.ContainsAny(s[:i], " \t") {
		// drop the language tag line, e.g. ```cypher
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// FormatResult renders query rows as numbered "column: value" blocks, capped
// at maxRows.
func FormatResult(result *ragduel.GraphResult, maxRows int) string {
	if result.Empty() {
		return "No results found."
	}

	rows := result.Rows
	truncated := false
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
		truncated = true
	}

	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Result %d:", i+1)
		for j, v := range row {
			column := fmt.Sprintf("column %d", j+1)
			if j < len(result.Columns) {
				column = result.Columns[j]
			}
			fmt.Fprintf(&b, "\n  - %s: %s", column, formatValue(v))
		}
	}
	if truncated {
		fmt.Fprintf(&b, "\n\n(%d more rows not shown)", len(result.Rows)-maxRows)
	}
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
			if len(parts) == 5 {
				break
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}
