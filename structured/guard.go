package structured

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/smallnest/ragduel"
)

// The generator is untrusted: whatever the prompt says, the model may emit a
// write. Every query passes this guard before it reaches the store, and the
// store connection additionally executes in read-only mode where the backend
// supports it.

var (
	guardLiteralRe = regexp.MustCompile(`'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"`)

	// Clauses that write, delete, or bulk-load.
	mutationClauseRe = regexp.MustCompile(`(?i)\b(CREATE|MERGE|DELETE|DETACH|SET|REMOVE|DROP|FOREACH|LOAD)\b`)

	// Procedure calls; only a known-read set is allowed through.
	callRe = regexp.MustCompile(`(?i)\bCALL\s+([\w.]+)`)
)

var readOnlyProcedures = map[string]bool{
	"db.labels":               true,
	"db.relationshiptypes":    true,
	"db.propertykeys":         true,
	"db.schema.visualization": true,
	"db.indexes":              true,
}

// GuardQuery rejects any query that could mutate the graph. String literals
// are masked first so data values cannot trip or hide the scan.
func GuardQuery(query string) error {
	masked := guardLiteralRe.ReplaceAllStringFunc(query, func(m string) string {
		return strings.Repeat("_", len(m))
	})

	if m := mutationClauseRe.FindString(masked); m != "" {
		return fmt.Errorf("%w: query contains %s", ragduel.ErrMutationBlocked, strings.ToUpper(m))
	}
	for _, call := range callRe.FindAllStringSubmatch(masked, -1) {
		proc := strings.ToLower(call[1])
		if !readOnlyProcedures[proc] {
			return fmt.Errorf("%w: procedure call %s is not on the read-only allowlist", ragduel.ErrMutationBlocked, call[1])
		}
	}
	return nil
}
