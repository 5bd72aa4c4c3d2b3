package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/smallnest/ragduel"
)

// parseReply converts a GRAPH.QUERY / GRAPH.RO_QUERY reply into a tabular
// result. FalkorDB replies with [header, rows, stats] for queries that
// return values and [stats] or [rows, stats] otherwise.
func parseReply(res any) (*ragduel.GraphResult, error) {
	reply, ok := res.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected graph reply type: %T", res)
	}

	result := &ragduel.GraphResult{}
	switch len(reply) {
	case 3:
		if header, ok := reply[0].([]any); ok {
			result.Columns = make([]string, len(header))
			for i, h := range header {
				result.Columns[i] = headerName(h)
			}
		}
		parseRows(reply[1], result)
	case 2:
		parseRows(reply[0], result)
	case 1:
		// Statistics only, e.g. for a write without RETURN.
	default:
		return nil, fmt.Errorf("unexpected graph reply length: %d", len(reply))
	}
	return result, nil
}

// headerName extracts a column name; compact-mode headers are [type, name]
// pairs, plain headers are bare strings.
func headerName(h any) string {
	if pair, ok := h.([]any); ok && len(pair) == 2 {
		return fmt.Sprint(pair[1])
	}
	return fmt.Sprint(h)
}

func parseRows(raw any, result *ragduel.GraphResult) {
	rows, ok := raw.([]any)
	if !ok {
		return
	}
	result.Rows = make([][]any, 0, len(rows))
	for _, row := range rows {
		values, ok := row.([]any)
		if !ok {
			continue
		}
		result.Rows = append(result.Rows, values)
	}
}

var labelPattern = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// sanitizeLabel restricts labels and relationship types to identifier
// characters before they are interpolated into Cypher.
func sanitizeLabel(label string) string {
	clean := labelPattern.ReplaceAllString(label, "_")
	if clean == "" {
		return "Entity"
	}
	return clean
}

// quoteValue renders a property value as a Cypher literal.
func quoteValue(v any) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "\\'") + "'"
	case nil:
		return "null"
	default:
		return fmt.Sprint(x)
	}
}

// propsToCypher renders a property map as a Cypher map literal with keys in
// stable order.
func propsToCypher(props map[string]any) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	// Stable output keeps MERGE queries reproducible.
	sortStrings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, quoteValue(props[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func sortStrings(s []string) {
	for i := range s {
		for j := i + 1; j < len(s); j++ {
			if s[j] < s[i] {
				s[i], s[j] = s[j], s[i]
			}
		}
	}
}
