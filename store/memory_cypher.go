package store

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/smallnest/ragduel"
)

// MemoryCypher evaluates a read-only Cypher subset against a MemoryGraph, so
// the pipeline runs end to end without an external graph database. It
// understands a single MATCH path pattern, WHERE conjunctions, RETURN with
// DISTINCT and count() aggregation, ORDER BY, and LIMIT:
//
//	MATCH (r:Researcher {name: 'Emily Chen'})-[:PUBLISHED]->(a:Article)
//	WHERE a.topic <> 'Ethics'
//	RETURN DISTINCT a.name ORDER BY a.name LIMIT 10
//
// Anything else, including every write clause, is rejected with an error that
// names the unsupported construct, which feeds the translation retry loop.
type MemoryCypher struct {
	g *MemoryGraph
}

var _ ragduel.GraphStore = (*MemoryCypher)(nil)

// NewMemoryCypher wraps a MemoryGraph as a queryable GraphStore.
func NewMemoryCypher(g *MemoryGraph) *MemoryCypher {
	return &MemoryCypher{g: g}
}

// Execute evaluates a read-only query.
func (c *MemoryCypher) Execute(ctx context.Context, query string) (*ragduel.GraphResult, error) {
	q, err := parseCypher(query)
	if err != nil {
		return nil, err
	}

	entities, err := c.g.Entities(ctx)
	if err != nil {
		return nil, err
	}
	rels, err := c.g.Relationships(ctx, "")
	if err != nil {
		return nil, err
	}

	bindings := matchPattern(q.pattern, entities, rels)

	kept := bindings[:0]
	for _, b := range bindings {
		ok, err := q.where.eval(b)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, b)
		}
	}

	rows, err := project(q, kept)
	if err != nil {
		return nil, err
	}
	if err := orderRows(rows, q); err != nil {
		return nil, err
	}
	if q.limit > 0 && len(rows) > q.limit {
		rows = rows[:q.limit]
	}

	columns := make([]string, len(q.returns))
	for i, r := range q.returns {
		columns[i] = r.column()
	}
	return &ragduel.GraphResult{Columns: columns, Rows: rows}, nil
}

// DescribeSchema reports the mirror's derived schema.
func (c *MemoryCypher) DescribeSchema(ctx context.Context) (*ragduel.GraphSchema, error) {
	return c.g.Schema(ctx)
}

// Close is a no-op; the underlying graph is owned by the caller.
func (c *MemoryCypher) Close() error { return nil }

// --- parsing ---

type nodePattern struct {
	variable string
	label    string
	props    map[string]any
}

type edgePattern struct {
	relType string
	// direction along the written pattern: 1 for ->, -1 for <-, 0 for
	// undirected.
	direction int
}

type pathPattern struct {
	nodes []nodePattern
	edges []edgePattern
}

type condition struct {
	variable string
	property string
	operator string // "=", "<>", "contains"
	value    any
}

type whereClause struct {
	conditions []condition
}

type projection struct {
	variable string
	property string // empty projects the entity name
	alias    string
	isCount  bool
	distinct bool // count(DISTINCT ...)
	raw      string
}

func (p projection) column() string {
	if p.alias != "" {
		return p.alias
	}
	return p.raw
}

type cypherQuery struct {
	pattern pathPattern
	where   whereClause
	returns []projection
	// distinct applies to the whole RETURN row.
	distinct bool
	orderBy  []orderKey
	limit    int
}

type orderKey struct {
	column string
	desc   bool
}

var (
	quotedLiteralRe = regexp.MustCompile(`'(?:[^'\\]|\\.)*'|"[^"]*"`)
	writeClauseRe   = regexp.MustCompile(`(?i)\b(CREATE|MERGE|DELETE|DETACH|SET|REMOVE|DROP|FOREACH|LOAD)\b`)
)

func parseCypher(query string) (*cypherQuery, error) {
	q := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))

	// Scan clause keywords outside string literals only. The masked copy
	// keeps the original offsets so clause positions carry over.
	bare := quotedLiteralRe.ReplaceAllStringFunc(q, func(m string) string {
		return strings.Repeat("_", len(m))
	})
	if m := writeClauseRe.FindString(bare); m != "" {
		return nil, fmt.Errorf("unsupported clause %q: only read-only MATCH queries are accepted", strings.ToUpper(m))
	}
	if !strings.HasPrefix(strings.ToUpper(q), "MATCH") {
		return nil, fmt.Errorf("query must start with MATCH")
	}

	matchPart, wherePart, returnPart, orderPart, limitPart, err := splitClauses(q, bare)
	if err != nil {
		return nil, err
	}

	out := &cypherQuery{}
	if out.pattern, err = parsePath(matchPart); err != nil {
		return nil, err
	}
	if out.where, err = parseWhere(wherePart); err != nil {
		return nil, err
	}
	if out.distinct, out.returns, err = parseReturn(returnPart); err != nil {
		return nil, err
	}
	if out.orderBy, err = parseOrderBy(orderPart, out.returns); err != nil {
		return nil, err
	}
	if limitPart != "" {
		n, err := strconv.Atoi(limitPart)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid LIMIT %q", limitPart)
		}
		out.limit = n
	}
	return out, nil
}

var clauseRe = regexp.MustCompile(`(?i)\b(WHERE|RETURN|ORDER\s+BY|LIMIT)\b`)

func splitClauses(q, bare string) (match, where, ret, order, limit string, err error) {
	locs := clauseRe.FindAllStringSubmatchIndex(bare, -1)
	if len(locs) == 0 {
		return "", "", "", "", "", fmt.Errorf("query has no RETURN clause")
	}

	cut := func(from, to int) string { return strings.TrimSpace(q[from:to]) }
	end := func(i int) int {
		if i+1 < len(locs) {
			return locs[i+1][0]
		}
		return len(q)
	}

	match = cut(len("MATCH"), locs[0][0])
	for i, loc := range locs {
		keyword := strings.ToUpper(regexp.MustCompile(`\s+`).ReplaceAllString(q[loc[2]:loc[3]], " "))
		body := cut(loc[1], end(i))
		switch keyword {
		case "WHERE":
			where = body
		case "RETURN":
			ret = body
		case "ORDER BY":
			order = body
		case "LIMIT":
			limit = body
		}
	}
	if ret == "" {
		return "", "", "", "", "", fmt.Errorf("query has no RETURN clause")
	}
	return match, where, ret, order, limit, nil
}

var (
	nodeRe     = regexp.MustCompile(`^\(\s*([A-Za-z_]\w*)?\s*(?::\s*([A-Za-z_]\w*))?\s*(?:\{([^}]*)\})?\s*\)`)
	edgeOutRe  = regexp.MustCompile(`^-\s*\[\s*\w*\s*:?\s*([A-Za-z_]\w*)?\s*\]\s*->`)
	edgeInRe   = regexp.MustCompile(`^<-\s*\[\s*\w*\s*:?\s*([A-Za-z_]\w*)?\s*\]\s*-`)
	edgeBothRe = regexp.MustCompile(`^-\s*\[\s*\w*\s*:?\s*([A-Za-z_]\w*)?\s*\]\s*-`)
	propRe     = regexp.MustCompile(`([A-Za-z_]\w*)\s*:\s*('(?:[^'\\]|\\.)*'|"[^"]*"|-?\d+(?:\.\d+)?)`)
)

func parsePath(s string) (pathPattern, error) {
	var p pathPattern
	rest := strings.TrimSpace(s)

	// A comma outside an inline property map separates patterns.
	masked := regexp.MustCompile(`\{[^}]*\}`).ReplaceAllStringFunc(rest, func(m string) string {
		return strings.Repeat("_", len(m))
	})
	if strings.Contains(masked, ",") {
		return p, fmt.Errorf("multiple patterns in one MATCH are not supported")
	}

	anon := 0
	parseNode := func() error {
		m := nodeRe.FindStringSubmatch(rest)
		if m == nil {
			return fmt.Errorf("cannot parse node pattern near %q", truncate(rest, 30))
		}
		n := nodePattern{variable: m[1], label: m[2]}
		if n.variable == "" {
			anon++
			n.variable = fmt.Sprintf("_anon%d", anon)
		}
		if m[3] != "" {
			n.props = map[string]any{}
			for _, pm := range propRe.FindAllStringSubmatch(m[3], -1) {
				n.props[pm[1]] = parseLiteral(pm[2])
			}
		}
		p.nodes = append(p.nodes, n)
		rest = strings.TrimSpace(rest[len(m[0]):])
		return nil
	}

	if err := parseNode(); err != nil {
		return p, err
	}
	for rest != "" {
		var e edgePattern
		switch {
		case edgeInRe.MatchString(rest):
			m := edgeInRe.FindStringSubmatch(rest)
			e = edgePattern{relType: m[1], direction: -1}
			rest = strings.TrimSpace(rest[len(m[0]):])
		case edgeOutRe.MatchString(rest):
			m := edgeOutRe.FindStringSubmatch(rest)
			e = edgePattern{relType: m[1], direction: 1}
			rest = strings.TrimSpace(rest[len(m[0]):])
		case edgeBothRe.MatchString(rest):
			m := edgeBothRe.FindStringSubmatch(rest)
			e = edgePattern{relType: m[1], direction: 0}
			rest = strings.TrimSpace(rest[len(m[0]):])
		default:
			return p, fmt.Errorf("cannot parse relationship pattern near %q", truncate(rest, 30))
		}
		p.edges = append(p.edges, e)
		if err := parseNode(); err != nil {
			return p, err
		}
	}
	return p, nil
}

var condRe = regexp.MustCompile(`(?i)^([A-Za-z_]\w*)\.([A-Za-z_]\w*)\s*(=|<>|CONTAINS)\s*('(?:[^'\\]|\\.)*'|"[^"]*"|-?\d+(?:\.\d+)?)$`)

func parseWhere(s string) (whereClause, error) {
	var w whereClause
	if strings.TrimSpace(s) == "" {
		return w, nil
	}

	// Split on AND outside string literals.
	masked := quotedLiteralRe.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Repeat("_", len(m))
	})
	var parts []string
	prev := 0
	for _, loc := range regexp.MustCompile(`(?i)\bAND\b`).FindAllStringIndex(masked, -1) {
		parts = append(parts, s[prev:loc[0]])
		prev = loc[1]
	}
	parts = append(parts, s[prev:])

	for _, part := range parts {
		m := condRe.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return w, fmt.Errorf("cannot parse condition %q: only var.prop =|<>|CONTAINS literal joined by AND is supported", strings.TrimSpace(part))
		}
		w.conditions = append(w.conditions, condition{
			variable: m[1],
			property: m[2],
			operator: strings.ToLower(m[3]),
			value:    parseLiteral(m[4]),
		})
	}
	return w, nil
}

var countRe = regexp.MustCompile(`(?i)^count\s*\(\s*(DISTINCT\s+)?(\*|[A-Za-z_]\w*(?:\.[A-Za-z_]\w*)?)\s*\)$`)

func parseReturn(s string) (bool, []projection, error) {
	distinct := false
	if m := regexp.MustCompile(`(?i)^DISTINCT\s+`).FindString(s); m != "" {
		distinct = true
		s = s[len(m):]
	}

	var projections []projection
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		p := projection{raw: part}

		if m := regexp.MustCompile(`(?i)\s+AS\s+([A-Za-z_]\w*)$`).FindStringSubmatch(part); m != nil {
			p.alias = m[1]
			part = strings.TrimSpace(part[:len(part)-len(m[0])])
			p.raw = part
		}

		if m := countRe.FindStringSubmatch(part); m != nil {
			p.isCount = true
			p.distinct = m[1] != ""
			if m[2] != "*" {
				if v, prop, ok := strings.Cut(m[2], "."); ok {
					p.variable, p.property = v, prop
				} else {
					p.variable = m[2]
				}
			}
		} else if m := regexp.MustCompile(`^([A-Za-z_]\w*)(?:\.([A-Za-z_]\w*))?$`).FindStringSubmatch(part); m != nil {
			p.variable, p.property = m[1], m[2]
		} else {
			return false, nil, fmt.Errorf("cannot parse return item %q", part)
		}
		projections = append(projections, p)
	}
	return distinct, projections, nil
}

func parseOrderBy(s string, returns []projection) ([]orderKey, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var keys []orderKey
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		key := orderKey{}
		if m := regexp.MustCompile(`(?i)\s+(ASC|DESC)$`).FindStringSubmatch(part); m != nil {
			key.desc = strings.EqualFold(m[1], "DESC")
			part = strings.TrimSpace(part[:len(part)-len(m[0])])
		}
		idx := -1
		for i, r := range returns {
			if r.raw == part || r.alias == part {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("ORDER BY key %q is not a returned column", part)
		}
		key.column = returns[idx].column()
		keys = append(keys, key)
	}
	return keys, nil
}

func parseLiteral(s string) any {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') {
		inner := s[1 : len(s)-1]
		inner = strings.ReplaceAll(inner, `\'`, `'`)
		return inner
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// --- evaluation ---

// binding maps pattern variables to matched entities.
type binding map[string]ragduel.Entity

func matchPattern(p pathPattern, entities []ragduel.Entity, rels []ragduel.Relationship) []binding {
	var out []binding
	var extend func(b binding, idx int)

	byID := make(map[string]ragduel.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	extend = func(b binding, idx int) {
		if idx == len(p.edges) {
			copied := make(binding, len(b))
			for k, v := range b {
				copied[k] = v
			}
			out = append(out, copied)
			return
		}
		edge := p.edges[idx]
		from := b[p.nodes[idx].variable]
		next := p.nodes[idx+1]

		for _, r := range rels {
			if edge.relType != "" && r.Type != edge.relType {
				continue
			}
			var otherID string
			switch {
			case edge.direction >= 0 && r.Source == from.ID:
				otherID = r.Target
			case edge.direction <= 0 && r.Target == from.ID:
				otherID = r.Source
			default:
				continue
			}
			other, ok := byID[otherID]
			if !ok || !nodeMatches(next, other) {
				continue
			}
			if bound, exists := b[next.variable]; exists {
				if bound.ID != other.ID {
					continue
				}
				extend(b, idx+1)
				continue
			}
			b[next.variable] = other
			extend(b, idx+1)
			delete(b, next.variable)
		}
	}

	first := p.nodes[0]
	for _, e := range entities {
		if !nodeMatches(first, e) {
			continue
		}
		b := binding{first.variable: e}
		extend(b, 0)
	}
	return out
}

func nodeMatches(n nodePattern, e ragduel.Entity) bool {
	if n.label != "" && n.label != e.Type {
		return false
	}
	for k, want := range n.props {
		if !valuesEqual(entityValue(e, k), want) {
			return false
		}
	}
	return true
}

func entityValue(e ragduel.Entity, prop string) any {
	switch prop {
	case "name":
		return e.Name
	case "id":
		return e.ID
	default:
		return e.Properties[prop]
	}
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func (w whereClause) eval(b binding) (bool, error) {
	for _, c := range w.conditions {
		e, ok := b[c.variable]
		if !ok {
			return false, fmt.Errorf("WHERE references unbound variable %q", c.variable)
		}
		got := entityValue(e, c.property)
		switch c.operator {
		case "=":
			if !valuesEqual(got, c.value) {
				return false, nil
			}
		case "<>":
			if valuesEqual(got, c.value) {
				return false, nil
			}
		case "contains":
			if !strings.Contains(strings.ToLower(fmt.Sprint(got)), strings.ToLower(fmt.Sprint(c.value))) {
				return false, nil
			}
		}
	}
	return true, nil
}

func project(q *cypherQuery, bindings []binding) ([][]any, error) {
	hasCount := false
	for _, p := range q.returns {
		if p.isCount {
			hasCount = true
		}
	}

	projectOne := func(p projection, b binding) (any, error) {
		if p.variable == "" { // count(*)
			return nil, nil
		}
		e, ok := b[p.variable]
		if !ok {
			return nil, fmt.Errorf("RETURN references unbound variable %q", p.variable)
		}
		if p.property == "" {
			return e.Name, nil
		}
		return entityValue(e, p.property), nil
	}

	if !hasCount {
		rows := make([][]any, 0, len(bindings))
		for _, b := range bindings {
			row := make([]any, len(q.returns))
			for i, p := range q.returns {
				v, err := projectOne(p, b)
				if err != nil {
					return nil, err
				}
				row[i] = v
			}
			rows = append(rows, row)
		}
		if q.distinct {
			rows = distinctRows(rows)
		}
		return rows, nil
	}

	// Aggregation with Cypher's implicit grouping: non-count projections are
	// the grouping key.
	type group struct {
		key    []any
		counts []map[string]bool // per count-projection distinct sets
		totals []int64
	}
	groups := map[string]*group{}
	var order []string

	for _, b := range bindings {
		key := make([]any, 0, len(q.returns))
		for _, p := range q.returns {
			if p.isCount {
				continue
			}
			v, err := projectOne(p, b)
			if err != nil {
				return nil, err
			}
			key = append(key, v)
		}
		sig := fmt.Sprint(key...)
		g, ok := groups[sig]
		if !ok {
			g = &group{key: key}
			for _, p := range q.returns {
				if p.isCount {
					g.counts = append(g.counts, map[string]bool{})
					g.totals = append(g.totals, 0)
				}
			}
			groups[sig] = g
			order = append(order, sig)
		}
		ci := 0
		for _, p := range q.returns {
			if !p.isCount {
				continue
			}
			v, err := projectOne(p, b)
			if err != nil {
				return nil, err
			}
			if p.distinct {
				g.counts[ci][fmt.Sprint(v)] = true
			} else {
				g.totals[ci]++
			}
			ci++
		}
	}

	rows := make([][]any, 0, len(order))
	for _, sig := range order {
		g := groups[sig]
		row := make([]any, 0, len(q.returns))
		ki, ci := 0, 0
		for _, p := range q.returns {
			if p.isCount {
				if p.distinct {
					row = append(row, int64(len(g.counts[ci])))
				} else {
					row = append(row, g.totals[ci])
				}
				ci++
			} else {
				row = append(row, g.key[ki])
				ki++
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func distinctRows(rows [][]any) [][]any {
	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, row := range rows {
		sig := fmt.Sprintln(row...)
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, row)
	}
	return out
}

func orderRows(rows [][]any, q *cypherQuery) error {
	if len(q.orderBy) == 0 {
		return nil
	}
	colIdx := make([]int, len(q.orderBy))
	for i, key := range q.orderBy {
		colIdx[i] = -1
		for j, p := range q.returns {
			if p.column() == key.column {
				colIdx[i] = j
				break
			}
		}
		if colIdx[i] < 0 {
			return fmt.Errorf("ORDER BY key %q is not a returned column", key.column)
		}
	}

	sort.SliceStable(rows, func(a, b int) bool {
		for i, key := range q.orderBy {
			va, vb := rows[a][colIdx[i]], rows[b][colIdx[i]]
			cmp := compareValues(va, vb)
			if cmp == 0 {
				continue
			}
			if key.desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return nil
}

func compareValues(a, b any) int {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
