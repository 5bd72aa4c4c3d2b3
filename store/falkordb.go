package store

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/smallnest/ragduel"
)

// FalkorDBGraph is a Cypher graph store backed by FalkorDB over the Redis
// protocol. Execute issues GRAPH.RO_QUERY, so even a query that slips past
// the caller's mutation guard cannot write; the load-time writer methods use
// GRAPH.QUERY.
type FalkorDBGraph struct {
	client    redis.UniversalClient
	graphName string
}

var (
	_ ragduel.GraphStore     = (*FalkorDBGraph)(nil)
	_ ragduel.GraphWriter    = (*FalkorDBGraph)(nil)
	_ ragduel.EntityResolver = (*FalkorDBGraph)(nil)
)

// NewFalkorDBGraph connects to a FalkorDB instance. The connection string
// format is falkordb://host:port/graph_name.
func NewFalkorDBGraph(connectionString string) (*FalkorDBGraph, error) {
	u, err := url.Parse(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}
	if u.Scheme != "falkordb" {
		return nil, fmt.Errorf("invalid connection string: scheme must be falkordb://")
	}
	addr := u.Host
	if addr == "" {
		return nil, fmt.Errorf("invalid connection string: missing host")
	}
	graphName := strings.TrimPrefix(u.Path, "/")
	if graphName == "" {
		graphName = "facts"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	return &FalkorDBGraph{client: client, graphName: graphName}, nil
}

// Execute runs a read-only Cypher query and returns the tabular result.
func (f *FalkorDBGraph) Execute(ctx context.Context, query string) (*ragduel.GraphResult, error) {
	return f.run(ctx, "GRAPH.RO_QUERY", query)
}

// AddEntity merges an entity node into the graph.
func (f *FalkorDBGraph) AddEntity(ctx context.Context, e *ragduel.Entity) error {
	label := sanitizeLabel(e.Type)
	props := map[string]any{"id": e.ID, "name": e.Name}
	for k, v := range e.Properties {
		props[sanitizeLabel(k)] = v
	}

	query := fmt.Sprintf("MERGE (n:%s {id: %s}) SET n += %s",
		label, quoteValue(e.ID), propsToCypher(props))
	_, err := f.run(ctx, "GRAPH.QUERY", query)
	return err
}

// AddRelationship merges a typed edge between two existing nodes.
func (f *FalkorDBGraph) AddRelationship(ctx context.Context, r *ragduel.Relationship) error {
	relType := sanitizeLabel(r.Type)
	query := fmt.Sprintf("MATCH (a {id: %s}), (b {id: %s}) MERGE (a)-[r:%s {id: %s}]->(b)",
		quoteValue(r.Source), quoteValue(r.Target), relType, quoteValue(r.ID))
	_, err := f.run(ctx, "GRAPH.QUERY", query)
	return err
}

// ResolveEntities maps result values to graph nodes by exact name match.
func (f *FalkorDBGraph) ResolveEntities(ctx context.Context, values []string) ([]ragduel.Entity, error) {
	if len(values) == 0 {
		return nil, nil
	}

	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quoteValue(v)
	}
	query := fmt.Sprintf(
		"MATCH (n) WHERE n.name IN [%s] RETURN n.id, labels(n)[0], n.name ORDER BY n.id",
		strings.Join(quoted, ", "))

	result, err := f.Execute(ctx, query)
	if err != nil {
		return nil, err
	}

	entities := make([]ragduel.Entity, 0, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) < 3 {
			continue
		}
		entities = append(entities, ragduel.Entity{
			ID:   fmt.Sprint(row[0]),
			Type: fmt.Sprint(row[1]),
			Name: fmt.Sprint(row[2]),
		})
	}
	return entities, nil
}

// DescribeSchema introspects node labels, relationship patterns, and a few
// sample triples from the live graph.
func (f *FalkorDBGraph) DescribeSchema(ctx context.Context) (*ragduel.GraphSchema, error) {
	schema := &ragduel.GraphSchema{}

	labels, err := f.Execute(ctx, "CALL db.labels()")
	if err != nil {
		return nil, fmt.Errorf("schema introspection failed: %w", err)
	}
	labelNames := make([]string, 0, len(labels.Rows))
	for _, row := range labels.Rows {
		if len(row) > 0 {
			labelNames = append(labelNames, fmt.Sprint(row[0]))
		}
	}
	sort.Strings(labelNames)

	for _, label := range labelNames {
		props := []string{"name"}
		sample, err := f.Execute(ctx, fmt.Sprintf("MATCH (n:%s) RETURN keys(n) LIMIT 1", sanitizeLabel(label)))
		if err == nil && !sample.Empty() {
			if keys, ok := sample.Rows[0][0].([]any); ok {
				props = props[:0]
				for _, k := range keys {
					props = append(props, fmt.Sprint(k))
				}
				sort.Strings(props)
			}
		}
		schema.Entities = append(schema.Entities, ragduel.EntityType{Name: label, Properties: props})
	}

	rels, err := f.Execute(ctx,
		"MATCH (a)-[r]->(b) RETURN DISTINCT labels(a)[0], type(r), labels(b)[0]")
	if err != nil {
		return nil, fmt.Errorf("schema introspection failed: %w", err)
	}
	for _, row := range rels.Rows {
		if len(row) < 3 {
			continue
		}
		schema.Relationships = append(schema.Relationships, ragduel.RelationshipType{
			Source: fmt.Sprint(row[0]),
			Name:   fmt.Sprint(row[1]),
			Target: fmt.Sprint(row[2]),
		})
	}
	sort.Slice(schema.Relationships, func(i, j int) bool {
		return schema.Relationships[i].Name < schema.Relationships[j].Name
	})

	samples, err := f.Execute(ctx,
		"MATCH (a)-[r]->(b) RETURN a.name, type(r), b.name LIMIT 3")
	if err == nil {
		for _, row := range samples.Rows {
			if len(row) == 3 {
				schema.Samples = append(schema.Samples,
					fmt.Sprintf("%v -[%v]-> %v", row[0], row[1], row[2]))
			}
		}
	}

	return schema, nil
}

// Close closes the underlying connection.
func (f *FalkorDBGraph) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FalkorDBGraph) run(ctx context.Context, command, query string) (*ragduel.GraphResult, error) {
	res, err := f.client.Do(ctx, command, f.graphName, query).Result()
	if err != nil {
		return nil, err
	}
	return parseReply(res)
}
