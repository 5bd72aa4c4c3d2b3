package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCypherSingleHop(t *testing.T) {
	c := NewMemoryCypher(seedGraph(t))

	result, err := c.Execute(context.Background(),
		"MATCH (r:Researcher {name: 'Emily Chen'})-[:PUBLISHED]->(a:Article) RETURN a.name")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.name"}, result.Columns)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "AI in Healthcare", result.Rows[0][0])
}

func TestMemoryCypherCollaborators(t *testing.T) {
	c := NewMemoryCypher(seedGraph(t))

	result, err := c.Execute(context.Background(),
		`MATCH (r1:Researcher)-[:PUBLISHED]->(a:Article)<-[:PUBLISHED]-(r2:Researcher)
		 WHERE r1.name = 'Emily Chen' AND r2.name <> 'Emily Chen'
		 RETURN DISTINCT r2.name`)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Raj Patel", result.Rows[0][0])
}

func TestMemoryCypherCount(t *testing.T) {
	c := NewMemoryCypher(seedGraph(t))

	result, err := c.Execute(context.Background(),
		"MATCH (r:Researcher)-[:PUBLISHED]->(a:Article) RETURN a.name, count(r) ORDER BY a.name")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "AI in Healthcare", result.Rows[0][0])
	assert.Equal(t, int64(2), result.Rows[0][1])
}

func TestMemoryCypherOrderAndLimit(t *testing.T) {
	c := NewMemoryCypher(seedGraph(t))

	result, err := c.Execute(context.Background(),
		"MATCH (r:Researcher) RETURN r.name ORDER BY r.name DESC LIMIT 1")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Raj Patel", result.Rows[0][0])
}

func TestMemoryCypherContains(t *testing.T) {
	c := NewMemoryCypher(seedGraph(t))

	result, err := c.Execute(context.Background(),
		"MATCH (a:Article) WHERE a.name CONTAINS 'healthcare' RETURN a.name")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
}

func TestMemoryCypherUndirected(t *testing.T) {
	c := NewMemoryCypher(seedGraph(t))

	result, err := c.Execute(context.Background(),
		"MATCH (a:Article {name: 'AI in Healthcare'})-[:PUBLISHED]-(r) RETURN r.name ORDER BY r.name")
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "Emily Chen", result.Rows[0][0])
}

func TestMemoryCypherRejectsWrites(t *testing.T) {
	c := NewMemoryCypher(seedGraph(t))
	ctx := context.Background()

	for _, query := range []string{
		"CREATE (n:Researcher {name: 'Eve'})",
		"MATCH (n) DETACH DELETE n",
		"MATCH (n {name: 'Emily Chen'}) SET n.name = 'Eve' RETURN n",
		"MERGE (n:Topic {name: 'X'}) RETURN n",
	} {
		_, err := c.Execute(ctx, query)
		assert.Error(t, err, query)
	}

	// A literal containing a clause keyword is not a write.
	_, err := c.Execute(ctx, "MATCH (a:Article) WHERE a.name CONTAINS 'Set Theory' RETURN a.name")
	assert.NoError(t, err)
}

func TestMemoryCypherUnsupportedSyntaxNamesConstruct(t *testing.T) {
	c := NewMemoryCypher(seedGraph(t))

	_, err := c.Execute(context.Background(), "MATCH (n) WHERE n.name STARTS WITH 'E' RETURN n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "condition")

	_, err = c.Execute(context.Background(), "MATCH (n:Researcher), (m:Topic) RETURN n, m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple patterns")

	_, err = c.Execute(context.Background(), "MATCH (n) RETURN n ORDER BY n.age")
	require.Error(t, err)
}

func TestMemoryCypherSchemaAndClose(t *testing.T) {
	c := NewMemoryCypher(seedGraph(t))

	schema, err := c.DescribeSchema(context.Background())
	require.NoError(t, err)
	assert.Len(t, schema.Entities, 3)
	assert.NoError(t, c.Close())
}
