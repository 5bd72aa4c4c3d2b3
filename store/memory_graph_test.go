package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/ragduel"
)

func seedGraph(t *testing.T) *MemoryGraph {
	t.Helper()
	ctx := context.Background()
	g := NewMemoryGraph()

	entities := []ragduel.Entity{
		{ID: "r1", Type: "Researcher", Name: "Emily Chen"},
		{ID: "r2", Type: "Researcher", Name: "Raj Patel"},
		{ID: "a1", Type: "Article", Name: "AI in Healthcare", Properties: map[string]any{"abstract": "..."}},
		{ID: "t1", Type: "Topic", Name: "Artificial Intelligence"},
	}
	for i := range entities {
		require.NoError(t, g.AddEntity(ctx, &entities[i]))
	}

	rels := []ragduel.Relationship{
		{ID: "p1", Type: "PUBLISHED", Source: "r1", Target: "a1"},
		{ID: "p2", Type: "PUBLISHED", Source: "r2", Target: "a1"},
		{ID: "i1", Type: "IN_TOPIC", Source: "a1", Target: "t1"},
	}
	for i := range rels {
		require.NoError(t, g.AddRelationship(ctx, &rels[i]))
	}
	return g
}

func TestMemoryGraphCounts(t *testing.T) {
	g := seedGraph(t)
	entities, rels := g.Counts()
	assert.Equal(t, 4, entities)
	assert.Equal(t, 3, rels)
}

func TestMemoryGraphRejectsDanglingEdges(t *testing.T) {
	g := NewMemoryGraph()
	err := g.AddRelationship(context.Background(), &ragduel.Relationship{
		ID: "x", Type: "PUBLISHED", Source: "missing", Target: "also-missing",
	})
	assert.Error(t, err)
}

func TestMemoryGraphNeighbors(t *testing.T) {
	g := seedGraph(t)

	neighbors, err := g.Neighbors(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, neighbors, 3)
	assert.Equal(t, "r1", neighbors[0].ID)
	assert.Equal(t, "r2", neighbors[1].ID)
	assert.Equal(t, "t1", neighbors[2].ID)
}

func TestMemoryGraphResolveEntities(t *testing.T) {
	g := seedGraph(t)

	resolved, err := g.ResolveEntities(context.Background(), []string{
		"emily chen", " AI in Healthcare ", "nobody",
	})
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, "a1", resolved[0].ID)
	assert.Equal(t, "r1", resolved[1].ID)
}

func TestMemoryGraphSchema(t *testing.T) {
	g := seedGraph(t)

	schema, err := g.Schema(context.Background())
	require.NoError(t, err)

	require.Len(t, schema.Entities, 3)
	assert.Equal(t, "Article", schema.Entities[0].Name)
	assert.Contains(t, schema.Entities[0].Properties, "abstract")

	require.Len(t, schema.Relationships, 2)
	assert.Equal(t, "IN_TOPIC", schema.Relationships[0].Name)
	assert.Equal(t, "Article", schema.Relationships[0].Source)
	assert.Equal(t, "Topic", schema.Relationships[0].Target)
	assert.Equal(t, "PUBLISHED", schema.Relationships[1].Name)

	assert.Len(t, schema.Samples, 3)
	assert.Contains(t, schema.Describe(), "(Researcher)-[:PUBLISHED]->(Article)")
}

func TestEntitiesByTypeOrdered(t *testing.T) {
	g := seedGraph(t)

	researchers, err := g.EntitiesByType(context.Background(), "Researcher")
	require.NoError(t, err)
	require.Len(t, researchers, 2)
	assert.Equal(t, "r1", researchers[0].ID)
	assert.Equal(t, "r2", researchers[1].ID)
}
