package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/smallnest/ragduel"
)

// MemoryGraph is an in-memory labeled property graph. It is the graph side
// of the fact store when no external graph database is configured, and it
// backs schema description and provenance resolution in either case. It does
// not execute a query language itself; MemoryCypher evaluates a read-only
// Cypher subset over it, and FalkorDBGraph handles full Cypher.
type MemoryGraph struct {
	mu            sync.RWMutex
	entities      map[string]ragduel.Entity
	relationships map[string]ragduel.Relationship
	byType        map[string][]string
	byName        map[string][]string
}

var (
	_ ragduel.GraphWriter    = (*MemoryGraph)(nil)
	_ ragduel.EntityResolver = (*MemoryGraph)(nil)
)

// NewMemoryGraph creates an empty graph.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		entities:      make(map[string]ragduel.Entity),
		relationships: make(map[string]ragduel.Relationship),
		byType:        make(map[string][]string),
		byName:        make(map[string][]string),
	}
}

// AddEntity stores an entity and indexes it by type and name.
func (m *MemoryGraph) AddEntity(ctx context.Context, e *ragduel.Entity) error {
	if e.ID == "" {
		return fmt.Errorf("entity ID is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entities[e.ID]; !exists {
		m.byType[e.Type] = append(m.byType[e.Type], e.ID)
		key := strings.ToLower(e.Name)
		m.byName[key] = append(m.byName[key], e.ID)
	}
	m.entities[e.ID] = *e
	return nil
}

// AddRelationship stores a relationship. Both endpoints must already exist.
func (m *MemoryGraph) AddRelationship(ctx context.Context, r *ragduel.Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entities[r.Source]; !ok {
		return fmt.Errorf("relationship source not found: %s", r.Source)
	}
	if _, ok := m.entities[r.Target]; !ok {
		return fmt.Errorf("relationship target not found: %s", r.Target)
	}
	m.relationships[r.ID] = *r
	return nil
}

// GetEntity retrieves an entity by ID.
func (m *MemoryGraph) GetEntity(ctx context.Context, id string) (*ragduel.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity not found: %s", id)
	}
	return &e, nil
}

// Entities returns all entities, ordered by ID.
func (m *MemoryGraph) Entities(ctx context.Context) ([]ragduel.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.entities))
	for id := range m.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	entities := make([]ragduel.Entity, 0, len(ids))
	for _, id := range ids {
		entities = append(entities, m.entities[id])
	}
	return entities, nil
}

// EntitiesByType returns all entities of the given type, ordered by ID.
func (m *MemoryGraph) EntitiesByType(ctx context.Context, entityType string) ([]ragduel.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := append([]string(nil), m.byType[entityType]...)
	sort.Strings(ids)
	entities := make([]ragduel.Entity, 0, len(ids))
	for _, id := range ids {
		entities = append(entities, m.entities[id])
	}
	return entities, nil
}

// Relationships returns all relationships of the given type; an empty type
// returns everything.
func (m *MemoryGraph) Relationships(ctx context.Context, relType string) ([]ragduel.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rels := make([]ragduel.Relationship, 0, len(m.relationships))
	for _, r := range m.relationships {
		if relType == "" || r.Type == relType {
			rels = append(rels, r)
		}
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })
	return rels, nil
}

// Neighbors returns entities directly connected to the given entity.
func (m *MemoryGraph) Neighbors(ctx context.Context, entityID string) ([]ragduel.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	neighbors := make([]ragduel.Entity, 0)
	for _, r := range m.relationships {
		var other string
		switch entityID {
		case r.Source:
			other = r.Target
		case r.Target:
			other = r.Source
		default:
			continue
		}
		if seen[other] {
			continue
		}
		seen[other] = true
		if e, ok := m.entities[other]; ok {
			neighbors = append(neighbors, e)
		}
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].ID < neighbors[j].ID })
	return neighbors, nil
}

// ResolveEntities maps raw result values back to entities by exact
// case-insensitive name match. Used for provenance: which graph elements a
// query result touched.
func (m *MemoryGraph) ResolveEntities(ctx context.Context, values []string) ([]ragduel.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	resolved := make([]ragduel.Entity, 0)
	for _, v := range values {
		for _, id := range m.byName[strings.ToLower(strings.TrimSpace(v))] {
			if seen[id] {
				continue
			}
			seen[id] = true
			resolved = append(resolved, m.entities[id])
		}
	}
	sort.Slice(resolved, func(i, j int) bool { return resolved[i].ID < resolved[j].ID })
	return resolved, nil
}

// Schema derives the graph schema from the stored elements: entity types
// with their observed properties, relationship types with their endpoint
// labels, and a few sample triples.
func (m *MemoryGraph) Schema(ctx context.Context) (*ragduel.GraphSchema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	schema := &ragduel.GraphSchema{}

	entityTypes := make([]string, 0, len(m.byType))
	for t := range m.byType {
		entityTypes = append(entityTypes, t)
	}
	sort.Strings(entityTypes)

	for _, t := range entityTypes {
		props := map[string]bool{"name": true}
		for _, id := range m.byType[t] {
			for p := range m.entities[id].Properties {
				props[p] = true
			}
		}
		names := make([]string, 0, len(props))
		for p := range props {
			names = append(names, p)
		}
		sort.Strings(names)
		schema.Entities = append(schema.Entities, ragduel.EntityType{Name: t, Properties: names})
	}

	relTypes := make(map[string]ragduel.RelationshipType)
	for _, r := range m.relationships {
		if _, ok := relTypes[r.Type]; ok {
			continue
		}
		relTypes[r.Type] = ragduel.RelationshipType{
			Name:   r.Type,
			Source: m.entities[r.Source].Type,
			Target: m.entities[r.Target].Type,
		}
	}
	relNames := make([]string, 0, len(relTypes))
	for n := range relTypes {
		relNames = append(relNames, n)
	}
	sort.Strings(relNames)
	for _, n := range relNames {
		schema.Relationships = append(schema.Relationships, relTypes[n])
	}

	schema.Samples = m.sampleTriples(3)
	return schema, nil
}

func (m *MemoryGraph) sampleTriples(n int) []string {
	ids := make([]string, 0, len(m.relationships))
	for id := range m.relationships {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	samples := make([]string, 0, n)
	for _, id := range ids {
		if len(samples) == n {
			break
		}
		r := m.relationships[id]
		src, dst := m.entities[r.Source], m.entities[r.Target]
		samples = append(samples, fmt.Sprintf("%s -[%s]-> %s", src.Name, r.Type, dst.Name))
	}
	return samples
}

// Counts returns the number of entities and relationships.
func (m *MemoryGraph) Counts() (entities, relationships int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities), len(m.relationships)
}
