package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"meeting-graph/backend/internal/triples"
)

// ============================================================================
// Export Operations
// ============================================================================

// ExportTriples merges every triple as (:Entity)-[:REL {relation}]->(:Entity).
// Re-exporting the same triples creates nothing new. Returns the number of
// relationships created.
func (e *Exporter) ExportTriples(ctx context.Context, ts []triples.Triple) (int, error) {
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		UNWIND $rows AS row
		MERGE (s:Entity {id: row.subject_id})
		SET s.type = row.subject_type, s.label = row.subject_label
		MERGE (o:Entity {id: row.object_id})
		SET o.type = row.object_type, o.label = row.object_label
		MERGE (s)-[r:REL {relation: row.relation}]->(o)
	`

	created := 0
	for _, batch := range batches(tripleRows(ts), e.batchSize) {
		result, err := session.Run(ctx, query, map[string]interface{}{
			"rows": batch,
		})
		if err != nil {
			return created, fmt.Errorf("failed to export triples: %w", err)
		}
		summary, err := result.Consume(ctx)
		if err != nil {
			return created, fmt.Errorf("failed to export triples: %w", err)
		}
		created += summary.Counters().RelationshipsCreated()
	}

	e.logger.Info("Exported triples",
		zap.Int("triples", len(ts)),
		zap.Int("relationships_created", created),
	)
	return created, nil
}

// DeleteEntities removes projected nodes and their relationships, used after a
// cascade delete in the store
func (e *Exporter) DeleteEntities(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (n:Entity)
		WHERE n.id IN $ids
		DETACH DELETE n
	`
	result, err := session.Run(ctx, query, map[string]interface{}{
		"ids": ids,
	})
	if err != nil {
		return fmt.Errorf("failed to delete entities: %w", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("failed to delete entities: %w", err)
	}
	return nil
}

// Reset removes every projected node. Nodes that were not written by the
// exporter are left alone.
func (e *Exporter) Reset(ctx context.Context) (int, error) {
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (n:Entity)
		DETACH DELETE n
	`, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to reset graph: %w", err)
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reset graph: %w", err)
	}
	deleted := summary.Counters().NodesDeleted()
	e.logger.Info("Graph export reset", zap.Int("nodes_deleted", deleted))
	return deleted, nil
}

// Neighbors lists the relations touching an entity, as "relation:other_id"
func (e *Exporter) Neighbors(ctx context.Context, id string) ([]string, error) {
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (n:Entity {id: $id})-[r:REL]-(other:Entity)
		WITH r.relation + ':' + other.id AS edge
		ORDER BY edge
		RETURN count(edge) AS total, collect(edge) AS edges
	`
	result, err := session.Run(ctx, query, map[string]interface{}{
		"id": id,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbors: %w", err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("failed to fetch record: %w", err)
		}
		return []string{}, nil
	}
	record := result.Record()
	edges := getStringSliceFromRecord(record, "edges")
	if total := getInt64FromRecord(record, "total"); int(total) != len(edges) {
		e.logger.Warn("Neighbor count mismatch", zap.String("id", id), zap.Int64("total", total), zap.Int("edges", len(edges)))
	}
	return edges, nil
}
