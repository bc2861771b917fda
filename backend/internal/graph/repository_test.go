package graph

import (
	"context"
	"os"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"meeting-graph/backend/internal/triples"
)

func sampleTriples() []triples.Triple {
	wg := triples.Node{Type: "workgroup", ID: "test-wg", Label: "Archives WG"}
	m := triples.Node{Type: "meeting", ID: "test-m1", Label: "Archives WG meeting 2025-01-08"}
	p := triples.Node{Type: "person", ID: "test-p1", Label: "Stephen"}
	return []triples.Triple{
		{Subject: wg, Relation: triples.Held, Object: m},
		{Subject: p, Relation: triples.Attended, Object: m},
		{Subject: p, Relation: triples.Attended, Object: m},
	}
}

func TestTripleRows_DropsDuplicates(t *testing.T) {
	rows := tripleRows(sampleTriples())
	require.Len(t, rows, 2)
	assert.Equal(t, "test-wg", rows[0]["subject_id"])
	assert.Equal(t, "held", rows[0]["relation"])
	assert.Equal(t, "Stephen", rows[1]["subject_label"])
}

func TestBatches(t *testing.T) {
	rows := make([]map[string]interface{}, 5)
	got := batches(rows, 2)
	require.Len(t, got, 3)
	assert.Len(t, got[2], 1)
	assert.Len(t, batches(rows, 0), 1)
	assert.Empty(t, batches(nil, 2))
}

// TestExporter requires a running Neo4j instance.
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD environment variables.
func TestExporter_ExportIsIdempotent(t *testing.T) {
	uri := os.Getenv("NEO4J_URI")
	if testing.Short() || uri == "" {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := Connect(ctx, uri, envOr("NEO4J_USER", "neo4j"), os.Getenv("NEO4J_PASSWORD"))
	require.NoError(t, err)
	defer driver.Close(ctx)

	e := NewExporter(driver, zaptest.NewLogger(t))
	require.NoError(t, e.EnsureSchema(ctx))
	defer func() {
		session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, _ = session.Run(ctx, "MATCH (n:Entity) WHERE n.id STARTS WITH 'test-' DETACH DELETE n", nil)
	}()

	created, err := e.ExportTriples(ctx, sampleTriples())
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = e.ExportTriples(ctx, sampleTriples())
	require.NoError(t, err)
	assert.Zero(t, created)

	edges, err := e.Neighbors(ctx, "test-m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"attended:test-p1", "held:test-wg"}, edges)

	require.NoError(t, e.DeleteEntities(ctx, []string{"test-p1"}))
	edges, err = e.Neighbors(ctx, "test-m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"held:test-wg"}, edges)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
