// Package graph projects derived triples into Neo4j for graph exploration.
// The file store stays the system of record; the projection can be rebuilt at any
// time from it.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"meeting-graph/backend/pkg/logger"
)

// DefaultBatchSize is the number of triples merged per query
const DefaultBatchSize = 500

// Exporter handles all Neo4j database operations
type Exporter struct {
	driver    neo4j.DriverWithContext
	logger    *zap.Logger
	batchSize int
}

// Connect opens a driver and verifies the server is reachable
func Connect(ctx context.Context, uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}
	return driver, nil
}

// NewExporter creates an exporter over driver
func NewExporter(driver neo4j.DriverWithContext, log *zap.Logger) *Exporter {
	return &Exporter{
		driver:    driver,
		logger:    logger.OrDefault(log, "graph"),
		batchSize: DefaultBatchSize,
	}
}

// Close closes the Neo4j driver connection
func (e *Exporter) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

// EnsureSchema creates the uniqueness constraint the MERGE queries rely on
func (e *Exporter) EnsureSchema(ctx context.Context) error {
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `CREATE CONSTRAINT entity_id IF NOT EXISTS FOR (n:Entity) REQUIRE n.id IS UNIQUE`
	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return fmt.Errorf("failed to create entity constraint: %w", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("failed to create entity constraint: %w", err)
	}
	return nil
}
