// Package services builds the archive components from configuration and owns
// their background workers.
package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"meeting-graph/backend/internal/api"
	"meeting-graph/backend/internal/chunker"
	"meeting-graph/backend/internal/graph"
	"meeting-graph/backend/internal/ingest"
	"meeting-graph/backend/internal/integrity"
	"meeting-graph/backend/internal/normalize"
	"meeting-graph/backend/internal/query"
	"meeting-graph/backend/internal/store"
	"meeting-graph/backend/internal/triples"
	"meeting-graph/backend/pkg/config"
)

// ServiceManager holds one wired set of components over one data directory
type ServiceManager struct {
	logger *zap.Logger
	cfg    *config.Config

	Store      *store.FileStore
	Guard      *integrity.Guard
	Normalizer *normalize.Normalizer
	Chunker    *chunker.Chunker
	Ingester   *ingest.Ingester
	Query      *query.Service
	Generator  *triples.Generator

	mu           sync.Mutex
	exporter     *graph.Exporter
	checksCancel context.CancelFunc
	wg           sync.WaitGroup
}

// NewServiceManager opens the store and wires every component
func NewServiceManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ServiceManager, error) {
	s, err := store.Open(cfg.DataDir, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open entity store: %w", err)
	}

	rules := normalize.DefaultRules()
	if cfg.NormalizerRulesFile != "" {
		if rules, err = normalize.LoadRules(cfg.NormalizerRulesFile); err != nil {
			return nil, err
		}
	}

	counter, err := chunker.NewCounter(cfg.Tokenizer)
	if err != nil {
		return nil, err
	}

	guard := integrity.NewGuard(s, logger)
	n, err := normalize.New(ctx, guard, normalize.Options{
		Threshold: cfg.SimilarityThreshold,
		Epsilon:   cfg.AmbiguityEpsilon,
		Rules:     rules,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	c := chunker.New(chunker.Options{Counter: counter, TokenBudget: cfg.TokenBudget, Logger: logger})

	sm := &ServiceManager{
		logger:     logger,
		cfg:        cfg,
		Store:      s,
		Guard:      guard,
		Normalizer: n,
		Chunker:    c,
		Ingester:   ingest.New(guard, n, ingest.Options{Workers: cfg.IngestWorkers, Chunker: c, Logger: logger}),
		Query:      query.New(s, logger),
		Generator:  triples.NewGenerator(s, logger),
	}
	logger.Info("Services ready",
		zap.String("data_dir", s.Root()),
		zap.String("tokenizer", counter.Name()),
		zap.Int("token_budget", cfg.TokenBudget),
		zap.Strings("normalizer_rules", rules.Names()),
	)
	return sm, nil
}

// APIDeps returns the components the HTTP router serves
func (sm *ServiceManager) APIDeps() api.Deps {
	return api.Deps{
		Guard:     sm.Guard,
		Query:     sm.Query,
		Ingester:  sm.Ingester,
		Generator: sm.Generator,
		Logger:    sm.logger,
	}
}

// Logger returns the logger the components were built with
func (sm *ServiceManager) Logger() *zap.Logger {
	return sm.logger
}

// Neo4jEnabled reports whether a graph export target is configured
func (sm *ServiceManager) Neo4jEnabled() bool {
	return sm.cfg.Neo4jEnabled()
}

// Exporter connects to Neo4j on first use. It fails when no URI is configured.
func (sm *ServiceManager) Exporter(ctx context.Context) (*graph.Exporter, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.exporter != nil {
		return sm.exporter, nil
	}
	if !sm.cfg.Neo4jEnabled() {
		return nil, fmt.Errorf("graph export needs NEO4J_URI")
	}
	driver, err := graph.Connect(ctx, sm.cfg.Neo4jURI, sm.cfg.Neo4jUser, sm.cfg.Neo4jPassword)
	if err != nil {
		return nil, err
	}
	e := graph.NewExporter(driver, sm.logger)
	if err := e.EnsureSchema(ctx); err != nil {
		_ = e.Close(ctx)
		return nil, err
	}
	sm.exporter = e
	sm.logger.Info("Neo4j export enabled", zap.String("uri", sm.cfg.Neo4jURI))
	return e, nil
}

// StartConsistencyChecks runs the periodic index and junction repair in the background
func (sm *ServiceManager) StartConsistencyChecks() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.checksCancel != nil {
		return fmt.Errorf("consistency checks already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sm.checksCancel = cancel
	sm.wg.Add(1)
	go func() {
		defer sm.wg.Done()
		store.RunConsistencyChecks(ctx, sm.Store, sm.cfg.ConsistencyCheckInterval, sm.logger)
	}()

	sm.logger.Info("Consistency checks started", zap.Duration("interval", sm.cfg.ConsistencyCheckInterval))
	return nil
}

// Shutdown stops background workers and closes the Neo4j driver if one was opened
func (sm *ServiceManager) Shutdown(ctx context.Context) {
	sm.mu.Lock()
	if sm.checksCancel != nil {
		sm.checksCancel()
		sm.checksCancel = nil
	}
	exporter := sm.exporter
	sm.exporter = nil
	sm.mu.Unlock()

	sm.wg.Wait()

	if exporter != nil {
		if err := exporter.Close(ctx); err != nil {
			sm.logger.Warn("Failed to close Neo4j driver", zap.Error(err))
		}
	}
	sm.logger.Info("Services stopped")
}
