// Package services wires the configured components into runnable processes:
// the API (search plus admin endpoints) and the indexer (real-time event
// consumer). A single process may run either or both.
package services

import (
	"log/slog"
	"net/http"
	"sync"

	"forumsearch/internal/config"
	"forumsearch/internal/core/pubsub"
	"forumsearch/internal/indexer"
	"forumsearch/internal/indexer/rebuild"
	"forumsearch/internal/question"
	"forumsearch/internal/search"
	"forumsearch/internal/search/query"
)

// Options selects which roles this process runs.
type Options struct {
	RunAPI     bool
	RunIndexer bool
}

// Manager owns the lifecycle of all configured components.
type Manager struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	store        question.Store
	broker       pubsub.Provider
	engine       search.Engine
	querySvc     *query.Service
	orchestrator *rebuild.Orchestrator
	indexerSvc   *indexer.Service
	writeSvc     *question.Service
	httpServer   *http.Server

	wg sync.WaitGroup
}

// NewManager creates a manager. Call Init before Start.
func NewManager(cfg *config.Config, opts Options, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		opts:   opts,
		logger: logger.With("component", "services"),
	}
}

// QueryService exposes the query service, for embedding callers.
func (m *Manager) QueryService() *query.Service {
	return m.querySvc
}

// WriteService exposes the question write service, for embedding callers.
func (m *Manager) WriteService() *question.Service {
	return m.writeSvc
}

// Orchestrator exposes the rebuild orchestrator.
func (m *Manager) Orchestrator() *rebuild.Orchestrator {
	return m.orchestrator
}
