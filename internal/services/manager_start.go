package services

import (
	"context"
	"errors"
	"net/http"
)

// Start launches the selected roles. It returns immediately; the components
// run until the context is cancelled.
func (m *Manager) Start(ctx context.Context) {
	if m.httpServer != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.logger.Info("api listening", "addr", m.httpServer.Addr)
			if err := m.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				m.logger.Error("api server failed", "error", err)
			}
		}()
	}

	if m.indexerSvc != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.indexerSvc.Start(ctx); err != nil {
				m.logger.Error("indexer stopped with error", "error", err)
			}
		}()
	}
}
