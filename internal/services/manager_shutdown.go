package services

import "context"

// Shutdown stops the HTTP server, waits for background components, and
// closes the broker and store connections.
func (m *Manager) Shutdown(ctx context.Context) {
	if m.httpServer != nil {
		m.logger.Info("stopping api server")
		if err := m.httpServer.Shutdown(ctx); err != nil {
			m.logger.Error("error shutting down api server", "error", err)
		}
	}

	m.logger.Info("waiting for background components")
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("background components finished")
	case <-ctx.Done():
		m.logger.Warn("timeout waiting for background components")
	}

	if m.broker != nil {
		if err := m.broker.Close(); err != nil {
			m.logger.Error("error closing broker", "error", err)
		}
	}
	if m.store != nil {
		if err := m.store.Close(ctx); err != nil {
			m.logger.Error("error closing question store", "error", err)
		}
	}
}
