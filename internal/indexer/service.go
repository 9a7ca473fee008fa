// Package indexer applies change events to the live search index in near
// real time. Events are commands without payloads: each apply re-reads the
// current state from the system of record, so processing converges to the
// same index state regardless of delivery order or duplication.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"forumsearch/internal/config"
	"forumsearch/internal/core/pubsub"
	"forumsearch/internal/events"
	"forumsearch/internal/question"
	"forumsearch/internal/search"
)

const (
	defaultDrainTimeout    = 5 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// Stats counts indexer outcomes since start.
type Stats struct {
	Processed  uint64
	Failed     uint64
	Terminated uint64
}

// Service consumes change events and keeps the aliased index consistent
// with the system of record.
type Service struct {
	consumer pubsub.Consumer
	store    question.Store
	engine   search.Engine
	alias    string
	cfg      config.IndexerConfig
	logger   *slog.Logger

	workerChans []chan pubsub.Message
	wg          sync.WaitGroup

	closing       atomic.Bool
	inFlightCount atomic.Int32

	processed  atomic.Uint64
	failed     atomic.Uint64
	terminated atomic.Uint64
}

// NewService builds an indexer writing through the given alias.
func NewService(consumer pubsub.Consumer, store question.Store, engine search.Engine, alias string, cfg config.IndexerConfig, logger *slog.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.ChannelBufSize <= 0 {
		cfg.ChannelBufSize = pubsub.DefaultChannelBufSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	return &Service{
		consumer: consumer,
		store:    store,
		engine:   engine,
		alias:    alias,
		cfg:      cfg,
		logger:   logger.With("component", "indexer"),
	}
}

// Stats returns a snapshot of the outcome counters.
func (s *Service) Stats() Stats {
	return Stats{
		Processed:  s.processed.Load(),
		Failed:     s.failed.Load(),
		Terminated: s.terminated.Load(),
	}
}

// Start consumes events until the context is cancelled. Events are
// partitioned across workers by entity identity, so events for one entity
// apply in delivery order while distinct entities proceed in parallel.
func (s *Service) Start(ctx context.Context) error {
	msgCh, err := s.consumer.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to change events: %w", err)
	}

	s.workerChans = make([]chan pubsub.Message, s.cfg.Workers)
	for i := 0; i < s.cfg.Workers; i++ {
		s.workerChans[i] = make(chan pubsub.Message, s.cfg.ChannelBufSize)
		s.wg.Add(1)
		go s.workerLoop(ctx, i)
	}

	s.logger.Info("indexer started", "workers", s.cfg.Workers, "alias", s.alias)

	for msg := range msgCh {
		s.dispatch(msg)
	}
	// Channel closed means the context was cancelled.

	s.logger.Info("stopping indexer")
	s.closing.Store(true)

	drainCtx, drainCancel := context.WithTimeout(context.Background(), defaultDrainTimeout)
	defer drainCancel()
	s.waitForDrain(drainCtx)

	for _, ch := range s.workerChans {
		close(ch)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer shutdownCancel()

	select {
	case <-done:
		s.logger.Info("all indexer workers stopped")
	case <-shutdownCtx.Done():
		s.logger.Warn("indexer shutdown timeout exceeded")
	}
	return nil
}

func (s *Service) waitForDrain(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if remaining := s.inFlightCount.Load(); remaining > 0 {
				s.logger.Warn("drain timeout with messages in flight", "remaining", remaining)
			}
			return
		case <-ticker.C:
			if s.inFlightCount.Load() == 0 {
				return
			}
		}
	}
}

func (s *Service) dispatch(msg pubsub.Message) {
	s.inFlightCount.Add(1)
	defer s.inFlightCount.Add(-1)

	if s.closing.Load() {
		msg.Nak()
		return
	}

	ev, err := events.Decode(msg.Data())
	if err != nil {
		s.logger.Error("undecodable change event", "subject", msg.Subject(), "error", err)
		s.terminated.Add(1)
		msg.Term()
		return
	}

	h := fnv.New32a()
	h.Write([]byte(ev.EntityType))
	h.Write([]byte(ev.EntityID))
	workerIdx := int(h.Sum32() % uint32(s.cfg.Workers))

	s.workerChans[workerIdx] <- msg
}

func (s *Service) workerLoop(ctx context.Context, id int) {
	defer s.wg.Done()

	for msg := range s.workerChans[id] {
		// Already validated in dispatch.
		ev, err := events.Decode(msg.Data())
		if err != nil {
			s.terminated.Add(1)
			msg.Term()
			continue
		}

		if err := s.ApplyEvent(ctx, ev); err != nil {
			s.failed.Add(1)
			s.logger.Error("failed to apply change event",
				"worker_id", id, "event_id", ev.EventID, "entity_id", ev.EntityID, "error", err)
			s.retryOrTerm(msg, ev)
			continue
		}

		s.processed.Add(1)
		msg.Ack()
	}
}

// retryOrTerm requests redelivery with exponential backoff, or terminates
// the message once the delivery budget is spent.
func (s *Service) retryOrTerm(msg pubsub.Message, ev *events.ChangeEvent) {
	md, err := msg.Metadata()
	if err != nil {
		s.logger.Error("failed to read message metadata", "event_id", ev.EventID, "error", err)
		msg.Nak()
		return
	}

	if int(md.NumDelivered) >= s.cfg.MaxAttempts {
		s.logger.Error("delivery budget exhausted, terminating event",
			"event_id", ev.EventID, "entity_id", ev.EntityID, "max_attempts", s.cfg.MaxAttempts)
		s.terminated.Add(1)
		msg.Term()
		return
	}

	attempt := int(md.NumDelivered)
	backoff := s.cfg.InitialBackoff * (1 << (attempt - 1))
	if s.cfg.MaxBackoff > 0 && backoff > s.cfg.MaxBackoff {
		backoff = s.cfg.MaxBackoff
	}

	s.logger.Info("retrying change event",
		"event_id", ev.EventID, "backoff", backoff, "attempt", attempt+1, "max_attempts", s.cfg.MaxAttempts)
	msg.NakWithDelay(backoff)
}

// ApplyEvent reconciles the index with the current state of one entity.
// The event's operation is only a hint: the store is the truth, so an
// upsert for a question that has since gone inactive removes the document,
// and a delete for a question that was restored re-indexes it.
func (s *Service) ApplyEvent(ctx context.Context, ev *events.ChangeEvent) error {
	if ev.EntityType != events.EntityQuestion {
		// Unknown entity types are acked and skipped so adding one later
		// does not wedge old consumers.
		s.logger.Warn("skipping event for unhandled entity type",
			"entity_type", ev.EntityType, "entity_id", ev.EntityID)
		return nil
	}

	q, err := s.store.GetActiveQuestion(ctx, ev.EntityID)
	switch {
	case err == nil:
		if err := s.engine.Upsert(ctx, s.alias, search.Transform(q)); err != nil {
			return fmt.Errorf("upsert question %s: %w", ev.EntityID, err)
		}
	case errors.Is(err, question.ErrNotFound):
		if err := s.engine.Delete(ctx, s.alias, ev.EntityID); err != nil {
			return fmt.Errorf("delete question %s: %w", ev.EntityID, err)
		}
	default:
		return fmt.Errorf("fetch question %s: %w", ev.EntityID, err)
	}
	return nil
}
