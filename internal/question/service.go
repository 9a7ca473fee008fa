package question

import (
	"context"
	"fmt"
	"log/slog"

	"forumsearch/internal/core/pubsub"
	"forumsearch/internal/events"
)

// Service is the write-service layer over the question store. Every
// successful mutation publishes one change event on the async channel so
// the search index can converge, without coupling write latency to index
// latency.
type Service struct {
	store  Store
	pub    pubsub.Publisher
	logger *slog.Logger
}

// NewService creates the write service. pub may be nil, in which case no
// events are published (useful for offline tooling).
func NewService(store Store, pub pubsub.Publisher, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		pub:    pub,
		logger: logger.With("component", "question"),
	}
}

// Create inserts a new question and announces it to the indexer.
func (s *Service) Create(ctx context.Context, q *Question) error {
	if q.ID == "" {
		return fmt.Errorf("question id must not be empty")
	}
	if q.Category.ID == "" {
		return fmt.Errorf("question category is mandatory")
	}

	if err := s.store.Create(ctx, q); err != nil {
		return err
	}
	s.publishChange(ctx, q)
	return nil
}

// Update applies field changes and announces the new state.
func (s *Service) Update(ctx context.Context, id string, upd Update) (*Question, error) {
	q, err := s.store.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	s.publishChange(ctx, q)
	return q, nil
}

// SoftDelete hides the question from search without destroying the row.
func (s *Service) SoftDelete(ctx context.Context, id string) (*Question, error) {
	q, err := s.store.SetVisibility(ctx, id, VisibilityDeleted)
	if err != nil {
		return nil, err
	}
	s.publishChange(ctx, q)
	return q, nil
}

// Restore brings a soft-deleted question back.
func (s *Service) Restore(ctx context.Context, id string) (*Question, error) {
	q, err := s.store.SetVisibility(ctx, id, VisibilityActive)
	if err != nil {
		return nil, err
	}
	s.publishChange(ctx, q)
	return q, nil
}

// RecountAnswers refreshes the denormalized answer count after an answer
// mutation. Callers invoke it explicitly; nothing recomputes behind their
// back.
func (s *Service) RecountAnswers(ctx context.Context, id string) (*Question, error) {
	q, err := s.store.RecountAnswers(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publishChange(ctx, q)
	return q, nil
}

// publishChange emits the change event for the question's post-write state:
// upsert while active, delete otherwise. Delivery is best effort; a failed
// publish never fails the originating write. The gap this leaves is closed
// by the next rebuild.
func (s *Service) publishChange(ctx context.Context, q *Question) {
	if s.pub == nil {
		return
	}

	op := events.OpDelete
	if q.Active() {
		op = events.OpUpsert
	}

	evt := events.NewChangeEvent(events.EntityQuestion, q.ID, op)
	data, err := evt.Encode()
	if err != nil {
		s.logger.Warn("failed to encode change event",
			"questionID", q.ID, "error", err)
		return
	}

	if err := s.pub.Publish(ctx, evt.Subject(), data); err != nil {
		s.logger.Warn("failed to publish change event",
			"questionID", q.ID, "op", op, "error", err)
	}
}
