// Package memory provides an in-process pubsub implementation used when the
// write path and the indexer run in one binary, and by tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"forumsearch/internal/core/pubsub"
)

var (
	// ErrEngineClosed is returned when operating on a closed engine.
	ErrEngineClosed = errors.New("engine is closed")

	// ErrPatternSubscribed is returned when a pattern already has a subscriber.
	ErrPatternSubscribed = errors.New("pattern already has a subscriber")
)

// Compile-time check that Engine implements pubsub.Provider.
var _ pubsub.Provider = (*Engine)(nil)

// Engine routes messages between in-process publishers and consumers.
// It mirrors the JetStream-backed provider so the two can be swapped by
// configuration alone.
type Engine struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	closed        atomic.Bool
}

type subscription struct {
	pattern string
	msgCh   chan pubsub.Message
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a new in-memory pubsub engine.
func New() *Engine {
	return &Engine{subscriptions: make(map[string]*subscription)}
}

// NewPublisher creates an in-memory Publisher.
func (e *Engine) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	return &memoryPublisher{engine: e, opts: opts}, nil
}

// NewConsumer creates an in-memory Consumer.
func (e *Engine) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	return &memoryConsumer{engine: e, opts: opts}, nil
}

// Close shuts down the engine and all subscriptions.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sub := range e.subscriptions {
		sub.cancel()
		close(sub.msgCh)
	}
	e.subscriptions = nil
	return nil
}

func (e *Engine) isClosed() bool {
	return e.closed.Load()
}

// publish delivers a message to all matching subscriptions.
func (e *Engine) publish(ctx context.Context, subject string, data []byte) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	for pattern, sub := range e.subscriptions {
		if !matchSubject(pattern, subject) {
			continue
		}
		msg := &memoryMessage{
			data:         data,
			subject:      subject,
			timestamp:    time.Now(),
			numDelivered: 1,
			engine:       e,
			redeliveryCh: sub.msgCh,
			ctx:          sub.ctx,
		}
		select {
		case sub.msgCh <- msg:
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.ctx.Done():
			// Subscription cancelled, skip
		}
	}
	return nil
}

// subscribe registers a subscription for the given pattern and returns the
// message channel along with an unsubscribe function.
func (e *Engine) subscribe(ctx context.Context, pattern string, bufSize int) (<-chan pubsub.Message, func(), error) {
	if e.closed.Load() {
		return nil, nil, ErrEngineClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.subscriptions[pattern] != nil {
		return nil, nil, ErrPatternSubscribed
	}

	subCtx, cancel := context.WithCancel(ctx)
	msgCh := make(chan pubsub.Message, bufSize)
	sub := &subscription{pattern: pattern, msgCh: msgCh, ctx: subCtx, cancel: cancel}
	e.subscriptions[pattern] = sub

	unsubscribe := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.subscriptions[pattern] == sub {
			delete(e.subscriptions, pattern)
			cancel()
			close(msgCh)
		}
	}
	return msgCh, unsubscribe, nil
}

// memoryPublisher implements pubsub.Publisher against the engine.
type memoryPublisher struct {
	engine *Engine
	opts   pubsub.PublisherOptions
	closed atomic.Bool
}

func (p *memoryPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if p.closed.Load() {
		return ErrEngineClosed
	}
	full := subject
	if p.opts.SubjectPrefix != "" {
		full = p.opts.SubjectPrefix + "." + subject
	}
	return p.engine.publish(ctx, full, data)
}

func (p *memoryPublisher) Close() error {
	p.closed.Store(true)
	return nil
}

// memoryConsumer implements pubsub.Consumer against the engine.
type memoryConsumer struct {
	engine *Engine
	opts   pubsub.ConsumerOptions
}

func (c *memoryConsumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	pattern := c.opts.FilterSubject
	if pattern == "" {
		if c.opts.StreamName != "" {
			pattern = c.opts.StreamName + ".>"
		} else {
			pattern = ">"
		}
	}

	bufSize := c.opts.ChannelBufSize
	if bufSize <= 0 {
		bufSize = pubsub.DefaultChannelBufSize
	}

	msgCh, unsubscribe, err := c.engine.subscribe(ctx, pattern, bufSize)
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return msgCh, nil
}
