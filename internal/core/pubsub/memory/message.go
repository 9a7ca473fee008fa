package memory

import (
	"context"
	"sync"
	"time"

	"forumsearch/internal/core/pubsub"
)

// memoryMessage implements pubsub.Message for in-memory delivery.
type memoryMessage struct {
	data         []byte
	subject      string
	timestamp    time.Time
	numDelivered uint64

	// For redelivery on Nak
	engine       *Engine
	redeliveryCh chan pubsub.Message
	ctx          context.Context

	mu     sync.Mutex
	acked  bool
	naked  bool
	termed bool
}

func (m *memoryMessage) Data() []byte {
	return m.data
}

func (m *memoryMessage) Subject() string {
	return m.subject
}

// Ack acknowledges successful processing. Idempotent.
func (m *memoryMessage) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acked || m.naked || m.termed {
		return nil
	}
	m.acked = true
	return nil
}

// Nak requeues the message immediately without blocking. If the channel is
// full or already closed the message is dropped.
func (m *memoryMessage) Nak() error {
	m.mu.Lock()
	if m.acked || m.termed || m.naked {
		m.mu.Unlock()
		return nil
	}
	m.naked = true
	m.numDelivered++
	m.mu.Unlock()

	defer func() {
		recover() // send on closed channel after shutdown
	}()

	select {
	case m.redeliveryCh <- m:
	case <-m.ctx.Done():
	default:
	}
	return nil
}

// NakWithDelay requeues the message after a delay.
func (m *memoryMessage) NakWithDelay(delay time.Duration) error {
	m.mu.Lock()
	if m.acked || m.termed || m.naked {
		m.mu.Unlock()
		return nil
	}
	m.naked = true
	m.numDelivered++
	m.mu.Unlock()

	time.AfterFunc(delay, func() {
		if m.engine.isClosed() {
			return
		}
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		// Clear the naked flag so the redelivered copy can be acked or
		// naked again.
		m.mu.Lock()
		m.naked = false
		m.mu.Unlock()

		defer func() {
			recover()
		}()

		select {
		case m.redeliveryCh <- m:
		case <-m.ctx.Done():
		}
	})
	return nil
}

// Term terminates the message with no redelivery.
func (m *memoryMessage) Term() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acked || m.naked || m.termed {
		return nil
	}
	m.termed = true
	return nil
}

func (m *memoryMessage) Metadata() (pubsub.MessageMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pubsub.MessageMetadata{
		NumDelivered: m.numDelivered,
		Timestamp:    m.timestamp,
		Subject:      m.subject,
	}, nil
}
