package memory

import (
	"context"
	"testing"
	"time"

	"forumsearch/internal/core/pubsub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchSubject(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"changes.question.1", "changes.question.1", true},
		{"changes.question.1", "changes.question.2", false},
		{"changes.*.1", "changes.question.1", true},
		{"changes.>", "changes.question.1", true},
		{"changes.>", "changes", false},
		{">", "anything.at.all", true},
		{"", "x", false},
		{"changes.question", "changes.question.1", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchSubject(tt.pattern, tt.subject),
			"pattern=%q subject=%q", tt.pattern, tt.subject)
	}
}

func TestPublishSubscribe(t *testing.T) {
	engine := New()
	defer engine.Close()

	consumer, err := engine.NewConsumer(pubsub.ConsumerOptions{StreamName: "changes"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgCh, err := consumer.Subscribe(ctx)
	require.NoError(t, err)

	pub, err := engine.NewPublisher(pubsub.PublisherOptions{})
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, "changes.question.q-1", []byte("hello")))

	select {
	case msg := <-msgCh:
		assert.Equal(t, "changes.question.q-1", msg.Subject())
		assert.Equal(t, []byte("hello"), msg.Data())
		assert.NoError(t, msg.Ack())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestSubjectPrefix(t *testing.T) {
	engine := New()
	defer engine.Close()

	consumer, err := engine.NewConsumer(pubsub.ConsumerOptions{FilterSubject: "changes.>"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgCh, err := consumer.Subscribe(ctx)
	require.NoError(t, err)

	pub, err := engine.NewPublisher(pubsub.PublisherOptions{SubjectPrefix: "changes"})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, "question.q-9", nil))

	select {
	case msg := <-msgCh:
		assert.Equal(t, "changes.question.q-9", msg.Subject())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestNakRedelivery(t *testing.T) {
	engine := New()
	defer engine.Close()

	consumer, err := engine.NewConsumer(pubsub.ConsumerOptions{StreamName: "changes"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgCh, err := consumer.Subscribe(ctx)
	require.NoError(t, err)

	pub, err := engine.NewPublisher(pubsub.PublisherOptions{})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, "changes.question.q-1", []byte("x")))

	first := <-msgCh
	require.NoError(t, first.Nak())

	select {
	case again := <-msgCh:
		md, err := again.Metadata()
		require.NoError(t, err)
		assert.Equal(t, uint64(2), md.NumDelivered)
	case <-time.After(time.Second):
		t.Fatal("message was not redelivered")
	}
}

func TestNakWithDelayRedelivery(t *testing.T) {
	engine := New()
	defer engine.Close()

	consumer, err := engine.NewConsumer(pubsub.ConsumerOptions{StreamName: "changes"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgCh, err := consumer.Subscribe(ctx)
	require.NoError(t, err)

	pub, err := engine.NewPublisher(pubsub.PublisherOptions{})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, "changes.question.q-1", []byte("x")))

	first := <-msgCh
	start := time.Now()
	require.NoError(t, first.NakWithDelay(50*time.Millisecond))

	select {
	case <-msgCh:
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not redelivered")
	}
}

func TestDuplicatePatternRejected(t *testing.T) {
	engine := New()
	defer engine.Close()

	ctx := context.Background()
	c1, err := engine.NewConsumer(pubsub.ConsumerOptions{StreamName: "changes"})
	require.NoError(t, err)
	_, err = c1.Subscribe(ctx)
	require.NoError(t, err)

	c2, err := engine.NewConsumer(pubsub.ConsumerOptions{StreamName: "changes"})
	require.NoError(t, err)
	_, err = c2.Subscribe(ctx)
	assert.ErrorIs(t, err, ErrPatternSubscribed)
}

func TestClosedEngine(t *testing.T) {
	engine := New()
	require.NoError(t, engine.Close())

	_, err := engine.NewPublisher(pubsub.PublisherOptions{})
	assert.ErrorIs(t, err, ErrEngineClosed)
	_, err = engine.NewConsumer(pubsub.ConsumerOptions{})
	assert.ErrorIs(t, err, ErrEngineClosed)

	// Closing twice is fine.
	assert.NoError(t, engine.Close())
}
