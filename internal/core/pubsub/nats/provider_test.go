package nats

import (
	"testing"

	"forumsearch/internal/core/pubsub"

	"github.com/stretchr/testify/assert"
)

func TestProvider_RequiresConnect(t *testing.T) {
	p := NewProvider("nats://localhost:4222")

	_, err := p.NewPublisher(pubsub.PublisherOptions{StreamName: "CHANGES"})
	assert.ErrorContains(t, err, "not connected")

	_, err = p.NewConsumer(pubsub.ConsumerOptions{StreamName: "CHANGES"})
	assert.ErrorContains(t, err, "not connected")
}

func TestProvider_CloseWithoutConnect(t *testing.T) {
	p := NewProvider("nats://localhost:4222")
	assert.NoError(t, p.Close())
}
