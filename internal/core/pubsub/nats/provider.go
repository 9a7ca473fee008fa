// Package nats implements the pubsub provider on NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"

	"forumsearch/internal/core/pubsub"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// jetStreamNew is a variable to allow mocking in tests.
var jetStreamNew = func(nc *nats.Conn) (jetstream.JetStream, error) {
	return jetstream.New(nc)
}

// natsConnect is a variable to allow mocking in tests.
var natsConnect = func(url string) (*nats.Conn, error) {
	return nats.Connect(url)
}

// Provider implements pubsub.Provider using NATS JetStream. It owns the
// connection lifecycle; publishers and consumers share the connection.
type Provider struct {
	url string
	nc  *nats.Conn
	js  jetstream.JetStream
}

// Compile-time check that Provider implements pubsub.Provider.
var (
	_ pubsub.Provider    = (*Provider)(nil)
	_ pubsub.Connectable = (*Provider)(nil)
)

// NewProvider creates a NATS-based pubsub provider. Connect must be called
// before NewPublisher or NewConsumer.
func NewProvider(url string) *Provider {
	return &Provider{url: url}
}

// Connect establishes the NATS connection and initializes JetStream.
func (p *Provider) Connect(ctx context.Context) error {
	nc, err := natsConnect(p.url)
	if err != nil {
		return fmt.Errorf("connect to NATS at %s: %w", p.url, err)
	}

	js, err := jetStreamNew(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("create JetStream context: %w", err)
	}

	p.nc = nc
	p.js = js
	slog.Info("connected to NATS", "url", p.url)
	return nil
}

// NewPublisher creates a Publisher backed by NATS JetStream.
func (p *Provider) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if p.js == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}
	return newPublisher(p.js, opts)
}

// NewConsumer creates a Consumer backed by NATS JetStream.
func (p *Provider) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if p.js == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}
	if opts.StreamName == "" {
		return nil, fmt.Errorf("stream name is required")
	}
	return &jetStreamConsumer{js: p.js, opts: opts}, nil
}

// Close closes the NATS connection.
func (p *Provider) Close() error {
	if p.nc != nil {
		slog.Info("closing NATS connection")
		p.nc.Close()
		p.nc = nil
		p.js = nil
	}
	return nil
}
