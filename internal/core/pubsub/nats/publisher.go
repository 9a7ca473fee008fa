package nats

import (
	"context"
	"fmt"

	"forumsearch/internal/core/pubsub"

	"github.com/nats-io/nats.go/jetstream"
)

// jetStreamPublisher implements pubsub.Publisher using NATS JetStream.
type jetStreamPublisher struct {
	js   jetstream.JetStream
	opts pubsub.PublisherOptions
}

// newPublisher ensures the stream exists and returns a publisher bound to it.
// Change events must survive broker restarts, so the stream uses file storage.
func newPublisher(js jetstream.JetStream, opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if opts.StreamName != "" {
		subjects := []string{opts.StreamName + ".>"}
		if opts.SubjectPrefix != "" && opts.SubjectPrefix != opts.StreamName {
			subjects = []string{opts.SubjectPrefix + ".>"}
		}

		_, err := js.CreateOrUpdateStream(context.Background(), jetstream.StreamConfig{
			Name:     opts.StreamName,
			Subjects: subjects,
			Storage:  jetstream.FileStorage,
		})
		if err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", opts.StreamName, err)
		}
	}

	return &jetStreamPublisher{js: js, opts: opts}, nil
}

// Publish sends a message to the specified subject.
func (p *jetStreamPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	fullSubject := subject
	if p.opts.SubjectPrefix != "" {
		fullSubject = p.opts.SubjectPrefix + "." + subject
	}

	if _, err := p.js.Publish(ctx, fullSubject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", fullSubject, err)
	}
	return nil
}

// Close releases resources. JetStream needs no explicit close.
func (p *jetStreamPublisher) Close() error {
	return nil
}
