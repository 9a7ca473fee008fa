package pubsub

// PublisherOptions configures publisher behavior.
type PublisherOptions struct {
	// StreamName is the stream to publish to. The stream is created with
	// subjects "<StreamName>.>" if it does not exist.
	StreamName string

	// SubjectPrefix is prepended to all subjects.
	SubjectPrefix string
}

// ConsumerOptions configures consumer behavior.
type ConsumerOptions struct {
	// StreamName is the stream to consume from.
	StreamName string

	// ConsumerName is the durable consumer name.
	ConsumerName string

	// FilterSubject filters messages by subject pattern.
	FilterSubject string

	// ChannelBufSize is the buffer size for the message channel.
	ChannelBufSize int
}

// DefaultChannelBufSize is used when ConsumerOptions leaves the buffer unset.
const DefaultChannelBufSize = 100
