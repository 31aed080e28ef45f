package infrastructure

import (
	"context"
)

// MessagePublisher defines the interface for publishing messages to a message bus
type MessagePublisher interface {
	// Publish publishes a message to the specified subject
	Publish(ctx context.Context, subject string, data []byte) error
}

// MessageSubscriber defines the interface for consuming messages from a message bus
type MessageSubscriber interface {
	// Subscribe registers a handler for messages on the specified subject
	Subscribe(subject string, handler func([]byte) error) error
}
