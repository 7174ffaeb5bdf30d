package ports

import "context"

// EventPublisher delivers outbox records to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}

// InboundMessage is one broker message handed to the trade consumer loop.
type InboundMessage struct {
	Topic   string
	Payload []byte
}

// EventConsumer feeds externally produced trade events into accrual.
type EventConsumer interface {
	Poll(ctx context.Context, max int) ([]InboundMessage, error)
	Close() error
}
