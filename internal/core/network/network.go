package network

import (
	"context"
	"errors"
)

var (
	ErrClosed         = errors.New("pubsub closed")
	ErrSubscriberFull = errors.New("subscriber buffer full")
)

// Message is the transport envelope delivered to topic subscribers.
type Message struct {
	Topic   string
	Payload []byte
	// From is the transport-level origin when the transport knows it (libp2p peer id).
	From string
}

// PubSub is the broadcast transport the channel actor speaks over. Implementations
// copy payloads so callers may reuse their buffers.
type PubSub interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}
