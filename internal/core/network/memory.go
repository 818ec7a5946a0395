package network

import (
	"context"
	"fmt"
	"sync"
)

const defaultMemoryBuffer = 64

// MemoryPubSub is a process-local transport used for single-node deployments and tests.
type MemoryPubSub struct {
	mu     sync.RWMutex
	nextID int
	buffer int
	closed bool
	subs   map[string]map[int]chan Message
}

func NewMemoryPubSub() *MemoryPubSub {
	return NewMemoryPubSubSize(defaultMemoryBuffer)
}

// NewMemoryPubSubSize sets the per-subscriber channel buffer.
func NewMemoryPubSubSize(buffer int) *MemoryPubSub {
	if buffer <= 0 {
		buffer = defaultMemoryBuffer
	}
	return &MemoryPubSub{buffer: buffer, subs: make(map[string]map[int]chan Message)}
}

// Publish never blocks: a subscriber whose buffer is full misses the message and the
// call reports ErrSubscriberFull after offering it to everyone else.
func (m *MemoryPubSub) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	dropped := 0
	for _, ch := range m.subs[topic] {
		msg := Message{Topic: topic, Payload: append([]byte(nil), payload...)}
		select {
		case ch <- msg:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%w: topic %s, %d dropped", ErrSubscriberFull, topic, dropped)
	}
	return nil
}

func (m *MemoryPubSub) Subscribe(topic string) (<-chan Message, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, nil, ErrClosed
	}
	if _, ok := m.subs[topic]; !ok {
		m.subs[topic] = make(map[int]chan Message)
	}
	id := m.nextID
	m.nextID++
	ch := make(chan Message, m.buffer)
	m.subs[topic][id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if subsByTopic, ok := m.subs[topic]; ok {
			if sub, exists := subsByTopic[id]; exists {
				delete(subsByTopic, id)
				close(sub)
			}
			if len(subsByTopic) == 0 {
				delete(m.subs, topic)
			}
		}
	}
	return ch, cancel, nil
}

// Close ends every subscription.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for topic, byID := range m.subs {
		for _, ch := range byID {
			close(ch)
		}
		delete(m.subs, topic)
	}
	return nil
}
