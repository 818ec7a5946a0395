// Package mirror keeps a read-only copy of a remote channel by following the events
// its actor publishes. A mirror that joins late starts from the first event it sees.
package mirror

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"Broadcast-Apps/internal/actor"
	"Broadcast-Apps/internal/channel"
	"Broadcast-Apps/internal/codec"
	"Broadcast-Apps/internal/core/network"
	"Broadcast-Apps/internal/identity"
)

// Mirror replays actor.Event values into local copies of the metadata, the subscriber
// set and the retained history.
type Mirror struct {
	mu          sync.RWMutex
	codec       codec.Codec
	log         logrus.FieldLogger
	cancel      func()
	done        chan struct{}
	synced      bool
	meta        channel.Metadata
	subscribers *channel.Registry
	messages    *channel.MessageLog
	seq         uint64
	gaps        int
	created     *channel.Post
}

// Follow subscribes to the events topic of topics and applies events until Close.
func Follow(ps network.PubSub, c codec.Codec, topics actor.Topics, logger logrus.FieldLogger) (*Mirror, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if c == nil {
		c = codec.JSON{}
	}
	ch, cancel, err := ps.Subscribe(topics.Events())
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topics.Events(), err)
	}
	m := &Mirror{
		codec:       c,
		log:         logger.WithField("topic", topics.Events()),
		cancel:      cancel,
		done:        make(chan struct{}),
		subscribers: channel.NewRegistry(),
		messages:    channel.NewMessageLog(channel.DefaultCapacity),
	}
	go m.consume(ch)
	return m, nil
}

func (m *Mirror) consume(ch <-chan network.Message) {
	defer close(m.done)
	for msg := range ch {
		var evt actor.Event
		if err := m.codec.Unmarshal(msg.Payload, &evt); err != nil {
			m.log.WithError(err).Debug("skip undecodable event")
			continue
		}
		m.Apply(evt)
	}
}

// Apply folds one event into the mirror. Events at or below the last applied Seq are
// ignored. An EventInitialized carrying a creation post other than the one already
// mirrored comes from a restarted channel and resets the mirror.
func (m *Mirror) Apply(evt actor.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	restarted := evt.Type == actor.EventInitialized && m.synced && !m.sameCreation(evt.Post)
	if m.synced && !restarted && evt.Seq <= m.seq {
		return
	}
	switch {
	case evt.Type == actor.EventInitialized:
		m.subscribers = channel.NewRegistry()
		m.messages = channel.NewMessageLog(evt.Capacity)
		m.created = evt.Post
	case !m.synced:
		m.messages = channel.NewMessageLog(evt.Capacity)
	case evt.Seq != m.seq+1:
		m.gaps++
		m.log.WithFields(logrus.Fields{"want": m.seq + 1, "got": evt.Seq}).Warn("missed channel events")
	}
	m.seq = evt.Seq
	m.meta = evt.Metadata
	m.synced = true

	switch evt.Type {
	case actor.EventInitialized, actor.EventSubscribed:
		if evt.Subscriber != nil {
			m.subscribers.Add(*evt.Subscriber)
		}
		if evt.Post != nil {
			m.messages.Append(*evt.Post)
		}
	case actor.EventUnsubscribed:
		if evt.Subscriber != nil {
			m.subscribers.Remove(*evt.Subscriber)
		}
	case actor.EventPosted:
		if evt.Post != nil {
			m.messages.Append(*evt.Post)
		}
	}
}

func (m *Mirror) sameCreation(p *channel.Post) bool {
	if m.created == nil || p == nil {
		return m.created == nil && p == nil
	}
	return *m.created == *p
}

func (m *Mirror) Synced() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.synced
}

// Metadata returns the last metadata seen. Before the first event it is the same
// placeholder an uninitialized channel reports.
func (m *Mirror) Metadata() channel.Metadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta
}

// Feed returns the mirrored history, oldest first.
func (m *Mirror) Feed() []channel.Post {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.messages.Snapshot()
}

func (m *Mirror) Subscribers() []identity.ID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subscribers.Snapshot()
}

// Seq is the sequence number of the last applied event.
func (m *Mirror) Seq() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seq
}

// Gaps counts how many times events were found missing.
func (m *Mirror) Gaps() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gaps
}

// Close stops following and waits for the consumer to exit.
func (m *Mirror) Close() {
	m.cancel()
	<-m.done
}
