package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"Broadcast-Apps/internal/channel"
	"Broadcast-Apps/internal/codec"
	"Broadcast-Apps/internal/core/network"
	"Broadcast-Apps/internal/identity"
)

var ErrClientClosed = errors.New("client closed")

// Client talks to a channel actor over the transport as one identity. It owns that
// identity's inbox: replies are matched to pending requests and post notifications
// are forwarded to Notifications.
type Client struct {
	ps     network.PubSub
	codec  codec.Codec
	topics Topics
	self   identity.ID

	cancel func()
	notes  chan channel.Post

	mu      sync.Mutex
	closed  bool
	pending map[string]chan Output
}

func NewClient(ps network.PubSub, c codec.Codec, topics Topics, self identity.ID) (*Client, error) {
	if c == nil {
		c = codec.JSON{}
	}
	inbox, cancel, err := ps.Subscribe(topics.Inbox(self))
	if err != nil {
		return nil, fmt.Errorf("subscribe inbox: %w", err)
	}
	cl := &Client{
		ps:      ps,
		codec:   c,
		topics:  topics,
		self:    self,
		cancel:  cancel,
		notes:   make(chan channel.Post, 64),
		pending: make(map[string]chan Output),
	}
	go cl.consume(inbox)
	return cl, nil
}

func (c *Client) Identity() identity.ID {
	return c.self
}

// Notifications yields posts pushed to this identity. It is closed with the client.
func (c *Client) Notifications() <-chan channel.Post {
	return c.notes
}

// Do sends act and waits for the actor's answer. A rejection is returned as a
// *RemoteError matching the channel sentinel errors.
func (c *Client) Do(ctx context.Context, act channel.Action) (*channel.Reply, error) {
	payload, err := c.codec.Marshal(act)
	if err != nil {
		return nil, fmt.Errorf("encode action: %w", err)
	}
	return c.Send(ctx, payload)
}

// Send publishes an already encoded action payload.
func (c *Client) Send(ctx context.Context, payload []byte) (*channel.Reply, error) {
	req := Request{ID: uuid.NewString(), Sender: c.self, Payload: payload}
	b, err := c.codec.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	wait := make(chan Output, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.pending[req.ID] = wait
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	if err := c.ps.Publish(ctx, c.topics.Requests(), b); err != nil {
		return nil, fmt.Errorf("publish request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out, ok := <-wait:
		if !ok {
			return nil, ErrClientClosed
		}
		if out.Kind == OutputError && out.Error != nil {
			return nil, &RemoteError{Code: out.Error.Code, Message: out.Error.Message}
		}
		return out.Reply, nil
	}
}

func (c *Client) consume(inbox <-chan network.Message) {
	defer close(c.notes)
	for msg := range inbox {
		var out Output
		if err := c.codec.Unmarshal(msg.Payload, &out); err != nil {
			continue
		}
		switch out.Kind {
		case OutputSingleMessage:
			if out.Message == nil {
				continue
			}
			select {
			case c.notes <- *out.Message:
			default:
			}
		case OutputReply, OutputError:
			c.mu.Lock()
			if wait, ok := c.pending[out.RequestID]; ok {
				select {
				case wait <- out:
				default:
				}
			}
			c.mu.Unlock()
		}
	}
}

// Close stops the inbox subscription. Pending calls fail with ErrClientClosed.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for id, wait := range c.pending {
		close(wait)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	c.cancel()
}
