// Package actor hosts a channel.State behind a transport: it serializes invocations,
// delivers post notifications and publishes replies.
package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"Broadcast-Apps/internal/channel"
	"Broadcast-Apps/internal/codec"
	"Broadcast-Apps/internal/core/network"
	"Broadcast-Apps/internal/identity"
	"Broadcast-Apps/internal/telemetry"
)

type Options struct {
	PubSub   network.PubSub
	Codec    codec.Codec
	Topics   Topics
	Capacity int
	Clock    func() time.Time
	Logger   logrus.FieldLogger
	Metrics  *telemetry.Metrics
	// RateLimit caps accepted invocations per second; zero disables limiting.
	RateLimit float64
	RateBurst int
	// DeliveryWorkers bounds concurrent notification encoding. Publishing stays in
	// subscriber order.
	DeliveryWorkers int
	// TrustTransportOrigin replaces a request's claimed sender with the identity derived
	// from the transport origin, when the transport reports one.
	TrustTransportOrigin bool
}

// Actor owns one channel. All invocations run one at a time under mu, from rate
// limiting through reply.
type Actor struct {
	mu      sync.Mutex
	state   *channel.State
	ps      network.PubSub
	codec   codec.Codec
	topics  Topics
	log     logrus.FieldLogger
	metrics *telemetry.Metrics
	limiter *rate.Limiter
	workers int
	trust   bool
	seq     uint64
}

func New(opts Options) *Actor {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := opts.Codec
	if c == nil {
		c = codec.JSON{}
	}
	var stateOpts []channel.Option
	if opts.Clock != nil {
		stateOpts = append(stateOpts, channel.WithClock(opts.Clock))
	}
	a := &Actor{
		state:   channel.NewState(opts.Capacity, stateOpts...),
		ps:      opts.PubSub,
		codec:   c,
		topics:  opts.Topics,
		log:     logger,
		metrics: opts.Metrics,
		workers: opts.DeliveryWorkers,
		trust:   opts.TrustTransportOrigin,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return a
}

func (a *Actor) Topics() Topics {
	return a.topics
}

// Init is the one-time initialization trigger from the hosting environment.
func (a *Actor) Init(owner identity.ID, name, description string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.state.Initialize(owner, name, description); err != nil {
		return err
	}
	ctx := context.Background()
	a.metrics.RecordState(ctx, a.state.Messages().Len(), a.state.Subscribers().Len())
	a.log.WithFields(logrus.Fields{"channel": name, "owner": owner.String()}).Info("channel initialized")
	evt := Event{Type: EventInitialized, Subscriber: &owner}
	if created, ok := a.state.Messages().Latest(); ok {
		evt.Post = &created
	}
	a.publishEventLocked(ctx, evt)
	return nil
}

// Invoke decodes payload with the actor codec and processes it as sender.
func (a *Actor) Invoke(ctx context.Context, sender identity.ID, payload []byte) (*channel.Reply, error) {
	return a.InvokeWith(ctx, a.codec, sender, payload)
}

// InvokeWith is Invoke with an explicit payload decoder.
func (a *Actor) InvokeWith(ctx context.Context, dec channel.Unmarshaler, sender identity.ID, payload []byte) (*channel.Reply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.allow(); err != nil {
		return nil, err
	}
	act, err := channel.DecodeAction(dec, payload)
	if err != nil {
		a.log.WithError(err).WithField("sender", sender.String()).Debug("rejected payload")
		a.metrics.RecordAction(ctx, "unknown", telemetry.OutcomeRejected, 0)
		return nil, err
	}
	return a.processLocked(ctx, sender, act)
}

// Do processes an already decoded action.
func (a *Actor) Do(ctx context.Context, sender identity.ID, act channel.Action) (*channel.Reply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.allow(); err != nil {
		return nil, err
	}
	return a.processLocked(ctx, sender, act)
}

func (a *Actor) allow() error {
	if a.limiter != nil && !a.limiter.Allow() {
		return ErrRateLimited
	}
	return nil
}

func (a *Actor) processLocked(ctx context.Context, sender identity.ID, act channel.Action) (*channel.Reply, error) {
	start := time.Now()
	log := a.log.WithFields(logrus.Fields{
		"channel": a.state.Name(),
		"sender":  sender.String(),
		"action":  string(act.Kind),
	})
	log.Debug("received action")

	if err := ctx.Err(); err != nil {
		a.metrics.RecordAction(ctx, string(act.Kind), telemetry.OutcomeRejected, time.Since(start))
		return nil, err
	}
	out, err := channel.Dispatch(a.state, sender, act)
	if err != nil {
		log.WithError(err).Info("action rejected")
		a.metrics.RecordAction(ctx, string(act.Kind), telemetry.OutcomeRejected, time.Since(start))
		return nil, err
	}
	// Committed: fan-out and events run to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	if len(out.Notifications) > 0 {
		if err := a.deliver(ctx, out.Notifications); err != nil {
			log.WithError(err).Warn("notification delivery incomplete")
		}
	}

	switch act.Kind {
	case channel.ActionMeta:
		log.Debug("meta sent")
	case channel.ActionSubscribe:
		log.Debug("subscriber added")
		a.publishEventLocked(ctx, Event{Type: EventSubscribed, Subscriber: &sender})
	case channel.ActionUnsubscribe:
		log.Debug("subscriber removed")
		a.publishEventLocked(ctx, Event{Type: EventUnsubscribed, Subscriber: &sender})
	case channel.ActionPost:
		log.WithField("subscribers", len(out.Notifications)).Debug("added a post")
		a.publishEventLocked(ctx, Event{Type: EventPosted, Post: out.Posted})
	}

	a.metrics.RecordAction(ctx, string(act.Kind), telemetry.OutcomeAccepted, time.Since(start))
	a.metrics.RecordState(ctx, a.state.Messages().Len(), a.state.Subscribers().Len())
	return out.Reply, nil
}

// publishEventLocked announces a committed change on the events topic. Followers
// that miss an event see a gap in Seq; nothing is replayed.
func (a *Actor) publishEventLocked(ctx context.Context, evt Event) {
	if a.ps == nil {
		return
	}
	a.seq++
	evt.Seq = a.seq
	evt.Metadata = a.state.Metadata()
	evt.Capacity = a.state.Messages().Capacity()
	evt.At = time.Now().UTC()
	b, err := a.codec.Marshal(evt)
	if err != nil {
		a.log.WithError(err).WithField("event", string(evt.Type)).Error("encode event")
		return
	}
	if err := a.ps.Publish(ctx, a.topics.Events(), b); err != nil {
		a.log.WithError(err).WithField("event", string(evt.Type)).Debug("event not published")
	}
}

// Metadata answers a meta query without going through the rate limiter.
func (a *Actor) Metadata() channel.Metadata {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Metadata()
}

// Feed is the state query: the retained history, oldest first.
func (a *Actor) Feed() []channel.Post {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Messages().Snapshot()
}

func (a *Actor) Subscribers() []identity.ID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Subscribers().Snapshot()
}

// Start subscribes to the requests topic and serves Request envelopes in the
// background. The returned channel closes when serving stops, either because ctx
// ended or because the transport closed the subscription.
func (a *Actor) Start(ctx context.Context) (<-chan struct{}, error) {
	if a.ps == nil {
		return nil, errors.New("actor has no transport")
	}
	ch, cancel, err := a.ps.Subscribe(a.topics.Requests())
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", a.topics.Requests(), err)
	}
	a.log.WithField("topic", a.topics.Requests()).Info("serving channel requests")

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				a.handleRequest(ctx, msg)
			}
		}
	}()
	return done, nil
}

// Run is Start followed by waiting for serving to stop.
func (a *Actor) Run(ctx context.Context) error {
	done, err := a.Start(ctx)
	if err != nil {
		return err
	}
	<-done
	return ctx.Err()
}

func (a *Actor) handleRequest(ctx context.Context, msg network.Message) {
	var req Request
	if err := a.codec.Unmarshal(msg.Payload, &req); err != nil {
		a.log.WithError(err).Warn("dropping undecodable request envelope")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	sender := req.Sender
	if a.trust && msg.From != "" {
		pid, err := peer.Decode(msg.From)
		if err != nil {
			a.log.WithError(err).WithField("request_id", req.ID).Warn("dropping request with unreadable origin")
			return
		}
		sender = identity.FromPeer(pid)
	}

	reply, err := a.Invoke(ctx, sender, req.Payload)
	out := Output{Kind: OutputReply, Channel: a.Metadata().Name, RequestID: req.ID, Reply: reply}
	if err != nil {
		out = Output{
			Kind:      OutputError,
			Channel:   out.Channel,
			RequestID: req.ID,
			Error:     &ErrorBody{Code: ErrorCode(err), Message: err.Error()},
		}
	}
	b, err := a.codec.Marshal(out)
	if err != nil {
		a.log.WithError(err).WithField("request_id", req.ID).Error("encode reply")
		return
	}
	if err := a.ps.Publish(ctx, a.topics.Inbox(sender), b); err != nil {
		a.log.WithError(err).WithField("request_id", req.ID).Warn("reply not delivered")
	}
}
