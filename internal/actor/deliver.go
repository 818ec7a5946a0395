package actor

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"Broadcast-Apps/internal/channel"
)

// DeliveryError aggregates notifications the transport refused. The post that caused
// them stays committed.
type DeliveryError struct {
	Attempted int
	Failed    []string
	Errors    []error
}

func (e *DeliveryError) Error() string {
	parts := []string{fmt.Sprintf("delivered %d of %d notifications", e.Attempted-len(e.Failed), e.Attempted)}
	for _, err := range e.Errors {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *DeliveryError) Unwrap() []error {
	return append([]error(nil), e.Errors...)
}

// deliver publishes one single_message output per notification, in notification
// order. Encoding runs on up to a.workers goroutines; publishing is sequential so
// recipients are attempted in registry snapshot order. Each recipient gets exactly one
// attempt.
func (a *Actor) deliver(ctx context.Context, notes []channel.Notification) error {
	if a.ps == nil {
		return nil
	}
	workers := a.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(notes) {
		workers = len(notes)
	}

	name := a.state.Name()
	payloads := make([][]byte, len(notes))
	encodeErrs := make([]error, len(notes))
	p := pool.New().WithMaxGoroutines(workers)
	for i, n := range notes {
		p.Go(func() {
			post := n.Post
			payloads[i], encodeErrs[i] = a.codec.Marshal(Output{Kind: OutputSingleMessage, Channel: name, Message: &post})
		})
	}
	p.Wait()

	var errs []error
	var failed []string
	for i, n := range notes {
		err := encodeErrs[i]
		if err == nil {
			err = a.ps.Publish(ctx, a.topics.Inbox(n.Recipient), payloads[i])
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("subscriber %s: %w", n.Recipient, err))
			failed = append(failed, n.Recipient.String())
		}
	}

	a.metrics.RecordNotifications(ctx, len(notes)-len(failed), len(failed))
	if len(errs) == 0 {
		return nil
	}
	return &DeliveryError{Attempted: len(notes), Failed: failed, Errors: errs}
}
