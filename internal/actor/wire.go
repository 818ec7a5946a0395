package actor

import (
	"errors"
	"fmt"
	"time"

	"Broadcast-Apps/internal/channel"
	"Broadcast-Apps/internal/identity"
)

const DefaultTopic = "broadcast-channel"

// Topics names the transport topics of one channel.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopic
	}
	return t.Prefix
}

// Requests is where callers publish Request envelopes.
func (t Topics) Requests() string {
	return t.prefix() + ".requests"
}

// Inbox is where replies and notifications for id are published.
func (t Topics) Inbox(id identity.ID) string {
	return t.prefix() + ".inbox." + id.String()
}

// Events carries the committed state changes of the channel, in order.
func (t Topics) Events() string {
	return t.prefix() + ".events"
}

// InboxPattern documents the inbox topic naming for tooling.
func (t Topics) InboxPattern() string {
	return t.prefix() + ".inbox.<identity>"
}

// Request is one inbound invocation. Payload holds the encoded channel.Action so a
// malformed action can still be answered.
type Request struct {
	ID      string      `json:"id" msgpack:"id"`
	Sender  identity.ID `json:"sender" msgpack:"sender"`
	Payload []byte      `json:"payload" msgpack:"payload"`
}

type EventType string

const (
	EventInitialized  EventType = "channel_initialized"
	EventSubscribed   EventType = "subscriber_added"
	EventUnsubscribed EventType = "subscriber_removed"
	EventPosted       EventType = "post_added"
)

// Event is one committed state change. Seq starts at 1 with EventInitialized and
// grows by one per event, so followers can notice gaps.
type Event struct {
	Type       EventType        `json:"type" msgpack:"type"`
	Seq        uint64           `json:"seq" msgpack:"seq"`
	Metadata   channel.Metadata `json:"metadata" msgpack:"metadata"`
	Capacity   int              `json:"capacity" msgpack:"capacity"`
	Subscriber *identity.ID     `json:"subscriber,omitempty" msgpack:"subscriber,omitempty"`
	Post       *channel.Post    `json:"post,omitempty" msgpack:"post,omitempty"`
	At         time.Time        `json:"at" msgpack:"at"`
}

type OutputKind string

const (
	OutputReply         OutputKind = "reply"
	OutputError         OutputKind = "error"
	OutputSingleMessage OutputKind = "single_message"
)

// Output is everything the actor publishes to an inbox.
type Output struct {
	Kind      OutputKind     `json:"kind" msgpack:"kind"`
	Channel   string         `json:"channel,omitempty" msgpack:"channel,omitempty"`
	RequestID string         `json:"request_id,omitempty" msgpack:"request_id,omitempty"`
	Reply     *channel.Reply `json:"reply,omitempty" msgpack:"reply,omitempty"`
	Error     *ErrorBody     `json:"error,omitempty" msgpack:"error,omitempty"`
	Message   *channel.Post  `json:"message,omitempty" msgpack:"message,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}

const (
	CodeAlreadyInitialized = "already_initialized"
	CodeNotInitialized     = "not_initialized"
	CodeNotOwner           = "not_owner"
	CodeDecodeFailure      = "decode_failure"
	CodeRateLimited        = "rate_limited"
	CodeInternal           = "internal"
)

var ErrRateLimited = errors.New("channel rate limit exceeded")

var codeErrors = map[string]error{
	CodeAlreadyInitialized: channel.ErrAlreadyInitialized,
	CodeNotInitialized:     channel.ErrNotInitialized,
	CodeNotOwner:           channel.ErrNotOwner,
	CodeDecodeFailure:      channel.ErrDecode,
	CodeRateLimited:        ErrRateLimited,
}

// ErrorCode maps a rejection to its stable wire code.
func ErrorCode(err error) string {
	for code, target := range codeErrors {
		if errors.Is(err, target) {
			return code
		}
	}
	return CodeInternal
}

// RemoteError is a rejection received from a remote actor. errors.Is matches it
// against the corresponding sentinel.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("channel rejected request (%s): %s", e.Code, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	sentinel, ok := codeErrors[e.Code]
	return ok && sentinel == target
}
