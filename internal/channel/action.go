package channel

import (
	"fmt"

	"Broadcast-Apps/internal/identity"
)

type ActionKind string

const (
	ActionMeta        ActionKind = "meta"
	ActionSubscribe   ActionKind = "subscribe"
	ActionUnsubscribe ActionKind = "unsubscribe"
	ActionPost        ActionKind = "post"
	ActionFeed        ActionKind = "feed"
)

// ActionKinds lists every inbound variant in declaration order.
var ActionKinds = []ActionKind{ActionMeta, ActionSubscribe, ActionUnsubscribe, ActionPost, ActionFeed}

func (k ActionKind) Valid() bool {
	switch k {
	case ActionMeta, ActionSubscribe, ActionUnsubscribe, ActionPost, ActionFeed:
		return true
	}
	return false
}

// Action is one inbound command. Text is only meaningful for ActionPost.
type Action struct {
	Kind ActionKind `json:"action" msgpack:"action"`
	Text string     `json:"text,omitempty" msgpack:"text,omitempty"`
}

func Meta() Action        { return Action{Kind: ActionMeta} }
func Subscribe() Action   { return Action{Kind: ActionSubscribe} }
func Unsubscribe() Action { return Action{Kind: ActionUnsubscribe} }
func Feed() Action        { return Action{Kind: ActionFeed} }

func PostText(text string) Action {
	return Action{Kind: ActionPost, Text: text}
}

// Unmarshaler is the decoding half of a wire codec.
type Unmarshaler interface {
	Unmarshal(data []byte, v any) error
}

// DecodeAction parses a wire payload into an Action. Every failure wraps ErrDecode.
func DecodeAction(dec Unmarshaler, payload []byte) (Action, error) {
	var a Action
	if len(payload) == 0 {
		return a, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	if err := dec.Unmarshal(payload, &a); err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !a.Kind.Valid() {
		return Action{}, fmt.Errorf("%w: unknown action %q", ErrDecode, a.Kind)
	}
	return a, nil
}

type ReplyKind string

const (
	ReplyMetadata ReplyKind = "metadata"
	ReplyAck      ReplyKind = "ack"
	ReplyFeed     ReplyKind = "feed"
)

// ReplyKinds lists every reply variant.
var ReplyKinds = []ReplyKind{ReplyMetadata, ReplyAck, ReplyFeed}

type Metadata struct {
	Name        string      `json:"name" msgpack:"name" yaml:"name"`
	Description string      `json:"description" msgpack:"description" yaml:"description"`
	Owner       identity.ID `json:"owner" msgpack:"owner" yaml:"owner"`
}

// Reply is the single response produced by an accepted invocation.
type Reply struct {
	Kind     ReplyKind `json:"kind" msgpack:"kind"`
	Metadata *Metadata `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
	Feed     []Post    `json:"feed,omitempty" msgpack:"feed,omitempty"`
}

func ack() *Reply {
	return &Reply{Kind: ReplyAck}
}
