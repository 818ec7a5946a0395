package channel

import (
	"fmt"

	"Broadcast-Apps/internal/identity"
)

// Outcome is everything an accepted invocation produced. Notifications are only
// present for an accepted post.
type Outcome struct {
	Reply         *Reply
	Notifications []Notification
	// Posted is the accepted post, set only for ActionPost.
	Posted *Post
}

// Dispatch applies one action from sender to st. A returned error means st was not
// modified and no notification must be sent.
func Dispatch(st *State, sender identity.ID, act Action) (Outcome, error) {
	switch act.Kind {
	case ActionMeta:
		md := st.Metadata()
		return Outcome{Reply: &Reply{Kind: ReplyMetadata, Metadata: &md}}, nil

	case ActionFeed:
		return Outcome{Reply: &Reply{Kind: ReplyFeed, Feed: st.messages.Snapshot()}}, nil

	case ActionSubscribe:
		if !st.initialized {
			return Outcome{}, ErrNotInitialized
		}
		st.subscribers.Add(sender)
		return Outcome{Reply: ack()}, nil

	case ActionUnsubscribe:
		if !st.initialized {
			return Outcome{}, ErrNotInitialized
		}
		st.subscribers.Remove(sender)
		return Outcome{Reply: ack()}, nil

	case ActionPost:
		if !st.initialized {
			return Outcome{}, ErrNotInitialized
		}
		if !st.IsOwner(sender) {
			return Outcome{}, fmt.Errorf("%w: %s", ErrNotOwner, sender)
		}
		post := NewPost(act.Text, st.now())
		st.messages.Append(post)
		return Outcome{
			Reply:         ack(),
			Notifications: Fanout(post, st.subscribers.Snapshot()),
			Posted:        &post,
		}, nil
	}
	return Outcome{}, fmt.Errorf("%w: unknown action %q", ErrDecode, act.Kind)
}
