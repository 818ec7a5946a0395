package channel

import "Broadcast-Apps/internal/identity"

// Fanout produces one notification per subscriber, in the given order.
func Fanout(post Post, subscribers []identity.ID) []Notification {
	out := make([]Notification, 0, len(subscribers))
	for _, sub := range subscribers {
		out = append(out, Notification{Recipient: sub, Post: post})
	}
	return out
}
