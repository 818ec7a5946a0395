package channel

import (
	"fmt"
	"time"

	"Broadcast-Apps/internal/identity"
)

// Post is a single entry of the channel history. It is a value type; copies never alias.
type Post struct {
	Text      string `json:"text" msgpack:"text" yaml:"text"`
	Timestamp uint64 `json:"timestamp" msgpack:"timestamp" yaml:"timestamp"`
}

func NewPost(text string, at time.Time) Post {
	ms := at.UnixMilli()
	if ms < 0 {
		ms = 0
	}
	return Post{Text: text, Timestamp: uint64(ms)}
}

func creationPost(name string, at time.Time) Post {
	return NewPost(fmt.Sprintf("Channel %s was created", name), at)
}

// Notification is one outbound delivery of a post to a single subscriber.
type Notification struct {
	Recipient identity.ID
	Post      Post
}
