package channel

// Unbounded configures a MessageLog that never evicts.
const Unbounded = -1

// DefaultCapacity is the history size kept when the deployer does not choose one.
const DefaultCapacity = 5

// MessageLog is an append-only post history. With a positive capacity it is a ring
// buffer: appending at capacity evicts the oldest post.
type MessageLog struct {
	capacity int
	buf      []Post
	head     int
	size     int
}

// NewMessageLog builds a log. capacity > 0 bounds it, 0 retains nothing and a
// negative value (see Unbounded) grows without limit.
func NewMessageLog(capacity int) *MessageLog {
	l := &MessageLog{capacity: capacity}
	if capacity > 0 {
		l.buf = make([]Post, capacity)
	}
	return l
}

func (l *MessageLog) Capacity() int {
	return l.capacity
}

func (l *MessageLog) Len() int {
	return l.size
}

func (l *MessageLog) Append(p Post) {
	switch {
	case l.capacity == 0:
		return
	case l.capacity < 0:
		l.buf = append(l.buf, p)
		l.size++
		return
	}
	if l.size < l.capacity {
		l.buf[(l.head+l.size)%l.capacity] = p
		l.size++
		return
	}
	l.buf[l.head] = p
	l.head = (l.head + 1) % l.capacity
}

// Snapshot returns the retained posts, oldest first. The result is a fresh slice.
func (l *MessageLog) Snapshot() []Post {
	out := make([]Post, 0, l.size)
	if l.capacity < 0 {
		return append(out, l.buf...)
	}
	for i := 0; i < l.size; i++ {
		out = append(out, l.buf[(l.head+i)%l.capacity])
	}
	return out
}

// Latest returns the most recently appended post still retained.
func (l *MessageLog) Latest() (Post, bool) {
	if l.size == 0 {
		return Post{}, false
	}
	if l.capacity < 0 {
		return l.buf[l.size-1], true
	}
	return l.buf[(l.head+l.size-1)%l.capacity], true
}
