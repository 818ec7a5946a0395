package channel

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func posts(n int) []Post {
	out := make([]Post, n)
	for i := range out {
		out[i] = NewPost(fmt.Sprintf("post-%d", i), time.UnixMilli(int64(i)))
	}
	return out
}

func TestMessageLogKeepsMostRecent(t *testing.T) {
	for _, capacity := range []int{1, 2, 5, 7} {
		for n := 0; n <= 3*capacity; n++ {
			l := NewMessageLog(capacity)
			all := posts(n)
			for _, p := range all {
				l.Append(p)
			}
			got := l.Snapshot()
			assert.LessOrEqual(t, len(got), capacity)
			start := n - capacity
			if start < 0 {
				start = 0
			}
			assert.Equal(t, all[start:], got, "capacity=%d n=%d", capacity, n)
			assert.Equal(t, len(got), l.Len())
		}
	}
}

func TestMessageLogCapacityFiveSixPosts(t *testing.T) {
	l := NewMessageLog(5)
	all := posts(6)
	for _, p := range all {
		l.Append(p)
	}
	got := l.Snapshot()
	assert.Len(t, got, 5)
	assert.NotContains(t, got, all[0])
	assert.Equal(t, all[1:], got)

	latest, ok := l.Latest()
	assert.True(t, ok)
	assert.Equal(t, all[5], latest)
}

func TestMessageLogUnbounded(t *testing.T) {
	l := NewMessageLog(Unbounded)
	all := posts(50)
	for _, p := range all {
		l.Append(p)
	}
	assert.Equal(t, all, l.Snapshot())
	assert.Equal(t, Unbounded, l.Capacity())
}

func TestMessageLogZeroCapacity(t *testing.T) {
	l := NewMessageLog(0)
	l.Append(NewPost("dropped", time.Now()))
	assert.Empty(t, l.Snapshot())
	_, ok := l.Latest()
	assert.False(t, ok)
}

func TestMessageLogSnapshotIsCopy(t *testing.T) {
	l := NewMessageLog(3)
	l.Append(NewPost("a", time.UnixMilli(1)))
	snap := l.Snapshot()
	snap[0].Text = "mutated"
	assert.Equal(t, "a", l.Snapshot()[0].Text)
}
