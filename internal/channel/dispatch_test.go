package channel

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Broadcast-Apps/internal/codec"
	"Broadcast-Apps/internal/identity"
)

var (
	owner = identity.FromString("owner")
	alice = identity.FromString("alice")
	bob   = identity.FromString("bob")
)

func fixedClock() func() time.Time {
	t0 := time.UnixMilli(1_700_000_000_000)
	n := int64(0)
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Millisecond)
	}
}

func newAlerts(t *testing.T, capacity int) *State {
	t.Helper()
	st := NewState(capacity, WithClock(fixedClock()))
	require.NoError(t, st.Initialize(owner, "Alerts", "system alerts"))
	return st
}

func texts(ps []Post) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Text
	}
	return out
}

func TestInitialize(t *testing.T) {
	st := newAlerts(t, DefaultCapacity)

	assert.Equal(t, []string{"Channel Alerts was created"}, texts(st.Messages().Snapshot()))
	assert.Equal(t, []identity.ID{owner}, st.Subscribers().Snapshot())
	assert.Equal(t, owner, st.Owner())
	assert.Equal(t, "Alerts", st.Name())
	assert.Equal(t, "system alerts", st.Description())
	assert.True(t, st.IsOwner(owner))
	assert.False(t, st.IsOwner(alice))
}

func TestInitializeTwiceFails(t *testing.T) {
	st := newAlerts(t, DefaultCapacity)
	before := st.Messages().Snapshot()

	err := st.Initialize(alice, "Other", "other")
	assert.True(t, errors.Is(err, ErrAlreadyInitialized))
	assert.Equal(t, owner, st.Owner())
	assert.Equal(t, "Alerts", st.Name())
	assert.Equal(t, "system alerts", st.Description())
	assert.Equal(t, before, st.Messages().Snapshot())
	assert.Equal(t, []identity.ID{owner}, st.Subscribers().Snapshot())
}

func TestPlaceholdersBeforeInit(t *testing.T) {
	st := NewState(DefaultCapacity)
	out, err := Dispatch(st, alice, Meta())
	require.NoError(t, err)
	require.NotNil(t, out.Reply.Metadata)
	assert.Equal(t, Metadata{}, *out.Reply.Metadata)
	assert.True(t, out.Reply.Metadata.Owner.IsZero())

	out, err = Dispatch(st, alice, Feed())
	require.NoError(t, err)
	assert.Empty(t, out.Reply.Feed)

	for _, act := range []Action{Subscribe(), Unsubscribe(), PostText("x")} {
		_, err := Dispatch(st, alice, act)
		assert.True(t, errors.Is(err, ErrNotInitialized), act.Kind)
	}
	assert.Equal(t, 0, st.Subscribers().Len())
	assert.False(t, st.IsOwner(identity.Zero))
}

func TestMeta(t *testing.T) {
	st := newAlerts(t, DefaultCapacity)
	out, err := Dispatch(st, alice, Meta())
	require.NoError(t, err)
	assert.Equal(t, ReplyMetadata, out.Reply.Kind)
	assert.Equal(t, Metadata{Name: "Alerts", Description: "system alerts", Owner: owner}, *out.Reply.Metadata)
	assert.Empty(t, out.Notifications)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	st := newAlerts(t, DefaultCapacity)

	out, err := Dispatch(st, alice, Subscribe())
	require.NoError(t, err)
	assert.Equal(t, ReplyAck, out.Reply.Kind)
	assert.True(t, st.Subscribers().Contains(alice))

	_, err = Dispatch(st, alice, Subscribe())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Subscribers().Len())

	out, err = Dispatch(st, alice, Unsubscribe())
	require.NoError(t, err)
	assert.Equal(t, ReplyAck, out.Reply.Kind)
	assert.False(t, st.Subscribers().Contains(alice))

	_, err = Dispatch(st, bob, Unsubscribe())
	assert.NoError(t, err, "unsubscribing a non-member is a no-op")
	assert.Equal(t, 1, st.Subscribers().Len())
}

func TestOwnerPostFansOut(t *testing.T) {
	st := newAlerts(t, DefaultCapacity)
	for _, id := range []identity.ID{alice, bob} {
		_, err := Dispatch(st, id, Subscribe())
		require.NoError(t, err)
	}

	out, err := Dispatch(st, owner, PostText("hello"))
	require.NoError(t, err)
	assert.Equal(t, ReplyAck, out.Reply.Kind)
	assert.Equal(t, 2, st.Messages().Len())

	require.Len(t, out.Notifications, 3)
	recipients := make([]identity.ID, 0, 3)
	for _, n := range out.Notifications {
		assert.Equal(t, "hello", n.Post.Text)
		recipients = append(recipients, n.Recipient)
	}
	assert.Equal(t, st.Subscribers().Snapshot(), recipients)
	assert.ElementsMatch(t, []identity.ID{owner, alice, bob}, recipients)

	latest, _ := st.Messages().Latest()
	assert.Equal(t, latest, out.Notifications[0].Post)
	require.NotNil(t, out.Posted)
	assert.Equal(t, latest, *out.Posted)
}

func TestNonOwnerPostIsInert(t *testing.T) {
	st := newAlerts(t, DefaultCapacity)
	_, err := Dispatch(st, alice, Subscribe())
	require.NoError(t, err)
	before := st.Messages().Snapshot()

	out, err := Dispatch(st, alice, PostText("spam"))
	assert.True(t, errors.Is(err, ErrNotOwner))
	assert.Nil(t, out.Reply)
	assert.Empty(t, out.Notifications)
	assert.Equal(t, before, st.Messages().Snapshot())
	assert.Equal(t, 1, st.Messages().Len())
}

func TestNotificationsDoNotAliasHistory(t *testing.T) {
	st := newAlerts(t, DefaultCapacity)
	out, err := Dispatch(st, owner, PostText("original"))
	require.NoError(t, err)
	out.Notifications[0].Post.Text = "tampered"
	latest, _ := st.Messages().Latest()
	assert.Equal(t, "original", latest.Text)
}

func TestPostsEvictAtCapacity(t *testing.T) {
	st := newAlerts(t, 5)
	for i := 0; i < 6; i++ {
		_, err := Dispatch(st, owner, PostText(fmt.Sprintf("p%d", i)))
		require.NoError(t, err)
		assert.LessOrEqual(t, st.Messages().Len(), 5)
	}
	out, err := Dispatch(st, bob, Feed())
	require.NoError(t, err)
	assert.Equal(t, ReplyFeed, out.Reply.Kind)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, texts(out.Reply.Feed))
}

func TestPostTimestampsIncrease(t *testing.T) {
	st := newAlerts(t, DefaultCapacity)
	for i := 0; i < 3; i++ {
		_, err := Dispatch(st, owner, PostText("tick"))
		require.NoError(t, err)
	}
	feed := st.Messages().Snapshot()
	for i := 1; i < len(feed); i++ {
		assert.Greater(t, feed[i].Timestamp, feed[i-1].Timestamp)
	}
}

func TestDecodeAction(t *testing.T) {
	c := codec.JSON{}

	a, err := DecodeAction(c, []byte(`{"action":"post","text":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, PostText("hi"), a)

	a, err = DecodeAction(c, []byte(`{"action":"feed"}`))
	require.NoError(t, err)
	assert.Equal(t, Feed(), a)

	for _, bad := range []string{``, `not json`, `{"action":"delete"}`, `{}`, `{"action":7}`} {
		_, err := DecodeAction(c, []byte(bad))
		assert.True(t, errors.Is(err, ErrDecode), "payload %q", bad)
	}
}

func TestDecodeActionMsgPack(t *testing.T) {
	c := codec.MsgPack{}
	b, err := c.Marshal(PostText("packed"))
	require.NoError(t, err)
	a, err := DecodeAction(c, b)
	require.NoError(t, err)
	assert.Equal(t, PostText("packed"), a)
}

func TestDispatchUnknownKind(t *testing.T) {
	st := newAlerts(t, DefaultCapacity)
	_, err := Dispatch(st, owner, Action{Kind: "purge"})
	assert.True(t, errors.Is(err, ErrDecode))
	assert.Equal(t, 1, st.Messages().Len())
}
