package mirror

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Broadcast-Apps/internal/actor"
	"Broadcast-Apps/internal/channel"
	"Broadcast-Apps/internal/codec"
	"Broadcast-Apps/internal/core/network"
	"Broadcast-Apps/internal/identity"
)

var (
	owner = identity.FromString("owner")
	alice = identity.FromString("alice")
	bob   = identity.FromString("bob")
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestMirrorFollowsActor(t *testing.T) {
	for _, c := range []codec.Codec{codec.JSON{}, codec.MsgPack{}} {
		t.Run(c.Name(), func(t *testing.T) {
			ps := network.NewMemoryPubSub()
			defer ps.Close()

			m, err := Follow(ps, c, actor.Topics{}, quietLogger())
			require.NoError(t, err)
			defer m.Close()
			assert.False(t, m.Synced())
			assert.Equal(t, channel.Metadata{}, m.Metadata())

			a := actor.New(actor.Options{PubSub: ps, Codec: c, Capacity: 3, Logger: quietLogger()})
			require.NoError(t, a.Init(owner, "Alerts", "system alerts"))

			ctx := context.Background()
			for _, id := range []identity.ID{alice, bob} {
				_, err := a.Do(ctx, id, channel.Subscribe())
				require.NoError(t, err)
			}
			_, err = a.Do(ctx, bob, channel.Unsubscribe())
			require.NoError(t, err)
			for _, text := range []string{"one", "two", "three"} {
				_, err := a.Do(ctx, owner, channel.PostText(text))
				require.NoError(t, err)
			}
			_, err = a.Do(ctx, alice, channel.PostText("spam"))
			require.Error(t, err)

			require.Eventually(t, func() bool { return m.Seq() == 7 }, time.Second, 5*time.Millisecond)

			assert.Equal(t, a.Metadata(), m.Metadata())
			assert.Equal(t, a.Subscribers(), m.Subscribers())
			assert.Equal(t, a.Feed(), m.Feed())
			assert.Zero(t, m.Gaps())
		})
	}
}

func TestApplyDetectsGapsAndDuplicates(t *testing.T) {
	m := &Mirror{
		log:         quietLogger(),
		subscribers: channel.NewRegistry(),
		messages:    channel.NewMessageLog(channel.DefaultCapacity),
	}
	md := channel.Metadata{Name: "Alerts", Owner: owner}
	first := channel.Post{Text: "Channel Alerts was created", Timestamp: 1}
	hello := channel.Post{Text: "hello", Timestamp: 2}
	late := channel.Post{Text: "late", Timestamp: 3}

	m.Apply(actor.Event{Type: actor.EventInitialized, Seq: 1, Metadata: md, Capacity: 5, Subscriber: &owner, Post: &first})
	m.Apply(actor.Event{Type: actor.EventPosted, Seq: 2, Metadata: md, Capacity: 5, Post: &hello})
	m.Apply(actor.Event{Type: actor.EventPosted, Seq: 2, Metadata: md, Capacity: 5, Post: &hello})
	assert.Len(t, m.Feed(), 2, "duplicate seq is ignored")

	m.Apply(actor.Event{Type: actor.EventPosted, Seq: 5, Metadata: md, Capacity: 5, Post: &late})
	assert.Equal(t, 1, m.Gaps())
	assert.Equal(t, uint64(5), m.Seq())
	assert.Equal(t, []channel.Post{first, hello, late}, m.Feed())
	assert.Equal(t, []identity.ID{owner}, m.Subscribers())
}

func TestLateMirrorStartsFromFirstEvent(t *testing.T) {
	m := &Mirror{
		log:         quietLogger(),
		subscribers: channel.NewRegistry(),
		messages:    channel.NewMessageLog(channel.DefaultCapacity),
	}
	md := channel.Metadata{Name: "Alerts", Owner: owner}
	post := channel.Post{Text: "hello", Timestamp: 9}

	m.Apply(actor.Event{Type: actor.EventPosted, Seq: 12, Metadata: md, Capacity: 2, Post: &post})
	assert.True(t, m.Synced())
	assert.Zero(t, m.Gaps())
	assert.Equal(t, []channel.Post{post}, m.Feed())

	assert.Equal(t, md, m.Metadata())
}

func TestRedeliveredInitKeepsState(t *testing.T) {
	m := &Mirror{
		log:         quietLogger(),
		subscribers: channel.NewRegistry(),
		messages:    channel.NewMessageLog(channel.DefaultCapacity),
	}
	md := channel.Metadata{Name: "Alerts", Owner: owner}
	first := channel.Post{Text: "Channel Alerts was created", Timestamp: 1}
	hello := channel.Post{Text: "hello", Timestamp: 2}
	initEvt := actor.Event{Type: actor.EventInitialized, Seq: 1, Metadata: md, Capacity: 5, Subscriber: &owner, Post: &first}

	m.Apply(initEvt)
	m.Apply(actor.Event{Type: actor.EventSubscribed, Seq: 2, Metadata: md, Capacity: 5, Subscriber: &alice})
	m.Apply(actor.Event{Type: actor.EventPosted, Seq: 3, Metadata: md, Capacity: 5, Post: &hello})

	m.Apply(initEvt)
	assert.Equal(t, uint64(3), m.Seq())
	assert.Equal(t, []channel.Post{first, hello}, m.Feed())
	assert.ElementsMatch(t, []identity.ID{owner, alice}, m.Subscribers())
	assert.Zero(t, m.Gaps())

	recreated := channel.Post{Text: "Channel Alerts was created", Timestamp: 50}
	m.Apply(actor.Event{Type: actor.EventInitialized, Seq: 1, Metadata: md, Capacity: 5, Subscriber: &owner, Post: &recreated})
	assert.Equal(t, uint64(1), m.Seq())
	assert.Equal(t, []channel.Post{recreated}, m.Feed())
	assert.Equal(t, []identity.ID{owner}, m.Subscribers())
}
