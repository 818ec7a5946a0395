package identity

import (
	"errors"
	"sort"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	id := FromString("alice")
	parsed, err := Parse(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	parsed, err = Parse("0x" + id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "abc", "zz" + FromString("x").String()[2:]} {
		_, err := Parse(in)
		assert.True(t, errors.Is(err, ErrInvalidID), "input %q", in)
	}
}

func TestOrdering(t *testing.T) {
	var a, b ID
	a[0] = 1
	b[0] = 2
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, Zero.Less(a))

	ids := []ID{b, Zero, a}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	assert.Equal(t, []ID{Zero, a, b}, ids)
}

func TestZero(t *testing.T) {
	assert.True(t, Zero.IsZero())
	assert.False(t, FromString("bob").IsZero())
}

func TestFromPeerIsStable(t *testing.T) {
	p := peer.ID("12D3KooWtest")
	assert.Equal(t, FromPeer(p), FromPeer(p))
	assert.NotEqual(t, FromPeer(p), FromPeer(peer.ID("12D3KooWother")))
}

func TestTextMarshaling(t *testing.T) {
	id := FromString("carol")
	b, err := id.MarshalText()
	require.NoError(t, err)

	var out ID
	require.NoError(t, out.UnmarshalText(b))
	assert.Equal(t, id, out)
	assert.Error(t, out.UnmarshalText([]byte("nope")))
}
