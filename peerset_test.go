package main

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
)

func TestPeerSet(t *testing.T) {
	ps := NewPeerSet()
	a1 := multiaddr.StringCast("/ip4/10.0.0.1/tcp/4001")
	a2 := multiaddr.StringCast("/ip4/10.0.0.1/udp/4001/quic-v1")

	assert.True(t, ps.Add("alice", []multiaddr.Multiaddr{a1}))
	assert.False(t, ps.Add("alice", []multiaddr.Multiaddr{a1, a2}))
	assert.Len(t, ps.Addrs("alice"), 2)
	assert.True(t, ps.Contains("alice"))
	assert.Equal(t, []peer.ID{"alice"}, ps.IDs())

	assert.False(t, ps.Remove("bob"))
	assert.True(t, ps.Remove("alice"))
	assert.False(t, ps.Remove("alice"))
	assert.Zero(t, ps.Len())
}
