package main

import (
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/samber/lo"
)

// PeerSet tracks peers found by discovery. It is owned by the event loop and
// is not safe for concurrent use.
type PeerSet struct {
	peers map[peer.ID][]multiaddr.Multiaddr
}

func NewPeerSet() *PeerSet {
	return &PeerSet{peers: make(map[peer.ID][]multiaddr.Multiaddr)}
}

// Add merges addrs into the entry for id and reports whether id is new.
func (ps *PeerSet) Add(id peer.ID, addrs []multiaddr.Multiaddr) bool {
	known, exists := ps.peers[id]
	for _, a := range addrs {
		if !lo.ContainsBy(known, func(k multiaddr.Multiaddr) bool { return k.Equal(a) }) {
			known = append(known, a)
		}
	}
	ps.peers[id] = known
	return !exists
}

// Remove drops id and reports whether it was present.
func (ps *PeerSet) Remove(id peer.ID) bool {
	if _, ok := ps.peers[id]; !ok {
		return false
	}
	delete(ps.peers, id)
	return true
}

func (ps *PeerSet) Contains(id peer.ID) bool {
	_, ok := ps.peers[id]
	return ok
}

func (ps *PeerSet) Addrs(id peer.ID) []multiaddr.Multiaddr {
	return ps.peers[id]
}

func (ps *PeerSet) IDs() []peer.ID {
	return lo.Keys(ps.peers)
}

func (ps *PeerSet) Len() int {
	return len(ps.peers)
}
