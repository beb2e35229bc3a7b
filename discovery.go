package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
)

type sighting struct {
	info   peer.AddrInfo
	last   time.Time
	pinned bool
}

// liveness is what discovery asks the host about peers it already knows.
type liveness interface {
	isConnected(id peer.ID) bool
	redial(pi peer.AddrInfo)
}

// Discovery turns mDNS announcements into appeared/expired events. mDNS
// reports a peer once per record TTL, so a known peer stays alive while the
// host holds a connection to it and expires after ttl without one. Known but
// unconnected peers are redialled on every sweep.
type Discovery struct {
	log  *slog.Logger
	self peer.ID
	ttl  time.Duration
	live liveness
	out  chan<- NetworkEvent
	done <-chan struct{}
	now  func() time.Time

	mu   sync.Mutex
	seen map[peer.ID]*sighting

	service mdns.Service
}

func NewDiscovery(log *slog.Logger, self peer.ID, ttl time.Duration, live liveness, out chan<- NetworkEvent, done <-chan struct{}) *Discovery {
	return &Discovery{
		log:  log,
		self: self,
		ttl:  ttl,
		live: live,
		out:  out,
		done: done,
		now:  time.Now,
		seen: make(map[peer.ID]*sighting),
	}
}

// Start launches the mDNS responder.
func (d *Discovery) Start(h host.Host) error {
	d.service = mdns.NewMdnsService(h, mdns.ServiceName, d)
	return d.service.Start()
}

func (d *Discovery) Close() error {
	if d.service == nil {
		return nil
	}
	return d.service.Close()
}

// HandlePeerFound is called by the mDNS service for every sighting.
func (d *Discovery) HandlePeerFound(pi peer.AddrInfo) {
	d.sighted(pi, false)
}

// Pin registers a manually configured peer. Pinned peers never expire.
func (d *Discovery) Pin(pi peer.AddrInfo) {
	d.sighted(pi, true)
}

func (d *Discovery) sighted(pi peer.AddrInfo, pinned bool) {
	if pi.ID == d.self || pi.ID == "" {
		return
	}

	d.mu.Lock()
	s, known := d.seen[pi.ID]
	if !known {
		s = &sighting{}
		d.seen[pi.ID] = s
	}
	s.info = pi
	s.last = d.now()
	s.pinned = s.pinned || pinned
	d.mu.Unlock()

	if !known {
		d.emit(PeerDiscovered{Info: pi})
	}
}

// sweep refreshes every connected peer, then removes and returns the unpinned
// peers not seen connected since now-ttl. The survivors that are not
// connected are returned as retry so the caller can dial them again.
func (d *Discovery) sweep(now time.Time) (gone, retry []peer.AddrInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, s := range d.seen {
		if d.live.isConnected(id) {
			s.last = now
			continue
		}
		if !s.pinned && now.Sub(s.last) >= d.ttl {
			gone = append(gone, s.info)
			delete(d.seen, id)
			continue
		}
		retry = append(retry, s.info)
	}
	return gone, retry
}

// Run sweeps every interval until ctx is done.
func (d *Discovery) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			gone, retry := d.sweep(now)
			for _, pi := range gone {
				d.emit(PeerExpired{Info: pi})
			}
			for _, pi := range retry {
				d.live.redial(pi)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (d *Discovery) emit(ev NetworkEvent) {
	select {
	case d.out <- ev:
	case <-d.done:
		d.log.Debug("Discovery event dropped after shutdown")
	}
}
