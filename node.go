package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/muxer/yamux"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	libp2pquic "github.com/libp2p/go-libp2p/p2p/transport/quic"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	"github.com/multiformats/go-multiaddr"
	"github.com/samber/lo"
)

const (
	explicitPeerTag = "lanchat-explicit"
	dialTimeout     = 10 * time.Second
	eventBuffer     = 64
)

// Node owns the libp2p host, the gossip router and the chat topic. It feeds
// everything it observes into a single NetworkEvent channel.
type Node struct {
	log       *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	Identity  *Identity
	host      host.Host
	pubsub    *pubsub.PubSub
	topic     *pubsub.Topic
	sub       *pubsub.Subscription
	addrSub   event.Subscription
	discovery *Discovery
	events    chan NetworkEvent
}

// NewNode builds identity, transports and messaging. Any failure here is
// fatal to the session.
func NewNode(parent context.Context, log *slog.Logger, cfg Config) (*Node, error) {
	identity, err := NewIdentity()
	if err != nil {
		return nil, err
	}

	cm, err := connmgr.NewConnManager(cfg.ConnLow, cfg.ConnHigh, connmgr.WithGracePeriod(cfg.IdleTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}

	h, err := libp2p.New(
		libp2p.Identity(identity.PrivKey),
		libp2p.ListenAddrStrings(listenAddrs(cfg)...),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Transport(libp2pquic.NewTransport),
		libp2p.Security(noise.ID, noise.New),
		libp2p.Muxer(yamux.ID, yamux.DefaultTransport),
		libp2p.ConnectionManager(cm),
	)
	if err != nil {
		_ = cm.Close()
		return nil, fmt.Errorf("failed to create host: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	n := &Node{
		log:      log.With("self", identity.ID.String()),
		ctx:      ctx,
		cancel:   cancel,
		Identity: identity,
		host:     h,
		events:   make(chan NetworkEvent, eventBuffer),
	}
	if err := n.setupMessaging(); err != nil {
		n.Close()
		return nil, err
	}

	n.addrSub, err = h.EventBus().Subscribe(new(event.EvtLocalAddressesUpdated))
	if err != nil {
		n.Close()
		return nil, fmt.Errorf("failed to subscribe to address updates: %w", err)
	}

	n.discovery = NewDiscovery(n.log, identity.ID, cfg.PeerTTL, n, n.events, ctx.Done())
	if cfg.Discovery {
		if err := n.discovery.Start(h); err != nil {
			n.log.Warn("mDNS discovery unavailable, continuing without it", "error", err)
		} else {
			n.log.Info("mDNS discovery enabled")
		}
	} else {
		n.log.Info("mDNS discovery disabled")
	}

	go n.pumpMessages()
	go n.pumpAddrs()
	go n.discovery.Run(ctx, cfg.PeerTTL/6)
	go newIdleReaper(n.log, h.Network(), cfg.IdleTimeout).run(ctx)
	go func() {
		for _, pi := range cfg.Peers {
			n.discovery.Pin(pi)
		}
	}()

	n.log.Info("Node listening", "addrs", addrStrings(h.Addrs()))
	return n, nil
}

func (n *Node) setupMessaging() error {
	ps, err := pubsub.NewGossipSub(n.ctx, n.host,
		pubsub.WithMessageIdFn(MessageID),
		pubsub.WithMessageSignaturePolicy(pubsub.StrictSign),
	)
	if err != nil {
		return fmt.Errorf("failed to create gossipsub: %w", err)
	}
	topic, err := ps.Join(chatTopic)
	if err != nil {
		return fmt.Errorf("failed to join topic %s: %w", chatTopic, err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", chatTopic, err)
	}
	n.pubsub, n.topic, n.sub = ps, topic, sub
	return nil
}

func (n *Node) ID() peer.ID {
	return n.host.ID()
}

func (n *Node) Events() <-chan NetworkEvent {
	return n.events
}

// Publish signs and disseminates data on the chat topic. It fails with
// ErrNoPeers while nobody else is subscribed.
func (n *Node) Publish(ctx context.Context, data []byte) error {
	if len(n.topic.ListPeers()) == 0 {
		return ErrNoPeers
	}
	return n.topic.Publish(ctx, data)
}

// AddExplicitPeer protects the peer's connection from pruning and dials it in
// the background so the caller never waits on the network.
func (n *Node) AddExplicitPeer(pi peer.AddrInfo) {
	n.host.ConnManager().Protect(pi.ID, explicitPeerTag)
	n.redial(pi)
}

func (n *Node) isConnected(id peer.ID) bool {
	return n.host.Network().Connectedness(id) == network.Connected
}

func (n *Node) redial(pi peer.AddrInfo) {
	go func() {
		ctx, cancel := context.WithTimeout(n.ctx, dialTimeout)
		defer cancel()
		if err := n.host.Connect(ctx, pi); err != nil {
			n.log.Warn("Failed to connect to peer", "peer", pi.ID.String(), "error", err)
			return
		}
		n.log.Info("Connected to peer", "peer", pi.ID.String())
	}()
}

func (n *Node) RemoveExplicitPeer(id peer.ID) {
	n.host.ConnManager().Unprotect(id, explicitPeerTag)
}

func (n *Node) pumpMessages() {
	for {
		msg, err := n.sub.Next(n.ctx)
		if err != nil {
			if n.ctx.Err() == nil {
				n.emit(NetworkFailed{Err: fmt.Errorf("topic subscription ended: %w", err)})
			}
			return
		}
		// gossipsub hands our own publications back to us
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}
		n.emit(MessageReceived{ID: msg.ID, From: msg.ReceivedFrom, Data: msg.Data})
	}
}

func (n *Node) pumpAddrs() {
	for {
		select {
		case e, ok := <-n.addrSub.Out():
			if !ok {
				return
			}
			updated, ok := e.(event.EvtLocalAddressesUpdated)
			if !ok {
				continue
			}
			addrs := lo.Map(updated.Current, func(u event.UpdatedAddress, _ int) multiaddr.Multiaddr {
				return u.Address
			})
			n.emit(ListenAddrsUpdated{Addrs: addrs})
		case <-n.ctx.Done():
			return
		}
	}
}

func (n *Node) emit(ev NetworkEvent) {
	select {
	case n.events <- ev:
	case <-n.ctx.Done():
	}
}

func (n *Node) Close() error {
	n.cancel()
	if n.discovery != nil {
		_ = n.discovery.Close()
	}
	if n.addrSub != nil {
		_ = n.addrSub.Close()
	}
	if n.sub != nil {
		n.sub.Cancel()
	}
	if n.topic != nil {
		_ = n.topic.Close()
	}
	return n.host.Close()
}

func listenAddrs(cfg Config) []string {
	return []string{
		fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", cfg.TCPPort),
		fmt.Sprintf("/ip4/0.0.0.0/udp/%d/quic-v1", cfg.UDPPort),
	}
}

func addrStrings(addrs []multiaddr.Multiaddr) []string {
	return lo.Map(addrs, func(a multiaddr.Multiaddr, _ int) string { return a.String() })
}
