package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/samber/lo"
)

type idleConn interface {
	GetStreams() []network.Stream
	Close() error
}

// idleReaper closes connections that carried no stream for longer than timeout.
type idleReaper struct {
	log      *slog.Logger
	conns    func() []idleConn
	timeout  time.Duration
	lastBusy map[idleConn]time.Time
}

func newIdleReaper(log *slog.Logger, n network.Network, timeout time.Duration) *idleReaper {
	return &idleReaper{
		log: log,
		conns: func() []idleConn {
			return lo.Map(n.Conns(), func(c network.Conn, _ int) idleConn { return c })
		},
		timeout:  timeout,
		lastBusy: make(map[idleConn]time.Time),
	}
}

func (r *idleReaper) run(ctx context.Context) {
	ticker := time.NewTicker(r.timeout / 6)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			if closed := r.sweep(now); closed > 0 {
				r.log.Debug("Closed idle connections", "count", closed)
			}
		case <-ctx.Done():
			return
		}
	}
}

// sweep returns the number of connections it closed.
func (r *idleReaper) sweep(now time.Time) int {
	live := make(map[idleConn]struct{})
	closed := 0
	for _, c := range r.conns() {
		live[c] = struct{}{}
		if len(c.GetStreams()) > 0 {
			r.lastBusy[c] = now
			continue
		}
		since, seen := r.lastBusy[c]
		if !seen {
			r.lastBusy[c] = now
			continue
		}
		if now.Sub(since) >= r.timeout {
			if err := c.Close(); err != nil {
				r.log.Debug("Idle connection close failed", "error", err)
			}
			delete(r.lastBusy, c)
			delete(live, c)
			closed++
		}
	}
	for c := range r.lastBusy {
		if _, ok := live[c]; !ok {
			delete(r.lastBusy, c)
		}
	}
	return closed
}
