package main

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	streams []network.Stream
	closed  bool
}

func (c *fakeConn) GetStreams() []network.Stream { return c.streams }

func (c *fakeConn) Close() error {
	if c.closed {
		return errors.New("already closed")
	}
	c.closed = true
	return nil
}

func TestIdleReaper_Sweep(t *testing.T) {
	busy := &fakeConn{streams: []network.Stream{nil}}
	idle := &fakeConn{}
	conns := []idleConn{busy, idle}

	r := &idleReaper{
		log:      logs.GetLoggerFromLevel(slog.LevelDebug),
		conns:    func() []idleConn { return conns },
		timeout:  time.Minute,
		lastBusy: make(map[idleConn]time.Time),
	}
	start := time.Unix(1000, 0)

	// first sight only starts the clock
	assert.Zero(t, r.sweep(start))
	assert.Zero(t, r.sweep(start.Add(59*time.Second)))
	assert.False(t, idle.closed)

	assert.Equal(t, 1, r.sweep(start.Add(time.Minute)))
	assert.True(t, idle.closed)
	assert.False(t, busy.closed)

	// a connection that goes quiet gets the full timeout from its last stream
	busy.streams = nil
	assert.Zero(t, r.sweep(start.Add(90*time.Second)))
	assert.Equal(t, 1, r.sweep(start.Add(2*time.Minute)))
	assert.True(t, busy.closed)
}

func TestIdleReaper_ForgetsVanishedConns(t *testing.T) {
	gone := &fakeConn{}
	conns := []idleConn{gone}
	r := &idleReaper{
		log:      logs.GetLoggerFromLevel(slog.LevelDebug),
		conns:    func() []idleConn { return conns },
		timeout:  time.Minute,
		lastBusy: make(map[idleConn]time.Time),
	}

	r.sweep(time.Unix(0, 0))
	conns = nil
	r.sweep(time.Unix(10, 0))

	assert.Empty(t, r.lastBusy)
	assert.False(t, gone.closed)
}
