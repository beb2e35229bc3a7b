package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Network is the part of the node the event loop drives.
type Network interface {
	Publish(ctx context.Context, data []byte) error
	AddExplicitPeer(pi peer.AddrInfo)
	RemoveExplicitPeer(id peer.ID)
	Events() <-chan NetworkEvent
}

// EventSink receives events for the UI. Emit must not block.
type EventSink interface {
	Emit(Event) error
}

// Outcome classifies what one loop iteration did.
type Outcome int

const (
	// Handled means the item was fully processed.
	Handled Outcome = iota
	// Skipped means the item was dropped; the session carries on.
	Skipped
	// Fatal means the session cannot continue.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Handled:
		return "handled"
	case Skipped:
		return "skipped"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// StepResult is returned by every handler of the loop.
type StepResult struct {
	Outcome Outcome
	Err     error
}

func handled() StepResult { return StepResult{Outcome: Handled} }

func skipped(err error) StepResult { return StepResult{Outcome: Skipped, Err: err} }

func fatal(err error) StepResult { return StepResult{Outcome: Fatal, Err: err} }

// Engine is the event loop coordinator. Everything it references is touched
// only from the goroutine running Run.
type Engine struct {
	log      *slog.Logger
	net      Network
	commands <-chan Command
	sink     EventSink
	peers    *PeerSet
}

func NewEngine(log *slog.Logger, net Network, commands <-chan Command, sink EventSink) *Engine {
	return &Engine{
		log:      log,
		net:      net,
		commands: commands,
		sink:     sink,
		peers:    NewPeerSet(),
	}
}

// Run processes one command or network event per iteration until ctx is
// cancelled or a step is fatal. When both sources are ready the choice
// between them is left to select and is not deterministic.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("Engine started")
	defer e.releasePeers()

	events := e.net.Events()
	for {
		var res StepResult
		select {
		case <-ctx.Done():
			e.log.Info("Engine stopped")
			return nil

		case cmd := <-e.commands:
			res = e.handleCommand(ctx, cmd)

		case ev, ok := <-events:
			if !ok {
				res = fatal(ErrNetworkClosed)
				break
			}
			res = e.handleNetworkEvent(ev)
		}

		switch res.Outcome {
		case Skipped:
			e.log.Warn("Item skipped", "error", res.Err)
		case Fatal:
			e.log.Error("Engine aborted", "error", res.Err)
			return res.Err
		}
	}
}

func (e *Engine) handleCommand(ctx context.Context, cmd Command) StepResult {
	switch c := cmd.(type) {
	case SendMessage:
		err := e.publish(ctx, c.Message)
		if c.Result != nil {
			select {
			case c.Result <- err:
			default:
				e.log.Warn("Send result dropped, reply channel not ready")
			}
		}
		if err != nil {
			return skipped(err)
		}
		return handled()
	default:
		return skipped(fmt.Errorf("unsupported command %T", cmd))
	}
}

func (e *Engine) publish(ctx context.Context, m ChatMessage) error {
	data, err := EncodeMessage(m)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	e.log.Debug("Sending message", "nickname", m.Nickname, "id", PayloadID(data))
	if err := e.net.Publish(ctx, data); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (e *Engine) handleNetworkEvent(ev NetworkEvent) StepResult {
	switch ev := ev.(type) {
	case MessageReceived:
		return e.handleMessage(ev)

	case PeerDiscovered:
		e.log.Info("Discovered peer", "peer", ev.Info.ID.String(), "addrs", addrStrings(ev.Info.Addrs))
		if e.peers.Add(ev.Info.ID, ev.Info.Addrs) {
			e.net.AddExplicitPeer(ev.Info)
		}
		return handled()

	case PeerExpired:
		e.log.Info("Peer expired", "peer", ev.Info.ID.String())
		if e.peers.Remove(ev.Info.ID) {
			e.net.RemoveExplicitPeer(ev.Info.ID)
		}
		return handled()

	case NetworkFailed:
		return fatal(fmt.Errorf("%w: %w", ErrNetworkClosed, ev.Err))

	case ListenAddrsUpdated:
		e.log.Info("Listening", "addrs", addrStrings(ev.Addrs))
		return handled()
	}
	return handled()
}

func (e *Engine) handleMessage(ev MessageReceived) StepResult {
	m, err := DecodeMessage(ev.Data)
	if err != nil {
		return skipped(fmt.Errorf("message %s from %s: %w", ev.ID, ev.From, err))
	}
	e.log.Debug("Got message", "id", ev.ID, "from", ev.From.String())

	if err := e.sink.Emit(ReceivedMessage{ChatMessage: m}); err != nil {
		// the UI may be gone; that never stops the loop
		e.log.Warn("Failed to emit event", "error", err)
	}
	return handled()
}

func (e *Engine) releasePeers() {
	for _, id := range e.peers.IDs() {
		e.net.RemoveExplicitPeer(id)
		e.peers.Remove(id)
	}
}

