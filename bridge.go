package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Bridge is the bounded queue carrying commands from the UI to the engine.
// Submit blocks while the queue is full; nothing is dropped.
type Bridge struct {
	commands chan Command
	done     chan struct{}
	once     sync.Once
}

func NewBridge(capacity int) *Bridge {
	return &Bridge{
		commands: make(chan Command, capacity),
		done:     make(chan struct{}),
	}
}

// Commands is the engine side of the queue.
func (b *Bridge) Commands() <-chan Command {
	return b.commands
}

// Submit enqueues cmd, waiting for room if necessary.
func (b *Bridge) Submit(ctx context.Context, cmd Command) error {
	select {
	case <-b.done:
		return ErrBridgeClosed
	default:
	}

	select {
	case b.commands <- cmd:
		return nil
	case <-b.done:
		return ErrBridgeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send queues m for publishing and waits for the engine's verdict.
func (b *Bridge) Send(ctx context.Context, m ChatMessage) error {
	result := make(chan error, 1)
	if err := b.Submit(ctx, SendMessage{Message: m, Result: result}); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-b.done:
		return ErrBridgeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close fails every pending and future submission. The command channel itself
// stays open so a concurrent Submit can never panic.
func (b *Bridge) Close() {
	b.once.Do(func() {
		close(b.done)
	})
}

// Handler serves one named plugin operation.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Plugin exposes the engine to a host through a fixed table of operations
// registered at construction.
type Plugin struct {
	bridge   *Bridge
	handlers map[string]Handler
}

func NewPlugin(bridge *Bridge) *Plugin {
	p := &Plugin{bridge: bridge}
	p.handlers = map[string]Handler{
		"send": p.send,
	}
	return p
}

func (p *Plugin) Name() string {
	return pluginName
}

func (p *Plugin) Operations() []string {
	ops := lo.Keys(p.handlers)
	sort.Strings(ops)
	return ops
}

// Invoke runs op. Hosts only ever see the error text.
func (p *Plugin) Invoke(ctx context.Context, op string, payload json.RawMessage) error {
	h, ok := p.handlers[op]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
	return h(ctx, payload)
}

func (p *Plugin) send(ctx context.Context, payload json.RawMessage) error {
	var m ChatMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	return p.bridge.Send(ctx, m)
}

// ChannelSink buffers events for a host goroutine. Emit never blocks: when
// the host stops draining, events are refused with ErrSinkFull.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ev Event) error {
	select {
	case s.events <- ev:
		return nil
	default:
		return fmt.Errorf("%w: dropping %s", ErrSinkFull, ev.Type())
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}
