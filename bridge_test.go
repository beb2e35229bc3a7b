package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_BlocksWhenFull(t *testing.T) {
	req := require.New(t)
	bridge := NewBridge(queueCapacity)
	ctx := context.Background()

	for i := range queueCapacity {
		req.NoError(bridge.Submit(ctx, SendMessage{Message: ChatMessage{Timestamp: int64(i)}}))
	}

	done := make(chan error, 1)
	go func() {
		done <- bridge.Submit(ctx, SendMessage{Message: ChatMessage{Timestamp: queueCapacity}})
	}()

	select {
	case err := <-done:
		req.FailNow("submission past capacity returned early", "err: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	first := <-bridge.Commands()
	req.Equal(int64(0), first.(SendMessage).Message.Timestamp)

	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.FailNow("submission still blocked after a slot was freed")
	}

	// insertion order is preserved, including the late arrival
	for i := 1; i <= queueCapacity; i++ {
		cmd := <-bridge.Commands()
		req.Equal(int64(i), cmd.(SendMessage).Message.Timestamp)
	}
}

func TestBridge_Close(t *testing.T) {
	bridge := NewBridge(1)
	ctx := context.Background()
	require.NoError(t, bridge.Submit(ctx, SendMessage{}))

	blocked := make(chan error, 1)
	go func() { blocked <- bridge.Submit(ctx, SendMessage{}) }()

	bridge.Close()
	bridge.Close()

	select {
	case err := <-blocked:
		assert.ErrorIs(t, err, ErrBridgeClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked submission was not released by Close")
	}
	assert.ErrorIs(t, bridge.Submit(ctx, SendMessage{}), ErrBridgeClosed)
	assert.ErrorIs(t, bridge.Send(ctx, ChatMessage{}), ErrBridgeClosed)
}

func TestBridge_SubmitHonoursContext(t *testing.T) {
	bridge := NewBridge(1)
	require.NoError(t, bridge.Submit(context.Background(), SendMessage{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bridge.Submit(ctx, SendMessage{}), context.DeadlineExceeded)
}

// answer plays the engine: it replies to each SendMessage with reply.
func answer(bridge *Bridge, reply error, got chan<- ChatMessage) {
	for cmd := range bridge.Commands() {
		send := cmd.(SendMessage)
		got <- send.Message
		if send.Result != nil {
			send.Result <- reply
		}
	}
}

func TestPlugin_Send(t *testing.T) {
	req := require.New(t)
	bridge := NewBridge(queueCapacity)
	got := make(chan ChatMessage, 1)
	go answer(bridge, nil, got)

	plugin := NewPlugin(bridge)
	req.Equal("lanchat", plugin.Name())
	req.Equal([]string{"send"}, plugin.Operations())

	payload := json.RawMessage(`{"content":"hi","nickname":"alice","timestamp":1000}`)
	req.NoError(plugin.Invoke(context.Background(), "send", payload))
	req.Equal(ChatMessage{Content: "hi", Nickname: "alice", Timestamp: 1000}, <-got)
}

func TestPlugin_SendReportsEngineFailure(t *testing.T) {
	bridge := NewBridge(queueCapacity)
	go answer(bridge, ErrNoPeers, make(chan ChatMessage, 1))

	err := NewPlugin(bridge).Invoke(context.Background(), "send", json.RawMessage(`{"content":"hi"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrNoPeers.Error())
}

func TestPlugin_RejectsBadInput(t *testing.T) {
	plugin := NewPlugin(NewBridge(1))
	ctx := context.Background()

	assert.ErrorIs(t, plugin.Invoke(ctx, "history", nil), ErrUnknownOperation)
	assert.ErrorContains(t, plugin.Invoke(ctx, "send", json.RawMessage(`{"timestamp":"soon"}`)), "invalid message")
}

func TestChannelSink_NeverBlocks(t *testing.T) {
	sink := NewChannelSink(1)
	ev := ReceivedMessage{ChatMessage: ChatMessage{Content: "a"}}

	require.NoError(t, sink.Emit(ev))
	assert.ErrorIs(t, sink.Emit(ev), ErrSinkFull)
	assert.Equal(t, ev, <-sink.Events())
}

func TestReceivedMessage_JSON(t *testing.T) {
	ev := ReceivedMessage{ChatMessage: ChatMessage{Content: "hi", Nickname: "alice", Timestamp: 1000}}

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"receivedMessage","content":"hi","nickname":"alice","timestamp":1000}`, string(data))
	assert.Equal(t, "plugin:lanchat|receivedMessage", EventName(ev))
}
