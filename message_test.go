package main

import (
	"math"
	"strings"
	"testing"

	pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMessage_IsCompactArray(t *testing.T) {
	data, err := EncodeMessage(ChatMessage{Content: "hi", Nickname: "alice", Timestamp: 1000})
	require.NoError(t, err)

	// fixarray(3), fixstr "hi", fixstr "alice", uint16 1000
	want := []byte{
		0x93,
		0xa2, 'h', 'i',
		0xa5, 'a', 'l', 'i', 'c', 'e',
		0xcd, 0x03, 0xe8,
	}
	assert.Equal(t, want, data)
}

func TestMessage_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  ChatMessage
	}{
		{"zero value", ChatMessage{}},
		{"plain", ChatMessage{Content: "hi", Nickname: "alice", Timestamp: 1000}},
		{"negative fixint", ChatMessage{Content: "x", Nickname: "y", Timestamp: -1}},
		{"negative int8", ChatMessage{Content: "x", Nickname: "y", Timestamp: -100}},
		{"min int64", ChatMessage{Content: "x", Nickname: "y", Timestamp: math.MinInt64}},
		{"max int64", ChatMessage{Content: "x", Nickname: "y", Timestamp: math.MaxInt64}},
		{"unicode", ChatMessage{Content: "héllo 👋", Nickname: "zoë", Timestamp: 1717171717171}},
		{"long content", ChatMessage{Content: strings.Repeat("a", 70000), Nickname: "bob", Timestamp: 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeMessage(tt.msg)
			require.NoError(t, err)

			got, err := DecodeMessage(data)
			require.NoError(t, err)
			assert.Equal(t, tt.msg, got)
		})
	}
}

func TestDecodeMessage_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not msgpack", []byte{0xc1}},
		{"nil", []byte{0xc0}},
		{"two fields", []byte{0x92, 0xa1, 'a', 0xa1, 'b'}},
		{"four fields", []byte{0x94, 0xa1, 'a', 0xa1, 'b', 0x01, 0x02}},
		{"int content", []byte{0x93, 0x01, 0xa1, 'b', 0x01}},
		{"string timestamp", []byte{0x93, 0xa1, 'a', 0xa1, 'b', 0xa1, 'c'}},
		{"truncated", []byte{0x93, 0xa5, 'a', 'l'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMessage(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestPayloadID_DependsOnlyOnBytes(t *testing.T) {
	a, err := EncodeMessage(ChatMessage{Content: "hi", Nickname: "alice", Timestamp: 1000})
	require.NoError(t, err)
	b, err := EncodeMessage(ChatMessage{Content: "hi", Nickname: "alice", Timestamp: 1000})
	require.NoError(t, err)
	c, err := EncodeMessage(ChatMessage{Content: "hi", Nickname: "alice", Timestamp: 1001})
	require.NoError(t, err)

	assert.Equal(t, PayloadID(a), PayloadID(b))
	assert.NotEqual(t, PayloadID(a), PayloadID(c))

	// the gossip hook ignores everything except the data
	fromAlice := &pb.Message{Data: a, From: []byte("peer-1"), Seqno: []byte{1}}
	fromBob := &pb.Message{Data: b, From: []byte("peer-2"), Seqno: []byte{9}}
	assert.Equal(t, MessageID(fromAlice), MessageID(fromBob))
	assert.Equal(t, PayloadID(a), MessageID(fromAlice))
}
