package main

import (
	"encoding/json"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

const (
	pluginName      = "lanchat"
	chatTopic       = "lanchat"
	queueCapacity   = 100
	idleTimeout     = 60 * time.Second
	defaultPeerTTL  = 6 * time.Minute
	eventNamePrefix = "plugin:" + pluginName + "|"
)

// ChatMessage is the unit carried on the chat topic. It is comparable, so
// equality covers content, nickname and timestamp together.
type ChatMessage struct {
	Content   string `json:"content"`
	Nickname  string `json:"nickname"`
	Timestamp int64  `json:"timestamp"`
}

// Command is something the UI asks the engine to do.
type Command interface {
	isCommand()
}

// SendMessage asks the engine to publish Message on the chat topic. When
// Result is non-nil the engine reports the publish outcome on it without
// waiting, so Result must be buffered or the outcome is dropped.
type SendMessage struct {
	Message ChatMessage
	Result  chan<- error
}

func (SendMessage) isCommand() {}

// Event is something the engine tells the UI.
type Event interface {
	// Type is the discriminant hosts switch on.
	Type() string
}

// ReceivedMessage carries a chat message that arrived from a peer.
type ReceivedMessage struct {
	ChatMessage
}

func (ReceivedMessage) Type() string { return "receivedMessage" }

// MarshalJSON flattens the message next to its "type" tag.
func (e ReceivedMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		ChatMessage
	}{e.Type(), e.ChatMessage})
}

// EventName is the channel name an event is emitted under.
func EventName(e Event) string {
	return eventNamePrefix + e.Type()
}

// NetworkEvent is anything the node hands to the event loop.
type NetworkEvent interface {
	isNetworkEvent()
}

// MessageReceived is a validated, deduplicated gossip message on the chat topic.
type MessageReceived struct {
	ID   string
	From peer.ID
	Data []byte
}

// PeerDiscovered reports a peer seen on the local network for the first time.
type PeerDiscovered struct {
	Info peer.AddrInfo
}

// PeerExpired reports a peer that stopped announcing itself.
type PeerExpired struct {
	Info peer.AddrInfo
}

// NetworkFailed reports that the node can no longer deliver messages.
type NetworkFailed struct {
	Err error
}

// ListenAddrsUpdated is informational.
type ListenAddrsUpdated struct {
	Addrs []multiaddr.Multiaddr
}

func (MessageReceived) isNetworkEvent()    {}
func (PeerDiscovered) isNetworkEvent()     {}
func (PeerExpired) isNetworkEvent()        {}
func (NetworkFailed) isNetworkEvent()      {}
func (ListenAddrsUpdated) isNetworkEvent() {}
