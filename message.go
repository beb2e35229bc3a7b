package main

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/vmihailenco/msgpack/v5"
)

// chatFields is the arity of the wire array [content, nickname, timestamp].
const chatFields = 3

// EncodeMessage serializes m as a MessagePack array. Integers use their most
// compact representation, so equal messages always encode to equal bytes.
func EncodeMessage(m ChatMessage) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(chatFields); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(m.Content); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(m.Nickname); err != nil {
		return nil, err
	}
	if err := enc.EncodeInt(m.Timestamp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeMessage is the inverse of EncodeMessage.
func DecodeMessage(data []byte) (ChatMessage, error) {
	var m ChatMessage
	dec := msgpack.NewDecoder(bytes.NewReader(data))

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return m, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if n != chatFields {
		return m, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedPayload, chatFields, n)
	}
	if m.Content, err = dec.DecodeString(); err != nil {
		return m, fmt.Errorf("%w: content: %v", ErrMalformedPayload, err)
	}
	if m.Nickname, err = dec.DecodeString(); err != nil {
		return m, fmt.Errorf("%w: nickname: %v", ErrMalformedPayload, err)
	}
	if m.Timestamp, err = dec.DecodeInt64(); err != nil {
		return m, fmt.Errorf("%w: timestamp: %v", ErrMalformedPayload, err)
	}
	return m, nil
}

// PayloadID derives the dissemination id from the payload bytes alone. Two
// peers publishing identical bytes produce the same id.
func PayloadID(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 10)
}

// MessageID adapts PayloadID to the gossipsub message id hook.
func MessageID(pmsg *pb.Message) string {
	return PayloadID(pmsg.GetData())
}
