package main

import "errors"

var (
	ErrNoPeers          = errors.New("no peers subscribed to topic")
	ErrMalformedPayload = errors.New("malformed chat payload")
	ErrBridgeClosed     = errors.New("command bridge closed")
	ErrSinkFull         = errors.New("event sink full")
	ErrUnknownOperation = errors.New("unknown operation")
	ErrNetworkClosed    = errors.New("network event stream closed")
)
