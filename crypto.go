package main

import (
	"crypto/rand"
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// Identity is the keypair a session signs with. It is generated fresh every
// run and never written to disk.
type Identity struct {
	PrivKey crypto.PrivKey
	ID      peer.ID
}

// NewIdentity generates an ed25519 session identity.
func NewIdentity() (*Identity, error) {
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate keys: %w", err)
	}
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to derive peer id: %w", err)
	}
	return &Identity{PrivKey: priv, ID: id}, nil
}
