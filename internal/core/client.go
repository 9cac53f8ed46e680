package core

import (
	"time"

	"github.com/backworld/backworld-server/internal/proto"
)

// Client is one live connection as seen by the hub. The transport layer
// holds only the Events channel; everything else is owned and mutated by
// the hub loop. Room membership is a back-reference (RoomID + PeerID),
// never a pointer into the registry.
type Client struct {
	ID   string
	Addr string

	// Set by handshake.
	Name    string
	Version string

	// Account identity, set when the handshake carries a valid credential.
	UserID  int64
	Account string

	// Room back-reference; zero values mean "not in a room".
	RoomID string
	PeerID int

	// LastSeen is refreshed on every inbound frame and checked by the
	// heartbeat sweep.
	LastSeen time.Time

	// Events is drained by the connection's write loop. Closed by the hub
	// on teardown.
	Events chan proto.Outbound

	gone bool
}

// NewClient constructs a client for a freshly accepted connection.
func NewClient(id, addr string) *Client {
	return &Client{
		ID:       id,
		Addr:     addr,
		LastSeen: time.Now(),
		Events:   make(chan proto.Outbound, 32),
	}
}

// InRoom reports whether the connection holds an assigned participant id.
func (c *Client) InRoom() bool {
	return c.RoomID != "" && c.PeerID != 0
}
