package core

import "github.com/backworld/backworld-server/internal/proto"

// send delivers one frame to one connection. Non-blocking: a slow consumer
// loses the frame rather than stalling the hub loop.
func (h *Hub) send(c *Client, frameType string, data any) {
	if c == nil || c.gone {
		return
	}
	select {
	case c.Events <- proto.Outbound{Type: frameType, Data: data}:
	default:
		h.log.Warn().Str("client_id", c.ID).Str("frame", frameType).Msg("dropping frame for slow consumer")
	}
}

func (h *Hub) sendError(c *Client, reason string) {
	h.send(c, proto.TypeError, proto.ErrorData{Reason: reason})
}

// broadcast fans a frame out to every connection bound to a room member,
// skipping excludePeerID when non-zero. Delivery per connection is
// independent and fire-and-forget; a failed send never rolls back the
// mutation that triggered it.
func (h *Hub) broadcast(room *Room, frameType string, data any, excludePeerID int) {
	for _, p := range room.Members() {
		if excludePeerID != 0 && p.PeerID == excludePeerID {
			continue
		}
		h.send(h.clients[p.SessionID], frameType, data)
	}
}

// broadcastAll delivers a frame to every live connection.
func (h *Hub) broadcastAll(frameType string, data any) {
	for _, c := range h.clients {
		h.send(c, frameType, data)
	}
}

// clientForPeer resolves a room member to its live connection, or nil.
func (h *Hub) clientForPeer(room *Room, peerID int) *Client {
	p := room.Member(peerID)
	if p == nil {
		return nil
	}
	return h.clients[p.SessionID]
}
