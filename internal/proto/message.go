// Package proto defines the JSON frames exchanged over the realtime socket.
// Every frame is {"type": string, "data": object}; field names are camelCase
// to match the game client.
package proto

import "encoding/json"

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Inbound frame types.
const (
	TypeHandshake      = "handshake"
	TypeCreateRoom     = "create_room"
	TypeJoinRoom       = "join_room"
	TypeChat           = "chat"
	TypeLoadTBW        = "load_tbw"
	TypePlayerSnapshot = "player_snapshot"
	TypePlayerState    = "player_state"
	TypeKick           = "kick"
	TypeBan            = "ban"
	TypePing           = "ping"
	TypeRPCCall        = "rpc_call"
)

// Outbound frame types.
const (
	TypeHandshakeAccepted = "handshake_accepted"
	TypeRoomCreated       = "room_created"
	TypeRoomJoined        = "room_joined"
	TypePeerJoined        = "peer_joined"
	TypePeerLeft          = "peer_left"
	TypeHostChanged       = "host_changed"
	TypeTBW               = "tbw"
	TypeKicked            = "kicked"
	TypePong              = "pong"
	TypeRoomListChanged   = "room_list_changed"
	TypeError             = "error"
)

// HandshakeData introduces the connection: display name, client version, and
// an optional JWT credential.
type HandshakeData struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Token   string `json:"token,omitempty"`
}

// HandshakeAcceptedData confirms the handshake.
type HandshakeAcceptedData struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	AccountID int64  `json:"accountId,omitempty"`
	Account   string `json:"account,omitempty"`
}

// CreateRoomData carries optional catalog fields for the room row.
type CreateRoomData struct {
	Gamemode   string `json:"gamemode,omitempty"`
	MapName    string `json:"mapName,omitempty"`
	MaxPlayers int    `json:"maxPlayers,omitempty"`
	Public     *bool  `json:"public,omitempty"`
}

// RoomCreatedData confirms room creation to the host.
type RoomCreatedData struct {
	RoomID string `json:"roomId"`
	PeerID int    `json:"peerId"`
}

// JoinRoomData requests to join an existing room by code.
type JoinRoomData struct {
	RoomID string `json:"roomId"`
}

// Member describes one room participant.
type Member struct {
	PeerID int    `json:"peerId"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

// RoomJoinedData is sent to a joiner: its peer id, the ordered member list,
// and the current world snapshot.
type RoomJoinedData struct {
	RoomID     string   `json:"roomId"`
	PeerID     int      `json:"peerId"`
	Members    []Member `json:"members"`
	CurrentTBW []string `json:"currentTbw"`
}

// PeerJoinedData announces a new participant to the rest of the room.
type PeerJoinedData struct {
	PeerID int    `json:"peerId"`
	Name   string `json:"name"`
}

// PeerLeftData announces a departed participant.
type PeerLeftData struct {
	PeerID int `json:"peerId"`
}

// HostChangedData announces host migration.
type HostChangedData struct {
	HostPeerID int    `json:"hostPeerId"`
	Name       string `json:"name"`
}

// ChatData is an inbound chat line.
type ChatData struct {
	Text string `json:"text"`
}

// ChatEvent relays a chat line to the room.
type ChatEvent struct {
	From     int    `json:"from"`
	FromName string `json:"fromName"`
	Text     string `json:"text"`
}

// LoadTBWData replaces the room's world snapshot (host only).
type LoadTBWData struct {
	Lines []string `json:"lines"`
}

// TBWEvent relays the new world snapshot to the room.
type TBWEvent struct {
	Lines []string `json:"lines"`
}

// SnapshotData carries an opaque per-player payload.
type SnapshotData struct {
	Payload json.RawMessage `json:"payload"`
}

// SnapshotEvent relays a player payload with its origin peer.
type SnapshotEvent struct {
	From    int             `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

// KickData names the peer to remove (host only).
type KickData struct {
	PeerID int `json:"peerId"`
}

// KickedData is delivered to the kick target before teardown.
type KickedData struct {
	Reason string `json:"reason"`
}

// BanData names the address to ban from future joins (host only).
type BanData struct {
	IP string `json:"ip"`
}

// PongData answers a ping.
type PongData struct {
	TS int64 `json:"ts"`
}

// RPCCallData is a routed RPC frame. Target 0 fans out to every other
// member; a specific target is unicast.
type RPCCallData struct {
	Target int             `json:"target"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// RPCCallEvent is the delivered form of an rpc_call.
type RPCCallEvent struct {
	From   int             `json:"from"`
	Target int             `json:"target"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// ErrorData reports a protocol, authorization, or domain error.
type ErrorData struct {
	Reason string `json:"reason"`
}
