package core

import "github.com/backworld/backworld-server/internal/proto"

// CommandKind is the closed set of operations a client can request. The
// hub switches over it exhaustively; an unrecognized wire type never makes
// it past the transport mapper.
type CommandKind int

const (
	// CommandHandshake assigns display name, version, and optionally an
	// account identity to the connection.
	CommandHandshake CommandKind = iota
	// CommandCreateRoom creates or adopts a room with the sender as host.
	CommandCreateRoom
	// CommandJoinRoom joins an existing room by code.
	CommandJoinRoom
	// CommandChat relays a chat line to the other room members.
	CommandChat
	// CommandLoadWorld replaces the room's world snapshot (host only).
	CommandLoadWorld
	// CommandPlayerSnapshot relays a full player state payload.
	CommandPlayerSnapshot
	// CommandPlayerState relays an incremental player state payload.
	CommandPlayerState
	// CommandKick tears down a member's connection (host only).
	CommandKick
	// CommandBan bans an address from future joins (host only).
	CommandBan
	// CommandPing is a liveness probe answered with pong.
	CommandPing
	// CommandRPCCall routes an RPC frame to one member or the whole room.
	CommandRPCCall
)

// Command is one decoded client request. Exactly the field matching Kind
// is populated.
type Command struct {
	Kind CommandKind

	Handshake  *proto.HandshakeData
	CreateRoom *proto.CreateRoomData
	JoinRoom   *proto.JoinRoomData
	Chat       *proto.ChatData
	World      *proto.LoadTBWData
	Snapshot   *proto.SnapshotData
	Kick       *proto.KickData
	Ban        *proto.BanData
	RPC        *proto.RPCCallData
}
