package http

import (
	"encoding/json"

	"github.com/backworld/backworld-server/internal/core"
	"github.com/backworld/backworld-server/internal/proto"
)

// inboundToCommand decodes one frame into a core command. A non-empty
// reason means the frame was rejected and the reason should be reported to
// the sender; the connection stays open either way.
func inboundToCommand(inbound proto.Inbound) (*core.Command, string) {
	switch inbound.Type {
	case proto.TypeHandshake:
		var d proto.HandshakeData
		if !decode(inbound.Data, &d) {
			return nil, "invalid_handshake"
		}
		return &core.Command{Kind: core.CommandHandshake, Handshake: &d}, ""

	case proto.TypeCreateRoom:
		// Data is optional; an empty payload creates a default room.
		var d proto.CreateRoomData
		if len(inbound.Data) > 0 && !decode(inbound.Data, &d) {
			return nil, "invalid_create_room"
		}
		return &core.Command{Kind: core.CommandCreateRoom, CreateRoom: &d}, ""

	case proto.TypeJoinRoom:
		var d proto.JoinRoomData
		if !decode(inbound.Data, &d) || d.RoomID == "" {
			return nil, "invalid_join_room"
		}
		return &core.Command{Kind: core.CommandJoinRoom, JoinRoom: &d}, ""

	case proto.TypeChat:
		var d proto.ChatData
		if !decode(inbound.Data, &d) {
			return nil, "invalid_chat"
		}
		return &core.Command{Kind: core.CommandChat, Chat: &d}, ""

	case proto.TypeLoadTBW:
		var d proto.LoadTBWData
		if !decode(inbound.Data, &d) {
			return nil, "invalid_load_tbw"
		}
		return &core.Command{Kind: core.CommandLoadWorld, World: &d}, ""

	case proto.TypePlayerSnapshot:
		var d proto.SnapshotData
		if !decode(inbound.Data, &d) {
			return nil, "invalid_player_snapshot"
		}
		return &core.Command{Kind: core.CommandPlayerSnapshot, Snapshot: &d}, ""

	case proto.TypePlayerState:
		var d proto.SnapshotData
		if !decode(inbound.Data, &d) {
			return nil, "invalid_player_state"
		}
		return &core.Command{Kind: core.CommandPlayerState, Snapshot: &d}, ""

	case proto.TypeKick:
		var d proto.KickData
		if !decode(inbound.Data, &d) {
			return nil, "invalid_kick"
		}
		return &core.Command{Kind: core.CommandKick, Kick: &d}, ""

	case proto.TypeBan:
		var d proto.BanData
		if !decode(inbound.Data, &d) {
			return nil, "invalid_ban"
		}
		return &core.Command{Kind: core.CommandBan, Ban: &d}, ""

	case proto.TypePing:
		return &core.Command{Kind: core.CommandPing}, ""

	case proto.TypeRPCCall:
		var d proto.RPCCallData
		if !decode(inbound.Data, &d) {
			return nil, "invalid_rpc_call"
		}
		return &core.Command{Kind: core.CommandRPCCall, RPC: &d}, ""

	default:
		return nil, core.ReasonUnknownType
	}
}

func decode(data json.RawMessage, v any) bool {
	if len(data) == 0 {
		return false
	}
	return json.Unmarshal(data, v) == nil
}
