package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/backworld/backworld-server/internal/proto"
	"github.com/backworld/backworld-server/internal/store"
)

const defaultGamemode = "sandbox"

// dispatch routes one decoded command. Authorization is re-checked here on
// every frame: host status can change mid-session via migration, so it is
// never cached on the connection.
func (h *Hub) dispatch(ctx context.Context, c *Client, cmd *Command) {
	if c.gone {
		// The connection was torn down while this frame sat in the queue.
		return
	}
	c.LastSeen = time.Now()

	switch cmd.Kind {
	case CommandHandshake:
		h.handleHandshake(c, cmd.Handshake)
	case CommandCreateRoom:
		h.handleCreateRoom(ctx, c, cmd.CreateRoom)
	case CommandJoinRoom:
		h.handleJoinRoom(ctx, c, cmd.JoinRoom)
	case CommandChat:
		h.handleChat(c, cmd.Chat)
	case CommandLoadWorld:
		h.handleLoadWorld(c, cmd.World)
	case CommandPlayerSnapshot:
		h.handleRelay(c, proto.TypePlayerSnapshot, cmd.Snapshot)
	case CommandPlayerState:
		h.handleRelay(c, proto.TypePlayerState, cmd.Snapshot)
	case CommandKick:
		h.handleKick(ctx, c, cmd.Kick)
	case CommandBan:
		h.handleBan(c, cmd.Ban)
	case CommandPing:
		h.handlePing(c)
	case CommandRPCCall:
		h.handleRPCCall(c, cmd.RPC)
	}
}

func (h *Hub) handleHandshake(c *Client, d *proto.HandshakeData) {
	name := strings.TrimSpace(d.Name)
	if name == "" || d.Version == "" {
		h.sendError(c, "invalid_handshake")
		return
	}

	var accountID int64
	var account string
	if d.Token != "" {
		if h.verifier == nil {
			h.sendError(c, ReasonInvalidCredentials)
			return
		}
		id, acct, err := h.verifier.Verify(d.Token)
		if err != nil {
			h.log.Debug().Err(err).Str("client_id", c.ID).Msg("handshake credential rejected")
			h.sendError(c, ReasonInvalidCredentials)
			return
		}
		accountID, account = id, acct
	}

	c.Name = name
	c.Version = d.Version
	c.UserID = accountID
	c.Account = account

	h.send(c, proto.TypeHandshakeAccepted, proto.HandshakeAcceptedData{
		Name:      c.Name,
		Version:   c.Version,
		AccountID: c.UserID,
		Account:   c.Account,
	})
	h.log.Info().Str("client_id", c.ID).Str("name", c.Name).Str("version", c.Version).Int64("account_id", c.UserID).Msg("handshake accepted")
}

func (h *Hub) handleCreateRoom(ctx context.Context, c *Client, d *proto.CreateRoomData) {
	if c.UserID == 0 {
		h.sendError(c, ReasonAuthRequired)
		return
	}
	if c.Name == "" || c.Version == "" {
		h.sendError(c, "invalid_create_room")
		return
	}
	if c.InRoom() {
		h.sendError(c, ReasonAlreadyInRoom)
		return
	}
	if d == nil {
		d = &proto.CreateRoomData{}
	}

	// An account that already owns an active room (created out-of-band via
	// the REST API, or left over from a dropped connection) attaches to it
	// instead of creating a second one.
	existing, err := h.reconciler.CurrentRoomOf(ctx, c.UserID)
	if err != nil {
		h.log.Error().Err(err).Int64("account_id", c.UserID).Msg("current room lookup failed")
		h.sendError(c, ReasonStorageFailure)
		return
	}

	var room *Room
	switch {
	case existing != nil && h.registry.Room(existing.ID) != nil:
		// The room is already live with members in it; hosting it again is
		// not possible, the client should join instead.
		h.sendError(c, ReasonAlreadyInRoom)
		return
	case existing != nil:
		if existing.Version != c.Version {
			h.sendError(c, ReasonVersionMismatch)
			return
		}
		room = h.registry.AdoptRoom(existing.ID, existing.Version, c.Name, c.Addr, c.ID)
		h.log.Info().Str("room_id", room.ID).Int64("account_id", c.UserID).Msg("room adopted from storage")
	default:
		room = h.registry.CreateRoom(c.Version, c.Name, c.Addr, c.ID)

		gamemode := d.Gamemode
		if gamemode == "" {
			gamemode = defaultGamemode
		}
		var mapName *string
		if d.MapName != "" {
			mapName = &d.MapName
		}
		public := true
		if d.Public != nil {
			public = *d.Public
		}

		if _, err := h.store.CreateRoom(ctx, store.CreateRoomInput{
			ID:           room.ID,
			Version:      c.Version,
			HostUserID:   c.UserID,
			HostUsername: c.Name,
			Gamemode:     gamemode,
			MapName:      mapName,
			MaxPlayers:   d.MaxPlayers,
			IsPublic:     public,
		}); err != nil {
			h.registry.LeaveRoom(room.ID, HostPeerID)
			h.log.Error().Err(err).Str("room_id", room.ID).Msg("room row insert failed")
			h.sendError(c, ReasonStorageFailure)
			return
		}
	}

	if err := h.reconciler.Attach(ctx, c.UserID, room.ID); err != nil {
		h.registry.LeaveRoom(room.ID, HostPeerID)
		h.log.Error().Err(err).Str("room_id", room.ID).Msg("attach failed")
		h.sendError(c, ReasonStorageFailure)
		return
	}

	c.RoomID = room.ID
	c.PeerID = HostPeerID

	h.send(c, proto.TypeRoomCreated, proto.RoomCreatedData{RoomID: room.ID, PeerID: HostPeerID})
	h.broadcastAll(proto.TypeRoomListChanged, nil)
	h.log.Info().Str("room_id", room.ID).Str("host", c.Name).Msg("room created")
}

func (h *Hub) handleJoinRoom(ctx context.Context, c *Client, d *proto.JoinRoomData) {
	if c.UserID == 0 {
		h.sendError(c, ReasonAuthRequired)
		return
	}
	if c.Name == "" || c.Version == "" {
		h.sendError(c, "invalid_join_room")
		return
	}
	if c.InRoom() {
		h.sendError(c, ReasonAlreadyInRoom)
		return
	}

	room := h.registry.Room(d.RoomID)
	var joined *Participant

	if room == nil {
		// Not live in memory; the room may still exist durably, created
		// out-of-band. Adopt it with this joiner as the first participant.
		row, err := h.store.GetRoomByID(ctx, d.RoomID)
		if errors.Is(err, store.ErrNotFound) {
			h.sendError(c, ReasonRoomNotFound)
			return
		}
		if err != nil {
			h.log.Error().Err(err).Str("room_id", d.RoomID).Msg("room row lookup failed")
			h.sendError(c, ReasonStorageFailure)
			return
		}
		if row.Version != c.Version {
			h.sendError(c, ReasonVersionMismatch)
			return
		}
		room = h.registry.AdoptRoom(row.ID, row.Version, c.Name, c.Addr, c.ID)
		joined = room.Member(HostPeerID)
		h.log.Info().Str("room_id", room.ID).Str("name", c.Name).Msg("room adopted on join")
	} else {
		var derr *DomainError
		_, joined, derr = h.registry.JoinRoom(d.RoomID, c.Version, c.Name, c.Addr, c.ID)
		if derr != nil {
			h.sendError(c, derr.Reason)
			return
		}
	}

	if err := h.reconciler.Attach(ctx, c.UserID, room.ID); err != nil {
		h.registry.LeaveRoom(room.ID, joined.PeerID)
		h.log.Error().Err(err).Str("room_id", room.ID).Msg("attach failed")
		h.sendError(c, ReasonStorageFailure)
		return
	}

	c.RoomID = room.ID
	c.PeerID = joined.PeerID

	world := room.World()
	if world == nil {
		world = []string{}
	}
	h.send(c, proto.TypeRoomJoined, proto.RoomJoinedData{
		RoomID:     room.ID,
		PeerID:     joined.PeerID,
		Members:    membersPayload(room),
		CurrentTBW: world,
	})
	h.broadcast(room, proto.TypePeerJoined, proto.PeerJoinedData{PeerID: joined.PeerID, Name: joined.Name}, joined.PeerID)
	h.log.Info().Str("room_id", room.ID).Int("peer_id", joined.PeerID).Str("name", joined.Name).Msg("peer joined")
}

func (h *Hub) handleChat(c *Client, d *proto.ChatData) {
	room := h.roomOf(c)
	if room == nil {
		return
	}

	text := truncateRunes(d.Text, h.opts.MaxChatLen)
	h.broadcast(room, proto.TypeChat, proto.ChatEvent{
		From:     c.PeerID,
		FromName: c.Name,
		Text:     text,
	}, c.PeerID)
	h.log.Debug().Str("room_id", room.ID).Int("peer_id", c.PeerID).Msg("chat relayed")
}

func (h *Hub) handleLoadWorld(c *Client, d *proto.LoadTBWData) {
	room := h.hostedRoomOf(c)
	if room == nil {
		return
	}

	lines := d.Lines
	if len(lines) > h.opts.MaxWorldLines {
		lines = lines[:h.opts.MaxWorldLines]
	}
	h.registry.UpdateWorldState(room.ID, lines)
	h.broadcast(room, proto.TypeTBW, proto.TBWEvent{Lines: lines}, 0)
	h.log.Info().Str("room_id", room.ID).Int("lines", len(lines)).Msg("world snapshot replaced")
}

// handleRelay serves player_snapshot and player_state: same authorization,
// same fan-out, different frame type. Nothing is persisted.
func (h *Hub) handleRelay(c *Client, frameType string, d *proto.SnapshotData) {
	room := h.roomOf(c)
	if room == nil {
		return
	}
	h.broadcast(room, frameType, proto.SnapshotEvent{From: c.PeerID, Payload: d.Payload}, c.PeerID)
}

func (h *Hub) handleKick(ctx context.Context, c *Client, d *proto.KickData) {
	room := h.hostedRoomOf(c)
	if room == nil {
		return
	}
	if d.PeerID == c.PeerID || room.Member(d.PeerID) == nil {
		h.sendError(c, ReasonInvalidTarget)
		return
	}

	target := h.clientForPeer(room, d.PeerID)
	h.log.Info().Str("room_id", room.ID).Int("target", d.PeerID).Msg("kick")
	if target != nil {
		// Notify the target before its teardown broadcasts peer_left.
		h.send(target, proto.TypeKicked, proto.KickedData{Reason: "host_kick"})
		h.teardown(ctx, target)
	}
}

func (h *Hub) handleBan(c *Client, d *proto.BanData) {
	room := h.hostedRoomOf(c)
	if room == nil {
		return
	}
	if d.IP == "" {
		h.sendError(c, ReasonInvalidTarget)
		return
	}
	h.registry.BanAddress(room.ID, d.IP)
	h.log.Info().Str("room_id", room.ID).Str("ip", d.IP).Msg("address banned")
}

func (h *Hub) handlePing(c *Client) {
	h.send(c, proto.TypePong, proto.PongData{TS: time.Now().UnixMilli()})
}

func (h *Hub) handleRPCCall(c *Client, d *proto.RPCCallData) {
	room := h.roomOf(c)
	if room == nil {
		return
	}
	if d.Method == "" {
		h.sendError(c, "invalid_rpc_call")
		return
	}

	event := proto.RPCCallEvent{
		From:   c.PeerID,
		Target: d.Target,
		Method: d.Method,
		Args:   d.Args,
	}
	if d.Target == 0 {
		h.broadcast(room, proto.TypeRPCCall, event, c.PeerID)
		return
	}

	// Unicast: silently dropped when the target is absent or disconnected.
	target := h.clientForPeer(room, d.Target)
	if target == nil {
		h.log.Debug().Str("room_id", room.ID).Int("target", d.Target).Msg("rpc target gone, dropped")
		return
	}
	h.send(target, proto.TypeRPCCall, event)
}

// roomOf authorizes a session-scoped operation: the connection must hold a
// participant id in a live room. Errors go to the sender.
func (h *Hub) roomOf(c *Client) *Room {
	if !c.InRoom() {
		h.sendError(c, ReasonNotInRoom)
		return nil
	}
	room := h.registry.Room(c.RoomID)
	if room == nil {
		h.sendError(c, ReasonRoomNotFound)
		return nil
	}
	return room
}

// hostedRoomOf additionally requires current host status.
func (h *Hub) hostedRoomOf(c *Client) *Room {
	room := h.roomOf(c)
	if room == nil {
		return nil
	}
	member := room.Member(c.PeerID)
	if member == nil || !member.IsHost {
		h.sendError(c, ReasonNotHost)
		return nil
	}
	return room
}

func membersPayload(room *Room) []proto.Member {
	members := room.Members()
	out := make([]proto.Member, 0, len(members))
	for _, p := range members {
		out = append(out, proto.Member{PeerID: p.PeerID, Name: p.Name, IsHost: p.IsHost})
	}
	return out
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
