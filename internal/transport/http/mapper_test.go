package http

import (
	"encoding/json"
	"testing"

	"github.com/backworld/backworld-server/internal/core"
	"github.com/backworld/backworld-server/internal/proto"
)

func TestInboundToCommand(t *testing.T) {
	tests := []struct {
		name       string
		frameType  string
		data       string
		wantKind   core.CommandKind
		wantReason string
	}{
		{
			name:      "handshake",
			frameType: "handshake",
			data:      `{"name":"alice","version":"1.0.0","token":"t"}`,
			wantKind:  core.CommandHandshake,
		},
		{
			name:       "handshake without data",
			frameType:  "handshake",
			wantReason: "invalid_handshake",
		},
		{
			name:      "create_room without data is valid",
			frameType: "create_room",
			wantKind:  core.CommandCreateRoom,
		},
		{
			name:      "create_room with catalog fields",
			frameType: "create_room",
			data:      `{"gamemode":"survival","maxPlayers":4}`,
			wantKind:  core.CommandCreateRoom,
		},
		{
			name:      "join_room",
			frameType: "join_room",
			data:      `{"roomId":"QX3K7M"}`,
			wantKind:  core.CommandJoinRoom,
		},
		{
			name:       "join_room without room id",
			frameType:  "join_room",
			data:       `{}`,
			wantReason: "invalid_join_room",
		},
		{
			name:      "chat",
			frameType: "chat",
			data:      `{"text":"hello"}`,
			wantKind:  core.CommandChat,
		},
		{
			name:      "load_tbw",
			frameType: "load_tbw",
			data:      `{"lines":["a","b"]}`,
			wantKind:  core.CommandLoadWorld,
		},
		{
			name:      "player_snapshot",
			frameType: "player_snapshot",
			data:      `{"payload":{"x":1}}`,
			wantKind:  core.CommandPlayerSnapshot,
		},
		{
			name:      "player_state",
			frameType: "player_state",
			data:      `{"payload":{"x":1}}`,
			wantKind:  core.CommandPlayerState,
		},
		{
			name:      "kick",
			frameType: "kick",
			data:      `{"peerId":2}`,
			wantKind:  core.CommandKick,
		},
		{
			name:      "ban",
			frameType: "ban",
			data:      `{"ip":"10.0.0.2"}`,
			wantKind:  core.CommandBan,
		},
		{
			name:      "ping takes no data",
			frameType: "ping",
			wantKind:  core.CommandPing,
		},
		{
			name:      "rpc_call",
			frameType: "rpc_call",
			data:      `{"target":0,"method":"spawn","args":[1,2]}`,
			wantKind:  core.CommandRPCCall,
		},
		{
			name:       "rpc_call with malformed data",
			frameType:  "rpc_call",
			data:       `{"target":"not-a-number"}`,
			wantReason: "invalid_rpc_call",
		},
		{
			name:       "unknown type",
			frameType:  "teleport",
			data:       `{}`,
			wantReason: core.ReasonUnknownType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inbound := proto.Inbound{Type: tt.frameType, Data: json.RawMessage(tt.data)}
			cmd, reason := inboundToCommand(inbound)

			if reason != tt.wantReason {
				t.Fatalf("reason = %q, want %q", reason, tt.wantReason)
			}
			if tt.wantReason != "" {
				if cmd != nil {
					t.Fatalf("rejected frame produced a command: %+v", cmd)
				}
				return
			}
			if cmd == nil || cmd.Kind != tt.wantKind {
				t.Fatalf("command = %+v, want kind %v", cmd, tt.wantKind)
			}
		})
	}
}

func TestInboundToCommandDecodedFields(t *testing.T) {
	cmd, reason := inboundToCommand(proto.Inbound{
		Type: "handshake",
		Data: json.RawMessage(`{"name":"alice","version":"1.0.0","token":"tok"}`),
	})
	if reason != "" {
		t.Fatalf("unexpected reason %q", reason)
	}
	hs := cmd.Handshake
	if hs.Name != "alice" || hs.Version != "1.0.0" || hs.Token != "tok" {
		t.Fatalf("handshake decoded as %+v", hs)
	}

	cmd, reason = inboundToCommand(proto.Inbound{
		Type: "rpc_call",
		Data: json.RawMessage(`{"target":3,"method":"poke"}`),
	})
	if reason != "" {
		t.Fatalf("unexpected reason %q", reason)
	}
	if cmd.RPC.Target != 3 || cmd.RPC.Method != "poke" {
		t.Fatalf("rpc decoded as %+v", cmd.RPC)
	}
}
