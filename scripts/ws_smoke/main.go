// Command ws_smoke connects to a running server, performs the handshake,
// creates a room, and pings. Handy for poking at a deployment by hand.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/backworld/backworld-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:30820/ws", "WebSocket address")
	name := flag.String("name", "tester", "display name for the handshake")
	version := flag.String("version", "1.0.0", "client version to announce")
	token := flag.String("token", "", "JWT to authenticate with (required to create a room)")
	room := flag.String("room", "", "room code to join; empty creates a new room")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(frameType string, data any) error {
		var raw json.RawMessage
		if data != nil {
			payload, err := json.Marshal(data)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", frameType, err)
			}
			raw = payload
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: frameType, Data: raw}); err != nil {
			return fmt.Errorf("send %s: %w", frameType, err)
		}
		return nil
	}

	recv := func() (string, json.RawMessage, error) {
		var frame struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return "", nil, fmt.Errorf("read: %w", err)
		}
		return frame.Type, frame.Data, nil
	}

	if err := send("handshake", proto.HandshakeData{Name: *name, Version: *version, Token: *token}); err != nil {
		return err
	}
	frameType, data, err := recv()
	if err != nil {
		return err
	}
	log.Printf("<- %s %s", frameType, data)
	if frameType != "handshake_accepted" {
		return fmt.Errorf("handshake rejected: %s", data)
	}

	if *room != "" {
		err = send("join_room", proto.JoinRoomData{RoomID: *room})
	} else {
		err = send("create_room", nil)
	}
	if err != nil {
		return err
	}
	frameType, data, err = recv()
	if err != nil {
		return err
	}
	log.Printf("<- %s %s", frameType, data)

	if err := send("ping", nil); err != nil {
		return err
	}
	for {
		frameType, data, err = recv()
		if err != nil {
			return err
		}
		log.Printf("<- %s %s", frameType, data)
		if frameType == "pong" {
			return nil
		}
	}
}
