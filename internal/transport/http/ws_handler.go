package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/backworld/backworld-server/internal/core"
	"github.com/backworld/backworld-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewClient(uuid.NewString(), clientAddr(r))
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	h.log.Info().Str("client_id", client.ID).Str("addr", client.Addr).Msg("client connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "error"
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// readLoop parses inbound frames and submits them to the hub. Malformed
// frames earn the sender an error frame; they never close the connection.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var inbound proto.Inbound
		if unmarshalErr := json.Unmarshal(data, &inbound); unmarshalErr != nil || inbound.Type == "" {
			if writeErr := h.writeError(ctx, conn, core.ReasonBadJSON); writeErr != nil {
				return writeErr
			}
			continue
		}

		cmd, reason := inboundToCommand(inbound)
		if reason != "" {
			if writeErr := h.writeError(ctx, conn, reason); writeErr != nil {
				return writeErr
			}
			continue
		}

		h.hub.Submit(client, cmd)
	}
}

// writeLoop drains hub events until the hub closes the channel (teardown,
// kick, eviction) or the connection context ends.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, event); err != nil {
				h.log.Warn().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// writeError reports a protocol-level error directly from the read loop;
// conn writes are internally serialized so this is safe alongside writeLoop.
func (h *WSHandler) writeError(ctx context.Context, conn *websocket.Conn, reason string) error {
	return wsjson.Write(ctx, conn, proto.Outbound{
		Type: proto.TypeError,
		Data: proto.ErrorData{Reason: reason},
	})
}

func clientAddr(r *stdhttp.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "::1" || host == "127.0.0.1" {
		return "localhost"
	}
	return host
}
