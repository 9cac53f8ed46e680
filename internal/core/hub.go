package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/backworld/backworld-server/internal/proto"
	"github.com/backworld/backworld-server/internal/store"
)

// HubStore is the slice of storage the hub touches directly.
type HubStore interface {
	store.RoomStore
	store.SessionStore
}

// CredentialVerifier resolves an opaque credential to an account identity.
type CredentialVerifier interface {
	Verify(credential string) (accountID int64, account string, err error)
}

// VerifierFunc adapts a function to CredentialVerifier.
type VerifierFunc func(credential string) (int64, string, error)

// Verify implements CredentialVerifier.
func (f VerifierFunc) Verify(credential string) (int64, string, error) {
	return f(credential)
}

// Options tune hub behavior. Zero values fall back to defaults.
type Options struct {
	// HeartbeatInterval is the expected ping cadence; a client silent for
	// HeartbeatInterval*HeartbeatMisses is force-disconnected.
	HeartbeatInterval time.Duration
	HeartbeatMisses   int

	// MaxChatLen and MaxWorldLines bound payloads by truncation.
	MaxChatLen    int
	MaxWorldLines int
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 20 * time.Second
	}
	if o.HeartbeatMisses <= 0 {
		o.HeartbeatMisses = 3
	}
	if o.MaxChatLen <= 0 {
		o.MaxChatLen = 500
	}
	if o.MaxWorldLines <= 0 {
		o.MaxWorldLines = 200000
	}
	return o
}

type submission struct {
	client *Client
	cmd    *Command
}

// Hub owns every live connection and room. All mutation funnels through
// the Run loop: one inbound frame is processed to completion, storage
// calls included, before the next one is observed.
type Hub struct {
	registry   *Registry
	reconciler *Reconciler
	store      HubStore
	verifier   CredentialVerifier
	log        *zerolog.Logger
	opts       Options

	clients map[string]*Client

	registrations chan *Client
	departures    chan *Client
	submissions   chan submission
	announcements chan struct{}
	done          chan struct{}
}

// NewHub constructs the coordinator. st and logger are required; verifier
// may be nil when no identity backend is configured (handshake credentials
// are then rejected).
func NewHub(st HubStore, verifier CredentialVerifier, logger *zerolog.Logger, opts Options) *Hub {
	return &Hub{
		registry:      NewRegistry(),
		reconciler:    NewReconciler(st, logger),
		store:         st,
		verifier:      verifier,
		log:           logger,
		opts:          opts.withDefaults(),
		clients:       make(map[string]*Client),
		registrations: make(chan *Client, 16),
		departures:    make(chan *Client, 16),
		submissions:   make(chan submission, 64),
		announcements: make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// Registry exposes the room table for read-only inspection in tests.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Reconciler exposes the session reconciler so the REST layer can
// attach out-of-band room creators to their durable sessions.
func (h *Hub) Reconciler() *Reconciler {
	return h.reconciler
}

// Run processes commands until the context is canceled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.opts.HeartbeatInterval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.registrations:
			// A queued registration can arrive after the client was already
			// torn down; re-adding it would leak a dead entry.
			if !c.gone {
				h.clients[c.ID] = c
				h.log.Debug().Str("client_id", c.ID).Str("addr", c.Addr).Msg("client registered")
			}
		case c := <-h.departures:
			h.teardown(ctx, c)
		case sub := <-h.submissions:
			h.dispatch(ctx, sub.client, sub.cmd)
		case <-h.announcements:
			h.broadcastAll(proto.TypeRoomListChanged, nil)
		case <-ticker.C:
			h.evictSilent(ctx)
		}
	}
}

// RegisterClient hands a freshly accepted connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.registrations <- c:
	case <-h.done:
	}
}

// UnregisterClient tears the connection down. Safe to call more than once
// and after a kick already removed the client.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.departures <- c:
	case <-h.done:
	}
}

// Submit queues one decoded command for processing.
func (h *Hub) Submit(c *Client, cmd *Command) {
	select {
	case h.submissions <- submission{client: c, cmd: cmd}:
	case <-h.done:
	}
}

// Announce notifies every connection that the room catalog changed. Called
// by the REST layer after out-of-band room mutations; coalesces bursts.
func (h *Hub) Announce() {
	select {
	case h.announcements <- struct{}{}:
	default:
	}
}

// teardown reverses everything the client's frames built: room membership,
// durable session, registry entry. Runs exactly once per client.
func (h *Hub) teardown(ctx context.Context, c *Client) {
	if c.gone {
		return
	}
	c.gone = true
	delete(h.clients, c.ID)

	if c.InRoom() {
		h.leaveRoom(ctx, c)
	} else if c.UserID != 0 {
		// The account may still hold a durable session from a previous
		// connection; leave it alone. Only frames from this connection
		// created state this teardown owns.
		h.log.Debug().Str("client_id", c.ID).Msg("client left without room")
	}

	close(c.Events)
	h.log.Info().Str("client_id", c.ID).Str("addr", c.Addr).Msg("client disconnected")
}

func (h *Hub) leaveRoom(ctx context.Context, c *Client) {
	roomID, peerID := c.RoomID, c.PeerID
	c.RoomID, c.PeerID = "", 0

	room, promoted, destroyed := h.registry.LeaveRoom(roomID, peerID)
	if room != nil && !destroyed {
		h.broadcast(room, proto.TypePeerLeft, proto.PeerLeftData{PeerID: peerID}, 0)
		if promoted != nil {
			h.broadcast(room, proto.TypeHostChanged, proto.HostChangedData{
				HostPeerID: promoted.PeerID,
				Name:       promoted.Name,
			}, 0)
			h.log.Info().Str("room_id", roomID).Int("host_peer_id", promoted.PeerID).Msg("host migrated")
		}
	}

	if c.UserID != 0 {
		if err := h.reconciler.Detach(ctx, c.UserID, roomID); err != nil {
			h.log.Error().Err(err).Str("room_id", roomID).Int64("account_id", c.UserID).Msg("detach failed")
		}
	}

	h.log.Info().Str("room_id", roomID).Int("peer_id", peerID).Msg("peer left")
	if destroyed {
		h.broadcastAll(proto.TypeRoomListChanged, nil)
	}
}

// evictSilent drops connections that missed too many heartbeats. The ping
// exchange itself never evicts; this sweep is what turns silence into a
// forced disconnect.
func (h *Hub) evictSilent(ctx context.Context) {
	cutoff := time.Now().Add(-time.Duration(h.opts.HeartbeatMisses) * h.opts.HeartbeatInterval)

	var silent []*Client
	for _, c := range h.clients {
		if c.LastSeen.Before(cutoff) {
			silent = append(silent, c)
		}
	}
	for _, c := range silent {
		h.log.Warn().Str("client_id", c.ID).Str("addr", c.Addr).Time("last_seen", c.LastSeen).Msg("evicting silent client")
		h.teardown(ctx, c)
	}
}
