package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/backworld/backworld-server/internal/log"
	"github.com/backworld/backworld-server/internal/proto"
	"github.com/backworld/backworld-server/internal/store"
)

// memStore is an in-memory HubStore for hub and reconciler tests.
type memStore struct {
	mu       sync.Mutex
	rooms    map[string]*store.Room
	sessions map[int64]string
}

func newMemStore() *memStore {
	return &memStore{
		rooms:    make(map[string]*store.Room),
		sessions: make(map[int64]string),
	}
}

func (m *memStore) CreateRoom(_ context.Context, input store.CreateRoomInput) (*store.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room := &store.Room{
		ID:           input.ID,
		Version:      input.Version,
		HostUserID:   input.HostUserID,
		HostUsername: input.HostUsername,
		Gamemode:     input.Gamemode,
		MapName:      input.MapName,
		MaxPlayers:   input.MaxPlayers,
		IsPublic:     input.IsPublic,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	m.rooms[room.ID] = room
	return room, nil
}

func (m *memStore) GetRoomByID(_ context.Context, id string) (*store.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *room
	return &copied, nil
}

func (m *memStore) ListActiveRooms(_ context.Context, gamemode string) ([]*store.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Room
	for _, room := range m.rooms {
		if !room.IsActive || !room.IsPublic {
			continue
		}
		if gamemode != "" && room.Gamemode != gamemode {
			continue
		}
		copied := *room
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memStore) UpdatePlayerCount(_ context.Context, roomID string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return store.ErrNotFound
	}
	room.CurrentPlayers = count
	return nil
}

func (m *memStore) SetRoomActive(_ context.Context, roomID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return store.ErrNotFound
	}
	room.IsActive = active
	if active {
		room.InactiveSince = nil
	} else if room.InactiveSince == nil {
		now := time.Now()
		room.InactiveSince = &now
	}
	return nil
}

func (m *memStore) SetRoomStarted(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	room.StartedAt = &now
	return nil
}

func (m *memStore) DeleteRoom(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
	return nil
}

func (m *memStore) ExpireInactiveRooms(_ context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var deleted int64
	for id, room := range m.rooms {
		if !room.IsActive && room.InactiveSince != nil && room.InactiveSince.Before(cutoff) {
			delete(m.rooms, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memStore) AddSession(_ context.Context, userID int64, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = roomID
	return nil
}

func (m *memStore) RemoveSession(_ context.Context, userID int64, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[userID] == roomID {
		delete(m.sessions, userID)
	}
	return nil
}

func (m *memStore) RemoveSessionsForUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

func (m *memStore) CountSessions(_ context.Context, roomID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, id := range m.sessions {
		if id == roomID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) SessionRoomID(_ context.Context, userID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID], nil
}

func (m *memStore) roomSnapshot(id string) *store.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil
	}
	copied := *room
	return &copied
}

func roomInput(id, version string, hostID int64, hostName string) store.CreateRoomInput {
	return store.CreateRoomInput{
		ID:           id,
		Version:      version,
		HostUserID:   hostID,
		HostUsername: hostName,
		Gamemode:     "sandbox",
		MaxPlayers:   8,
		IsPublic:     true,
	}
}

// testVerifier resolves credentials of fixed test accounts. The token is
// just the account name.
func testVerifier() CredentialVerifier {
	ids := map[string]int64{"alice": 1, "bob": 2, "carol": 3, "dave": 4}
	return VerifierFunc(func(credential string) (int64, string, error) {
		id, ok := ids[credential]
		if !ok {
			return 0, "", errors.New("unknown credential")
		}
		return id, credential, nil
	})
}

func newTestHub(t *testing.T, opts Options) (*Hub, *memStore) {
	t.Helper()
	st := newMemStore()
	hub := NewHub(st, testVerifier(), log.Nop(), opts)
	return hub, st
}

// connect registers a client and completes its handshake.
func connect(t *testing.T, hub *Hub, id, addr, name, token string) *Client {
	t.Helper()
	c := NewClient(id, addr)
	hub.RegisterClient(c)
	hub.Submit(c, &Command{Kind: CommandHandshake, Handshake: &proto.HandshakeData{
		Name:    name,
		Version: "1.0.0",
		Token:   token,
	}})
	mustEvent(t, c.Events, proto.TypeHandshakeAccepted)
	return c
}

// mustEvent waits for the next frame of the given type, skipping others.
func mustEvent(t *testing.T, ch <-chan proto.Outbound, frameType string) proto.Outbound {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("events channel closed while waiting for %q", frameType)
			}
			if ev.Type == frameType {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected %q frame not received", frameType)
		}
	}
}

// mustErrorFrame waits for an error frame and asserts its reason.
func mustErrorFrame(t *testing.T, ch <-chan proto.Outbound, reason string) {
	t.Helper()
	ev := mustEvent(t, ch, proto.TypeError)
	data, ok := ev.Data.(proto.ErrorData)
	if !ok {
		t.Fatalf("error frame carries %T, want proto.ErrorData", ev.Data)
	}
	if data.Reason != reason {
		t.Fatalf("error reason = %q, want %q", data.Reason, reason)
	}
}

// mustClosed waits for the events channel to be drained and closed.
func mustClosed(t *testing.T, ch <-chan proto.Outbound) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel not closed")
		}
	}
}
