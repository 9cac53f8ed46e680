package core

import (
	"github.com/backworld/backworld-server/internal/utils"
)

// Registry is the authoritative in-memory table of live rooms. It is not
// safe for concurrent use: the hub loop is its single owner and serializes
// every mutation.
type Registry struct {
	rooms map[string]*Room
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// CreateRoom allocates a fresh room with the creator as host (peer id 1).
func (reg *Registry) CreateRoom(version, hostName, hostAddr, sessionID string) *Room {
	id := utils.NewRoomCode()
	for reg.rooms[id] != nil {
		id = utils.NewRoomCode()
	}
	return reg.adopt(id, version, hostName, hostAddr, sessionID)
}

// AdoptRoom is CreateRoom with a caller-supplied id, used when the room
// already exists in durable storage but not yet in memory.
func (reg *Registry) AdoptRoom(id, version, hostName, hostAddr, sessionID string) *Room {
	return reg.adopt(id, version, hostName, hostAddr, sessionID)
}

func (reg *Registry) adopt(id, version, hostName, hostAddr, sessionID string) *Room {
	room := newRoom(id, version)
	room.addParticipant(hostName, version, sessionID, true)
	reg.rooms[id] = room
	return room
}

// Room returns the live room with the given id, or nil.
func (reg *Registry) Room(id string) *Room {
	return reg.rooms[id]
}

// JoinRoom validates and inserts a participant into an existing room.
func (reg *Registry) JoinRoom(id, version, name, addr, sessionID string) (*Room, *Participant, *DomainError) {
	room := reg.rooms[id]
	if room == nil {
		return nil, nil, errRoomNotFound
	}
	p, derr := room.join(version, name, addr, sessionID)
	if derr != nil {
		return nil, nil, derr
	}
	return room, p, nil
}

// LeaveRoom removes a participant. promoted is the new host if host
// migration happened; destroyed reports that the room reached zero members
// and was dropped from the registry.
func (reg *Registry) LeaveRoom(id string, peerID int) (room *Room, promoted *Participant, destroyed bool) {
	room = reg.rooms[id]
	if room == nil {
		return nil, nil, false
	}
	promoted, empty := room.remove(peerID)
	if empty {
		delete(reg.rooms, id)
		return room, nil, true
	}
	return room, promoted, false
}

// BanAddress adds an address to the room's ban set.
func (reg *Registry) BanAddress(id, addr string) {
	if room := reg.rooms[id]; room != nil {
		room.Ban(addr)
	}
}

// UpdateWorldState replaces the room's cached world snapshot. Host
// authority is the caller's responsibility.
func (reg *Registry) UpdateWorldState(id string, lines []string) {
	if room := reg.rooms[id]; room != nil {
		room.SetWorld(lines)
	}
}

// Members returns the room's participants ordered by join time, or nil if
// the room does not exist.
func (reg *Registry) Members(id string) []*Participant {
	room := reg.rooms[id]
	if room == nil {
		return nil
	}
	return room.Members()
}

// Size returns the number of live rooms.
func (reg *Registry) Size() int {
	return len(reg.rooms)
}
