package core

import (
	"sort"
	"strings"
)

// HostPeerID is reserved for the first participant of a room.
const HostPeerID = 1

// Participant is a per-room stable identity. SessionID names the backing
// connection; it is an identity for lookup, never a handle.
type Participant struct {
	PeerID    int
	Name      string
	Version   string
	IsHost    bool
	SessionID string

	joinSeq int
}

// Room is the in-memory authoritative state of one live session.
type Room struct {
	ID         string
	Version    string
	HostPeerID int

	participants map[int]*Participant
	// nextPeerID is monotonic for the room's lifetime; ids are never
	// reused so a stale in-flight frame cannot be misattributed to a
	// later occupant.
	nextPeerID  int
	nextJoinSeq int

	worldLines []string
	banned     map[string]struct{}
}

func newRoom(id, version string) *Room {
	return &Room{
		ID:           id,
		Version:      version,
		HostPeerID:   HostPeerID,
		participants: make(map[int]*Participant),
		nextPeerID:   HostPeerID,
		banned:       make(map[string]struct{}),
	}
}

func (r *Room) addParticipant(name, version, sessionID string, isHost bool) *Participant {
	p := &Participant{
		PeerID:    r.nextPeerID,
		Name:      name,
		Version:   version,
		IsHost:    isHost,
		SessionID: sessionID,
		joinSeq:   r.nextJoinSeq,
	}
	r.nextPeerID++
	r.nextJoinSeq++
	r.participants[p.PeerID] = p
	return p
}

// join validates and inserts a new participant. The name check covers
// current members only: a name freed by a leaving member is immediately
// available again.
func (r *Room) join(version, name, addr, sessionID string) (*Participant, *DomainError) {
	if version != r.Version {
		return nil, errVersionMismatch
	}
	if _, ok := r.banned[addr]; ok {
		return nil, errBanned
	}
	for _, p := range r.participants {
		if strings.EqualFold(p.Name, name) {
			return nil, errNameTaken
		}
	}
	return r.addParticipant(name, version, sessionID, false), nil
}

// remove deletes a participant. If the host left and members remain, the
// earliest remaining joiner is promoted and returned. empty reports whether
// the room has no members left.
func (r *Room) remove(peerID int) (promoted *Participant, empty bool) {
	p, ok := r.participants[peerID]
	if !ok {
		return nil, len(r.participants) == 0
	}
	delete(r.participants, peerID)

	if len(r.participants) == 0 {
		return nil, true
	}

	if p.IsHost {
		next := r.earliestJoiner()
		next.IsHost = true
		r.HostPeerID = next.PeerID
		return next, false
	}
	return nil, false
}

func (r *Room) earliestJoiner() *Participant {
	var next *Participant
	for _, p := range r.participants {
		if next == nil || p.joinSeq < next.joinSeq {
			next = p
		}
	}
	return next
}

// Member returns the participant with the given peer id, or nil.
func (r *Room) Member(peerID int) *Participant {
	return r.participants[peerID]
}

// Members returns participants ordered by join time.
func (r *Room) Members() []*Participant {
	members := make([]*Participant, 0, len(r.participants))
	for _, p := range r.participants {
		members = append(members, p)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].joinSeq < members[j].joinSeq
	})
	return members
}

// Size returns the current member count.
func (r *Room) Size() int {
	return len(r.participants)
}

// Ban adds an address to the ban set. Only future joins are affected.
func (r *Room) Ban(addr string) {
	r.banned[addr] = struct{}{}
}

// IsBanned reports whether the address is banned from this room.
func (r *Room) IsBanned(addr string) bool {
	_, ok := r.banned[addr]
	return ok
}

// SetWorld replaces the cached world snapshot wholesale.
func (r *Room) SetWorld(lines []string) {
	r.worldLines = lines
}

// World returns the cached world snapshot.
func (r *Room) World() []string {
	return r.worldLines
}
