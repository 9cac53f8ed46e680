package core

import (
	"testing"
)

func TestCreateRoomHostIsPeerOne(t *testing.T) {
	reg := NewRegistry()

	room := reg.CreateRoom("1.0.0", "alice", "10.0.0.1", "sess-a")
	if room.HostPeerID != HostPeerID {
		t.Fatalf("host peer id = %d, want %d", room.HostPeerID, HostPeerID)
	}

	host := room.Member(HostPeerID)
	if host == nil || host.Name != "alice" || !host.IsHost {
		t.Fatalf("unexpected host participant: %+v", host)
	}
	if reg.Size() != 1 {
		t.Fatalf("registry size = %d, want 1", reg.Size())
	}
}

func TestJoinVersionMismatch(t *testing.T) {
	reg := NewRegistry()
	room := reg.CreateRoom("1.0.0", "alice", "10.0.0.1", "sess-a")

	_, _, derr := reg.JoinRoom(room.ID, "2.0.0", "bob", "10.0.0.2", "sess-b")
	if derr == nil || derr.Reason != ReasonVersionMismatch {
		t.Fatalf("expected version_mismatch, got %v", derr)
	}
	if room.Size() != 1 {
		t.Fatalf("room size = %d after rejected join, want 1", room.Size())
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	reg := NewRegistry()
	_, _, derr := reg.JoinRoom("zzzzzz", "1.0.0", "bob", "10.0.0.2", "sess-b")
	if derr == nil || derr.Reason != ReasonRoomNotFound {
		t.Fatalf("expected room_not_found, got %v", derr)
	}
}

func TestJoinNameTakenCaseInsensitive(t *testing.T) {
	reg := NewRegistry()
	room := reg.CreateRoom("1.0.0", "Alice", "10.0.0.1", "sess-a")

	_, _, derr := reg.JoinRoom(room.ID, "1.0.0", "alice", "10.0.0.2", "sess-b")
	if derr == nil || derr.Reason != ReasonNameTaken {
		t.Fatalf("expected name_taken, got %v", derr)
	}
}

func TestNameFreedOnLeave(t *testing.T) {
	reg := NewRegistry()
	room := reg.CreateRoom("1.0.0", "alice", "10.0.0.1", "sess-a")

	_, bob, derr := reg.JoinRoom(room.ID, "1.0.0", "bob", "10.0.0.2", "sess-b")
	if derr != nil {
		t.Fatalf("join failed: %v", derr)
	}
	reg.LeaveRoom(room.ID, bob.PeerID)

	_, again, derr := reg.JoinRoom(room.ID, "1.0.0", "bob", "10.0.0.3", "sess-c")
	if derr != nil {
		t.Fatalf("rejoin with freed name failed: %v", derr)
	}
	if again.PeerID == bob.PeerID {
		t.Fatalf("peer id %d was reused", bob.PeerID)
	}
}

func TestRoomDestroyedWhenEmpty(t *testing.T) {
	reg := NewRegistry()
	room := reg.CreateRoom("1.0.0", "alice", "10.0.0.1", "sess-a")

	_, promoted, destroyed := reg.LeaveRoom(room.ID, HostPeerID)
	if !destroyed {
		t.Fatal("room with zero members was not destroyed")
	}
	if promoted != nil {
		t.Fatalf("unexpected promotion in destroyed room: %+v", promoted)
	}
	if reg.Room(room.ID) != nil {
		t.Fatal("destroyed room still resolvable")
	}
}

func TestBanBlocksFutureJoin(t *testing.T) {
	reg := NewRegistry()
	room := reg.CreateRoom("1.0.0", "alice", "10.0.0.1", "sess-a")

	_, bob, derr := reg.JoinRoom(room.ID, "1.0.0", "bob", "10.0.0.2", "sess-b")
	if derr != nil {
		t.Fatalf("join failed: %v", derr)
	}

	// Banning does not eject; the current member stays until removed.
	reg.BanAddress(room.ID, "10.0.0.2")
	if room.Member(bob.PeerID) == nil {
		t.Fatal("ban ejected a current member")
	}

	reg.LeaveRoom(room.ID, bob.PeerID)
	_, _, derr = reg.JoinRoom(room.ID, "1.0.0", "bobby", "10.0.0.2", "sess-c")
	if derr == nil || derr.Reason != ReasonBanned {
		t.Fatalf("expected banned, got %v", derr)
	}
}

func TestPeerIDsMonotonic(t *testing.T) {
	reg := NewRegistry()
	room := reg.CreateRoom("1.0.0", "alice", "10.0.0.1", "sess-a")

	seen := map[int]bool{HostPeerID: true}
	last := HostPeerID
	for i := 0; i < 5; i++ {
		_, p, derr := reg.JoinRoom(room.ID, "1.0.0", "guest", "10.0.0.9", "sess-g")
		if derr != nil {
			t.Fatalf("join %d failed: %v", i, derr)
		}
		if p.PeerID <= last {
			t.Fatalf("peer id %d not greater than previous %d", p.PeerID, last)
		}
		if seen[p.PeerID] {
			t.Fatalf("peer id %d reused", p.PeerID)
		}
		seen[p.PeerID] = true
		last = p.PeerID
		reg.LeaveRoom(room.ID, p.PeerID)
	}
}

func TestHostMigrationEarliestJoiner(t *testing.T) {
	reg := NewRegistry()
	room := reg.CreateRoom("1.0.0", "alice", "10.0.0.1", "sess-a")

	_, bob, _ := reg.JoinRoom(room.ID, "1.0.0", "bob", "10.0.0.2", "sess-b")
	_, carol, _ := reg.JoinRoom(room.ID, "1.0.0", "carol", "10.0.0.3", "sess-c")

	_, promoted, destroyed := reg.LeaveRoom(room.ID, HostPeerID)
	if destroyed {
		t.Fatal("room destroyed while members remain")
	}
	if promoted == nil || promoted.PeerID != bob.PeerID {
		t.Fatalf("promoted = %+v, want bob (peer %d)", promoted, bob.PeerID)
	}
	if !promoted.IsHost || room.HostPeerID != bob.PeerID {
		t.Fatal("promotion did not update host state")
	}
	if carol.IsHost {
		t.Fatal("later joiner promoted ahead of earlier one")
	}

	// Remaining member order is stable after migration.
	members := room.Members()
	if len(members) != 2 || members[0].PeerID != bob.PeerID || members[1].PeerID != carol.PeerID {
		t.Fatalf("unexpected member order: %+v", members)
	}
}

func TestNonHostLeaveDoesNotMigrate(t *testing.T) {
	reg := NewRegistry()
	room := reg.CreateRoom("1.0.0", "alice", "10.0.0.1", "sess-a")
	_, bob, _ := reg.JoinRoom(room.ID, "1.0.0", "bob", "10.0.0.2", "sess-b")

	_, promoted, destroyed := reg.LeaveRoom(room.ID, bob.PeerID)
	if promoted != nil || destroyed {
		t.Fatalf("non-host leave: promoted=%+v destroyed=%v", promoted, destroyed)
	}
	if room.HostPeerID != HostPeerID {
		t.Fatalf("host changed to %d on non-host leave", room.HostPeerID)
	}
}

func TestWorldSnapshotReplacedWholesale(t *testing.T) {
	reg := NewRegistry()
	room := reg.CreateRoom("1.0.0", "alice", "10.0.0.1", "sess-a")

	reg.UpdateWorldState(room.ID, []string{"a", "b", "c"})
	reg.UpdateWorldState(room.ID, []string{"d"})

	world := room.World()
	if len(world) != 1 || world[0] != "d" {
		t.Fatalf("world = %v, want wholesale replacement", world)
	}
}
