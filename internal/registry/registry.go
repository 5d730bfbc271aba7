// Package registry holds the process-wide, in-memory Peer Registry: the live
// {peerId -> membership} and {roomId -> set<peerId>} maps spec.md §5 requires
// behind a single coarse lock.
package registry

import (
	"sync"
	"time"

	"aq-coordinator/internal/role"
)

// Sender is the capability a membership needs to receive frames: a
// mutex-serialized per-connection writer, so in-order delivery per sender is
// preserved (spec.md §4.2's ordering guarantee).
type Sender interface {
	Send(v any) error
	Close() error
}

// Membership is one live peer's volatile state (spec.md §3 PeerMembership).
type Membership struct {
	PeerID    string
	SessionID string
	RoomID    string
	Nickname  string
	Role      string // "controller" | "follower"
	Conn      Sender
	JoinedAt  time.Time
}

// Registry is the process-wide Peer Registry.
type Registry struct {
	mu       sync.RWMutex
	peers    map[string]*Membership   // peerId -> membership
	byRoom   map[string]map[string]bool // roomId -> set<peerId>
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		peers:  make(map[string]*Membership),
		byRoom: make(map[string]map[string]bool),
	}
}

// ErrRoomFull is returned by Join when a room already holds two members.
type ErrRoomFull struct{ RoomID string }

func (e ErrRoomFull) Error() string { return "registry: room " + e.RoomID + " is full" }

// Join admits a peer to a room's membership set, enforcing the two-peer cap
// (spec.md §3 Room invariant). Returns the list of peers already in the room
// at admission time (for the "joined.existingPeers" response) and whether the
// new peer became "controller" (first member) or "follower" (second).
func (r *Registry) Join(m *Membership) (existing []*Membership, assignedRole string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byRoom[m.RoomID]
	if len(set) >= 2 {
		return nil, "", ErrRoomFull{RoomID: m.RoomID}
	}

	for peerID := range set {
		existing = append(existing, r.peers[peerID])
	}

	assignedRole = role.Assign(len(set))
	m.Role = assignedRole

	r.peers[m.PeerID] = m
	if set == nil {
		set = make(map[string]bool)
		r.byRoom[m.RoomID] = set
	}
	set[m.PeerID] = true

	return existing, assignedRole, nil
}

// Leave removes a peer from its room. It returns the remaining member (if
// exactly one remains) and whether that remaining member should be promoted
// to controller (spec.md §4.3 Role Arbiter: promote a remaining follower when
// the departing peer was controller).
func (r *Registry) Leave(peerID string) (remaining *Membership, promote bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.peers[peerID]
	if !ok {
		return nil, false
	}
	delete(r.peers, peerID)

	set := r.byRoom[m.RoomID]
	delete(set, peerID)

	var remainingID string
	for id := range set {
		remainingID = id
		break
	}
	if remainingID == "" {
		delete(r.byRoom, m.RoomID)
		return nil, false
	}

	remaining = r.peers[remainingID]
	if role.PromoteOnDeparture(m.Role, remaining.Role) {
		remaining.Role = role.Controller
		promote = true
	}
	return remaining, promote
}

// Get returns a peer's membership, if currently live.
func (r *Registry) Get(peerID string) (*Membership, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.peers[peerID]
	return m, ok
}

// OtherMembers snapshots the handles of every other live member of a peer's
// room. Per spec.md §5, the snapshot is taken under the lock; the caller
// performs the actual sends outside it.
func (r *Registry) OtherMembers(peerID string) []*Membership {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.peers[peerID]
	if !ok {
		return nil
	}

	var others []*Membership
	for id := range r.byRoom[m.RoomID] {
		if id == peerID {
			continue
		}
		others = append(others, r.peers[id])
	}
	return others
}

// RoomSize returns the number of live members of a room.
func (r *Registry) RoomSize(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byRoom[roomID])
}

// Snapshot returns a room-id -> member-count map of every room with at least
// one live peer; the /health endpoint reports its length as the room count.
func (r *Registry) Snapshot() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int, len(r.byRoom))
	for roomID, set := range r.byRoom {
		out[roomID] = len(set)
	}
	return out
}

// TotalPeers returns the number of live peer connections across all rooms.
func (r *Registry) TotalPeers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
