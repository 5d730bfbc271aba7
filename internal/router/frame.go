package router

import "encoding/json"

// Frame is one signaling-stream message (spec.md §6's frame taxonomy). Not
// every field applies to every type; unused fields are omitted on the wire.
type Frame struct {
	Type          string          `json:"type"`
	RoomID        string          `json:"roomId,omitempty"`
	PeerID        string          `json:"peerId,omitempty"`
	Nickname      string          `json:"nickname,omitempty"`
	SessionID     string          `json:"sessionId,omitempty"`
	Ticket        string          `json:"ticket,omitempty"`
	From          string          `json:"from,omitempty"`
	FromNickname  string          `json:"fromNickname,omitempty"`
	Role          string          `json:"role,omitempty"`
	Mode          string          `json:"mode,omitempty"`
	Error         string          `json:"error,omitempty"`
	ExistingPeers []ExistingPeer  `json:"existingPeers,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// ExistingPeer describes one already-joined member, returned in a `joined`
// frame's existingPeers list.
type ExistingPeer struct {
	PeerID    string `json:"peerId"`
	Nickname  string `json:"nickname"`
	SessionID string `json:"sessionId,omitempty"`
}

// forwardable frame types relayed verbatim (with from/fromNickname injected)
// to the other member of a room, per spec.md §4.2.
var forwardableTypes = map[string]bool{
	"offer":           true,
	"answer":          true,
	"ice-candidate":   true,
	"chat":            true,
	"file-metadata":   true,
	"file-chunk":      true,
	"file-eof":        true,
	"nc-status":       true,
	"relay-restart":   true,
	"connection-mode": true,
}
