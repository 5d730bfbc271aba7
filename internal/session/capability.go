// Package session implements the client-side Session State Machine
// (spec.md §4.4), Mode Detector (§4.5), and Fallback Orchestrator (§4.6).
// It depends only on the capability interfaces below (spec.md §9), so a
// browser engine, a pion/webrtc engine, or a test fake can all drive it.
package session

// SDP is a session description, either an offer or an answer.
type SDP struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate is a trickled ICE candidate, opaque to the state machine.
type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// CandidatePair is one row of PeerConnection.GetStats()'s candidate-pair
// report, the input to the Mode Detector (spec.md §4.5).
type CandidatePair struct {
	Selected        bool
	State           string // "succeeded", etc.
	Nominated       bool
	LocalType       string // "host", "srflx", "prflx", "relay"
	RemoteType      string
}

// ICEConnectionState mirrors the subset of WebRTC ICE connection states the
// state machine reacts to (spec.md §4.4).
type ICEConnectionState string

const (
	ICEConnected     ICEConnectionState = "connected"
	ICECompleted     ICEConnectionState = "completed"
	ICEFailed        ICEConnectionState = "failed"
	ICEDisconnected  ICEConnectionState = "disconnected"
)

// IceTransportPolicy selects a peer connection's candidate-gathering scope.
type IceTransportPolicy string

const (
	PolicyAll   IceTransportPolicy = "all"
	PolicyRelay IceTransportPolicy = "relay"
)

// PeerConnection is the WebRTC engine capability the state machine drives
// (spec.md §9): SDP negotiation, ICE candidates, connection-state
// observation, and candidate-pair stats for mode detection.
type PeerConnection interface {
	CreateOffer() (SDP, error)
	CreateAnswer() (SDP, error)
	SetLocalDescription(SDP) error
	SetRemoteDescription(SDP) error
	AddICECandidate(ICECandidate) error
	GetStats() []CandidatePair
	OnICEConnectionStateChange(func(ICEConnectionState))
	// OnICECandidate and OnICEGatheringStateChange fire on any inbound ICE
	// activity, not just connection-state transitions: the state machine
	// uses them to reset its disconnect grace timer (spec.md §4.4).
	OnICECandidate(func())
	OnICEGatheringStateChange(func())
	Close() error
}

// PeerConnectionFactory builds a fresh PeerConnection under the given ICE
// transport policy — used both for the initial attempt (PolicyAll) and for
// the Fallback Orchestrator's relay-only rebuild (PolicyRelay).
type PeerConnectionFactory func(policy IceTransportPolicy) (PeerConnection, error)

// SignalingTransport is the signaling-stream capability the state machine
// drives (spec.md §9): send a frame, observe inbound frames, close.
type SignalingTransport interface {
	Send(frame any) error
	OnMessage(func(raw []byte))
	Close() error
}
