package session

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// Config tunes the Machine's grace/retry windows (spec.md §5). Production
// callers use DefaultConfig; tests shrink the windows to keep runs fast.
type Config struct {
	DisconnectGrace    time.Duration
	ModeDetectRetry    time.Duration
}

// DefaultConfig returns spec.md §5's timeouts: 12s disconnect grace, 300ms
// one-shot mode-detect retry.
func DefaultConfig() Config {
	return Config{
		DisconnectGrace: 12 * time.Second,
		ModeDetectRetry: 300 * time.Millisecond,
	}
}

// frame mirrors the wire shape of router.Frame, duplicated here so this
// package has no dependency on the coordinator-side router package — the
// client and coordinator are separate deployables sharing only the wire
// contract (spec.md §6).
type frame struct {
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
	ExistingPeers []existingPeer  `json:"existingPeers,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

type existingPeer struct {
	PeerID    string `json:"peerId"`
	Nickname  string `json:"nickname"`
	SessionID string `json:"sessionId,omitempty"`
}

// Machine is one peer's Session State Machine (spec.md §4.4). It is driven
// single-threaded: HandleFrame and the ICE/timer callbacks must all be
// invoked from the same logical execution context (spec.md §5).
type Machine struct {
	cfg Config

	myPeerID string
	roomID   string

	transport SignalingTransport
	pcFactory PeerConnectionFactory
	pc        PeerConnection

	st state

	disconnectTimer *time.Timer
	modeRetried     bool

	// OnModeChange notifies the embedding UI layer of a stable mode, per
	// spec.md §1's "emits a stable connectionMode to the UI."
	OnModeChange func(Mode)
	// OnRoleChange notifies the UI of a role assignment/promotion.
	OnRoleChange func(role string)
	// OnFileReceived delivers a fully reassembled file (spec.md §6).
	OnFileReceived func(name, mimeType string, data []byte)
}

// New builds a Machine for a freshly (re)joining peer. A fresh sessionId is
// minted by the caller and passed in — a page refresh calls New again with
// a new one (spec.md §3's "fresh per instantiation").
func New(cfg Config, myPeerID, roomID, sessionID string, transport SignalingTransport, pcFactory PeerConnectionFactory) (*Machine, error) {
	pc, err := pcFactory(PolicyAll)
	if err != nil {
		return nil, err
	}

	m := &Machine{
		cfg:       cfg,
		myPeerID:  myPeerID,
		roomID:    roomID,
		transport: transport,
		pcFactory: pcFactory,
		pc:        pc,
		st: state{
			phase:     PhaseConnecting,
			sessionID: sessionID,
			mode:      ModePending,
		},
	}

	pc.OnICEConnectionStateChange(m.onICEConnectionStateChange)
	pc.OnICECandidate(m.onICEActivity)
	pc.OnICEGatheringStateChange(m.onICEActivity)
	transport.OnMessage(m.onRawMessage)

	return m, nil
}

// SessionID returns the machine's current sessionId.
func (m *Machine) SessionID() string { return m.st.sessionID }

// Phase returns the machine's current coarse state.
func (m *Machine) Phase() Phase { return m.st.phase }

// Mode returns the machine's current connection mode.
func (m *Machine) Mode() Mode { return m.st.mode }

// Role returns the machine's current role.
func (m *Machine) Role() string { return m.st.role }

func (m *Machine) onRawMessage(raw []byte) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return
	}
	m.HandleFrame(f)
}

// HandleFrame applies the stale-event filter (spec.md §4.4, §9 — applied
// before any side effect) and dispatches the frame if it survives.
func (m *Machine) HandleFrame(f frame) {
	if f.PeerID == m.myPeerID && f.SessionID != "" && f.SessionID != m.st.sessionID {
		return // stale self-addressed lifecycle event
	}
	if f.From != "" && f.From != m.myPeerID && m.st.remoteSessionID != "" && f.SessionID != m.st.remoteSessionID {
		return // stale remote-origin message
	}

	switch f.Type {
	case "joined":
		m.handleJoined(f)
	case "peer-joined":
		m.handlePeerJoined(f)
	case "role-update":
		m.handleRoleUpdate(f)
	case "offer":
		m.handleOffer(f)
	case "answer":
		m.handleAnswer(f)
	case "ice-candidate":
		m.handleICECandidate(f)
	case "connection-mode":
		m.handleConnectionMode(f)
	case "relay-restart":
		m.handleRelayRestart()
	case "file-metadata":
		m.handleFileMetadata(f)
	case "file-chunk":
		m.handleFileChunk(f)
	case "file-eof":
		m.handleFileEOF(f)
	case "peer-left", "session-end":
		m.hardReset()
	case "error":
		// surfaced to the UI by the embedder; no state transition here.
	}
}

func (m *Machine) handleJoined(f frame) {
	m.st.role = f.Role
	m.st.phase = PhasePrimaryAttempt
	if m.OnRoleChange != nil {
		m.OnRoleChange(f.Role)
	}

	if len(f.ExistingPeers) > 0 {
		m.st.remoteSessionID = f.ExistingPeers[0].SessionID
	}

	if f.Role == "follower" {
		m.createAndSendOffer()
	}
}

func (m *Machine) handlePeerJoined(f frame) {
	m.st.remoteSessionID = f.SessionID
}

func (m *Machine) handleRoleUpdate(f frame) {
	m.st.role = f.Role
	if m.OnRoleChange != nil {
		m.OnRoleChange(f.Role)
	}
}

func (m *Machine) createAndSendOffer() {
	if m.pc == nil {
		return
	}
	if m.st.negotiationInFlight {
		m.st.pendingRenegotiate = true
		return
	}
	m.st.negotiationInFlight = true

	offer, err := m.pc.CreateOffer()
	if err != nil {
		return
	}
	if err := m.pc.SetLocalDescription(offer); err != nil {
		return
	}
	data, _ := json.Marshal(offer)
	m.transport.Send(frame{Type: "offer", SessionID: m.st.sessionID, Data: data})
}

func (m *Machine) handleOffer(f frame) {
	if m.pc == nil {
		return
	}
	var sdp SDP
	if err := json.Unmarshal(f.Data, &sdp); err != nil {
		return
	}
	if err := m.pc.SetRemoteDescription(sdp); err != nil {
		return
	}
	m.flushPendingRemoteCandidates()

	answer, err := m.pc.CreateAnswer()
	if err != nil {
		return
	}
	if err := m.pc.SetLocalDescription(answer); err != nil {
		return
	}
	data, _ := json.Marshal(answer)
	m.transport.Send(frame{Type: "answer", SessionID: m.st.sessionID, Data: data})
}

func (m *Machine) handleAnswer(f frame) {
	if m.pc == nil {
		return
	}
	var sdp SDP
	if err := json.Unmarshal(f.Data, &sdp); err != nil {
		return
	}
	if err := m.pc.SetRemoteDescription(sdp); err != nil {
		return
	}
	m.flushPendingRemoteCandidates()

	m.st.negotiationInFlight = false
	if m.st.pendingStop {
		m.st.pendingStop = false
		return
	}
	if m.st.pendingRenegotiate {
		m.st.pendingRenegotiate = false
		m.createAndSendOffer()
	}
}

// handleICECandidate buffers the candidate if the remote description isn't
// set yet, applying it exactly once afterward (spec.md Testable Property 7).
func (m *Machine) handleICECandidate(f frame) {
	var c ICECandidate
	if err := json.Unmarshal(f.Data, &c); err != nil {
		return
	}
	if m.st.phase == PhaseConnecting || m.pc == nil {
		m.st.pendingRemoteCandidates = append(m.st.pendingRemoteCandidates, c)
		return
	}
	if err := m.pc.AddICECandidate(c); err != nil {
		m.st.pendingRemoteCandidates = append(m.st.pendingRemoteCandidates, c)
	}
}

func (m *Machine) flushPendingRemoteCandidates() {
	if m.pc == nil {
		return
	}
	pending := m.st.pendingRemoteCandidates
	m.st.pendingRemoteCandidates = nil
	for _, c := range pending {
		m.pc.AddICECandidate(c)
	}
}

func (m *Machine) handleConnectionMode(f frame) {
	mode := Mode(f.Mode)
	m.lockMode(mode)
}

func (m *Machine) lockMode(mode Mode) {
	if m.st.modeLocked {
		return
	}
	m.st.mode = mode
	m.st.modeLocked = true
	m.st.connectionEstablished = true
	m.st.phase = PhaseConnected
	if m.OnModeChange != nil {
		m.OnModeChange(mode)
	}
}

// onICEConnectionStateChange drives the grace-timer/fallback logic of
// spec.md §4.4. Only the controller triggers fallback; the follower just
// tracks connectivity.
func (m *Machine) onICEConnectionStateChange(s ICEConnectionState) {
	if m.pc == nil {
		return
	}
	m.cancelDisconnectTimer()

	switch s {
	case ICEConnected, ICECompleted:
		if m.st.role == "controller" && !m.st.modeLocked {
			m.detectMode(m.pc.GetStats(), false)
		}
	case ICEFailed:
		if m.st.role == "controller" {
			m.maybeTriggerFallback()
		}
	case ICEDisconnected:
		if m.st.role == "controller" {
			m.startDisconnectTimer()
		}
	}
}

// startDisconnectTimer (re)arms the disconnect grace timer. Calling it again
// while already armed restarts the grace window rather than stacking timers.
func (m *Machine) startDisconnectTimer() {
	if m.disconnectTimer != nil {
		m.disconnectTimer.Stop()
	}
	now := time.Now()
	m.st.disconnectedSince = &now
	m.disconnectTimer = AfterFunc(m.cfg.DisconnectGrace, func() {
		m.maybeTriggerFallback()
	})
}

func (m *Machine) cancelDisconnectTimer() {
	if m.disconnectTimer != nil {
		m.disconnectTimer.Stop()
		m.disconnectTimer = nil
	}
	m.st.disconnectedSince = nil
}

// onICEActivity resets the disconnect grace window on any inbound ICE
// candidate or gathering-state change while waiting out a disconnect
// (spec.md §4.4): new candidates mean the peer is still trying.
func (m *Machine) onICEActivity() {
	if m.disconnectTimer == nil {
		return
	}
	m.startDisconnectTimer()
}

// hardReset implements spec.md §4.4's HardReset transition.
func (m *Machine) hardReset() {
	m.cancelDisconnectTimer()

	m.st.modeLocked = false
	m.st.fallbackTriggered = false
	m.st.connectionEstablished = false
	m.st.pendingRemoteCandidates = nil
	m.st.remoteSessionID = ""
	m.st.mode = ModePending
	m.st.phase = PhaseHardReset
	m.modeRetried = false

	if m.pc != nil {
		m.pc.Close()
	}
	m.pc = nil
	pc, err := m.pcFactory(PolicyAll)
	if err == nil {
		m.pc = pc
		pc.OnICEConnectionStateChange(m.onICEConnectionStateChange)
		pc.OnICECandidate(m.onICEActivity)
		pc.OnICEGatheringStateChange(m.onICEActivity)
	}

	m.st.phase = PhaseConnecting
}

// base64-encoded file-chunk payloads per spec.md §6's file-chunk frame.
func decodeChunk(raw json.RawMessage) ([]byte, error) {
	var b64 string
	if err := json.Unmarshal(raw, &b64); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(b64)
}
