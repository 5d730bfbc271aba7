// Package router implements the Signaling Router (spec.md §4.2): one
// bidirectional websocket stream per connected client, fanned out to the
// other member of its room.
package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/logging"

	"aq-coordinator/internal/admission"
	"aq-coordinator/internal/database"
	"aq-coordinator/internal/keepalive"
	"aq-coordinator/internal/metrics"
	"aq-coordinator/internal/registry"
	"aq-coordinator/internal/role"
)

// Router upgrades HTTP connections to websocket signaling streams and
// drives spec.md §4.2's frame switch.
type Router struct {
	Upgrader        websocket.Upgrader
	Registry        *registry.Registry
	Logger          logging.LeveledLogger
	JWTSecret       string
	KeepaliveConfig keepalive.Config
}

// New builds a Router around a shared Peer Registry.
func New(reg *registry.Registry, logger logging.LeveledLogger, jwtSecret string, kaCfg keepalive.Config) *Router {
	return &Router{
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		Registry:        reg,
		Logger:          logger,
		JWTSecret:       jwtSecret,
		KeepaliveConfig: kaCfg,
	}
}

// ServeHTTP upgrades the connection and runs its read loop until the stream
// closes.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := rt.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		rt.Logger.Errorf("router: upgrade failed: %v", err)
		return
	}

	conn := newSafeConn(wsConn, rt.KeepaliveConfig.WriteDeadline)
	metrics.RecordConnectionCreated()

	mon := keepalive.NewMonitor(wsConn, conn, rt.Logger, rt.KeepaliveConfig)
	mon.OnStale = func() { conn.Close() }
	mon.Start()

	var myPeerID string
	defer func() {
		mon.Stop()
		conn.Close()
		if !mon.IsAlive() {
			rt.Logger.Infof("router: closing %s, keepalive marked it stale", myPeerID)
		}
		metrics.RecordConnectionClosed()
		if myPeerID != "" {
			rt.handleDeparture(myPeerID)
		}
	}()

	for {
		_, raw, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				rt.Logger.Infof("router: client disconnected normally")
			} else {
				rt.Logger.Debugf("router: read error: %v", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			rt.Logger.Warnf("router: malformed frame: %v", err)
			continue
		}
		metrics.RecordMessageProcessed()

		switch frame.Type {
		case "join":
			if ok := rt.handleJoin(conn, &frame); !ok {
				return
			}
			myPeerID = frame.PeerID
		case "end-session":
			rt.handleEndSession(myPeerID)
			return
		case "ping":
			// keepalive no-op, spec.md §4.2
		default:
			if forwardableTypes[frame.Type] {
				rt.forward(myPeerID, &frame)
			} else {
				rt.Logger.Warnf("router: unknown frame type %q", frame.Type)
			}
		}
	}
}

// handleJoin admits a peer to a room, per spec.md §4.2's join algorithm.
func (rt *Router) handleJoin(conn registry.Sender, frame *Frame) bool {
	if _, err := admission.VerifyTicket(rt.JWTSecret, frame.Ticket, frame.RoomID, frame.PeerID, frame.SessionID); err != nil {
		metrics.RecordJoinRejection()
		conn.Send(Frame{Type: "error", Error: "invalid or expired admission ticket"})
		return false
	}

	room, err := database.GetActiveRoom(frame.RoomID)
	if err != nil {
		rt.Logger.Errorf("router: lookup room %s: %v", frame.RoomID, err)
		conn.Send(Frame{Type: "error", Error: "internal error"})
		return false
	}
	if room == nil {
		metrics.RecordJoinRejection()
		conn.Send(Frame{Type: "error", Error: "room not found"})
		return false
	}

	membership := &registry.Membership{
		PeerID:    frame.PeerID,
		SessionID: frame.SessionID,
		RoomID:    frame.RoomID,
		Nickname:  frame.Nickname,
		Conn:      conn,
		JoinedAt:  time.Now(),
	}

	existing, assignedRole, err := rt.Registry.Join(membership)
	if err != nil {
		metrics.RecordJoinRejection()
		conn.Send(Frame{Type: "error", Error: "room is full"})
		return false
	}
	metrics.RecordJoin()

	existingPeers := make([]ExistingPeer, 0, len(existing))
	for _, m := range existing {
		existingPeers = append(existingPeers, ExistingPeer{PeerID: m.PeerID, Nickname: m.Nickname, SessionID: m.SessionID})
	}
	conn.Send(Frame{Type: "joined", Role: assignedRole, ExistingPeers: existingPeers})

	for _, m := range existing {
		m.Conn.Send(Frame{Type: "peer-joined", PeerID: frame.PeerID, Nickname: frame.Nickname, SessionID: frame.SessionID})
	}

	// The audit row records only peer and room: the device/OS/browser/geo
	// columns are left blank, and no other code path fills them in.
	go rt.recordAuditAsync(frame.PeerID, frame.RoomID)

	return true
}

// forward relays a frame verbatim to every other member of the sender's
// room, injecting sender identity per spec.md §4.2.
func (rt *Router) forward(senderPeerID string, frame *Frame) {
	if senderPeerID == "" {
		return
	}
	sender, ok := rt.Registry.Get(senderPeerID)
	if !ok {
		return
	}

	frame.From = senderPeerID
	if frame.Type == "file-metadata" {
		frame.FromNickname = sender.Nickname
	}

	for _, m := range rt.Registry.OtherMembers(senderPeerID) {
		if err := m.Conn.Send(frame); err != nil {
			rt.Logger.Warnf("router: forward to %s failed: %v", m.PeerID, err)
		}
	}

	if frame.Type == "connection-mode" {
		var payload struct {
			Mode string `json:"mode"`
		}
		if err := json.Unmarshal(frame.Data, &payload); err == nil {
			metrics.RecordModeLock(payload.Mode)
		}
	}
	if frame.Type == "relay-restart" {
		metrics.RecordFallback()
	}
}

// handleEndSession fans out session-end and tears down the sender's
// membership, per spec.md §4.2.
func (rt *Router) handleEndSession(peerID string) {
	if peerID == "" {
		return
	}
	for _, m := range rt.Registry.OtherMembers(peerID) {
		m.Conn.Send(Frame{Type: "session-end"})
	}
}

// handleDeparture removes a peer on stream close and notifies/promotes the
// remaining member, per spec.md §4.2's "on stream close" bullet.
func (rt *Router) handleDeparture(peerID string) {
	remaining, promote := rt.Registry.Leave(peerID)
	if err := database.RecordPeerLeft(peerID, time.Now()); err != nil {
		rt.Logger.Warnf("router: audit peer-left for %s: %v", peerID, err)
	}
	if remaining == nil {
		return
	}

	remaining.Conn.Send(Frame{Type: "peer-left", PeerID: peerID})
	if promote {
		remaining.Conn.Send(Frame{Type: "role-update", Role: role.Controller})
	}
}

// recordAuditAsync writes a best-effort PeerConnectionAudit row; failures
// never block signaling (spec.md §4.2, §7).
func (rt *Router) recordAuditAsync(peerID, roomID string) {
	defer func() {
		if p := recover(); p != nil {
			rt.Logger.Warnf("router: audit write panic: %v", p)
		}
	}()

	audit := &database.PeerConnectionAudit{PeerID: peerID, RoomID: roomID}
	if err := database.RecordPeerJoined(audit); err != nil {
		rt.Logger.Warnf("router: audit write for %s failed: %v", peerID, err)
	}
}
