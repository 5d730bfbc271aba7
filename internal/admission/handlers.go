package admission

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Handlers wires the Controller to the Admission API's HTTP surface
// (spec.md §6).
type Handlers struct {
	Controller *Controller
}

// NewHandlers builds a Handlers around the given Controller.
func NewHandlers(c *Controller) *Handlers {
	return &Handlers{Controller: c}
}

type createRoomRequest struct {
	Password  string     `json:"password"`
	CreatedBy string     `json:"createdBy"`
	TurnConfig TurnConfig `json:"turnConfig"`
}

// CreateRoom handles `POST /rooms`.
func (h *Handlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	roomID, err := h.Controller.CreateRoom(req.Password, req.CreatedBy, req.TurnConfig)
	if err != nil {
		h.Controller.Logger.Errorf("admission: create room: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create room"})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"roomId": roomID})
}

type joinRequest struct {
	Password  string `json:"password"`
	Nickname  string `json:"nickname"`
	CreatedBy string `json:"createdBy"`
}

// Join handles `POST /rooms/:id/join`.
func (h *Handlers) Join(w http.ResponseWriter, r *http.Request, roomID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	peerID := uuid.NewString()
	sessionID := uuid.NewString()

	result, err := h.Controller.Join(roomID, sourceAddress(r), req.Password, req.CreatedBy, peerID, sessionID)
	if err == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"hasPassword": result.HasPassword,
			"isCreator":   result.IsCreator,
			"turnConfig":  result.TurnConfig,
			"ticket":      result.Ticket,
			"peerId":      peerID,
			"sessionId":   sessionID,
		})
		return
	}

	var badPassword BadPasswordError
	switch {
	case errors.As(err, &badPassword):
		respondJSON(w, http.StatusUnauthorized, map[string]any{
			"error":             "bad password",
			"attemptsRemaining": badPassword.AttemptsRemaining,
		})
	case errors.Is(err, ErrBanned):
		respondJSON(w, http.StatusForbidden, map[string]string{"error": "banned"})
	case errors.Is(err, ErrRoomNotFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
	default:
		h.Controller.Logger.Errorf("admission: join %s: %v", roomID, err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "join failed"})
	}
}

type passwordRequest struct {
	Password  string `json:"password"`
	CreatedBy string `json:"createdBy"`
}

// SetPassword handles `PATCH /rooms/:id/password`.
func (h *Handlers) SetPassword(w http.ResponseWriter, r *http.Request, roomID string) {
	if r.Method != http.MethodPatch {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	h.respondPasswordOp(w, h.Controller.SetPassword(roomID, req.CreatedBy, req.Password))
}

// ClearPassword handles `DELETE /rooms/:id/password`.
func (h *Handlers) ClearPassword(w http.ResponseWriter, r *http.Request, roomID string) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	h.respondPasswordOp(w, h.Controller.ClearPassword(roomID, req.CreatedBy))
}

func (h *Handlers) respondPasswordOp(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, ErrForbidden):
		respondJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, ErrRoomNotFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
	default:
		h.Controller.Logger.Errorf("admission: password op: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "operation failed"})
	}
}

// RoomPeerCounter reports live membership, so GetRoom can answer
// peerCount/isFull without the admission package depending on the registry
// package directly.
type RoomPeerCounter interface {
	RoomSize(roomID string) int
}

// GetRoom handles `GET /rooms/:id`.
func (h *Handlers) GetRoom(w http.ResponseWriter, r *http.Request, roomID string, peers RoomPeerCounter) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	room, err := h.Controller.GetRoom(roomID)
	if errors.Is(err, ErrRoomNotFound) {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
		return
	}
	if err != nil {
		h.Controller.Logger.Errorf("admission: get room %s: %v", roomID, err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}

	peerCount := peers.RoomSize(roomID)
	respondJSON(w, http.StatusOK, map[string]any{
		"id":          room.ID,
		"hasPassword": room.HasPassword,
		"peerCount":   peerCount,
		"isFull":      peerCount >= 2,
	})
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sourceAddress extracts the caller's address for the bad-password ban list
// (spec.md §6). X-Forwarded-For is only honored when the immediate peer is a
// private-network reverse proxy; an Internet client can set that header
// itself, and trusting it unconditionally would let a banned caller evade
// recordBadPassword by sending a different value on every request.
func sourceAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" && isTrustedProxy(host) {
		parts := strings.Split(fwd, ",")
		if first := strings.TrimSpace(parts[0]); first != "" {
			return first
		}
	}
	return host
}

func isTrustedProxy(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate()
}
