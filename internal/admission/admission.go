// Package admission implements the Admission Controller (spec.md §4.1):
// password-gated, rate-limited room entry, TURN credential vending, and
// Admission Ticket issuance.
package admission

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pion/logging"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"

	"aq-coordinator/internal/database"
	"aq-coordinator/internal/metrics"
	"aq-coordinator/internal/vault"
)

// ErrBanned is returned when the source address is currently banned from a
// room (spec.md §4.1 step 1).
var ErrBanned = errors.New("admission: banned")

// ErrRoomNotFound is returned when the room does not exist or is inactive.
var ErrRoomNotFound = errors.New("admission: room not found")

// ErrForbidden is returned for creator-only operations when createdBy
// doesn't match the room's stored creator.
var ErrForbidden = errors.New("admission: forbidden")

// BadPasswordError carries the remaining-attempts count for a 401 reply.
type BadPasswordError struct {
	AttemptsRemaining int
}

func (e BadPasswordError) Error() string {
	return fmt.Sprintf("admission: bad password, %d attempts remaining", e.AttemptsRemaining)
}

const maxFailedAttemptsDefault = 5

// TurnConfig is the TURN/STUN configuration returned to an admitted peer.
type TurnConfig struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username"`
	Credential string   `json:"credential"`
	StunURLs   []string `json:"stunUrls,omitempty"`
}

// Controller implements the Admission Controller algorithm.
type Controller struct {
	Vault             *vault.Vault
	Logger            logging.LeveledLogger
	JWTSecret         string
	TicketTTL         time.Duration
	RoomTTL           time.Duration
	BanWindow         time.Duration
	MaxFailedAttempts int
}

// New builds a Controller, defaulting MaxFailedAttempts per spec.md §4.1.
func New(v *vault.Vault, logger logging.LeveledLogger, jwtSecret string, ticketTTL, roomTTL, banWindow time.Duration, maxFailedAttempts int) *Controller {
	if maxFailedAttempts <= 0 {
		maxFailedAttempts = maxFailedAttemptsDefault
	}
	return &Controller{
		Vault:             v,
		Logger:            logger,
		JWTSecret:         jwtSecret,
		TicketTTL:         ticketTTL,
		RoomTTL:           roomTTL,
		BanWindow:         banWindow,
		MaxFailedAttempts: maxFailedAttempts,
	}
}

// CreateRoom persists a new room and returns its generated id.
func (c *Controller) CreateRoom(password, createdBy string, turn TurnConfig) (string, error) {
	roomID, err := NewRoomID()
	if err != nil {
		return "", fmt.Errorf("admission: generate room id: %w", err)
	}

	var passwordHash string
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return "", fmt.Errorf("admission: hash password: %w", err)
		}
		passwordHash = string(hash)
	}

	usernameEnc, err := c.Vault.Seal(turn.Username)
	if err != nil {
		return "", fmt.Errorf("admission: seal turn username: %w", err)
	}
	credentialEnc, err := c.Vault.Seal(turn.Credential)
	if err != nil {
		return "", fmt.Errorf("admission: seal turn credential: %w", err)
	}

	urlsJSON, err := jsonOf(turn.URLs)
	if err != nil {
		return "", err
	}
	stunJSON, err := jsonOf(turn.StunURLs)
	if err != nil {
		return "", err
	}

	room := &database.Room{
		ID:                roomID,
		PasswordHash:      passwordHash,
		CreatedBy:         createdBy,
		ExpiresAt:         time.Now().Add(c.RoomTTL),
		IsActive:          true,
		TurnURLs:          urlsJSON,
		TurnUsernameEnc:   usernameEnc,
		TurnCredentialEnc: credentialEnc,
		StunURLs:          stunJSON,
	}
	if err := database.CreateRoom(room); err != nil {
		return "", fmt.Errorf("admission: create room: %w", err)
	}

	return roomID, nil
}

// JoinResult is the successful outcome of Join.
type JoinResult struct {
	HasPassword bool
	IsCreator   bool
	TurnConfig  TurnConfig
	Ticket      string
}

// Join validates a join attempt against a room's password and the
// (roomId, sourceAddress) rate limit, per spec.md §4.1's algorithm.
func (c *Controller) Join(roomID, sourceAddress, password, createdBy, peerID, sessionID string) (*JoinResult, error) {
	fa, err := database.GetFailedAttempt(roomID, sourceAddress)
	if err != nil {
		return nil, fmt.Errorf("admission: lookup failed attempt: %w", err)
	}
	if fa != nil && fa.IsBanned(time.Now()) {
		return nil, ErrBanned
	}

	room, err := database.GetActiveRoom(roomID)
	if err != nil {
		return nil, fmt.Errorf("admission: lookup room: %w", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	isCreator := room.CreatedBy != "" && createdBy != "" && createdBy == room.CreatedBy
	needsCheck := room.HasPassword() && !isCreator

	if needsCheck {
		if err := bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte(password)); err != nil {
			return nil, c.recordBadPassword(roomID, sourceAddress)
		}
	}

	if err := database.ClearFailedAttempts(roomID, sourceAddress); err != nil {
		c.Logger.Warnf("admission: clear failed attempts for %s/%s: %v", roomID, sourceAddress, err)
	}

	if room.CreatedBy == "" && createdBy != "" {
		if err := database.SetRoomCreator(roomID, createdBy); err != nil {
			c.Logger.Warnf("admission: set created_by for %s: %v", roomID, err)
		}
		isCreator = true
	}

	turn, err := c.decryptTurn(room)
	if err != nil {
		return nil, fmt.Errorf("admission: decrypt turn config: %w", err)
	}

	ticket, err := IssueTicket(c.JWTSecret, c.TicketTTL, roomID, peerID, sessionID)
	if err != nil {
		return nil, err
	}

	return &JoinResult{
		HasPassword: room.HasPassword(),
		IsCreator:   isCreator,
		TurnConfig:  turn,
		Ticket:      ticket,
	}, nil
}

// recordBadPassword increments the failed-attempt counter and bans once the
// threshold is reached, per spec.md §4.1 step 4 and the rate-limit invariant.
func (c *Controller) recordBadPassword(roomID, sourceAddress string) error {
	fa, err := database.RecordFailedAttempt(roomID, sourceAddress)
	if err != nil {
		return fmt.Errorf("admission: record failed attempt: %w", err)
	}

	if fa.Attempts >= c.MaxFailedAttempts {
		until := time.Now().Add(c.BanWindow)
		if err := database.BanFailedAttempt(fa.ID, until); err != nil {
			c.Logger.Warnf("admission: ban %s/%s: %v", roomID, sourceAddress, err)
		}
		metrics.RecordBan()
		return ErrBanned
	}

	return BadPasswordError{AttemptsRemaining: c.MaxFailedAttempts - fa.Attempts}
}

// SetPassword sets a room's password, restricted to its creator.
func (c *Controller) SetPassword(roomID, createdBy, password string) error {
	room, err := database.GetActiveRoom(roomID)
	if err != nil {
		return fmt.Errorf("admission: lookup room: %w", err)
	}
	if room == nil {
		return ErrRoomNotFound
	}
	if room.CreatedBy == "" || room.CreatedBy != createdBy {
		return ErrForbidden
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("admission: hash password: %w", err)
	}
	return database.SetRoomPassword(roomID, string(hash))
}

// ClearPassword removes a room's password, restricted to its creator.
func (c *Controller) ClearPassword(roomID, createdBy string) error {
	room, err := database.GetActiveRoom(roomID)
	if err != nil {
		return fmt.Errorf("admission: lookup room: %w", err)
	}
	if room == nil {
		return ErrRoomNotFound
	}
	if room.CreatedBy == "" || room.CreatedBy != createdBy {
		return ErrForbidden
	}
	return database.SetRoomPassword(roomID, "")
}

// RoomSummary is the shape returned by GET /rooms/:id.
type RoomSummary struct {
	ID          string
	HasPassword bool
}

// GetRoom fetches a room summary, for the GET /rooms/:id endpoint.
func (c *Controller) GetRoom(roomID string) (*RoomSummary, error) {
	room, err := database.GetActiveRoom(roomID)
	if err != nil {
		return nil, fmt.Errorf("admission: lookup room: %w", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return &RoomSummary{ID: room.ID, HasPassword: room.HasPassword()}, nil
}

func (c *Controller) decryptTurn(room *database.Room) (TurnConfig, error) {
	username, err := c.Vault.Open(room.TurnUsernameEnc)
	if err != nil {
		return TurnConfig{}, err
	}
	credential, err := c.Vault.Open(room.TurnCredentialEnc)
	if err != nil {
		return TurnConfig{}, err
	}

	urls := parseStringArray(room.TurnURLs)
	stunURLs := parseStringArray(room.StunURLs)

	return TurnConfig{
		URLs:       urls,
		Username:   username,
		Credential: credential,
		StunURLs:   stunURLs,
	}, nil
}

func parseStringArray(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func jsonOf(ss []string) (datatypes.JSON, error) {
	if ss == nil {
		ss = []string{}
	}
	raw, err := json.Marshal(ss)
	if err != nil {
		return nil, fmt.Errorf("admission: marshal turn urls: %w", err)
	}
	return datatypes.JSON(raw), nil
}
