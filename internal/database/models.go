package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Room is a two-peer rendezvous identified by a short opaque code.
//
// Invariant: at most two simultaneous live peer memberships (enforced by the
// Peer Registry, not by this table — this row only tracks durable state).
type Room struct {
	ID                string    `gorm:"primaryKey;type:varchar(6)"` // 6 uppercase hex chars
	PasswordHash      string    `gorm:"type:varchar(255)"`          // empty means no password
	CreatedBy         string    `gorm:"type:varchar(255)"`          // immutable once set, see DESIGN.md
	ExpiresAt         time.Time `gorm:"index;not null"`
	IsActive          bool      `gorm:"default:true;index"`
	TurnURLs          datatypes.JSON `gorm:"type:jsonb;default:'[]';serializer:json"`
	TurnUsernameEnc   string         `gorm:"type:text"` // nacl/secretbox ciphertext, base64
	TurnCredentialEnc string         `gorm:"type:text"`
	StunURLs          datatypes.JSON `gorm:"type:jsonb;default:'[]';serializer:json"`
	CreatedAt         time.Time      `gorm:"autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime"`
}

// HasPassword reports whether a password must be supplied to join.
func (r *Room) HasPassword() bool {
	return r.PasswordHash != ""
}

// FailedAttempt is keyed by (roomId, sourceAddress) and tracks the
// wrong-password rate limit (spec invariant: attempts <= 5 or bannedUntil > now).
type FailedAttempt struct {
	ID            string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	RoomID        string     `gorm:"uniqueIndex:idx_room_source;type:varchar(6);not null"`
	SourceAddress string     `gorm:"uniqueIndex:idx_room_source;type:varchar(100);not null"`
	Attempts      int        `gorm:"default:0"`
	LastAttemptAt time.Time  `gorm:"autoUpdateTime"`
	BannedUntil   *time.Time `gorm:"index"`
}

// IsBanned reports whether the ban window set on this record is still active.
func (f *FailedAttempt) IsBanned(now time.Time) bool {
	return f.BannedUntil != nil && f.BannedUntil.After(now)
}

// PeerConnectionAudit records device/os/browser/geo for a joined peer. Rows
// are written asynchronously and best-effort: a failure here never blocks
// admission or signaling (spec §4.2, §7).
type PeerConnectionAudit struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	PeerID     string `gorm:"index;type:varchar(255);not null"`
	RoomID     string `gorm:"index;type:varchar(6);not null"`
	Device     string `gorm:"type:varchar(100)"`
	OS         string `gorm:"type:varchar(100)"`
	Browser    string `gorm:"type:varchar(100)"`
	GeoCountry string `gorm:"type:varchar(2)"`
	JoinedAt   time.Time `gorm:"autoCreateTime"`
	LeftAt     *time.Time
}

// GetActiveRoom fetches a room by ID, returning (nil, nil) if it doesn't
// exist or has been deactivated.
func GetActiveRoom(roomID string) (*Room, error) {
	room := &Room{}
	result := DB.Where("id = ? AND is_active = ?", roomID, true).First(room)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return room, nil
}

// CreateRoom persists a newly created room.
func CreateRoom(room *Room) error {
	return DB.Create(room).Error
}

// SetRoomPassword sets or clears a room's password hash, scoped to the
// creator (the caller is responsible for checking CreatedBy matches first).
func SetRoomPassword(roomID, passwordHash string) error {
	return DB.Model(&Room{}).Where("id = ?", roomID).Update("password_hash", passwordHash).Error
}

// SetRoomCreator fixes a room's creator identity exactly once: the update
// only applies while created_by is still empty, so a later join with a
// different createdBy can never overwrite it (spec.md §9 Open Question).
func SetRoomCreator(roomID, createdBy string) error {
	return DB.Model(&Room{}).
		Where("id = ? AND created_by = ?", roomID, "").
		Update("created_by", createdBy).Error
}

// DeactivateExpiredRooms marks every room whose expiry has passed inactive,
// in one statement, as spec §5's periodic expiration sweep requires.
func DeactivateExpiredRooms(now time.Time) (int64, error) {
	result := DB.Model(&Room{}).
		Where("is_active = ? AND expires_at < ?", true, now).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}

// GetFailedAttempt fetches the failed-attempt record for (roomID, source),
// returning (nil, nil) if none exists yet.
func GetFailedAttempt(roomID, source string) (*FailedAttempt, error) {
	fa := &FailedAttempt{}
	result := DB.Where("room_id = ? AND source_address = ?", roomID, source).First(fa)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return fa, nil
}

// RecordFailedAttempt atomically increments the attempt counter for
// (roomID, source), creating the record if needed, and returns the row after
// the increment so the caller can decide whether to ban.
func RecordFailedAttempt(roomID, source string) (*FailedAttempt, error) {
	var fa FailedAttempt
	err := DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("room_id = ? AND source_address = ?", roomID, source).First(&fa)
		if result.Error != nil {
			if result.Error != gorm.ErrRecordNotFound {
				return result.Error
			}
			fa = FailedAttempt{RoomID: roomID, SourceAddress: source, Attempts: 1}
			return tx.Create(&fa).Error
		}
		fa.Attempts++
		return tx.Model(&fa).Update("attempts", fa.Attempts).Error
	})
	return &fa, err
}

// BanFailedAttempt sets the ban window on an existing failed-attempt record.
func BanFailedAttempt(id string, until time.Time) error {
	return DB.Model(&FailedAttempt{}).Where("id = ?", id).Update("banned_until", until).Error
}

// ClearFailedAttempts deletes the failed-attempt record for (roomID, source)
// on a successful password match (spec: resets the counter to zero).
func ClearFailedAttempts(roomID, source string) error {
	return DB.Where("room_id = ? AND source_address = ?", roomID, source).Delete(&FailedAttempt{}).Error
}

// RecordPeerJoined writes a best-effort audit row for a newly joined peer.
func RecordPeerJoined(audit *PeerConnectionAudit) error {
	return DB.Create(audit).Error
}

// RecordPeerLeft stamps the left_at time on the most recent open audit row
// for a peer.
func RecordPeerLeft(peerID string, at time.Time) error {
	return DB.Model(&PeerConnectionAudit{}).
		Where("peer_id = ? AND left_at IS NULL", peerID).
		Update("left_at", at).Error
}
