package admission

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// NewRoomID generates a 6-character uppercase hex room code (3 random
// bytes), per SPEC_FULL.md §6's "Room ID format".
func NewRoomID() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
