package admission

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TicketClaims binds an Admission Ticket to a specific room/peer/session
// triple (SPEC_FULL.md §4.1). A ticket proves its holder passed `/join`
// rate limiting for exactly this peer in exactly this room; the Signaling
// Router verifies it before admitting a `join` frame.
type TicketClaims struct {
	RoomID    string `json:"roomId"`
	PeerID    string `json:"peerId"`
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

// IssueTicket signs a short-lived ticket for the given room/peer/session.
func IssueTicket(secret string, ttl time.Duration, roomID, peerID, sessionID string) (string, error) {
	now := time.Now()
	claims := TicketClaims{
		RoomID:    roomID,
		PeerID:    peerID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("admission: sign ticket: %w", err)
	}
	return signed, nil
}

// VerifyTicket parses and validates a ticket, additionally checking it was
// issued for the given roomId/peerId/sessionId triple (the Router's
// join-frame check). A ticket minted for one session must not admit a join
// frame claiming a different session on the same room/peer.
func VerifyTicket(secret, tokenString, roomID, peerID, sessionID string) (*TicketClaims, error) {
	claims := &TicketClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("admission: parse ticket: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("admission: invalid ticket")
	}
	if claims.RoomID != roomID || claims.PeerID != peerID || claims.SessionID != sessionID {
		return nil, fmt.Errorf("admission: ticket does not match roomId/peerId/sessionId")
	}

	return claims, nil
}
