package database

import (
	"testing"
	"time"
)

func TestRoomHasPassword(t *testing.T) {
	r := &Room{}
	if r.HasPassword() {
		t.Error("expected room with no password hash to report HasPassword() == false")
	}

	r.PasswordHash = "$2a$10$somehash"
	if !r.HasPassword() {
		t.Error("expected room with a password hash to report HasPassword() == true")
	}
}

func TestFailedAttemptIsBanned(t *testing.T) {
	now := time.Now()

	fa := &FailedAttempt{}
	if fa.IsBanned(now) {
		t.Error("expected no ban window to mean not banned")
	}

	past := now.Add(-time.Minute)
	fa.BannedUntil = &past
	if fa.IsBanned(now) {
		t.Error("expected an expired ban window to mean not banned")
	}

	future := now.Add(time.Hour)
	fa.BannedUntil = &future
	if !fa.IsBanned(now) {
		t.Error("expected an active ban window to mean banned")
	}
}
