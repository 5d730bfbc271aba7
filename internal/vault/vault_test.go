package vault

import "testing"

func TestSealOpenRoundTrip(t *testing.T) {
	v, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sealed, err := v.Seal("turn-secret-credential")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed == "" {
		t.Fatal("expected non-empty sealed blob")
	}

	opened, err := v.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened != "turn-secret-credential" {
		t.Errorf("expected round-trip to match, got %q", opened)
	}
}

func TestSealOpenEmptyString(t *testing.T) {
	v, _ := New("")

	sealed, err := v.Seal("")
	if err != nil || sealed != "" {
		t.Fatalf("expected empty seal of empty string, got %q, %v", sealed, err)
	}

	opened, err := v.Open("")
	if err != nil || opened != "" {
		t.Fatalf("expected empty open of empty string, got %q, %v", opened, err)
	}
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	v1, _ := New("")
	v2, _ := New("")

	sealed, err := v1.Seal("secret")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, err := v2.Open(sealed); err == nil {
		t.Error("expected decryption under a different key to fail")
	}
}

func TestNewRejectsBadKeyLength(t *testing.T) {
	if _, err := New("c2hvcnQ="); err != ErrInvalidKey {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}
