package admission

import (
	"net/http/httptest"
	"testing"
)

func TestSourceAddressPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	r.RemoteAddr = "10.0.0.1:5555"

	if got := sourceAddress(r); got != "203.0.113.5" {
		t.Errorf("expected 203.0.113.5, got %q", got)
	}
}

func TestSourceAddressFallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "198.51.100.7:5555"

	if got := sourceAddress(r); got != "198.51.100.7" {
		t.Errorf("expected 198.51.100.7, got %q", got)
	}
}

func TestSourceAddressIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.5")
	r.RemoteAddr = "198.51.100.7:5555"

	if got := sourceAddress(r); got != "198.51.100.7" {
		t.Errorf("expected the direct peer 198.51.100.7 since it isn't a trusted proxy, got %q", got)
	}
}
