package router

import "testing"

func TestForwardableTypesCoversSpecTaxonomy(t *testing.T) {
	want := []string{
		"offer", "answer", "ice-candidate", "chat",
		"file-metadata", "file-chunk", "file-eof",
		"nc-status", "relay-restart", "connection-mode",
	}
	for _, typ := range want {
		if !forwardableTypes[typ] {
			t.Errorf("expected %q to be forwardable", typ)
		}
	}
	for _, typ := range []string{"join", "ping", "end-session"} {
		if forwardableTypes[typ] {
			t.Errorf("expected %q to not be in the forwardable set", typ)
		}
	}
}
