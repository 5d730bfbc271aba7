package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/logging"

	"aq-coordinator/internal/keepalive"
	"aq-coordinator/internal/registry"
)

type fakeSender struct {
	sent   []Frame
	closed bool
}

func (f *fakeSender) Send(v any) error {
	switch fr := v.(type) {
	case Frame:
		f.sent = append(f.sent, fr)
	case *Frame:
		f.sent = append(f.sent, *fr)
	}
	return nil
}
func (f *fakeSender) Close() error {
	f.closed = true
	return nil
}

func newTestRouter(reg *registry.Registry) *Router {
	return &Router{
		Registry: reg,
		Logger:   logging.NewDefaultLoggerFactory().NewLogger("test"),
	}
}

func TestForwardInjectsSenderIdentity(t *testing.T) {
	reg := registry.New()
	s1 := &fakeSender{}
	s2 := &fakeSender{}
	reg.Join(&registry.Membership{PeerID: "p1", RoomID: "ROOM01", Nickname: "alice", Conn: s1})
	reg.Join(&registry.Membership{PeerID: "p2", RoomID: "ROOM01", Nickname: "bob", Conn: s2})

	rt := newTestRouter(reg)
	rt.forward("p1", &Frame{Type: "offer", Data: json.RawMessage(`{"sdp":"..."}`)})

	if len(s2.sent) != 1 {
		t.Fatalf("expected bob to receive 1 frame, got %d", len(s2.sent))
	}
	if s2.sent[0].From != "p1" {
		t.Errorf("expected From=p1, got %s", s2.sent[0].From)
	}
	if len(s1.sent) != 0 {
		t.Errorf("expected sender to not receive its own forwarded frame")
	}
}

func TestForwardFileMetadataIncludesFromNickname(t *testing.T) {
	reg := registry.New()
	s1 := &fakeSender{}
	s2 := &fakeSender{}
	reg.Join(&registry.Membership{PeerID: "p1", RoomID: "ROOM01", Nickname: "alice", Conn: s1})
	reg.Join(&registry.Membership{PeerID: "p2", RoomID: "ROOM01", Nickname: "bob", Conn: s2})

	rt := newTestRouter(reg)
	rt.forward("p1", &Frame{Type: "file-metadata"})

	if len(s2.sent) != 1 || s2.sent[0].FromNickname != "alice" {
		t.Fatalf("expected fromNickname=alice, got %+v", s2.sent)
	}
}

func TestForwardDropsNonMember(t *testing.T) {
	reg := registry.New()
	rt := newTestRouter(reg)

	// sender isn't a member of any room: forward must be a no-op, not panic.
	rt.forward("ghost", &Frame{Type: "offer"})
}

func TestHandleEndSessionBroadcastsSessionEnd(t *testing.T) {
	reg := registry.New()
	s1 := &fakeSender{}
	s2 := &fakeSender{}
	reg.Join(&registry.Membership{PeerID: "p1", RoomID: "ROOM01", Conn: s1})
	reg.Join(&registry.Membership{PeerID: "p2", RoomID: "ROOM01", Conn: s2})

	rt := newTestRouter(reg)
	rt.handleEndSession("p1")

	if len(s2.sent) != 1 || s2.sent[0].Type != "session-end" {
		t.Fatalf("expected session-end to the other peer, got %+v", s2.sent)
	}
}

func TestHandleJoinRejectsInvalidTicket(t *testing.T) {
	reg := registry.New()
	rt := newTestRouter(reg)
	rt.JWTSecret = "test-secret"

	s := &fakeSender{}
	ok := rt.handleJoin(s, &Frame{Type: "join", PeerID: "p1", RoomID: "ROOM01", Ticket: "not-a-real-ticket"})

	if ok {
		t.Fatal("expected handleJoin to reject an invalid ticket")
	}
	if len(s.sent) != 1 || s.sent[0].Type != "error" {
		t.Fatalf("expected a single error frame, got %+v", s.sent)
	}
}

// TestServeHTTPClosesStreamOnRejectedJoin verifies spec.md's requirement that
// a failed join yields an error frame *and* stream close, not a dangling
// connection left to idle on the next ReadMessage.
func TestServeHTTPClosesStreamOnRejectedJoin(t *testing.T) {
	reg := registry.New()
	rt := &Router{
		Upgrader:        websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		Registry:        reg,
		Logger:          logging.NewDefaultLoggerFactory().NewLogger("test"),
		JWTSecret:       "test-secret",
		KeepaliveConfig: keepalive.DefaultConfig(),
	}

	srv := httptest.NewServer(http.HandlerFunc(rt.ServeHTTP))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	join := Frame{Type: "join", PeerID: "p1", RoomID: "ROOM01", Ticket: "not-a-real-ticket"}
	if err := client.WriteJSON(join); err != nil {
		t.Fatalf("write join: %v", err)
	}

	var errFrame Frame
	if err := client.ReadJSON(&errFrame); err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if errFrame.Type != "error" {
		t.Fatalf("expected error frame, got %+v", errFrame)
	}

	// The server must close the stream right after the error frame: the next
	// read should fail rather than block waiting on a still-open connection.
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := client.ReadMessage(); err == nil {
		t.Fatal("expected the server to close the stream after a rejected join")
	}
}
