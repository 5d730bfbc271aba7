// Package wstransport adapts a gorilla/websocket client connection to the
// session.SignalingTransport capability, the non-browser counterpart to the
// coordinator's own router.safeConn.
package wstransport

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Transport is a thread-safe session.SignalingTransport backed by one
// websocket connection to the coordinator.
type Transport struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	readOnce sync.Once
	onMsg    func(raw []byte)
}

// Dial connects to the coordinator's signaling endpoint.
func Dial(url string) (*Transport, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return &Transport{conn: conn}, nil
}

// Send marshals v as JSON and writes it to the wire, serialized against
// concurrent sends the way router.safeConn serializes the coordinator side.
func (t *Transport) Send(v any) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(v)
}

// OnMessage registers the callback invoked for each inbound frame and starts
// the read pump. A later call replaces the callback; the read pump is started
// only once.
func (t *Transport) OnMessage(cb func(raw []byte)) {
	t.onMsg = cb
	t.readOnce.Do(func() {
		go t.readLoop()
	})
}

func (t *Transport) readLoop() {
	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		if t.onMsg != nil {
			t.onMsg(raw)
		}
	}
}

func (t *Transport) Close() error {
	return t.conn.Close()
}
