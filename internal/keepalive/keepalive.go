package keepalive

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"

	"aq-coordinator/internal/config"
)

// Writer is the capability the monitor needs to send a ping without racing
// a concurrent frame write on the same underlying connection — the signaling
// stream's safeConn implements this over its own write mutex.
type Writer interface {
	WritePing() error
}

// pongRegistrar is the one *websocket.Conn method the monitor needs to learn
// about inbound pongs, narrowed to an interface so tests can drive handlePong
// without a real websocket handshake.
type pongRegistrar interface {
	SetPongHandler(h func(appData string) error)
}

// Config holds keepalive configuration
type Config struct {
	PingInterval  time.Duration // Interval to send pings
	PongWaitTime  time.Duration // Max time to wait for pong response
	WriteDeadline time.Duration // Deadline for writing messages
}

// DefaultConfig returns default keepalive configuration (20s heartbeat per
// the signaling coordinator's ambient keepalive policy).
func DefaultConfig() Config {
	return Config{
		PingInterval:  20 * time.Second,
		PongWaitTime:  45 * time.Second,
		WriteDeadline: 5 * time.Second,
	}
}

// ConfigFromApp builds a keepalive Config from the process-wide application
// configuration, so ping/pong/write timing is controlled by the same
// env/flag surface as everything else instead of a second hardcoded set.
func ConfigFromApp(cfg *config.Config) Config {
	return Config{
		PingInterval:  cfg.KeepalivePingInt,
		PongWaitTime:  cfg.KeepalivePongWait,
		WriteDeadline: cfg.WriteDeadline,
	}
}

// Monitor manages WebSocket keepalive with ping/pong
type Monitor struct {
	conn         pongRegistrar // only for pong-handler registration; writes go through writer
	writer       Writer
	logger       logging.LeveledLogger
	config       Config
	done         chan struct{}
	lastPongTime atomic.Value // time.Time
	alive        atomic.Bool
	staleOnce    sync.Once
	// OnStale fires exactly once, the first time the monitor gives up on the
	// connection (ping failure or pong timeout), so the caller can force the
	// read loop to unblock instead of leaving a half-dead stream open until
	// the peer notices on its own.
	OnStale func()
}

// NewMonitor creates a new keepalive monitor. writer is where pings are
// actually written; conn is only used to register the pong handler.
func NewMonitor(conn pongRegistrar, writer Writer, logger logging.LeveledLogger, cfg Config) *Monitor {
	m := &Monitor{
		conn:   conn,
		writer: writer,
		logger: logger,
		config: cfg,
		done:   make(chan struct{}),
	}

	m.lastPongTime.Store(time.Now())
	m.alive.Store(true)

	// Set pong handler but don't set read deadline - it breaks idle connections
	// The browser WebSocket API doesn't respond to server pings anyway
	m.conn.SetPongHandler(func(appData string) error {
		m.handlePong()
		return nil
	})

	return m
}

func (m *Monitor) markStale() {
	m.alive.Store(false)
	m.staleOnce.Do(func() {
		if m.OnStale != nil {
			m.OnStale()
		}
	})
}

// Start begins the keepalive ping loop
func (m *Monitor) Start() {
	go m.pingLoop()
	go m.monitorLoop()
}

// Stop stops the keepalive monitor
func (m *Monitor) Stop() {
	m.alive.Store(false)
	close(m.done)
}

// IsAlive returns true if the connection is responding to pings
func (m *Monitor) IsAlive() bool {
	return m.alive.Load()
}

// pingLoop sends periodic pings
func (m *Monitor) pingLoop() {
	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			if err := m.sendPing(); err != nil {
				m.logger.Warnf("Failed to send ping: %v", err)
				m.markStale()
				return
			}
		}
	}
}

// monitorLoop checks for stale connections
func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.config.PongWaitTime * 2)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			lastPong := m.lastPongTime.Load().(time.Time)
			timeSinceLastPong := time.Since(lastPong)

			// Only mark as stale if really no activity for a long time (3x the pong wait)
			if timeSinceLastPong > m.config.PongWaitTime*3 {
				m.logger.Warnf("No pong received for %v, marking connection as stale", timeSinceLastPong)
				m.markStale()
				return
			}
		}
	}
}

// sendPing sends a ping frame through the shared connection writer, so it
// never races a concurrent frame write on the same websocket.Conn.
func (m *Monitor) sendPing() error {
	if err := m.writer.WritePing(); err != nil {
		return err
	}
	m.logger.Debugf("Sent ping")
	return nil
}

// handlePong handles pong responses
func (m *Monitor) handlePong() {
	m.lastPongTime.Store(time.Now())
	m.logger.Debugf("Received pong")
}
