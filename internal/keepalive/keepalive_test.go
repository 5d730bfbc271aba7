package keepalive

import (
	"errors"
	"testing"
	"time"

	"github.com/pion/logging"

	"aq-coordinator/internal/config"
)

func noopLogger() logging.LeveledLogger {
	return logging.NewDefaultLoggerFactory().NewLogger("test")
}

type fakeWriter struct {
	calls int
	err   error
}

func (f *fakeWriter) WritePing() error {
	f.calls++
	return f.err
}

type fakePongRegistrar struct {
	handler func(string) error
}

func (f *fakePongRegistrar) SetPongHandler(h func(appData string) error) {
	f.handler = h
}

func TestDefaultConfigUsesTwentySecondHeartbeat(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.PingInterval != 20*time.Second {
		t.Errorf("expected 20s ping interval, got %v", cfg.PingInterval)
	}
}

func TestConfigFromAppUsesAppSettings(t *testing.T) {
	app := &config.Config{
		KeepalivePingInt:  7 * time.Second,
		KeepalivePongWait: 14 * time.Second,
		WriteDeadline:     3 * time.Second,
	}

	cfg := ConfigFromApp(app)
	if cfg.PingInterval != 7*time.Second || cfg.PongWaitTime != 14*time.Second || cfg.WriteDeadline != 3*time.Second {
		t.Errorf("expected config to mirror app settings, got %+v", cfg)
	}
}

func TestNewMonitorRegistersPongHandler(t *testing.T) {
	reg := &fakePongRegistrar{}
	m := NewMonitor(reg, &fakeWriter{}, noopLogger(), DefaultConfig())

	if reg.handler == nil {
		t.Fatal("expected NewMonitor to register a pong handler")
	}

	before := m.lastPongTime.Load().(time.Time)
	time.Sleep(time.Millisecond)
	if err := reg.handler(""); err != nil {
		t.Fatalf("pong handler returned error: %v", err)
	}
	after := m.lastPongTime.Load().(time.Time)
	if !after.After(before) {
		t.Error("expected a pong to advance lastPongTime")
	}
}

func TestSendPingWritesThroughWriter(t *testing.T) {
	w := &fakeWriter{}
	m := NewMonitor(&fakePongRegistrar{}, w, noopLogger(), DefaultConfig())

	if err := m.sendPing(); err != nil {
		t.Fatalf("sendPing: %v", err)
	}
	if w.calls != 1 {
		t.Fatalf("expected exactly one WritePing call, got %d", w.calls)
	}
}

func TestSendPingPropagatesWriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("write failed")}
	m := NewMonitor(&fakePongRegistrar{}, w, noopLogger(), DefaultConfig())

	if err := m.sendPing(); err == nil {
		t.Fatal("expected sendPing to surface the writer's error")
	}
}

func TestMarkStaleFiresOnStaleExactlyOnce(t *testing.T) {
	m := NewMonitor(&fakePongRegistrar{}, &fakeWriter{}, noopLogger(), DefaultConfig())

	var fired int
	m.OnStale = func() { fired++ }

	m.markStale()
	m.markStale()

	if fired != 1 {
		t.Fatalf("expected OnStale to fire exactly once, fired %d times", fired)
	}
	if m.IsAlive() {
		t.Error("expected IsAlive to report false after markStale")
	}
}
