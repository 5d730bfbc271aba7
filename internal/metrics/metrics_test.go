package metrics

import (
	"testing"
	"time"
)

func TestRecordConnectionCreated(t *testing.T) {
	Reset()

	initialCount := Get().ActiveConnections
	RecordConnectionCreated()

	metrics := Get()
	if metrics.ActiveConnections != initialCount+1 {
		t.Errorf("Expected ActiveConnections to be %d, got %d", initialCount+1, metrics.ActiveConnections)
	}

	if metrics.TotalConnectionsCreated != 1 {
		t.Errorf("Expected TotalConnectionsCreated to be 1, got %d", metrics.TotalConnectionsCreated)
	}
}

func TestRecordConnectionClosed(t *testing.T) {
	Reset()

	RecordConnectionCreated()
	RecordConnectionClosed()

	metrics := Get()
	if metrics.ActiveConnections != 0 {
		t.Errorf("Expected ActiveConnections to be 0, got %d", metrics.ActiveConnections)
	}

	if metrics.TotalConnectionsClosed != 1 {
		t.Errorf("Expected TotalConnectionsClosed to be 1, got %d", metrics.TotalConnectionsClosed)
	}
}

func TestRecordConnectionClosedNeverGoesNegative(t *testing.T) {
	Reset()

	RecordConnectionClosed()

	if metrics := Get(); metrics.ActiveConnections != 0 {
		t.Errorf("Expected ActiveConnections to floor at 0, got %d", metrics.ActiveConnections)
	}
}

func TestRecordMessageProcessed(t *testing.T) {
	Reset()

	RecordMessageProcessed()
	RecordMessageProcessed()

	metrics := Get()
	if metrics.TotalMessagesProcessed != 2 {
		t.Errorf("Expected TotalMessagesProcessed to be 2, got %d", metrics.TotalMessagesProcessed)
	}
}

func TestRecordJoinAndRejection(t *testing.T) {
	Reset()

	RecordJoin()
	RecordJoinRejection()
	RecordJoinRejection()

	metrics := Get()
	if metrics.TotalJoins != 1 {
		t.Errorf("Expected TotalJoins to be 1, got %d", metrics.TotalJoins)
	}
	if metrics.TotalJoinRejections != 2 {
		t.Errorf("Expected TotalJoinRejections to be 2, got %d", metrics.TotalJoinRejections)
	}
}

func TestRecordBan(t *testing.T) {
	Reset()

	RecordBan()

	if metrics := Get(); metrics.TotalBans != 1 {
		t.Errorf("Expected TotalBans to be 1, got %d", metrics.TotalBans)
	}
}

func TestRecordFallback(t *testing.T) {
	Reset()

	RecordFallback()
	RecordFallback()

	if metrics := Get(); metrics.TotalFallbacks != 2 {
		t.Errorf("Expected TotalFallbacks to be 2, got %d", metrics.TotalFallbacks)
	}
}

func TestRecordModeLock(t *testing.T) {
	Reset()

	RecordModeLock("p2p")
	RecordModeLock("turn")
	RecordModeLock("turn")

	metrics := Get()
	if metrics.TotalModeLocksP2P != 1 {
		t.Errorf("Expected TotalModeLocksP2P to be 1, got %d", metrics.TotalModeLocksP2P)
	}
	if metrics.TotalModeLocksTURN != 2 {
		t.Errorf("Expected TotalModeLocksTURN to be 2, got %d", metrics.TotalModeLocksTURN)
	}
}

func TestRecordRoomsExpired(t *testing.T) {
	Reset()

	RecordRoomsExpired(0)
	RecordRoomsExpired(3)

	if metrics := Get(); metrics.TotalRoomsExpired != 3 {
		t.Errorf("Expected TotalRoomsExpired to be 3, got %d", metrics.TotalRoomsExpired)
	}
}

func TestReset(t *testing.T) {
	Reset()

	RecordConnectionCreated()
	RecordMessageProcessed()
	RecordJoin()
	RecordFallback()

	Reset()

	metrics := Get()
	if metrics.ActiveConnections != 0 || metrics.TotalConnectionsCreated != 0 ||
		metrics.TotalMessagesProcessed != 0 || metrics.TotalJoins != 0 || metrics.TotalFallbacks != 0 {
		t.Error("Expected all metrics to be reset to 0")
	}
}

func TestUptime(t *testing.T) {
	m := Get()
	uptime := m.Uptime()

	if uptime < 0 {
		t.Errorf("Expected Uptime to be non-negative, got %v", uptime)
	}

	// Uptime should be very small if called right after Get()
	if uptime > time.Second {
		t.Errorf("Expected Uptime to be small, got %v", uptime)
	}
}

func TestToJSON(t *testing.T) {
	Reset()

	RecordConnectionCreated()
	m := Get()
	data := m.ToJSON()

	if len(data) == 0 {
		t.Error("Expected JSON data to be non-empty")
	}

	if !containsSubstring(string(data), "active_connections") {
		t.Error("Expected JSON to contain 'active_connections'")
	}
}

func containsSubstring(s, substr string) bool {
	for i := 0; i < len(s)-len(substr)+1; i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
