package session

import (
	"testing"
	"time"
)

func TestSelectCandidatePairPrefersSelected(t *testing.T) {
	pairs := []CandidatePair{
		{State: "succeeded", Nominated: true, LocalType: "host"},
		{Selected: true, LocalType: "relay"},
	}

	pair, ok := selectCandidatePair(pairs)
	if !ok || !pair.Selected {
		t.Fatalf("expected the selected pair to win, got %+v", pair)
	}
}

func TestSelectCandidatePairFallsBackToSucceededAndNominated(t *testing.T) {
	pairs := []CandidatePair{
		{State: "succeeded", LocalType: "host"},
		{State: "succeeded", Nominated: true, LocalType: "relay"},
	}

	pair, ok := selectCandidatePair(pairs)
	if !ok || !pair.Nominated || pair.LocalType != "relay" {
		t.Fatalf("expected succeeded+nominated pair to win, got %+v", pair)
	}
}

func TestSelectCandidatePairFallsBackToSucceeded(t *testing.T) {
	pairs := []CandidatePair{
		{State: "succeeded", LocalType: "host"},
	}

	pair, ok := selectCandidatePair(pairs)
	if !ok || pair.LocalType != "host" {
		t.Fatalf("expected the only succeeded pair to win, got %+v", pair)
	}
}

func TestSelectCandidatePairNoneFound(t *testing.T) {
	_, ok := selectCandidatePair([]CandidatePair{{State: "inprogress"}})
	if ok {
		t.Fatal("expected no candidate pair to be selectable")
	}
}

func TestDetectModeLocksP2PForHostPair(t *testing.T) {
	m, transport, _ := newTestMachine(t, "controller")

	m.detectMode([]CandidatePair{{Selected: true, LocalType: "host", RemoteType: "host"}}, false)

	if m.Mode() != ModeP2P {
		t.Fatalf("expected p2p mode, got %s", m.Mode())
	}
	if len(transport.sent) != 1 || transport.sent[0].Type != "connection-mode" {
		t.Fatalf("expected a connection-mode frame to be sent, got %+v", transport.sent)
	}
}

func TestDetectModeLocksTURNWhenEitherSideIsRelay(t *testing.T) {
	m, _, _ := newTestMachine(t, "controller")

	m.detectMode([]CandidatePair{{Selected: true, LocalType: "host", RemoteType: "relay"}}, false)

	if m.Mode() != ModeTURN {
		t.Fatalf("expected turn mode, got %s", m.Mode())
	}
}

func TestDetectModeRetriesExactlyOnceWhenNoPairFound(t *testing.T) {
	m, _, _ := newTestMachine(t, "controller")

	var scheduled func()
	origAfterFunc := AfterFunc
	defer func() { AfterFunc = origAfterFunc }()
	AfterFunc = func(d time.Duration, f func()) *time.Timer {
		scheduled = f
		return time.NewTimer(time.Hour)
	}

	m.detectMode(nil, false)
	if scheduled == nil {
		t.Fatal("expected a retry to be scheduled")
	}
	if m.Mode() != ModePending {
		t.Fatalf("expected mode to remain pending before retry fires, got %s", m.Mode())
	}

	scheduled()
	if m.Mode() != ModePending {
		t.Fatalf("expected mode still pending since the retry also found nothing, got %s", m.Mode())
	}

	// A second empty detection attempt must not schedule another retry.
	scheduled = nil
	m.detectMode(nil, false)
	if scheduled != nil {
		t.Fatal("expected no second retry to be scheduled")
	}
}
