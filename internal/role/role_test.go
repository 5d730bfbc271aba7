package role

import "testing"

func TestAssign(t *testing.T) {
	if got := Assign(0); got != Controller {
		t.Errorf("expected first peer to be controller, got %s", got)
	}
	if got := Assign(1); got != Follower {
		t.Errorf("expected second peer to be follower, got %s", got)
	}
}

func TestPromoteOnDeparture(t *testing.T) {
	if !PromoteOnDeparture(Controller, Follower) {
		t.Error("expected a remaining follower to be promoted when the controller leaves")
	}
	if PromoteOnDeparture(Follower, Controller) {
		t.Error("a remaining controller must never be re-promoted")
	}
}
