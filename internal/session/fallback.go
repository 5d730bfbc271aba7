package session

// maybeTriggerFallback implements the Fallback Orchestrator's entry guard
// (spec.md §4.6): only while modeLocked=false, fallbackTriggered=false, and
// connectionEstablished=false. It does not check the role itself; its callers
// in onICEConnectionStateChange invoke it only for the controller.
func (m *Machine) maybeTriggerFallback() {
	if m.st.modeLocked || m.st.fallbackTriggered || m.st.connectionEstablished {
		return
	}
	m.st.fallbackTriggered = true
	m.st.phase = PhaseRelayFallback
	m.cancelDisconnectTimer()

	m.transport.Send(frame{Type: "relay-restart", SessionID: m.st.sessionID})
	m.rebuildRelayOnly()
}

// handleRelayRestart is the follower-side reaction to the controller's
// relay-restart signal: rebuild with relay-only policy and wait to answer.
func (m *Machine) handleRelayRestart() {
	m.st.phase = PhaseRelayFallback
	m.rebuildRelayOnly()
}

func (m *Machine) rebuildRelayOnly() {
	if m.pc != nil {
		m.pc.Close()
	}
	m.pc = nil
	pc, err := m.pcFactory(PolicyRelay)
	if err != nil {
		return
	}
	m.pc = pc
	m.modeRetried = false
	pc.OnICEConnectionStateChange(m.onICEConnectionStateChange)
	pc.OnICECandidate(m.onICEActivity)
	pc.OnICEGatheringStateChange(m.onICEActivity)

	if m.st.role == "controller" {
		m.createAndSendOffer()
	}
}
