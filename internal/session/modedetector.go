package session

// detectMode implements the Mode Detector (spec.md §4.5), controller-only.
// Selection priority over candidate-pair reports: selected == true; else
// succeeded && nominated; else succeeded. With no match, schedule exactly
// one retry after cfg.ModeDetectRetry and exit.
func (m *Machine) detectMode(pairs []CandidatePair, isRetry bool) {
	pair, ok := selectCandidatePair(pairs)
	if !ok {
		if !m.modeRetried {
			m.modeRetried = true
			m.scheduleModeDetectRetry()
		}
		return
	}

	mode := ModeP2P
	if pair.LocalType == "relay" || pair.RemoteType == "relay" {
		mode = ModeTURN
	}
	m.lockMode(mode)

	data, _ := modeFrameData(mode)
	m.transport.Send(frame{Type: "connection-mode", SessionID: m.st.sessionID, Data: data})
}

func selectCandidatePair(pairs []CandidatePair) (CandidatePair, bool) {
	for _, p := range pairs {
		if p.Selected {
			return p, true
		}
	}
	for _, p := range pairs {
		if p.State == "succeeded" && p.Nominated {
			return p, true
		}
	}
	for _, p := range pairs {
		if p.State == "succeeded" {
			return p, true
		}
	}
	return CandidatePair{}, false
}

func (m *Machine) scheduleModeDetectRetry() {
	AfterFunc(m.cfg.ModeDetectRetry, func() {
		if m.pc == nil || m.st.modeLocked {
			return
		}
		m.detectMode(m.pc.GetStats(), true)
	})
}

func modeFrameData(mode Mode) ([]byte, error) {
	return []byte(`{"mode":"` + string(mode) + `"}`), nil
}
