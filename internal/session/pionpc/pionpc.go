// Package pionpc adapts a real pion/webrtc/v4 engine to the session.PeerConnection
// capability interface, for a non-browser Go peer (e.g. an integration test
// harness or a headless client) driving session.Machine.
package pionpc

import (
	"github.com/pion/webrtc/v4"

	"aq-coordinator/internal/session"
)

// Factory builds a session.PeerConnectionFactory bound to the given STUN/TURN
// servers, switching ICE transport policy between all-candidates and
// relay-only per the Fallback Orchestrator's request.
func Factory(stunURLs, turnURLs []string, turnUsername, turnCredential string) session.PeerConnectionFactory {
	return func(policy session.IceTransportPolicy) (session.PeerConnection, error) {
		cfg := webrtc.Configuration{
			ICEServers:         iceServers(stunURLs, turnURLs, turnUsername, turnCredential),
			ICETransportPolicy: transportPolicy(policy),
		}

		pc, err := webrtc.NewPeerConnection(cfg)
		if err != nil {
			return nil, err
		}
		return &Adapter{pc: pc}, nil
	}
}

func transportPolicy(policy session.IceTransportPolicy) webrtc.ICETransportPolicy {
	if policy == session.PolicyRelay {
		return webrtc.ICETransportPolicyRelay
	}
	return webrtc.ICETransportPolicyAll
}

func iceServers(stunURLs, turnURLs []string, username, credential string) []webrtc.ICEServer {
	var servers []webrtc.ICEServer
	if len(stunURLs) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: stunURLs})
	}
	if len(turnURLs) > 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs:           turnURLs,
			Username:       username,
			Credential:     credential,
			CredentialType: webrtc.ICECredentialTypePassword,
		})
	}
	return servers
}

// Adapter wraps a *webrtc.PeerConnection to satisfy session.PeerConnection.
type Adapter struct {
	pc *webrtc.PeerConnection
}

func (a *Adapter) CreateOffer() (session.SDP, error) {
	offer, err := a.pc.CreateOffer(nil)
	if err != nil {
		return session.SDP{}, err
	}
	return toSDP(offer), nil
}

func (a *Adapter) CreateAnswer() (session.SDP, error) {
	answer, err := a.pc.CreateAnswer(nil)
	if err != nil {
		return session.SDP{}, err
	}
	return toSDP(answer), nil
}

func (a *Adapter) SetLocalDescription(sdp session.SDP) error {
	if sdp.Type == "" {
		return a.pc.SetLocalDescription(webrtc.SessionDescription{})
	}
	return a.pc.SetLocalDescription(fromSDP(sdp))
}

func (a *Adapter) SetRemoteDescription(sdp session.SDP) error {
	return a.pc.SetRemoteDescription(fromSDP(sdp))
}

func (a *Adapter) AddICECandidate(c session.ICECandidate) error {
	return a.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	})
}

// GetStats translates pion's raw StatsReport into the candidate-pair rows the
// Mode Detector selects over (spec.md §4.5).
func (a *Adapter) GetStats() []session.CandidatePair {
	report := a.pc.GetStats()

	candidateTypes := make(map[string]string, len(report))
	for id, s := range report {
		if ic, ok := s.(webrtc.ICECandidateStats); ok {
			candidateTypes[id] = ic.CandidateType.String()
		}
	}

	var pairs []session.CandidatePair
	for _, s := range report {
		pair, ok := s.(webrtc.ICECandidatePairStats)
		if !ok {
			continue
		}
		pairs = append(pairs, session.CandidatePair{
			Selected:   pair.Nominated && pair.State == webrtc.StatsICECandidatePairStateSucceeded,
			State:      pair.State.String(),
			Nominated:  pair.Nominated,
			LocalType:  candidateTypes[pair.LocalCandidateID],
			RemoteType: candidateTypes[pair.RemoteCandidateID],
		})
	}
	return pairs
}

func (a *Adapter) OnICEConnectionStateChange(cb func(session.ICEConnectionState)) {
	a.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		switch s {
		case webrtc.ICEConnectionStateConnected:
			cb(session.ICEConnected)
		case webrtc.ICEConnectionStateCompleted:
			cb(session.ICECompleted)
		case webrtc.ICEConnectionStateFailed:
			cb(session.ICEFailed)
		case webrtc.ICEConnectionStateDisconnected:
			cb(session.ICEDisconnected)
		}
	})
}

func (a *Adapter) OnICECandidate(cb func()) {
	a.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		cb()
	})
}

func (a *Adapter) OnICEGatheringStateChange(cb func()) {
	a.pc.OnICEGatheringStateChange(func(webrtc.ICEGatheringState) {
		cb()
	})
}

func (a *Adapter) Close() error { return a.pc.Close() }

func toSDP(d webrtc.SessionDescription) session.SDP {
	return session.SDP{Type: d.Type.String(), SDP: d.SDP}
}

func fromSDP(s session.SDP) webrtc.SessionDescription {
	var t webrtc.SDPType
	switch s.Type {
	case "offer":
		t = webrtc.SDPTypeOffer
	case "answer":
		t = webrtc.SDPTypeAnswer
	case "pranswer":
		t = webrtc.SDPTypePranswer
	case "rollback":
		t = webrtc.SDPTypeRollback
	}
	return webrtc.SessionDescription{Type: t, SDP: s.SDP}
}
