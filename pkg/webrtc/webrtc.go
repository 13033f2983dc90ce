// Package webrtc wraps pion peer connections into one-to-one media links
// between the instructor and a student. Session descriptions and ICE
// candidates travel through the relay as base64-encoded JSON blobs.
package webrtc

import (
	"encoding/base64"
	"encoding/json"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/vineetpathak08/remote-classroom/pkg/logger"
)

type Link struct {
	id   uuid.UUID
	conn *webrtc.PeerConnection
	log  *logger.Logger

	onMediaLoss func()
	connected   bool
	mu          sync.Mutex
	once        sync.Once
}

// Encode encodes the input in base64.
func Encode(obj any) (string, error) {
	b, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Decode decodes the input from base64.
func Decode(in string, obj any) error {
	b, err := base64.StdEncoding.DecodeString(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, obj)
}

func (a *ApiFactory) NewLink(log *logger.Logger) (*Link, error) {
	conn, err := a.NewPeer()
	if err != nil {
		return nil, err
	}
	id := uuid.Must(uuid.NewV4())
	l := &Link{id: id, conn: conn, log: log.Wrap(log.With().Str("link", id.String()[:8]))}
	conn.OnICEConnectionStateChange(l.handleIceState)
	return l, nil
}

func (l *Link) Id() string { return l.id.String() }

func (l *Link) AddTrack(track webrtc.TrackLocal) error {
	_, err := l.conn.AddTrack(track)
	return err
}

func (l *Link) OnMediaLoss(fn func()) { l.mu.Lock(); l.onMediaLoss = fn; l.mu.Unlock() }

func (l *Link) IsConnected() bool { l.mu.Lock(); defer l.mu.Unlock(); return l.connected }

// Offer starts the initiator side of the negotiation. Candidates trickle
// through iceCB as they are gathered; the final empty one marks the end.
func (l *Link) Offer(iceCB func(candidate string)) (string, error) {
	l.trickle(iceCB)
	offer, err := l.conn.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	l.log.Debug().Msg("Created Offer")
	if err = l.conn.SetLocalDescription(offer); err != nil {
		return "", err
	}
	return Encode(offer)
}

// Answer handles the receiving side: applies the remote offer and returns
// the local answer.
func (l *Link) Answer(remoteOffer string, iceCB func(candidate string)) (string, error) {
	l.trickle(iceCB)
	if err := l.SetRemoteSDP(remoteOffer); err != nil {
		return "", err
	}
	answer, err := l.conn.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	l.log.Debug().Msg("Created Answer")
	if err = l.conn.SetLocalDescription(answer); err != nil {
		return "", err
	}
	return Encode(answer)
}

func (l *Link) trickle(iceCB func(candidate string)) {
	l.conn.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			iceCB("")
			return
		}
		candidate, err := Encode(c.ToJSON())
		if err != nil {
			l.log.Error().Err(err).Msgf("ICE candidate encode fail %v", c.ToJSON().Candidate)
			return
		}
		iceCB(candidate)
	})
}

func (l *Link) OnTrack(fn func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	l.conn.OnTrack(fn)
}

func (l *Link) SetRemoteSDP(remoteSDP string) error {
	var sdp webrtc.SessionDescription
	if err := Decode(remoteSDP, &sdp); err != nil {
		l.log.Error().Err(err).Msg("remote SDP decode fail")
		return err
	}
	if err := l.conn.SetRemoteDescription(sdp); err != nil {
		l.log.Error().Err(err).Msg("remote SDP set fail")
		return err
	}
	l.log.Debug().Msg("Set Remote Description")
	return nil
}

func (l *Link) AddCandidate(candidate string) error {
	var ice webrtc.ICECandidateInit
	if err := Decode(candidate, &ice); err != nil {
		l.log.Error().Err(err).Msg("ICE candidate decode fail")
		return err
	}
	if err := l.conn.AddICECandidate(ice); err != nil {
		l.log.Error().Err(err).Msg("ICE candidate add fail")
		return err
	}
	l.log.Debug().Msgf("Add Ice Candidate: %v", ice.Candidate)
	return nil
}

func (l *Link) handleIceState(state webrtc.ICEConnectionState) {
	l.log.Debug().Str("ice", state.String()).Msg("ICE state change")
	switch state {
	case webrtc.ICEConnectionStateConnected:
		l.mu.Lock()
		l.connected = true
		l.mu.Unlock()
	case webrtc.ICEConnectionStateFailed,
		webrtc.ICEConnectionStateClosed,
		webrtc.ICEConnectionStateDisconnected:
		l.mu.Lock()
		was := l.connected
		l.connected = false
		fn := l.onMediaLoss
		l.mu.Unlock()
		// media loss is a transport fact, not a roster change; the peer
		// stays in the roster until the relay says otherwise
		if was && fn != nil {
			fn()
		}
	}
}

// Destroy tears the link down. Safe to call many times.
func (l *Link) Destroy() {
	l.once.Do(func() {
		l.mu.Lock()
		l.connected = false
		l.mu.Unlock()
		if l.conn != nil {
			if err := l.conn.Close(); err != nil {
				l.log.Error().Err(err).Msg("link close fail")
			}
		}
		l.log.Debug().Msg("link destroyed")
	})
}
